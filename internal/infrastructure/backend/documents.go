package backend

import (
	"context"
	"net/http"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func (c *Client) SignUpload(ctx context.Context, scope domain.Scope, filename, mimeType string) (domain.SignedDestination, error) {
	path, err := orgPath(scope, "/uploads/sign")
	if err != nil {
		return domain.SignedDestination{}, err
	}
	var resp signResponse
	if err := c.do(ctx, scope, call{
		operation: "sign_upload",
		method:    http.MethodPost,
		path:      path,
		body:      signRequest{Filename: filename, MimeType: mimeType},
		out:       &resp,
	}); err != nil {
		return domain.SignedDestination{}, err
	}
	return domain.SignedDestination{
		SignedURL:  resp.SignedURL,
		StorageKey: resp.StorageKey,
		Token:      resp.Token,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

// UpsertFolder returns the existing folder at path or creates it in one call.
func (c *Client) UpsertFolder(ctx context.Context, scope domain.Scope, segments []string) (domain.Folder, error) {
	path, err := orgPath(scope, "/folders/upsert")
	if err != nil {
		return domain.Folder{}, err
	}
	var resp folderDTO
	if err := c.do(ctx, scope, call{
		operation: "upsert_folder",
		method:    http.MethodPost,
		path:      path,
		body:      folderUpsertRequest{Path: segments},
		out:       &resp,
	}); err != nil {
		return domain.Folder{}, err
	}
	folderPath := resp.Path
	if len(folderPath) == 0 {
		folderPath = append([]string(nil), segments...)
	}
	return domain.Folder{ID: resp.ID, Name: resp.Name, Path: folderPath, Created: resp.Created}, nil
}

func (c *Client) CreatePending(ctx context.Context, scope domain.Scope, doc domain.NewDocument) (*domain.Document, error) {
	path, err := orgPath(scope, "/documents")
	if err != nil {
		return nil, err
	}
	var resp documentDTO
	if err := c.do(ctx, scope, call{
		operation: "create_document",
		method:    http.MethodPost,
		path:      path,
		body:      newCreateDocumentRequest(doc),
		out:       &resp,
	}); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (c *Client) Finalize(ctx context.Context, scope domain.Scope, req domain.FinalizeRequest) (*domain.Document, error) {
	path, err := orgPath(scope, "/uploads/finalize")
	if err != nil {
		return nil, err
	}
	var resp documentDTO
	if err := c.do(ctx, scope, call{
		operation: "finalize_upload",
		method:    http.MethodPost,
		path:      path,
		body: finalizeRequest{
			DocumentID:    req.DocumentID,
			StorageKey:    req.StorageKey,
			FileSizeBytes: req.FileSizeBytes,
			MimeType:      req.MimeType,
		},
		out: &resp,
	}); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (c *Client) GetDocument(ctx context.Context, scope domain.Scope, id string) (*domain.Document, error) {
	path, err := orgPath(scope, "/documents/%s", id)
	if err != nil {
		return nil, err
	}
	var resp documentDTO
	if err := c.do(ctx, scope, call{
		operation: "get_document",
		method:    http.MethodGet,
		path:      path,
		out:       &resp,
	}); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (c *Client) ListVersions(ctx context.Context, scope domain.Scope, versionGroupID string) ([]domain.Document, error) {
	path, err := orgPath(scope, "/version-groups/%s/documents", versionGroupID)
	if err != nil {
		return nil, err
	}
	var resp []documentDTO
	if err := c.do(ctx, scope, call{
		operation: "list_versions",
		method:    http.MethodGet,
		path:      path,
		out:       &resp,
	}); err != nil {
		return nil, err
	}
	return documentsToDomain(resp), nil
}

func (c *Client) SetCurrent(ctx context.Context, scope domain.Scope, documentID string) error {
	path, err := orgPath(scope, "/documents/%s/set-current", documentID)
	if err != nil {
		return err
	}
	return c.do(ctx, scope, call{
		operation: "set_current_version",
		method:    http.MethodPost,
		path:      path,
		conflict:  domain.ErrVersionConflict,
	})
}

func (c *Client) MoveVersion(ctx context.Context, scope domain.Scope, documentID string, fromVersion, toVersion int) error {
	path, err := orgPath(scope, "/documents/%s/move-version", documentID)
	if err != nil {
		return err
	}
	return c.do(ctx, scope, call{
		operation: "move_version",
		method:    http.MethodPost,
		path:      path,
		body:      moveVersionRequest{FromVersion: fromVersion, ToVersion: toVersion},
		conflict:  domain.ErrVersionConflict,
	})
}
