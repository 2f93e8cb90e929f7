package backend

import (
	"context"
	"net/http"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func (c *Client) Relationships(ctx context.Context, scope domain.Scope, documentID string) (domain.Relationships, error) {
	path, err := orgPath(scope, "/documents/%s/relationships", documentID)
	if err != nil {
		return domain.Relationships{}, err
	}
	var resp relationshipsDTO
	if err := c.do(ctx, scope, call{
		operation:   "get_relationships",
		method:      http.MethodGet,
		path:        path,
		out:         &resp,
		unavailable: domain.ErrNetwork,
	}); err != nil {
		return domain.Relationships{}, err
	}
	return domain.Relationships{
		DocumentID: documentID,
		Linked:     peersToDomain(resp.Linked),
		Incoming:   peersToDomain(resp.Incoming),
		Outgoing:   peersToDomain(resp.Outgoing),
		Versions:   documentsToDomain(resp.Versions),
	}, nil
}

func (c *Client) CreateLink(ctx context.Context, scope domain.Scope, link domain.Link) error {
	path, err := orgPath(scope, "/documents/%s/link", link.FromID)
	if err != nil {
		return err
	}
	return c.do(ctx, scope, call{
		operation: "create_link",
		method:    http.MethodPost,
		path:      path,
		body:      linkRequest{LinkedID: link.ToID, LinkType: link.LinkType},
		conflict:  domain.ErrDuplicateLink,
	})
}

func (c *Client) DeleteLink(ctx context.Context, scope domain.Scope, fromID, toID string) error {
	path, err := orgPath(scope, "/documents/%s/link/%s", fromID, toID)
	if err != nil {
		return err
	}
	return c.do(ctx, scope, call{
		operation: "delete_link",
		method:    http.MethodDelete,
		path:      path,
	})
}
