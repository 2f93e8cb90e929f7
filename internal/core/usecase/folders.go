package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// materializeFolders upserts every prefix of the placement path, shortest
// first, and returns the deepest folder id. An explicit folder id skips it.
func (uc *UploadUseCase) materializeFolders(
	ctx context.Context,
	logger *slog.Logger,
	scope domain.Scope,
	placement domain.Placement,
) (*string, error) {
	if placement.FolderID != nil && *placement.FolderID != "" {
		return placement.FolderID, nil
	}

	segments := placement.Segments()
	if len(segments) == 0 {
		return nil, nil
	}

	var folder domain.Folder
	for depth := 1; depth <= len(segments); depth++ {
		prefix := append([]string(nil), segments[:depth]...)
		upserted, err := uc.folders.UpsertFolder(ctx, scope, prefix)
		if err != nil {
			return nil, domain.WrapError(domain.ErrFolderCreation, fmt.Sprintf("upsert folder %q", strings.Join(prefix, "/")), err)
		}
		if upserted.ID == "" {
			return nil, domain.WrapError(domain.ErrFolderCreation, fmt.Sprintf("upsert folder %q", strings.Join(prefix, "/")), fmt.Errorf("backend returned no folder id"))
		}
		if upserted.Created {
			logger.Info("folder_created", "folder_id", upserted.ID, "path", strings.Join(prefix, "/"))
		}
		folder = upserted
	}
	return &folder.ID, nil
}
