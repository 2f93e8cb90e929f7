package ports

import (
	"context"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// DocumentUploader is the inbound contract for upload orchestration.
type DocumentUploader interface {
	Upload(ctx context.Context, scope domain.Scope, req domain.UploadRequest, onUpdate domain.SessionFunc) (*domain.Document, error)
}

// VersionChainManager is the inbound contract for version chains.
type VersionChainManager interface {
	ListVersions(ctx context.Context, scope domain.Scope, versionGroupID string) ([]domain.Document, error)
	SetCurrent(ctx context.Context, scope domain.Scope, documentID string) ([]domain.Document, error)
	MoveVersion(ctx context.Context, scope domain.Scope, documentID string, fromVersion, toVersion int) ([]domain.Document, error)
}

// RelationshipGraph is the inbound contract for document links.
type RelationshipGraph interface {
	RelationshipsOf(ctx context.Context, scope domain.Scope, documentID string) (domain.Relationships, error)
	Link(ctx context.Context, scope domain.Scope, link domain.Link) (domain.Relationships, error)
	Unlink(ctx context.Context, scope domain.Scope, fromID, toID string) (domain.Relationships, error)
}

// AuditReader is the inbound contract for the correlated audit trail.
type AuditReader interface {
	Fetch(ctx context.Context, scope domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error)
}
