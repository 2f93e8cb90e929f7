package ports

import (
	"context"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// UploadSigner issues one-time storage destinations.
type UploadSigner interface {
	SignUpload(ctx context.Context, scope domain.Scope, filename, mimeType string) (domain.SignedDestination, error)
}

// ByteTransport moves file bytes to a signed destination.
type ByteTransport interface {
	Transfer(ctx context.Context, dest domain.SignedDestination, file domain.FileSource, onProgress domain.ProgressFunc) error
}

// TextRecognizer is the OCR transcription capability.
type TextRecognizer interface {
	Transcribe(ctx context.Context, file domain.FileSource) (string, error)
}

// MetadataExtractor is the structured-field extraction capability.
type MetadataExtractor interface {
	ExtractFields(ctx context.Context, file domain.FileSource, declaredType string) (domain.Metadata, error)
}

// FolderStore upserts a folder by its full path; existing folders are returned unchanged.
type FolderStore interface {
	UpsertFolder(ctx context.Context, scope domain.Scope, path []string) (domain.Folder, error)
}

// DocumentStore creates, finalizes and reads document records.
type DocumentStore interface {
	CreatePending(ctx context.Context, scope domain.Scope, doc domain.NewDocument) (*domain.Document, error)
	Finalize(ctx context.Context, scope domain.Scope, req domain.FinalizeRequest) (*domain.Document, error)
	GetDocument(ctx context.Context, scope domain.Scope, id string) (*domain.Document, error)
}

// VersionStore reads and mutates version chains.
type VersionStore interface {
	GetDocument(ctx context.Context, scope domain.Scope, id string) (*domain.Document, error)
	ListVersions(ctx context.Context, scope domain.Scope, versionGroupID string) ([]domain.Document, error)
	SetCurrent(ctx context.Context, scope domain.Scope, documentID string) error
	MoveVersion(ctx context.Context, scope domain.Scope, documentID string, fromVersion, toVersion int) error
}

// LinkStore reads and mutates directed links.
type LinkStore interface {
	Relationships(ctx context.Context, scope domain.Scope, documentID string) (domain.Relationships, error)
	CreateLink(ctx context.Context, scope domain.Scope, link domain.Link) error
	DeleteLink(ctx context.Context, scope domain.Scope, fromID, toID string) error
}

// AuditFeed fetches raw audit records, newest first or in any order.
type AuditFeed interface {
	ListAuditEvents(ctx context.Context, scope domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error)
}

// UserDirectory lists organization members for actor-role correlation.
type UserDirectory interface {
	ListMembers(ctx context.Context, scope domain.Scope) ([]domain.KnownUser, error)
}

// TitleResolver looks up documents whose audit records lack a title.
type TitleResolver interface {
	GetDocument(ctx context.Context, scope domain.Scope, id string) (*domain.Document, error)
}

// LifecycleNotifier publishes mutation notifications to other replicas.
type LifecycleNotifier interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}

// LifecycleSubscriber consumes mutation notifications until ctx is done.
type LifecycleSubscriber interface {
	Subscribe(ctx context.Context, handler func(context.Context, domain.LifecycleEvent) error) error
}

// CommitLedger records uploads between record creation and finalize.
type CommitLedger interface {
	RecordInFlight(ctx context.Context, entry domain.LedgerEntry) error
	MarkFinalized(ctx context.Context, documentID string) error
	MarkFinalizeFailed(ctx context.Context, documentID, reason string) error
	ListUnfinalized(ctx context.Context, olderThan time.Time, limit int) ([]domain.LedgerEntry, error)
}

// UploadObserver receives orchestration outcomes for metrics.
type UploadObserver interface {
	UploadStarted()
	UploadFinished(state domain.UploadState, stage string, duration time.Duration)
}
