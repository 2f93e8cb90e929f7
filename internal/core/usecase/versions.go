package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// VersionChainUseCase never merges local state: every write is followed by a
// refetch of the group, and the refetched state is what callers see.
type VersionChainUseCase struct {
	store    ports.VersionStore
	notifier ports.LifecycleNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewVersionChainUseCase(store ports.VersionStore) *VersionChainUseCase {
	return &VersionChainUseCase{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

func (uc *VersionChainUseCase) WithNotifier(notifier ports.LifecycleNotifier) *VersionChainUseCase {
	uc.notifier = notifier
	return uc
}

func (uc *VersionChainUseCase) WithLogger(logger *slog.Logger) *VersionChainUseCase {
	if logger != nil {
		uc.logger = logger
	}
	return uc
}

// ListVersions returns the group's members ordered by version number, newest first.
func (uc *VersionChainUseCase) ListVersions(ctx context.Context, scope domain.Scope, versionGroupID string) ([]domain.Document, error) {
	if strings.TrimSpace(versionGroupID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list versions", errors.New("version group id is required"))
	}
	docs, err := uc.store.ListVersions(ctx, scope, versionGroupID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return domain.SortVersionsDescending(docs), nil
}

// SetCurrent marks documentID as the current version of its group. A refetch
// that shows another member as current means a concurrent writer won.
func (uc *VersionChainUseCase) SetCurrent(ctx context.Context, scope domain.Scope, documentID string) ([]domain.Document, error) {
	doc, err := uc.loadVersioned(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}
	groupID := *doc.VersionGroupID

	if !doc.IsCurrentVersion {
		if err := uc.store.SetCurrent(ctx, scope, documentID); err != nil {
			return nil, fmt.Errorf("set current version: %w", err)
		}
		uc.logger.Info("version_set_current", "org_id", scope.OrgID, "document_id", documentID, "version_group_id", groupID)
		publishLifecycleEvent(ctx, uc.notifier, uc.logger, domain.LifecycleEvent{
			Type:       domain.EventVersionSet,
			OrgID:      scope.OrgID,
			DocumentID: documentID,
			Actor:      scope.ActorEmail,
			At:         uc.now().UTC(),
		})
	}

	versions, err := uc.ListVersions(ctx, scope, groupID)
	if err != nil {
		return nil, err
	}
	current, err := domain.CurrentVersion(versions)
	if err != nil {
		return versions, domain.EnsureKind(domain.ErrVersionConflict, "verify current version", err)
	}
	if current == nil || current.ID != documentID {
		return versions, domain.WrapError(domain.ErrVersionConflict, "verify current version",
			fmt.Errorf("document %s is not current after update", documentID))
	}
	return versions, nil
}

// MoveVersion swaps the version numbers of the members at fromVersion and toVersion.
func (uc *VersionChainUseCase) MoveVersion(
	ctx context.Context,
	scope domain.Scope,
	documentID string,
	fromVersion, toVersion int,
) ([]domain.Document, error) {
	if fromVersion <= 0 || toVersion <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "move version", errors.New("version numbers must be positive"))
	}
	if fromVersion == toVersion {
		return nil, domain.WrapError(domain.ErrInvalidInput, "move version", errors.New("source and target version are equal"))
	}

	doc, err := uc.loadVersioned(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}
	groupID := *doc.VersionGroupID

	before, err := uc.ListVersions(ctx, scope, groupID)
	if err != nil {
		return nil, err
	}
	fromDoc, ok := domain.FindByVersionNumber(before, fromVersion)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "move version", fmt.Errorf("version %d not in group %s", fromVersion, groupID))
	}
	toDoc, ok := domain.FindByVersionNumber(before, toVersion)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "move version", fmt.Errorf("version %d not in group %s", toVersion, groupID))
	}
	movedID, displacedID := fromDoc.ID, toDoc.ID

	if err := uc.store.MoveVersion(ctx, scope, documentID, fromVersion, toVersion); err != nil {
		return nil, fmt.Errorf("move version: %w", err)
	}
	uc.logger.Info("version_moved",
		"org_id", scope.OrgID,
		"version_group_id", groupID,
		"from_version", fromVersion,
		"to_version", toVersion,
	)
	publishLifecycleEvent(ctx, uc.notifier, uc.logger, domain.LifecycleEvent{
		Type:       domain.EventVersionMoved,
		OrgID:      scope.OrgID,
		DocumentID: movedID,
		TargetID:   displacedID,
		Actor:      scope.ActorEmail,
		At:         uc.now().UTC(),
	})

	after, err := uc.ListVersions(ctx, scope, groupID)
	if err != nil {
		return nil, err
	}
	if err := verifySwap(after, movedID, displacedID, fromVersion, toVersion); err != nil {
		return after, err
	}
	return after, nil
}

func (uc *VersionChainUseCase) loadVersioned(ctx context.Context, scope domain.Scope, documentID string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load document", errors.New("document id is required"))
	}
	doc, err := uc.store.GetDocument(ctx, scope, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if !doc.Versioned() {
		return nil, domain.WrapError(domain.ErrNotFound, "load version group", fmt.Errorf("document %s has no version group", documentID))
	}
	return doc, nil
}

func verifySwap(after []domain.Document, movedID, displacedID string, fromVersion, toVersion int) error {
	moved, ok := domain.FindByID(after, movedID)
	if !ok || moved.VersionNumber != toVersion {
		return domain.WrapError(domain.ErrVersionConflict, "verify version move",
			fmt.Errorf("document %s is not at version %d", movedID, toVersion))
	}
	displaced, ok := domain.FindByID(after, displacedID)
	if !ok || displaced.VersionNumber != fromVersion {
		return domain.WrapError(domain.ErrVersionConflict, "verify version move",
			fmt.Errorf("document %s is not at version %d", displacedID, fromVersion))
	}
	return nil
}
