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

type RelationshipGraphUseCase struct {
	store    ports.LinkStore
	notifier ports.LifecycleNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewRelationshipGraphUseCase(store ports.LinkStore) *RelationshipGraphUseCase {
	return &RelationshipGraphUseCase{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

func (uc *RelationshipGraphUseCase) WithNotifier(notifier ports.LifecycleNotifier) *RelationshipGraphUseCase {
	uc.notifier = notifier
	return uc
}

func (uc *RelationshipGraphUseCase) WithLogger(logger *slog.Logger) *RelationshipGraphUseCase {
	if logger != nil {
		uc.logger = logger
	}
	return uc
}

func (uc *RelationshipGraphUseCase) RelationshipsOf(ctx context.Context, scope domain.Scope, documentID string) (domain.Relationships, error) {
	if strings.TrimSpace(documentID) == "" {
		return domain.Relationships{}, domain.WrapError(domain.ErrInvalidInput, "load relationships", errors.New("document id is required"))
	}
	rel, err := uc.store.Relationships(ctx, scope, documentID)
	if err != nil {
		return domain.Relationships{}, fmt.Errorf("load relationships: %w", err)
	}
	return normalizeRelationships(documentID, rel), nil
}

// Link creates the directed edge from -> to. The reverse edge is never implied.
func (uc *RelationshipGraphUseCase) Link(ctx context.Context, scope domain.Scope, link domain.Link) (domain.Relationships, error) {
	link.FromID = strings.TrimSpace(link.FromID)
	link.ToID = strings.TrimSpace(link.ToID)
	link.LinkType = strings.TrimSpace(link.LinkType)
	if err := link.Validate(); err != nil {
		return domain.Relationships{}, err
	}
	if link.FromID == link.ToID {
		return domain.Relationships{}, domain.WrapError(domain.ErrSelfLink, "create link", fmt.Errorf("document %s", link.FromID))
	}

	existing, err := uc.RelationshipsOf(ctx, scope, link.FromID)
	if err != nil {
		return domain.Relationships{}, err
	}
	if existing.HasOutgoing(link.ToID, link.LinkType) {
		return existing, domain.WrapError(domain.ErrDuplicateLink, "create link",
			fmt.Errorf("%s -> %s (%s)", link.FromID, link.ToID, link.LinkType))
	}

	if err := uc.store.CreateLink(ctx, scope, link); err != nil {
		return existing, fmt.Errorf("create link: %w", err)
	}
	uc.logger.Info("link_created",
		"org_id", scope.OrgID,
		"from_id", link.FromID,
		"to_id", link.ToID,
		"link_type", link.LinkType,
	)
	publishLifecycleEvent(ctx, uc.notifier, uc.logger, domain.LifecycleEvent{
		Type:       domain.EventLinkCreated,
		OrgID:      scope.OrgID,
		DocumentID: link.FromID,
		TargetID:   link.ToID,
		Actor:      scope.ActorEmail,
		At:         uc.now().UTC(),
	})
	return uc.RelationshipsOf(ctx, scope, link.FromID)
}

// Unlink removes the edge from -> to only and returns the refreshed view of fromID.
func (uc *RelationshipGraphUseCase) Unlink(ctx context.Context, scope domain.Scope, fromID, toID string) (domain.Relationships, error) {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return domain.Relationships{}, domain.WrapError(domain.ErrInvalidInput, "remove link", errors.New("both document ids are required"))
	}
	if err := uc.store.DeleteLink(ctx, scope, fromID, toID); err != nil {
		return domain.Relationships{}, fmt.Errorf("remove link: %w", err)
	}
	uc.logger.Info("link_removed", "org_id", scope.OrgID, "from_id", fromID, "to_id", toID)
	publishLifecycleEvent(ctx, uc.notifier, uc.logger, domain.LifecycleEvent{
		Type:       domain.EventLinkRemoved,
		OrgID:      scope.OrgID,
		DocumentID: fromID,
		TargetID:   toID,
		Actor:      scope.ActorEmail,
		At:         uc.now().UTC(),
	})
	return uc.RelationshipsOf(ctx, scope, fromID)
}

// normalizeRelationships stamps directions on peers, rebuilds the combined
// linked view when the backend omits it and orders versions newest first.
func normalizeRelationships(documentID string, rel domain.Relationships) domain.Relationships {
	out := domain.Relationships{
		DocumentID: documentID,
		Incoming:   withDirection(rel.Incoming, domain.DirectionIncoming),
		Outgoing:   withDirection(rel.Outgoing, domain.DirectionOutgoing),
		Versions:   domain.SortVersionsDescending(rel.Versions),
	}
	if len(rel.Linked) > 0 {
		out.Linked = append([]domain.LinkedPeer(nil), rel.Linked...)
	} else {
		out.Linked = make([]domain.LinkedPeer, 0, len(out.Outgoing)+len(out.Incoming))
		out.Linked = append(out.Linked, out.Outgoing...)
		out.Linked = append(out.Linked, out.Incoming...)
	}
	return out
}

func withDirection(peers []domain.LinkedPeer, direction domain.LinkDirection) []domain.LinkedPeer {
	out := make([]domain.LinkedPeer, len(peers))
	for i, peer := range peers {
		peer.Direction = direction
		out[i] = peer
	}
	return out
}
