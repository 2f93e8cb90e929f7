package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

const titleLookupConcurrency = 4

// AuditCorrelator joins raw audit records with member roles and document titles.
type AuditCorrelator struct {
	feed   ports.AuditFeed
	users  ports.UserDirectory
	titles ports.TitleResolver
	logger *slog.Logger
}

// NewAuditCorrelator accepts nil users or titles; roles then fall back to the
// record's own role and missing titles stay empty.
func NewAuditCorrelator(feed ports.AuditFeed, users ports.UserDirectory, titles ports.TitleResolver) *AuditCorrelator {
	return &AuditCorrelator{
		feed:   feed,
		users:  users,
		titles: titles,
		logger: slog.Default(),
	}
}

func (c *AuditCorrelator) WithLogger(logger *slog.Logger) *AuditCorrelator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Fetch returns correlated events, newest first.
func (c *AuditCorrelator) Fetch(ctx context.Context, scope domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error) {
	if !scope.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch audit events", errors.New("no active organization"))
	}

	var (
		events  []domain.AuditEvent
		members []domain.KnownUser
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = c.feed.ListAuditEvents(gctx, scope, query)
		if err != nil {
			return fmt.Errorf("fetch audit events: %w", err)
		}
		return nil
	})
	if c.users != nil {
		g.Go(func() error {
			list, err := c.users.ListMembers(gctx, scope)
			if err != nil {
				c.logger.Warn("audit_members_unavailable", "org_id", scope.OrgID, "error", err)
				return nil
			}
			members = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.AuditEvent, len(events))
	copy(out, events)
	c.backfillTitles(ctx, scope, out)

	roles := make(map[string]string, len(members))
	for _, member := range members {
		email := strings.ToLower(strings.TrimSpace(member.Email))
		if email != "" && member.Role != "" {
			roles[email] = member.Role
		}
	}
	for i := range out {
		out[i].Role = resolveActorRole(out[i], roles)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs > out[j].TimestampMs
	})
	return out, nil
}

// resolveActorRole prefers the directory role, then the record's own role.
func resolveActorRole(event domain.AuditEvent, roles map[string]string) string {
	if role, ok := roles[strings.ToLower(strings.TrimSpace(event.ActorIdentity))]; ok {
		return role
	}
	if role := strings.TrimSpace(event.ActorRole); role != "" {
		return role
	}
	return domain.UnknownActorRole
}

func (c *AuditCorrelator) backfillTitles(ctx context.Context, scope domain.Scope, events []domain.AuditEvent) {
	if c.titles == nil {
		return
	}
	var missing []string
	seen := make(map[string]struct{})
	for _, event := range events {
		if event.DocID == "" || event.Title != "" {
			continue
		}
		if _, ok := seen[event.DocID]; ok {
			continue
		}
		seen[event.DocID] = struct{}{}
		missing = append(missing, event.DocID)
	}
	if len(missing) == 0 {
		return
	}

	var mu sync.Mutex
	resolved := make(map[string]string, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(titleLookupConcurrency)
	for _, id := range missing {
		g.Go(func() error {
			doc, err := c.titles.GetDocument(gctx, scope, id)
			if err != nil || doc == nil {
				c.logger.Debug("audit_title_lookup_failed", "org_id", scope.OrgID, "document_id", id, "error", err)
				return nil
			}
			mu.Lock()
			resolved[id] = doc.Title
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range events {
		if events[i].Title == "" {
			events[i].Title = resolved[events[i].DocID]
		}
	}
}
