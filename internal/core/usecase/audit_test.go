package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

type auditFeedFake struct {
	mu      sync.Mutex
	events  []domain.AuditEvent
	err     error
	queries []domain.AuditQuery
}

func (f *auditFeedFake) ListAuditEvents(_ context.Context, _ domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.AuditEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

type directoryFake struct {
	members []domain.KnownUser
	err     error
}

func (f *directoryFake) ListMembers(context.Context, domain.Scope) ([]domain.KnownUser, error) {
	return f.members, f.err
}

type titleResolverFake struct {
	mu     sync.Mutex
	titles map[string]string
	calls  map[string]int
}

func (f *titleResolverFake) GetDocument(_ context.Context, _ domain.Scope, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[id]++
	title, ok := f.titles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Document{ID: id, Title: title}, nil
}

func auditAt(id string, at time.Time, actor string, typ domain.AuditEventType) domain.AuditEvent {
	return domain.AuditEvent{ID: id, TimestampMs: at.UnixMilli(), ActorIdentity: actor, Type: typ}
}

func TestAuditFetchCorrelatesRolesAndSortsNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	feed := &auditFeedFake{events: []domain.AuditEvent{
		auditAt("e1", base, "Alice@Example.com", domain.AuditCreate),
		{ID: "e2", TimestampMs: base.Add(time.Hour).UnixMilli(), ActorIdentity: "bob@example.com", Type: domain.AuditEdit, ActorRole: "editor"},
		auditAt("e3", base.Add(2*time.Hour), "carol@example.com", domain.AuditDelete),
	}}
	users := &directoryFake{members: []domain.KnownUser{{Email: "alice@example.com", Role: "admin"}}}
	correlator := NewAuditCorrelator(feed, users, nil)

	events, err := correlator.Fetch(context.Background(), memberScope, domain.AuditQuery{Limit: 100})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if events[0].ID != "e3" || events[2].ID != "e1" {
		t.Fatalf("events not newest first: %+v", events)
	}
	roles := map[string]string{}
	for _, e := range events {
		roles[e.ID] = e.Role
	}
	if roles["e1"] != "admin" || roles["e2"] != "editor" || roles["e3"] != domain.UnknownActorRole {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

func TestAuditFetchSurvivesDirectoryFailure(t *testing.T) {
	feed := &auditFeedFake{events: []domain.AuditEvent{{ID: "e1", ActorIdentity: "a@example.com", ActorRole: "viewer"}}}
	correlator := NewAuditCorrelator(feed, &directoryFake{err: errors.New("members down")}, nil)

	events, err := correlator.Fetch(context.Background(), memberScope, domain.AuditQuery{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if events[0].Role != "viewer" {
		t.Fatalf("role = %q, want viewer", events[0].Role)
	}
}

func TestAuditFetchBackfillsTitlesOncePerDocument(t *testing.T) {
	feed := &auditFeedFake{events: []domain.AuditEvent{
		{ID: "e1", DocID: "doc-1", TimestampMs: 3},
		{ID: "e2", DocID: "doc-1", TimestampMs: 2},
		{ID: "e3", DocID: "doc-2", TimestampMs: 1, Title: "Kept"},
		{ID: "e4", DocID: "gone", TimestampMs: 0},
	}}
	titles := &titleResolverFake{titles: map[string]string{"doc-1": "Invoice", "doc-2": "Other"}}
	correlator := NewAuditCorrelator(feed, nil, titles)

	events, err := correlator.Fetch(context.Background(), memberScope, domain.AuditQuery{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if events[0].Title != "Invoice" || events[1].Title != "Invoice" || events[2].Title != "Kept" || events[3].Title != "" {
		t.Fatalf("unexpected titles: %+v", events)
	}
	if titles.calls["doc-1"] != 1 || titles.calls["doc-2"] != 0 {
		t.Fatalf("unexpected lookups: %v", titles.calls)
	}
}

func TestAuditFetchFailurePropagatesKind(t *testing.T) {
	feed := &auditFeedFake{err: domain.WrapError(domain.ErrNetwork, "list audit", errors.New("dial tcp"))}
	correlator := NewAuditCorrelator(feed, nil, nil)

	if _, err := correlator.Fetch(context.Background(), memberScope, domain.AuditQuery{}); !domain.IsKind(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, err := correlator.Fetch(context.Background(), domain.Scope{}, domain.AuditQuery{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without organization, got %v", err)
	}
}

func TestFilterAuditEventsDateRangeIsInclusiveByDay(t *testing.T) {
	var events []domain.AuditEvent
	for day := 1; day <= 10; day++ {
		start := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		events = append(events,
			auditAt(fmt.Sprintf("d%d-start", day), start, "a@example.com", domain.AuditEdit),
			auditAt(fmt.Sprintf("d%d-end", day), start.Add(24*time.Hour-time.Millisecond), "a@example.com", domain.AuditEdit),
		)
	}
	from := time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	got := FilterAuditEvents(events, domain.AuditFilter{From: &from, To: &to, Location: time.UTC})
	if len(got) != 6 {
		t.Fatalf("expected 6 events for days 3..5, got %d", len(got))
	}
	if got[0].ID != "d3-start" || got[len(got)-1].ID != "d5-end" {
		t.Fatalf("unexpected boundaries: first %s last %s", got[0].ID, got[len(got)-1].ID)
	}
}

func TestFilterAuditEventsCombinesPredicatesWithAnd(t *testing.T) {
	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	events := []domain.AuditEvent{
		{ID: "match", TimestampMs: at.UnixMilli(), ActorIdentity: "Alice@Example.com", Type: domain.AuditEdit, Title: "Invoice March"},
		{ID: "match-note", TimestampMs: at.UnixMilli(), ActorIdentity: "alice@example.com", Type: domain.AuditDelete, Note: "old INVOICE removed"},
		{ID: "wrong-type", TimestampMs: at.UnixMilli(), ActorIdentity: "alice@example.com", Type: domain.AuditCreate, Title: "Invoice"},
		{ID: "wrong-actor", TimestampMs: at.UnixMilli(), ActorIdentity: "bob@example.com", Type: domain.AuditEdit, Title: "Invoice"},
		{ID: "wrong-text", TimestampMs: at.UnixMilli(), ActorIdentity: "alice@example.com", Type: domain.AuditEdit, Title: "Receipt"},
	}

	got := FilterAuditEvents(events, domain.AuditFilter{
		Text:   "invoice",
		Types:  []domain.AuditEventType{domain.AuditEdit, domain.AuditDelete},
		Actors: []string{"alice@example.com"},
	})
	if len(got) != 2 || got[0].ID != "match" || got[1].ID != "match-note" {
		t.Fatalf("unexpected matches: %+v", got)
	}

	if all := FilterAuditEvents(events, domain.AuditFilter{}); len(all) != len(events) {
		t.Fatalf("empty filter should keep everything, got %d", len(all))
	}
}

func TestPaginateAuditEventsClampsPage(t *testing.T) {
	events := make([]domain.AuditEvent, 37)
	for i := range events {
		events[i] = domain.AuditEvent{ID: fmt.Sprintf("e%02d", i)}
	}

	page := PaginateAuditEvents(events, 5, domain.AuditPageSize)
	if page.TotalPages != 3 || page.Page != 3 {
		t.Fatalf("page = %d of %d, want 3 of 3", page.Page, page.TotalPages)
	}
	if len(page.Events) != 7 || page.Events[0].ID != "e30" {
		t.Fatalf("unexpected last page: %d events starting %s", len(page.Events), page.Events[0].ID)
	}

	first := PaginateAuditEvents(events, 0, domain.AuditPageSize)
	if first.Page != 1 || len(first.Events) != 15 {
		t.Fatalf("unexpected first page: %+v", first.Page)
	}

	empty := PaginateAuditEvents(nil, 2, domain.AuditPageSize)
	if empty.TotalPages != 1 || empty.Page != 1 || len(empty.Events) != 0 {
		t.Fatalf("unexpected empty page: %+v", empty)
	}
}

func TestAuditViewKeepsPreviousWindowOnFailure(t *testing.T) {
	feed := &auditFeedFake{events: []domain.AuditEvent{{ID: "e1", ActorIdentity: "a@example.com"}}}
	view := NewAuditView(NewAuditCorrelator(feed, nil, nil), memberScope, domain.AuditQuery{Limit: 50})
	ctx := context.Background()

	if err := view.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	feed.mu.Lock()
	feed.err = domain.WrapError(domain.ErrNetwork, "list audit", errors.New("timeout"))
	feed.mu.Unlock()

	if err := view.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	snap := view.Snapshot()
	if snap.Page.Total != 1 || snap.Page.Events[0].ID != "e1" {
		t.Fatalf("previous window lost: %+v", snap.Page)
	}
	if snap.Error == "" {
		t.Fatalf("snapshot should report the failure")
	}
}

func TestAuditViewIncludeSelfRefetchesButFiltersDoNot(t *testing.T) {
	feed := &auditFeedFake{}
	for i := 0; i < 20; i++ {
		feed.events = append(feed.events, domain.AuditEvent{ID: fmt.Sprintf("e%d", i), TimestampMs: int64(i), Type: domain.AuditEdit})
	}
	view := NewAuditView(NewAuditCorrelator(feed, nil, nil), memberScope, domain.AuditQuery{})
	ctx := context.Background()

	if err := view.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	if err := view.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	view.SetPage(2)
	view.SetFilter(domain.AuditFilter{Types: []domain.AuditEventType{domain.AuditEdit}})
	if got := view.Snapshot().Page.Page; got != 1 {
		t.Fatalf("filter change should reset page, got %d", got)
	}
	if len(feed.queries) != 1 {
		t.Fatalf("local changes must not refetch, got %d fetches", len(feed.queries))
	}

	if err := view.SetIncludeSelf(ctx, true); err != nil {
		t.Fatalf("SetIncludeSelf() error = %v", err)
	}
	if err := view.SetIncludeSelf(ctx, true); err != nil {
		t.Fatalf("SetIncludeSelf() error = %v", err)
	}
	if len(feed.queries) != 2 || !feed.queries[1].IncludeSelf {
		t.Fatalf("include-self toggle should refetch once: %+v", feed.queries)
	}
}

func TestAuditViewRetriesIncludeSelfAfterFailedRefetch(t *testing.T) {
	feed := &auditFeedFake{events: []domain.AuditEvent{{ID: "e1", ActorIdentity: "a@example.com"}}}
	view := NewAuditView(NewAuditCorrelator(feed, nil, nil), memberScope, domain.AuditQuery{})
	ctx := context.Background()

	if err := view.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	feed.mu.Lock()
	feed.err = domain.WrapError(domain.ErrNetwork, "list audit", errors.New("timeout"))
	feed.mu.Unlock()

	if err := view.SetIncludeSelf(ctx, true); err == nil {
		t.Fatalf("expected include-self refetch to fail")
	}
	if view.Snapshot().IncludeSelf {
		t.Fatalf("window fetched without self activity must not report include_self")
	}

	feed.mu.Lock()
	feed.err = nil
	feed.mu.Unlock()
	if err := view.SetIncludeSelf(ctx, true); err != nil {
		t.Fatalf("SetIncludeSelf() retry error = %v", err)
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if len(feed.queries) != 3 || !feed.queries[2].IncludeSelf {
		t.Fatalf("retry should refetch with include-self: %+v", feed.queries)
	}
	if !view.Snapshot().IncludeSelf {
		t.Fatalf("snapshot should report include_self after a successful refetch")
	}
}
