package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// AuditView keeps the last fetched window for one scope. Filter and page
// changes are applied locally; the include-self toggle is server-side and
// always refetches. A failed refresh keeps the previous window.
type AuditView struct {
	reader ports.AuditReader
	scope  domain.Scope
	now    func() time.Time

	refreshMu sync.Mutex

	mu        sync.Mutex
	query     domain.AuditQuery
	filter    domain.AuditFilter
	page      int
	events    []domain.AuditEvent
	loaded    bool
	lastErr   error
	fetchedAt time.Time
}

type AuditSnapshot struct {
	Page        domain.AuditPage `json:"page"`
	Actors      []string         `json:"actors"`
	IncludeSelf bool             `json:"include_self"`
	FetchedAt   time.Time        `json:"fetched_at"`
	Error       string           `json:"error,omitempty"`
}

func NewAuditView(reader ports.AuditReader, scope domain.Scope, query domain.AuditQuery) *AuditView {
	return &AuditView{
		reader: reader,
		scope:  scope,
		query:  query,
		page:   1,
		now:    time.Now,
	}
}

// Refresh refetches the window with the current server-side query.
func (v *AuditView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	query := v.query
	v.mu.Unlock()
	return v.refreshWith(ctx, query)
}

// refreshWith fetches with query and stores it only when the fetch succeeds,
// so query always describes the window that is held.
func (v *AuditView) refreshWith(ctx context.Context, query domain.AuditQuery) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	events, err := v.reader.Fetch(ctx, v.scope, query)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.lastErr = err
		return err
	}
	v.query = query
	v.events = events
	v.loaded = true
	v.lastErr = nil
	v.fetchedAt = v.now()
	return nil
}

// EnsureLoaded fetches once; later calls reuse the window.
func (v *AuditView) EnsureLoaded(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()
	if loaded {
		return nil
	}
	return v.Refresh(ctx)
}

// SetIncludeSelf refetches when the toggle differs from the held window;
// self events may never have been fetched. A failed refetch leaves the
// toggle unapplied, so calling it again retries.
func (v *AuditView) SetIncludeSelf(ctx context.Context, include bool) error {
	v.mu.Lock()
	query := v.query
	v.mu.Unlock()
	if query.IncludeSelf == include {
		return nil
	}
	query.IncludeSelf = include
	return v.refreshWith(ctx, query)
}

// SetFilter replaces the local predicates and returns to the first page.
func (v *AuditView) SetFilter(filter domain.AuditFilter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = filter
	v.page = 1
}

func (v *AuditView) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = page
}

// Snapshot projects the stored filter and page over the current window.
func (v *AuditView) Snapshot() AuditSnapshot {
	v.mu.Lock()
	filter, page := v.filter, v.page
	v.mu.Unlock()
	snap := v.Project(filter, page)

	v.mu.Lock()
	v.page = snap.Page.Page
	v.mu.Unlock()
	return snap
}

// Project applies filter and page over the current window without storing them.
func (v *AuditView) Project(filter domain.AuditFilter, page int) AuditSnapshot {
	v.mu.Lock()
	events := v.events
	includeSelf := v.query.IncludeSelf
	fetchedAt := v.fetchedAt
	lastErr := v.lastErr
	v.mu.Unlock()

	snap := AuditSnapshot{
		Page:        PaginateAuditEvents(FilterAuditEvents(events, filter), page, domain.AuditPageSize),
		Actors:      AuditActors(events),
		IncludeSelf: includeSelf,
		FetchedAt:   fetchedAt,
	}
	if lastErr != nil {
		snap.Error = domain.UserMessage(lastErr)
	}
	return snap
}

func (v *AuditView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Loaded reports whether at least one refresh has succeeded.
func (v *AuditView) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}
