package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// FilterAuditEvents applies every predicate of f with logical AND, keeping input order.
func FilterAuditEvents(events []domain.AuditEvent, f domain.AuditFilter) []domain.AuditEvent {
	needle := strings.ToLower(strings.TrimSpace(f.Text))

	types := make(map[domain.AuditEventType]struct{}, len(f.Types))
	for _, t := range f.Types {
		types[t] = struct{}{}
	}
	actors := make(map[string]struct{}, len(f.Actors))
	for _, a := range f.Actors {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			actors[a] = struct{}{}
		}
	}

	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	var fromMs, toMs *int64
	if f.From != nil {
		v := startOfDay(*f.From, loc).UnixMilli()
		fromMs = &v
	}
	if f.To != nil {
		v := endOfDay(*f.To, loc).UnixMilli()
		toMs = &v
	}

	out := make([]domain.AuditEvent, 0, len(events))
	for _, event := range events {
		if len(types) > 0 {
			if _, ok := types[event.Type]; !ok {
				continue
			}
		}
		if len(actors) > 0 {
			if _, ok := actors[strings.ToLower(strings.TrimSpace(event.ActorIdentity))]; !ok {
				continue
			}
		}
		if fromMs != nil && event.TimestampMs < *fromMs {
			continue
		}
		if toMs != nil && event.TimestampMs > *toMs {
			continue
		}
		if needle != "" && !matchesAuditText(event, needle) {
			continue
		}
		out = append(out, event)
	}
	return out
}

func matchesAuditText(event domain.AuditEvent, needle string) bool {
	for _, field := range []string{
		event.ActorIdentity,
		string(event.Type),
		event.Title,
		event.DocID,
		event.Note,
		event.Path,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// startOfDay and endOfDay use only the calendar date of t as seen in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// PaginateAuditEvents slices one page; page is clamped to [1, totalPages].
func PaginateAuditEvents(events []domain.AuditEvent, page, pageSize int) domain.AuditPage {
	if pageSize <= 0 {
		pageSize = domain.AuditPageSize
	}
	total := len(events)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return domain.AuditPage{
		Events:     append([]domain.AuditEvent{}, events[start:end]...),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		PageSize:   pageSize,
	}
}

// AuditActors lists distinct actors in the window, for the actor filter options.
func AuditActors(events []domain.AuditEvent) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, event := range events {
		key := strings.ToLower(strings.TrimSpace(event.ActorIdentity))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event.ActorIdentity)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
