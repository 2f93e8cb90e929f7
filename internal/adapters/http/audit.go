package httpadapter

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/usecase"
)

const auditDateLayout = "2006-01-02"

// auditTrail serves one page of the correlated trail. The fetched window is
// cached per organization and actor; filters and paging never refetch.
func (rt *Router) auditTrail(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r)
	if !scope.Valid() {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "audit trail", fmt.Errorf("no active organization")))
		return
	}

	query := r.URL.Query()
	filter, err := parseAuditFilter(query, rt.options.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := 1
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "audit trail", fmt.Errorf("page: %w", err)))
			return
		}
	}
	includeSelf, _ := strconv.ParseBool(query.Get("include_self"))
	refresh, _ := strconv.ParseBool(query.Get("refresh"))

	view := rt.auditViewFor(scope)
	switch {
	case refresh:
		err = view.Refresh(r.Context())
	default:
		if err = view.SetIncludeSelf(r.Context(), includeSelf); err == nil {
			err = view.EnsureLoaded(r.Context())
		}
	}
	if err != nil && !view.Loaded() {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view.Project(filter, page))
}

func (rt *Router) auditViewFor(scope domain.Scope) *usecase.AuditView {
	key := scope.OrgID + "\x00" + strings.ToLower(scope.ActorEmail)
	if view, ok := rt.auditView.Get(key); ok {
		return view
	}
	view := usecase.NewAuditView(rt.audit, scope, domain.AuditQuery{
		Limit:    rt.options.AuditLimit,
		Coalesce: rt.options.AuditCoalesce,
	})
	// A concurrent request may have stored one first; keep that one.
	if existing, ok, _ := rt.auditView.PeekOrAdd(key, view); ok {
		return existing
	}
	return view
}

func parseAuditFilter(query url.Values, loc *time.Location) (domain.AuditFilter, error) {
	filter := domain.AuditFilter{
		Text:     strings.TrimSpace(query.Get("q")),
		Location: loc,
	}
	for _, raw := range splitMulti(query["type"]) {
		eventType := domain.AuditEventType(raw)
		if !eventType.Known() {
			return domain.AuditFilter{}, domain.WrapError(domain.ErrInvalidInput, "parse audit filter", fmt.Errorf("unknown event type %q", raw))
		}
		filter.Types = append(filter.Types, eventType)
	}
	filter.Actors = splitMulti(query["actor"])

	for _, bound := range []struct {
		key string
		dst **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(query.Get(bound.key))
		if raw == "" {
			continue
		}
		day, err := time.ParseInLocation(auditDateLayout, raw, loc)
		if err != nil {
			return domain.AuditFilter{}, domain.WrapError(domain.ErrInvalidInput, "parse audit filter", fmt.Errorf("%s: %w", bound.key, err))
		}
		*bound.dst = &day
	}
	return filter, nil
}

// splitMulti accepts both repeated parameters and comma-separated values.
func splitMulti(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
