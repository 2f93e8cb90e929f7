package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// ListAuditEvents maps IncludeSelf onto the backend's excludeSelf flag.
func (c *Client) ListAuditEvents(ctx context.Context, scope domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error) {
	path, err := orgPath(scope, "/audit")
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	params.Set("coalesce", strconv.FormatBool(query.Coalesce))
	params.Set("excludeSelf", strconv.FormatBool(!query.IncludeSelf))

	var resp []auditRecordDTO
	if err := c.do(ctx, scope, call{
		operation:   "list_audit",
		method:      http.MethodGet,
		path:        path,
		query:       params,
		out:         &resp,
		unavailable: domain.ErrNetwork,
	}); err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(resp))
	for _, record := range resp {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (c *Client) ListMembers(ctx context.Context, scope domain.Scope) ([]domain.KnownUser, error) {
	path, err := orgPath(scope, "/members")
	if err != nil {
		return nil, err
	}
	var resp []memberDTO
	if err := c.do(ctx, scope, call{
		operation:   "list_members",
		method:      http.MethodGet,
		path:        path,
		out:         &resp,
		unavailable: domain.ErrNetwork,
	}); err != nil {
		return nil, err
	}
	out := make([]domain.KnownUser, 0, len(resp))
	for _, m := range resp {
		out = append(out, domain.KnownUser{Email: m.Email, Role: m.Role})
	}
	return out, nil
}
