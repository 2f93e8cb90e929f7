package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

type uploadFake struct {
	mu    sync.Mutex
	scope domain.Scope
	req   domain.UploadRequest
	err   error
}

func (f *uploadFake) Upload(_ context.Context, scope domain.Scope, req domain.UploadRequest, onUpdate domain.SessionFunc) (*domain.Document, error) {
	f.mu.Lock()
	f.scope, f.req = scope, req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if onUpdate != nil {
		onUpdate(domain.UploadSession{ID: "session-1", Filename: req.File.Name, State: domain.UploadSuccess, ProgressPercent: 100, DocumentID: "doc-1"})
	}
	return &domain.Document{ID: "doc-1", Title: req.File.Name, Status: domain.StatusCommitted}, nil
}

type versionsFake struct {
	err      error
	moved    [2]int
	current  string
	groupArg string
}

func (f *versionsFake) ListVersions(_ context.Context, _ domain.Scope, group string) ([]domain.Document, error) {
	f.groupArg = group
	return []domain.Document{{ID: "doc-2", VersionNumber: 2}, {ID: "doc-1", VersionNumber: 1}}, f.err
}

func (f *versionsFake) SetCurrent(_ context.Context, _ domain.Scope, id string) ([]domain.Document, error) {
	f.current = id
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Document{{ID: id, IsCurrentVersion: true}}, nil
}

func (f *versionsFake) MoveVersion(_ context.Context, _ domain.Scope, _ string, from, to int) ([]domain.Document, error) {
	f.moved = [2]int{from, to}
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Document{}, nil
}

type linksFake struct {
	err    error
	linked domain.Link
	unlink [2]string
}

func (f *linksFake) RelationshipsOf(_ context.Context, _ domain.Scope, id string) (domain.Relationships, error) {
	return domain.Relationships{DocumentID: id}, f.err
}

func (f *linksFake) Link(_ context.Context, _ domain.Scope, link domain.Link) (domain.Relationships, error) {
	f.linked = link
	return domain.Relationships{DocumentID: link.FromID}, f.err
}

func (f *linksFake) Unlink(_ context.Context, _ domain.Scope, from, to string) (domain.Relationships, error) {
	f.unlink = [2]string{from, to}
	return domain.Relationships{DocumentID: from}, f.err
}

type auditReaderFake struct {
	mu      sync.Mutex
	events  []domain.AuditEvent
	err     error
	fetches int
	queries []domain.AuditQuery
}

func (f *auditReaderFake) Fetch(_ context.Context, _ domain.Scope, query domain.AuditQuery) ([]domain.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.AuditEvent(nil), f.events...), nil
}

func (f *auditReaderFake) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type routerFakes struct {
	uploads  *uploadFake
	versions *versionsFake
	links    *linksFake
	audit    *auditReaderFake
}

func newRouterFakes() routerFakes {
	return routerFakes{
		uploads:  &uploadFake{},
		versions: &versionsFake{},
		links:    &linksFake{},
		audit:    &auditReaderFake{},
	}
}

func newTestRouter(f routerFakes, options Options) *Router {
	if options.Location == nil {
		options.Location = time.UTC
	}
	return NewRouter(f.uploads, f.versions, f.links, f.audit, options)
}

func auditEvents(n int) []domain.AuditEvent {
	base := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	events := make([]domain.AuditEvent, 0, n)
	for i := 0; i < n; i++ {
		eventType := domain.AuditCreate
		if i%2 == 0 {
			eventType = domain.AuditEdit
		}
		events = append(events, domain.AuditEvent{
			ID:            fmt.Sprintf("e%d", i),
			TimestampMs:   base.Add(-time.Duration(i) * time.Hour).UnixMilli(),
			ActorIdentity: "ana@example.com",
			Type:          eventType,
		})
	}
	return events
}

func serve(handler http.Handler, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	res := serve(newTestRouter(newRouterFakes(), Options{}).Handler(), http.MethodGet, "/healthz", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentBuildsRequestFromForm(t *testing.T) {
	fakes := newRouterFakes()
	handler := newTestRouter(fakes, Options{}).Handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "invoice.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = writer.WriteField("path", "Finance/ 2025/")
	_ = writer.WriteField("declared_type", "invoice")
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/uploads", &body, map[string]string{
		"Content-Type":      writer.FormDataContentType(),
		actorEmailHeader:    "ana@example.com",
		actorElevatedHeader: "true",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	req, scope := fakes.uploads.req, fakes.uploads.scope
	if scope.OrgID != "org-1" || scope.ActorEmail != "ana@example.com" || !scope.Elevated {
		t.Fatalf("unexpected scope %+v", scope)
	}
	if strings.Join(req.Placement.Path, "|") != "Finance|2025" || req.DeclaredType != "invoice" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.File.MimeType != "application/pdf" || req.File.Size != 5 {
		t.Fatalf("unexpected file source %+v", req.File)
	}

	var resp uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Document == nil || resp.Document.ID != "doc-1" || resp.Session.State != domain.UploadSuccess {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	handler := newTestRouter(newRouterFakes(), Options{}).Handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("department", "Finance")
	_ = writer.Close()

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/uploads", &body, map[string]string{
		"Content-Type": writer.FormDataContentType(),
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadFailureUsesUserMessage(t *testing.T) {
	fakes := newRouterFakes()
	fakes.uploads.err = domain.WrapError(domain.ErrTransport, "transfer", errors.New("status 500"))
	handler := newTestRouter(fakes, Options{}).Handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "a.txt")
	_, _ = part.Write([]byte("x"))
	_ = writer.Close()

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/uploads", &body, map[string]string{
		"Content-Type": writer.FormDataContentType(),
	})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != domain.UserMessage(fakes.uploads.err) || resp.RequestID == "" {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", cause), http.StatusBadRequest},
		{domain.WrapError(domain.ErrPlacementRequired, "op", cause), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrSelfLink, "op", cause), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrSigning, "op", domain.WrapError(domain.ErrUnauthorized, "sign", cause)), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrNotFound, "op", cause), http.StatusNotFound},
		{domain.WrapError(domain.ErrVersionConflict, "op", cause), http.StatusConflict},
		{domain.WrapError(domain.ErrDuplicateLink, "op", cause), http.StatusConflict},
		{domain.WrapError(domain.ErrFinalize, "op", domain.WrapError(domain.ErrTemporary, "finalize", cause)), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrNetwork, "op", cause), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrExtraction, "op", cause), http.StatusBadGateway},
		{domain.WrapError(domain.ErrFinalize, "op", domain.WrapError(domain.ErrNotFound, "finalize", cause)), http.StatusBadGateway},
		{domain.WrapError(domain.ErrFolderCreation, "op", domain.WrapError(domain.ErrInvalidInput, "upsert", cause)), http.StatusBadGateway},
		{domain.WrapError(domain.ErrRecordCreation, "op", domain.WrapError(domain.ErrNetwork, "create", cause)), http.StatusServiceUnavailable},
		{cause, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestVersionRoutes(t *testing.T) {
	fakes := newRouterFakes()
	handler := newTestRouter(fakes, Options{}).Handler()

	res := serve(handler, http.MethodGet, "/v1/orgs/org-1/version-groups/group-9", nil, nil)
	if res.Code != http.StatusOK || fakes.versions.groupArg != "group-9" {
		t.Fatalf("list versions: code=%d group=%q", res.Code, fakes.versions.groupArg)
	}

	res = serve(handler, http.MethodPost, "/v1/orgs/org-1/documents/doc-2/set-current", nil, nil)
	if res.Code != http.StatusOK || fakes.versions.current != "doc-2" {
		t.Fatalf("set current: code=%d current=%q", res.Code, fakes.versions.current)
	}

	res = serve(handler, http.MethodPost, "/v1/orgs/org-1/documents/doc-2/move-version",
		strings.NewReader(`{"fromVersion":2,"toVersion":1}`), nil)
	if res.Code != http.StatusOK || fakes.versions.moved != [2]int{2, 1} {
		t.Fatalf("move version: code=%d moved=%v", res.Code, fakes.versions.moved)
	}
}

func TestMoveVersionConflictReturns409(t *testing.T) {
	fakes := newRouterFakes()
	fakes.versions.err = domain.WrapError(domain.ErrVersionConflict, "move version", errors.New("reordered"))
	handler := newTestRouter(fakes, Options{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/documents/doc-2/move-version",
		strings.NewReader(`{"fromVersion":2,"toVersion":1}`), nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestLinkRoutesKeepDirection(t *testing.T) {
	fakes := newRouterFakes()
	handler := newTestRouter(fakes, Options{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/documents/doc-a/links",
		strings.NewReader(`{"targetId":"doc-b","linkType":"references"}`), nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.links.linked != (domain.Link{FromID: "doc-a", ToID: "doc-b", LinkType: "references"}) {
		t.Fatalf("unexpected link %+v", fakes.links.linked)
	}

	res = serve(handler, http.MethodDelete, "/v1/orgs/org-1/documents/doc-a/links/doc-b", nil, nil)
	if res.Code != http.StatusOK || fakes.links.unlink != [2]string{"doc-a", "doc-b"} {
		t.Fatalf("unlink: code=%d args=%v", res.Code, fakes.links.unlink)
	}
}

func TestCreateLinkRejectsUnknownFields(t *testing.T) {
	handler := newTestRouter(newRouterFakes(), Options{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/orgs/org-1/documents/doc-a/links",
		strings.NewReader(`{"linkedId":"doc-b"}`), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func decodeAuditPage(t *testing.T, res *httptest.ResponseRecorder) (domain.AuditPage, string) {
	t.Helper()
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var snap struct {
		Page  domain.AuditPage `json:"page"`
		Error string           `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode audit snapshot: %v", err)
	}
	return snap.Page, snap.Error
}

func TestAuditTrailCachesWindowAndFiltersLocally(t *testing.T) {
	fakes := newRouterFakes()
	fakes.audit.events = auditEvents(20)
	handler := newTestRouter(fakes, Options{AuditLimit: 200, AuditCoalesce: true}).Handler()
	headers := map[string]string{actorEmailHeader: "ana@example.com"}

	page, _ := decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?page=2", nil, headers))
	if page.Page != 2 || page.TotalPages != 2 || len(page.Events) != 5 {
		t.Fatalf("unexpected page %+v", page)
	}

	page, _ = decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?type=edit&page=9", nil, headers))
	if page.Total != 10 || page.Page != 1 {
		t.Fatalf("expected 10 edit events clamped to page 1, got %+v", page)
	}
	if fakes.audit.fetches != 1 {
		t.Fatalf("filters and paging must not refetch, got %d fetches", fakes.audit.fetches)
	}
	if q := fakes.audit.queries[0]; q.Limit != 200 || !q.Coalesce || q.IncludeSelf {
		t.Fatalf("unexpected server query %+v", q)
	}

	decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?refresh=true", nil, headers))
	decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?include_self=true", nil, headers))
	if fakes.audit.fetches != 3 || !fakes.audit.queries[2].IncludeSelf {
		t.Fatalf("refresh and include_self must refetch, got %d fetches %+v", fakes.audit.fetches, fakes.audit.queries)
	}
}

func TestAuditTrailDateRangeIsInclusive(t *testing.T) {
	fakes := newRouterFakes()
	fakes.audit.events = auditEvents(20)
	handler := newTestRouter(fakes, Options{}).Handler()

	page, _ := decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?from=2025-03-20&to=2025-03-20", nil, nil))
	if page.Total != 13 {
		t.Fatalf("expected the 13 events of 2025-03-20, got %d", page.Total)
	}
}

func TestAuditTrailKeepsWindowOnRefreshFailure(t *testing.T) {
	fakes := newRouterFakes()
	fakes.audit.events = auditEvents(3)
	handler := newTestRouter(fakes, Options{}).Handler()

	decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit", nil, nil))
	fakes.audit.fail(domain.WrapError(domain.ErrTemporary, "audit", errors.New("backend down")))

	page, message := decodeAuditPage(t, serve(handler, http.MethodGet, "/v1/orgs/org-1/audit?refresh=1", nil, nil))
	if page.Total != 3 {
		t.Fatalf("expected previous window to stay visible, got %+v", page)
	}
	if message == "" {
		t.Fatalf("expected refresh failure to be reported")
	}
}

func TestAuditTrailFailsWithoutWindow(t *testing.T) {
	fakes := newRouterFakes()
	fakes.audit.err = domain.WrapError(domain.ErrTemporary, "audit", errors.New("backend down"))
	handler := newTestRouter(fakes, Options{}).Handler()

	res := serve(handler, http.MethodGet, "/v1/orgs/org-1/audit", nil, nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAuditTrailRejectsBadFilters(t *testing.T) {
	handler := newTestRouter(newRouterFakes(), Options{}).Handler()

	for _, target := range []string{
		"/v1/orgs/org-1/audit?type=upload",
		"/v1/orgs/org-1/audit?from=03/01/2025",
		"/v1/orgs/org-1/audit?page=two",
	} {
		if res := serve(handler, http.MethodGet, target, nil, nil); res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
	}
}
