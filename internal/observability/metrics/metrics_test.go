package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func TestHTTPMiddlewareLabelsByPattern(t *testing.T) {
	m := NewHTTPServerMetrics("doclife-api")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/orgs/{org}/documents/{id}/relationships", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware("doclife-api", mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orgs/org-1/documents/"+id+"/relationships", nil))
	}

	body := scrape(t, m.Handler())
	want := `doclife_http_requests_total{method="GET",route="GET /v1/orgs/{org}/documents/{id}/relationships",service="doclife-api",status="404"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("metrics output missing %q:\n%s", want, body)
	}
}

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMetricsHandlerExposesUploadSeries(t *testing.T) {
	m := NewHTTPServerMetrics("doclife-api")
	upload := NewUploadMetrics(m.Registry(), "doclife-api")

	upload.UploadStarted()
	upload.UploadFinished(domain.UploadSuccess, "finalize", 1500*time.Millisecond)
	upload.RetryHook("storage.put example.com", 1, time.Second, errors.New("503"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`doclife_upload_outcomes_total{service="doclife-api",stage="finalize",state="success"} 1`,
		`doclife_upload_in_flight{service="doclife-api"} 0`,
		`doclife_transfer_retries_total{operation="storage.put example.com",service="doclife-api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsTracksEventsAndOrphans(t *testing.T) {
	m := NewWorkerMetrics("doclife-worker")
	m.ObserveEvent("doclife-worker", "link_created")
	m.ObserveEvent("doclife-worker", "")
	m.SetOrphans("doclife-worker", map[string]int{"in_flight": 3, "finalize_failed": 1})
	m.ObserveSweep("doclife-worker", nil)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`doclife_worker_lifecycle_events_total{service="doclife-worker",type="unknown"} 1`,
		`doclife_ledger_orphan_candidates{service="doclife-worker",state="in_flight"} 3`,
		`doclife_ledger_sweeps_total{service="doclife-worker",status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
