package signedput

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/resilience"
)

func fileOf(content string, opens *int32) domain.FileSource {
	return domain.FileSource{
		Name:     "report.txt",
		MimeType: "text/plain",
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			if opens != nil {
				atomic.AddInt32(opens, 1)
			}
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestTransferPutsBytesWithHeaders(t *testing.T) {
	var gotBody, gotType, gotUpsert, gotMethod string
	var gotLength int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		gotLength = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var progress []float64
	transport := New(Options{HTTPClient: srv.Client(), Executor: fastExecutor()})
	err := transport.Transfer(context.Background(),
		domain.SignedDestination{SignedURL: srv.URL + "/object/sign/key", StorageKey: "key"},
		fileOf("0123456789", nil),
		func(p float64) { progress = append(progress, p) },
	)
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if gotMethod != http.MethodPut || gotBody != "0123456789" || gotLength != 10 {
		t.Fatalf("unexpected request: method=%s body=%q length=%d", gotMethod, gotBody, gotLength)
	}
	if gotType != "text/plain" || gotUpsert != "false" {
		t.Fatalf("unexpected headers: content-type=%q x-upsert=%q", gotType, gotUpsert)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress should end at 100: %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress must increase: %v", progress)
		}
	}
}

func TestTransferRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var opens int32
	transport := New(Options{HTTPClient: srv.Client(), Executor: fastExecutor()})
	err := transport.Transfer(context.Background(),
		domain.SignedDestination{SignedURL: srv.URL, StorageKey: "key"},
		fileOf("payload", &opens),
		nil,
	)
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 || atomic.LoadInt32(&opens) != 2 {
		t.Fatalf("expected 2 attempts with a fresh body each, got calls=%d opens=%d", calls, opens)
	}
}

func TestTransferAlwaysFailingDestinationUsesFullBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the real 1s+2s backoff")
	}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		atomic.AddInt32(&calls, 1)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport := New(Options{HTTPClient: srv.Client()})
	started := time.Now()
	err := transport.Transfer(context.Background(),
		domain.SignedDestination{SignedURL: srv.URL, StorageKey: "key"},
		fileOf("payload", nil),
		nil,
	)
	elapsed := time.Since(started)

	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if resilience.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected last attempt status in error chain, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	if elapsed < 3*time.Second {
		t.Fatalf("expected at least 1s+2s of backoff, took %v", elapsed)
	}
}

func TestTransferRejectsMissingURL(t *testing.T) {
	transport := New(Options{Executor: fastExecutor()})
	err := transport.Transfer(context.Background(), domain.SignedDestination{}, fileOf("x", nil), nil)
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTransferWithRateLimitStillDelivers(t *testing.T) {
	var received int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		atomic.StoreInt64(&received, n)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	content := strings.Repeat("a", 100*1024)
	transport := New(Options{HTTPClient: srv.Client(), Executor: fastExecutor(), BytesPerSecond: 10 * 1024 * 1024})
	if err := transport.Transfer(context.Background(),
		domain.SignedDestination{SignedURL: srv.URL, StorageKey: "key"},
		fileOf(content, nil),
		nil,
	); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if atomic.LoadInt64(&received) != int64(len(content)) {
		t.Fatalf("received %d bytes, want %d", received, len(content))
	}
}
