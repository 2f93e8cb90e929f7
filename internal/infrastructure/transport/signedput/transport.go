package signedput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/resilience"
)

const defaultChunkSize = 32 * 1024

type Options struct {
	HTTPClient *http.Client
	// Executor defaults to resilience.TransferConfig().
	Executor *resilience.Executor
	// BytesPerSecond throttles the body; zero means unlimited.
	BytesPerSecond int
	Logger         *slog.Logger
}

// Transport PUTs file bytes to pre-signed storage URLs.
type Transport struct {
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
	chunkSize  int
	logger     *slog.Logger
}

func New(options Options) *Transport {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	executor := options.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.TransferConfig()).WithLogger(logger)
	}

	t := &Transport{
		httpClient: httpClient,
		executor:   executor,
		chunkSize:  defaultChunkSize,
		logger:     logger,
	}
	if options.BytesPerSecond > 0 {
		burst := max(options.BytesPerSecond, defaultChunkSize)
		t.limiter = rate.NewLimiter(rate.Limit(options.BytesPerSecond), burst)
	}
	return t
}

// Transfer retries the whole PUT on any non-2xx response or network error.
// Progress never decreases, even when a retry re-sends from the start.
func (t *Transport) Transfer(
	ctx context.Context,
	dest domain.SignedDestination,
	file domain.FileSource,
	onProgress domain.ProgressFunc,
) error {
	if strings.TrimSpace(dest.SignedURL) == "" {
		return domain.WrapError(domain.ErrTransport, "transfer file", errors.New("signed url is empty"))
	}
	if file.Open == nil {
		return domain.WrapError(domain.ErrTransport, "transfer file", errors.New("file source cannot be opened"))
	}

	progress := &progressTracker{total: file.Size, onProgress: onProgress}
	attempt := 0
	call := func(callCtx context.Context) error {
		attempt++
		return t.put(callCtx, dest, file, progress)
	}
	if err := t.executor.Execute(ctx, operationName(dest.SignedURL), call, resilience.RetryAnyFailure); err != nil {
		t.logger.Warn("storage_put_failed", "storage_key", dest.StorageKey, "attempts", attempt, "error", err)
		return domain.WrapError(domain.ErrTransport, "transfer file", err)
	}
	progress.complete()
	return nil
}

func (t *Transport) put(ctx context.Context, dest domain.SignedDestination, file domain.FileSource, progress *progressTracker) error {
	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer body.Close()

	reader := &progressReader{
		ctx:       ctx,
		r:         body,
		limiter:   t.limiter,
		chunkSize: t.chunkSize,
		progress:  progress,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.SignedURL, reader)
	if err != nil {
		return fmt.Errorf("create storage put request: %w", err)
	}
	req.ContentLength = file.Size
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage put request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Operation:  "storage put",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return nil
}

// operationName keys the breaker by storage host.
func operationName(signedURL string) string {
	u, err := url.Parse(signedURL)
	if err != nil || u.Host == "" {
		return "storage.put"
	}
	return "storage.put " + u.Host
}

// progressTracker reports the highest percentage seen across attempts.
type progressTracker struct {
	mu         sync.Mutex
	total      int64
	sent       int64
	reported   float64
	onProgress domain.ProgressFunc
}

func (p *progressTracker) restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = 0
}

func (p *progressTracker) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent += int64(n)
	if p.total <= 0 {
		return
	}
	p.report(float64(p.sent) * 100 / float64(p.total))
}

func (p *progressTracker) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report(100)
}

func (p *progressTracker) report(percent float64) {
	percent = min(percent, 100)
	if percent <= p.reported {
		return
	}
	p.reported = percent
	if p.onProgress != nil {
		p.onProgress(percent)
	}
}

type progressReader struct {
	ctx       context.Context
	r         io.Reader
	limiter   *rate.Limiter
	chunkSize int
	progress  *progressTracker
	started   bool
}

func (r *progressReader) Read(p []byte) (int, error) {
	if !r.started {
		r.started = true
		r.progress.restart()
	}
	if len(p) > r.chunkSize {
		p = p[:r.chunkSize]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if r.limiter != nil {
			if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
				return 0, werr
			}
		}
		r.progress.add(n)
	}
	return n, err
}
