package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/resilience"
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	// Executor defaults to resilience.BackendConfig(): one attempt behind a breaker.
	Executor *resilience.Executor
	Logger   *slog.Logger
}

// Client speaks the organization-scoped document backend API. One client
// serves every scope; the organization comes from the Scope of each call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	executor := options.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.BackendConfig()).WithLogger(logger)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      options.Token,
		httpClient: httpClient,
		executor:   executor,
		logger:     logger,
	}
}

// call describes one backend request. conflict is the kind a 409 maps to;
// unavailable is the kind a retryable 5xx maps to, ErrTemporary when nil.
type call struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        any
	out         any
	conflict    error
	unavailable error
}

func orgPath(scope domain.Scope, format string, args ...any) (string, error) {
	if !scope.Valid() {
		return "", domain.WrapError(domain.ErrInvalidInput, "backend request", errors.New("no active organization"))
	}
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(arg))
	}
	return "/orgs/" + url.PathEscape(scope.OrgID) + fmt.Sprintf(format, escaped...), nil
}

func (c *Client) do(ctx context.Context, scope domain.Scope, req call) error {
	fn := func(callCtx context.Context) error {
		return c.roundTrip(callCtx, scope, req)
	}
	err := c.executor.Execute(ctx, "backend."+req.operation, fn, resilience.ClassifyHTTP)
	if err != nil {
		return mapError(req, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, scope domain.Scope, req call) error {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if scope.ActorEmail != "" {
		httpReq.Header.Set("X-Actor-Email", scope.ActorEmail)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend %s request: %w", req.operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Operation:  "backend " + req.operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if req.out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.operation, err)
	}
	return nil
}

// mapError turns transport and status failures into domain kinds.
func mapError(req call, err error) error {
	operation, conflict := req.operation, req.conflict
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("backend %s: %w", operation, err)
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "backend "+operation, err)
	}

	switch code := resilience.StatusCode(err); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.WrapError(domain.ErrUnauthorized, "backend "+operation, err)
	case code == http.StatusNotFound:
		return domain.WrapError(domain.ErrNotFound, "backend "+operation, err)
	case code == http.StatusConflict:
		if conflict == nil {
			conflict = domain.ErrInvalidInput
		}
		return domain.WrapError(conflict, "backend "+operation, err)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return domain.WrapError(domain.ErrInvalidInput, "backend "+operation, err)
	case code != 0 && resilience.IsRetryableHTTPStatus(code):
		kind := req.unavailable
		if kind == nil {
			kind = domain.ErrTemporary
		}
		return domain.WrapError(kind, "backend "+operation, err)
	case code != 0:
		return fmt.Errorf("backend %s: %w", operation, err)
	}

	if resilience.IsNetworkError(err) {
		return domain.WrapError(domain.ErrNetwork, "backend "+operation, err)
	}
	return fmt.Errorf("backend %s: %w", operation, err)
}
