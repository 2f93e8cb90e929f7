package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
	"github.com/kirillkom/doc-lifecycle/internal/core/usecase"
	"github.com/kirillkom/doc-lifecycle/internal/observability/metrics"
)

const (
	actorEmailHeader    = "X-Actor-Email"
	actorElevatedHeader = "X-Actor-Elevated"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	AuditLimit     int
	AuditCoalesce  bool
	AuditCacheSize int
	// Location decides which calendar day an audit timestamp falls on.
	Location *time.Location

	RateLimit       float64
	RateBurst       int
	MaxInFlight     int
	QueueWait       time.Duration
	MaxUploadBytes  int64
	MultipartMemory int64
}

// Router is the gateway in front of the lifecycle use cases. Authentication
// happens upstream; the caller identity arrives in X-Actor-* headers.
type Router struct {
	uploads   ports.DocumentUploader
	versions  ports.VersionChainManager
	links     ports.RelationshipGraph
	audit     ports.AuditReader
	auditView *lru.Cache[string, *usecase.AuditView]

	options Options
	logger  *slog.Logger
}

func NewRouter(
	uploads ports.DocumentUploader,
	versions ports.VersionChainManager,
	links ports.RelationshipGraph,
	audit ports.AuditReader,
	options Options,
) *Router {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Service == "" {
		options.Service = "doclife-api"
	}
	if options.AuditLimit <= 0 {
		options.AuditLimit = 500
	}
	if options.AuditCacheSize <= 0 {
		options.AuditCacheSize = 256
	}
	if options.Location == nil {
		options.Location = time.Local
	}
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = 64 << 20
	}
	if options.MultipartMemory <= 0 {
		options.MultipartMemory = 8 << 20
	}
	if options.MaxInFlight <= 0 {
		options.MaxInFlight = 64
	}
	if options.QueueWait <= 0 {
		options.QueueWait = 250 * time.Millisecond
	}

	// Size is positive, so New cannot fail.
	cache, _ := lru.New[string, *usecase.AuditView](options.AuditCacheSize)

	return &Router{
		uploads:   uploads,
		versions:  versions,
		links:     links,
		audit:     audit,
		auditView: cache,
		options:   options,
		logger:    options.Logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.options.Metrics != nil {
		mux.Handle("GET /metrics", rt.options.Metrics.Handler())
	}

	mux.HandleFunc("POST /v1/orgs/{org}/uploads", rt.uploadDocument)
	mux.HandleFunc("GET /v1/orgs/{org}/version-groups/{group}", rt.listVersions)
	mux.HandleFunc("POST /v1/orgs/{org}/documents/{id}/set-current", rt.setCurrentVersion)
	mux.HandleFunc("POST /v1/orgs/{org}/documents/{id}/move-version", rt.moveVersion)
	mux.HandleFunc("GET /v1/orgs/{org}/documents/{id}/relationships", rt.relationships)
	mux.HandleFunc("POST /v1/orgs/{org}/documents/{id}/links", rt.createLink)
	mux.HandleFunc("DELETE /v1/orgs/{org}/documents/{id}/links/{target}", rt.deleteLink)
	mux.HandleFunc("GET /v1/orgs/{org}/audit", rt.auditTrail)

	var handler http.Handler = mux
	if rt.options.Metrics != nil {
		handler = rt.options.Metrics.Middleware(rt.options.Service, handler)
	}
	handler = backpressureMiddleware(handler, rt.options.MaxInFlight, rt.options.QueueWait)
	if rt.options.RateLimit > 0 {
		handler = rateLimitMiddleware(handler, rt.options.RateLimit, rt.options.RateBurst)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func scopeFromRequest(r *http.Request) domain.Scope {
	elevated, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(actorElevatedHeader)))
	return domain.Scope{
		OrgID:      strings.TrimSpace(r.PathValue("org")),
		ActorEmail: strings.TrimSpace(r.Header.Get(actorEmailHeader)),
		Elevated:   elevated,
	}
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
