package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/doc-lifecycle/internal/config"
	"github.com/kirillkom/doc-lifecycle/internal/core/usecase"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/backend"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/extractor/localtext"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/queue/nats"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/resilience"
	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/transport/signedput"
	"github.com/kirillkom/doc-lifecycle/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives upload and transfer metrics; nil disables them.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Backend *backend.Client
	// Ledger and Bus are nil when POSTGRES_DSN or NATS_URL is empty.
	Ledger *postgres.LedgerRepository
	Bus    *nats.Bus

	UploadUC        *usecase.UploadUseCase
	VersionsUC      *usecase.VersionChainUseCase
	RelationshipsUC *usecase.RelationshipGraphUseCase
	AuditUC         *usecase.AuditCorrelator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		db     *sql.DB
		ledger *postgres.LedgerRepository
		bus    *nats.Bus
	)
	closeAll := func() {
		if bus != nil {
			bus.Close()
		}
		if db != nil {
			_ = db.Close()
		}
	}

	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		ledger = postgres.NewLedgerRepository(db)
		if err := ledger.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if cfg.NATSURL != "" {
		var err error
		bus, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger),
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init lifecycle bus: %w", err)
		}
	}

	transferExecutor := resilience.NewExecutor(resilience.TransferConfig()).WithLogger(logger)
	var uploadMetrics *metrics.UploadMetrics
	if options.Registerer != nil {
		uploadMetrics = metrics.NewUploadMetrics(options.Registerer, options.Service)
		transferExecutor = transferExecutor.WithRetryHook(uploadMetrics.RetryHook)
	}

	backendClient := backend.New(cfg.BackendURL, backend.Options{
		Token:      cfg.BackendToken,
		HTTPClient: &http.Client{Timeout: cfg.BackendTimeout},
		Logger:     logger,
	})
	transport := signedput.New(signedput.Options{
		HTTPClient:     &http.Client{Timeout: cfg.TransferTimeout},
		Executor:       transferExecutor,
		BytesPerSecond: cfg.TransferBytesPerSecond,
		Logger:         logger,
	})
	recognizer := localtext.New(localtext.Options{
		MaxBytes: int64(cfg.ExtractMaxBytes),
		MaxChars: cfg.ExtractMaxChars,
	})
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		Timeout:  cfg.OllamaTimeout,
		Executor: resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(logger),
	})
	fieldExtractor := ollama.NewFieldExtractor(ollamaClient, recognizer)

	uploadUC := usecase.NewUploadUseCase(backendClient, transport, recognizer, fieldExtractor, backendClient, backendClient).
		WithLogger(logger)
	versionsUC := usecase.NewVersionChainUseCase(backendClient).WithLogger(logger)
	relationshipsUC := usecase.NewRelationshipGraphUseCase(backendClient).WithLogger(logger)
	auditUC := usecase.NewAuditCorrelator(backendClient, backendClient, backendClient).WithLogger(logger)

	if ledger != nil {
		uploadUC.WithLedger(ledger)
	}
	if bus != nil {
		uploadUC.WithNotifier(bus)
		versionsUC.WithNotifier(bus)
		relationshipsUC.WithNotifier(bus)
	}
	if uploadMetrics != nil {
		uploadUC.WithObserver(uploadMetrics)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		Backend:         backendClient,
		Ledger:          ledger,
		Bus:             bus,
		UploadUC:        uploadUC,
		VersionsUC:      versionsUC,
		RelationshipsUC: relationshipsUC,
		AuditUC:         auditUC,
		closeFn:         closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
