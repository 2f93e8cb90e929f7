package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/doc-lifecycle/internal/bootstrap"
	"github.com/kirillkom/doc-lifecycle/internal/config"
	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/usecase"
	"github.com/kirillkom/doc-lifecycle/internal/observability/logging"
	"github.com/kirillkom/doc-lifecycle/internal/observability/metrics"
)

const serviceName = "doclife-worker"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Ledger == nil && app.Bus == nil {
		logger.Error("worker_has_nothing_to_do", "hint", "set POSTGRES_DSN and/or NATS_URL")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if app.Bus != nil {
		group.Go(func() error {
			logger.Info("worker_subscribed", "subject", cfg.NATSSubject+".>")
			return app.Bus.Subscribe(groupCtx, func(_ context.Context, event domain.LifecycleEvent) error {
				workerMetrics.ObserveEvent(serviceName, string(event.Type))
				logger.Info("lifecycle_event",
					"type", event.Type,
					"org_id", event.OrgID,
					"document_id", event.DocumentID,
					"target_id", event.TargetID,
				)
				return nil
			})
		})
	}

	if app.Ledger != nil {
		sweeper := usecase.NewLedgerSweeper(app.Ledger, cfg.LedgerStaleAfter).WithLogger(logger)
		group.Go(func() error {
			runSweeps(groupCtx, sweeper, workerMetrics, cfg.LedgerSweepInterval, logger)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func runSweeps(ctx context.Context, sweeper *usecase.LedgerSweeper, m *metrics.WorkerMetrics, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		counts, err := sweeper.Sweep(ctx)
		m.ObserveSweep(serviceName, err)
		if err != nil {
			logger.Error("ledger_sweep_failed", "error", err)
		} else {
			gauge := make(map[string]int, len(counts))
			for state, n := range counts {
				gauge[string(state)] = n
			}
			m.SetOrphans(serviceName, gauge)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
