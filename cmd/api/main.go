package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/doc-lifecycle/internal/adapters/http"
	"github.com/kirillkom/doc-lifecycle/internal/bootstrap"
	"github.com/kirillkom/doc-lifecycle/internal/config"
	"github.com/kirillkom/doc-lifecycle/internal/observability/logging"
	"github.com/kirillkom/doc-lifecycle/internal/observability/metrics"
)

const serviceName = "doclife-api"

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

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.UploadUC, app.VersionsUC, app.RelationshipsUC, app.AuditUC, httpadapter.Options{
		Service:        serviceName,
		Logger:         logger,
		Metrics:        httpMetrics,
		AuditLimit:     cfg.AuditLimit,
		AuditCoalesce:  cfg.AuditCoalesce,
		AuditCacheSize: cfg.AuditCacheSize,
		RateLimit:      cfg.GatewayRateLimit,
		RateBurst:      cfg.GatewayRateBurst,
		MaxUploadBytes: int64(cfg.GatewayMaxUploadMB) << 20,
	}).Handler()

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 2 * time.Minute,
		// Uploads hold the response until finalize.
		WriteTimeout: cfg.TransferTimeout + cfg.OllamaTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
