package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/bootstrap"
	"github.com/kirillkom/doc-lifecycle/internal/cli"
	"github.com/kirillkom/doc-lifecycle/internal/config"
	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/observability/logging"
)

const serviceName = "doclife-cli"

func main() {
	_ = godotenv.Load()
	cli.Execute(loadServices)
}

func loadServices(cmd *cobra.Command) (*cli.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, level)
	slog.SetDefault(logger)

	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return &cli.Services{
		Uploads:  app.UploadUC,
		Versions: app.VersionsUC,
		Links:    app.RelationshipsUC,
		Audit:    app.AuditUC,
		Scope: domain.Scope{
			OrgID:      cfg.OrgID,
			ActorEmail: cfg.ActorEmail,
			Elevated:   cfg.ActorElevated,
		},
		AuditQuery: domain.AuditQuery{
			Limit:    cfg.AuditLimit,
			Coalesce: cfg.AuditCoalesce,
		},
	}, app.Close, nil
}
