package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// publishLifecycleEvent is best effort: the mutation already happened on the backend.
func publishLifecycleEvent(ctx context.Context, notifier ports.LifecycleNotifier, logger *slog.Logger, event domain.LifecycleEvent) {
	if notifier == nil {
		return
	}
	if err := notifier.Publish(ctx, event); err != nil {
		logger.Warn("lifecycle_publish_failed",
			"type", event.Type,
			"document_id", event.DocumentID,
			"error", err,
		)
	}
}
