package worker

import (
	"context"
	"log/slog"

	audit "lifebank/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. A store
// failure on one event is logged and does not stop the drain loop.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", string(event.Action),
					"subject", event.Subject,
					"error", err,
				)
			}
		}
	}
}
