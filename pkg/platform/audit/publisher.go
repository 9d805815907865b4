package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher hands events to a buffered channel drained by the Worker. Emit
// never blocks domain logic: when the inbox is full the event is dropped and
// counted, because losing an audit line must not fail a transfusion workflow.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", string(event.Action),
			"subject", event.Subject,
		)
	}
}

// NopEmitter discards events; used in tests that don't assert on audit.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
