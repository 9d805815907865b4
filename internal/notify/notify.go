// Package notify is the boundary to the donor outreach channel. Delivery
// mechanics (mail, SMS) live behind the Notifier interface; the engine only
// hands over the confirmation link.
package notify

import (
	"context"
	"log/slog"
	"time"

	id "lifebank/pkg/domain"
)

// Notifier delivers a match confirmation link to a donor. A delivery failure
// never rolls back match creation; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, donorID id.DonorID, matchID id.MatchID, confirmationLink string, expiresAt time.Time) error
}

// LogNotifier writes the outreach to the structured log. Used in development
// and as the default until a real channel is wired up.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, donorID id.DonorID, matchID id.MatchID, confirmationLink string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "donor match notification",
		slog.String("donor_id", donorID.String()),
		slog.String("match_id", matchID.String()),
		slog.String("confirmation_link", confirmationLink),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}
