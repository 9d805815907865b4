package match

import (
	"context"
	"time"
)

// Store persists donation matches, keyed by token. Matches are append-only
// plus a single status transition; nothing is ever deleted.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when no match carries the token
//   - Return sentinel.ErrConflict when a status-guarded transition finds the
//     match already terminal (the caller re-reads to learn which way it went)
//   - Return wrapped errors with context for infrastructure failures
//
// Confirm and Expire are compare-and-set on the pending status: check and
// write happen as one indivisible step, so concurrent confirmations and the
// confirm/expire race both resolve to exactly one winner.
type Store interface {
	// Create inserts a pending match. The caller has already validated it.
	Create(ctx context.Context, m *DonationMatch) error

	// GetByToken returns the match carrying the token.
	GetByToken(ctx context.Context, token string) (*DonationMatch, error)

	// Confirm transitions pending→confirmed.
	Confirm(ctx context.Context, token string, at time.Time) error

	// Expire transitions pending→expired.
	Expire(ctx context.Context, token string, at time.Time) error

	// ListExpiring returns tokens of pending matches whose window closed
	// before the given time. Used by the sweeper.
	ListExpiring(ctx context.Context, before time.Time) ([]string, error)
}
