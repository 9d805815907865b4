package inventory

import (
	"context"
	"time"

	id "lifebank/pkg/domain"
)

// Store persists blood units.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when a referenced unit does not exist
//   - Return sentinel.ErrConflict when a batch transition loses a race
//     (no partial effect remains: all-or-nothing with rollback)
//   - Return sentinel.ErrInvalidState when a unit is in the wrong status
//   - Return wrapped errors with context for infrastructure failures
//
// Status transitions are compare-and-set per unit: the guard checks the
// current status and applies the new one as one indivisible step.
type Store interface {
	// Add inserts a unit. The caller has already validated it.
	Add(ctx context.Context, unit *BloodUnit) error

	// Get returns one unit by ID.
	Get(ctx context.Context, unitID id.UnitID) (*BloodUnit, error)

	// QueryAvailable returns available units of the given type and component
	// ordered by ExpiresAt ascending (first-expired-first-out). Units past
	// their expiry at the given time are excluded even when the sweeper has
	// not caught up with them yet.
	QueryAvailable(ctx context.Context, bloodType id.BloodType, component id.Component, now time.Time) ([]*BloodUnit, error)

	// Reserve transitions all given units available→reserved. If any unit is
	// not currently available the whole batch fails with ErrConflict and no
	// unit remains reserved from this call.
	Reserve(ctx context.Context, unitIDs []id.UnitID) error

	// Consume transitions reserved→consumed.
	Consume(ctx context.Context, unitIDs []id.UnitID) error

	// Release transitions reserved→available.
	Release(ctx context.Context, unitIDs []id.UnitID) error

	// MarkExpired transitions any non-terminal status to expired. Idempotent:
	// already-expired and consumed units are skipped, not errors. Returns the
	// number of units actually transitioned.
	MarkExpired(ctx context.Context, unitIDs []id.UnitID) (int, error)

	// ListExpiring returns IDs of non-terminal units whose ExpiresAt is
	// before the given time. Used by the sweeper.
	ListExpiring(ctx context.Context, before time.Time) ([]id.UnitID, error)

	// Remove hard-deletes a unit regardless of status.
	Remove(ctx context.Context, unitID id.UnitID) error

	// CountAvailable returns available-unit counts per type/component pair,
	// excluding units already past expiry at the given time.
	CountAvailable(ctx context.Context, now time.Time) (map[SummaryKey]int, error)
}
