package request

import (
	"context"
	"time"

	id "lifebank/pkg/domain"
)

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	RequestedBy id.UserID
	Status      RequestStatus
}

// Store persists need requests.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when a referenced request does not exist
//   - Return sentinel.ErrConflict when a status-guarded update loses a race
//     (the request's current status no longer matches the guard)
//   - Return wrapped errors with context for infrastructure failures
//
// Status mutations are compare-and-set: the guard checks the current status
// and applies the new one as one indivisible step per request.
type Store interface {
	// Create inserts a request. The caller has already validated it.
	Create(ctx context.Context, req *NeedRequest) error

	// Get returns one request by ID.
	Get(ctx context.Context, requestID id.RequestID) (*NeedRequest, error)

	// List returns requests matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*NeedRequest, error)

	// Assign transitions open→assigned, recording the reserved unit set and
	// the decision time. Fails with ErrConflict if the request is no longer
	// open.
	Assign(ctx context.Context, requestID id.RequestID, unitIDs []id.UnitID, at time.Time) error

	// SetStatus is a status-guarded transition. The caller validates the
	// transition against the state machine first; the guard only protects
	// against races. A transition to open clears the assigned unit set.
	SetStatus(ctx context.Context, requestID id.RequestID, from, to RequestStatus, at time.Time) error

	// MarkExpired transitions any non-terminal status to expired. Idempotent:
	// terminal and missing requests are skipped, not errors. Returns the
	// number of requests actually transitioned.
	MarkExpired(ctx context.Context, requestIDs []id.RequestID, at time.Time) (int, error)

	// ListExpiring returns IDs of non-terminal requests whose deadline is
	// before the given time. Used by the sweeper.
	ListExpiring(ctx context.Context, before time.Time) ([]id.RequestID, error)

	// Delete hard-deletes a request regardless of status.
	Delete(ctx context.Context, requestID id.RequestID) error
}
