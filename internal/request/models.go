package request

import (
	"time"

	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// RequestStatus is the lifecycle state of a need request.
//
// Transitions: open→assigned (allocator), assigned→fulfilled (staff confirms
// delivery), assigned→open (rollback, releases reserved units), any
// non-terminal→expired (sweeper). Fulfilled and expired are terminal.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "open"
	RequestAssigned  RequestStatus = "assigned"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestExpired   RequestStatus = "expired"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestOpen:      {RequestAssigned, RequestExpired},
	RequestAssigned:  {RequestFulfilled, RequestOpen, RequestExpired},
	RequestFulfilled: {},
	RequestExpired:   {},
}

// CanTransitionTo consults the transition table.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no outgoing transitions exist.
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

func (s RequestStatus) String() string { return string(s) }

// ParseRequestStatus validates a caller-supplied status string. "pending" is
// accepted as a legacy alias of open at the API boundary; it never appears in
// stored records.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case RequestOpen, RequestAssigned, RequestFulfilled, RequestExpired:
		return RequestStatus(s), nil
	case "pending":
		return RequestOpen, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid request status: "+s)
	}
}

// NeedRequest is a demand for blood units placed by medical staff or a member.
//
// Invariants:
//   - UnitsNeeded is positive
//   - an assigned request carries at least UnitsNeeded reserved unit
//     references, recorded at the moment of assignment
//   - reserved units may individually expire afterwards without reverting the
//     request; effective coverage is re-checked at fulfilment, not here
type NeedRequest struct {
	ID          id.RequestID  `json:"id"`
	RequestedBy id.UserID     `json:"requested_by"`
	BloodType   id.BloodType  `json:"blood_type"`
	Component   id.Component  `json:"component"`
	UnitsNeeded int           `json:"units_needed"`
	Reason      string        `json:"reason"`
	Status      RequestStatus `json:"status"`
	// AssignedUnits is non-empty only while the request is assigned.
	AssignedUnits []id.UnitID `json:"assigned_units,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	// Deadline is when the sweeper gives up on an unresolved request.
	Deadline  time.Time  `json:"deadline"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewNeedRequest validates creation input and derives the deadline from the
// configured request validity window.
func NewNeedRequest(
	requestID id.RequestID,
	requestedBy id.UserID,
	bloodType id.BloodType,
	component id.Component,
	unitsNeeded int,
	reason string,
	ttl time.Duration,
	now time.Time,
) (*NeedRequest, error) {
	if requestedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "request must have a requester")
	}
	if !bloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid blood type: "+bloodType.String())
	}
	if !component.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+component.String())
	}
	if unitsNeeded <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "units needed must be positive")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request validity window must be positive")
	}
	return &NeedRequest{
		ID:          requestID,
		RequestedBy: requestedBy,
		BloodType:   bloodType,
		Component:   component,
		UnitsNeeded: unitsNeeded,
		Reason:      reason,
		Status:      RequestOpen,
		CreatedAt:   now,
		Deadline:    now.Add(ttl),
		UpdatedAt:   now,
	}, nil
}
