package audit

import (
	"context"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// DonationMatch records double as audit records themselves (they are never
// deleted); these events add the surrounding actions.
type Event struct {
	Timestamp time.Time
	Action    AuditEvent
	// Actor is the caller who performed the action; "system" for the
	// sweeper and confirmation workflow (donors are unauthenticated).
	Actor string
	// Subject is the primary entity the action touched (unit, request or
	// match ID in string form).
	Subject string
	Reason  string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
}

type AuditEvent string

const (
	// Inventory events
	EventUnitAdded     AuditEvent = "unit_added"
	EventUnitRemoved   AuditEvent = "unit_removed"
	EventUnitsReserved AuditEvent = "units_reserved"
	EventUnitsReleased AuditEvent = "units_released"
	EventUnitsConsumed AuditEvent = "units_consumed"
	EventUnitsExpired  AuditEvent = "units_expired"

	// Request events
	EventRequestCreated   AuditEvent = "request_created"
	EventRequestAssigned  AuditEvent = "request_assigned"
	EventRequestFulfilled AuditEvent = "request_fulfilled"
	EventRequestReopened  AuditEvent = "request_reopened"
	EventRequestExpired   AuditEvent = "request_expired"
	EventRequestDeleted   AuditEvent = "request_deleted"

	// Match events
	EventMatchCreated   AuditEvent = "match_created"
	EventMatchConfirmed AuditEvent = "match_confirmed"
	EventMatchExpired   AuditEvent = "match_expired"
)

// Store is the persistence boundary for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is what domain services hold. Implementations must never block
// domain operations on sink latency beyond a channel handoff.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}
