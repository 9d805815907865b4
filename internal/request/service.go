package request

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifebank/internal/platform/metrics"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/platform/sentinel"
	"lifebank/pkg/requestcontext"
)

// UnitTransitions is the slice of the inventory store the lifecycle manager
// needs: fulfilment consumes reserved units, rollback releases them.
type UnitTransitions interface {
	Consume(ctx context.Context, unitIDs []id.UnitID) error
	Release(ctx context.Context, unitIDs []id.UnitID) error
}

// Service owns the need request lifecycle. The open→assigned transition
// belongs to the allocator, which writes through the Store directly; every
// other transition goes through SetStatus here.
type Service struct {
	store      Store
	units      UnitTransitions
	requestTTL time.Duration
	audit      audit.Emitter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(
	store Store,
	units UnitTransitions,
	requestTTL time.Duration,
	auditor audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		units:      units,
		requestTTL: requestTTL,
		audit:      auditor,
		metrics:    m,
		logger:     logger,
	}
}

// Create opens a new request on behalf of the authenticated caller.
func (s *Service) Create(
	ctx context.Context,
	bloodType id.BloodType,
	component id.Component,
	unitsNeeded int,
	reason string,
) (*NeedRequest, error) {
	now := requestcontext.Now(ctx)
	req, err := NewNeedRequest(
		id.NewRequestID(), requestcontext.UserID(ctx),
		bloodType, component, unitsNeeded, reason,
		s.requestTTL, now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store request")
	}

	s.metrics.IncRequestsCreated()
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.EventRequestCreated,
		Actor:     req.RequestedBy.String(),
		Subject:   req.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return req, nil
}

// Get returns one request. Members only see their own; a foreign request
// reads as not found rather than forbidden so existence does not leak.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*NeedRequest, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if !requestcontext.Role(ctx).SeesAllRequests() && req.RequestedBy != requestcontext.UserID(ctx) {
		return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return req, nil
}

// List returns requests visible to the caller, optionally narrowed by status.
// Staff and admin see everything, members only their own.
func (s *Service) List(ctx context.Context, status RequestStatus) ([]*NeedRequest, error) {
	filter := Filter{Status: status}
	if !requestcontext.Role(ctx).SeesAllRequests() {
		filter.RequestedBy = requestcontext.UserID(ctx)
	}
	reqs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return reqs, nil
}

// SetStatus applies a staff-driven transition. The state machine table is
// checked first; the store's status guard then protects against races, so a
// concurrent transition surfaces as a conflict rather than corrupting state.
func (s *Service) SetStatus(ctx context.Context, requestID id.RequestID, to RequestStatus) (*NeedRequest, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if to == RequestAssigned {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "assignment is performed by allocation, not a direct status change")
	}
	if !req.Status.CanTransitionTo(to) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"cannot transition request from "+req.Status.String()+" to "+to.String())
	}

	from := req.Status
	now := requestcontext.Now(ctx)
	if err := s.store.SetStatus(ctx, requestID, from, to, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "request was modified concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
	}

	// The status change has won; unit follow-up is per-unit tolerant because
	// individual units may have expired while reserved.
	switch {
	case to == RequestFulfilled:
		s.transitionUnits(ctx, req.AssignedUnits, s.units.Consume)
		s.emit(ctx, audit.EventRequestFulfilled, req.ID)
		s.emitUnits(ctx, audit.EventUnitsConsumed, req.AssignedUnits)
	case to == RequestOpen:
		s.transitionUnits(ctx, req.AssignedUnits, s.units.Release)
		s.emit(ctx, audit.EventRequestReopened, req.ID)
		s.emitUnits(ctx, audit.EventUnitsReleased, req.AssignedUnits)
	case to == RequestExpired:
		if from == RequestAssigned {
			s.transitionUnits(ctx, req.AssignedUnits, s.units.Release)
			s.emitUnits(ctx, audit.EventUnitsReleased, req.AssignedUnits)
		}
		s.emit(ctx, audit.EventRequestExpired, req.ID)
	}

	return s.store.Get(ctx, requestID)
}

// Delete removes a request. Members may delete their own; staff any.
func (s *Service) Delete(ctx context.Context, requestID id.RequestID) error {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	role := requestcontext.Role(ctx)
	if !role.CanTransitionRequests() && req.RequestedBy != requestcontext.UserID(ctx) {
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}

	// A deleted assigned request must not strand its reserved units.
	if req.Status == RequestAssigned {
		s.transitionUnits(ctx, req.AssignedUnits, s.units.Release)
		s.emitUnits(ctx, audit.EventUnitsReleased, req.AssignedUnits)
	}

	if err := s.store.Delete(ctx, requestID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete request")
	}
	s.emit(ctx, audit.EventRequestDeleted, req.ID)
	return nil
}

// transitionUnits applies a reserved-unit transition one unit at a time. A
// unit that already left the reserved state (expired by the sweeper) is
// skipped; infrastructure failures are logged, not surfaced, because the
// request transition has already committed.
func (s *Service) transitionUnits(ctx context.Context, unitIDs []id.UnitID, fn func(context.Context, []id.UnitID) error) {
	for _, unitID := range unitIDs {
		err := fn(ctx, []id.UnitID{unitID})
		if err == nil || errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		s.logger.ErrorContext(ctx, "unit follow-up transition failed",
			slog.String("unit_id", unitID.String()), slog.Any("error", err))
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, requestID id.RequestID) {
	s.audit.Emit(ctx, audit.Event{
		Action:    action,
		Actor:     requestcontext.UserID(ctx).String(),
		Subject:   requestID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
}

func (s *Service) emitUnits(ctx context.Context, action audit.AuditEvent, unitIDs []id.UnitID) {
	for _, unitID := range unitIDs {
		s.audit.Emit(ctx, audit.Event{
			Action:    action,
			Actor:     requestcontext.UserID(ctx).String(),
			Subject:   unitID.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
	}
}
