package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifebank/internal/compat"
	"lifebank/internal/inventory"
	"lifebank/internal/platform/metrics"
	"lifebank/internal/request"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/platform/sentinel"
	"lifebank/pkg/requestcontext"
)

// maxAttempts bounds the reservation retry: one initial attempt plus one
// retry after losing a race.
const maxAttempts = 2

// Allocator selects compatible units for an open request and reserves them.
//
// Consistency discipline: units are reserved first, then the request is
// assigned. When the assignment fails the reservation is rolled back, so a
// request never references units it does not hold. The reverse order could
// leave an assigned request pointing at unreserved units.
type Allocator struct {
	units    inventory.Store
	requests request.Store
	audit    audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(
	units inventory.Store,
	requests request.Store,
	auditor audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Allocator {
	return &Allocator{
		units:    units,
		requests: requests,
		audit:    auditor,
		metrics:  m,
		logger:   logger,
	}
}

// Allocate reserves units for the request and moves it open→assigned.
// Returns the reserved unit IDs.
//
// Selection walks the compatible donor types closest match first; within a
// type units come back earliest-expiring first. Accumulation stops as soon as
// the needed count is covered, so an exact-type unit is always preferred over
// a cross-compatible one even when the latter expires sooner.
func (a *Allocator) Allocate(ctx context.Context, requestID id.RequestID) ([]id.UnitID, error) {
	start := time.Now()
	defer func() { a.metrics.ObserveAllocation(time.Since(start)) }()

	req, err := a.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if req.Status != request.RequestOpen {
		return nil, dErrors.New(dErrors.CodeInvalidState, "request is "+req.Status.String()+", allocation requires open")
	}

	donorTypes, err := compat.CompatibleDonorTypes(req.BloodType)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		selected, err := a.selectUnits(ctx, req, donorTypes)
		if err != nil {
			return nil, err
		}

		if err := a.units.Reserve(ctx, selected); err != nil {
			if errors.Is(err, sentinel.ErrConflict) && attempt < maxAttempts {
				// Lost a race over one of the selected units; the whole batch
				// rolled back, so a fresh selection is safe.
				a.metrics.IncAllocationRetries()
				a.logger.InfoContext(ctx, "reservation race lost, retrying selection",
					slog.String("request_id", requestID.String()), slog.Int("attempt", attempt))
				continue
			}
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.New(dErrors.CodeConflict, "units were taken concurrently")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve units")
		}

		if err := a.requests.Assign(ctx, requestID, selected, requestcontext.Now(ctx)); err != nil {
			if releaseErr := a.units.Release(ctx, selected); releaseErr != nil {
				a.logger.ErrorContext(ctx, "failed to roll back reservation",
					slog.String("request_id", requestID.String()), slog.Any("error", releaseErr))
			}
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.New(dErrors.CodeConflict, "request was resolved concurrently")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign request")
		}

		a.metrics.AddUnitsReserved(len(selected))
		a.metrics.IncRequestsAssigned()
		a.audit.Emit(ctx, audit.Event{
			Action:    audit.EventRequestAssigned,
			Actor:     requestcontext.UserID(ctx).String(),
			Subject:   requestID.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
		for _, unitID := range selected {
			a.audit.Emit(ctx, audit.Event{
				Action:    audit.EventUnitsReserved,
				Actor:     requestcontext.UserID(ctx).String(),
				Subject:   unitID.String(),
				Reason:    "allocated to request " + requestID.String(),
				RequestID: requestcontext.RequestID(ctx),
			})
		}
		return selected, nil
	}
}

// selectUnits is read-only: it queries available stock per compatible type and
// accumulates until the needed count is covered. Failing here has no side
// effects, the request stays open.
func (a *Allocator) selectUnits(ctx context.Context, req *request.NeedRequest, donorTypes []id.BloodType) ([]id.UnitID, error) {
	now := requestcontext.Now(ctx)
	var selected []id.UnitID
	for _, donorType := range donorTypes {
		if len(selected) >= req.UnitsNeeded {
			break
		}
		available, err := a.units.QueryAvailable(ctx, donorType, req.Component, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query inventory")
		}
		for _, unit := range available {
			if len(selected) >= req.UnitsNeeded {
				break
			}
			selected = append(selected, unit.ID)
		}
	}
	if len(selected) < req.UnitsNeeded {
		return nil, dErrors.New(dErrors.CodeInsufficientInventory,
			fmt.Sprintf("need %d compatible %s %s units, only %d available",
				req.UnitsNeeded, req.BloodType, req.Component, len(selected)))
	}
	return selected, nil
}
