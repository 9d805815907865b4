// Package sweeper runs the periodic expiration pass over blood units, need
// requests and donation matches.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifebank/internal/inventory"
	"lifebank/internal/match"
	"lifebank/internal/platform/metrics"
	"lifebank/internal/request"
	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/platform/sentinel"
	"lifebank/pkg/requestcontext"
)

// Sweeper transitions overdue entities to expired. Each entity type is swept
// independently; a failure on one entity or one type never aborts the rest of
// the pass. All transitions are status-guarded, so sweeping is idempotent and
// safe to race against foreground operations.
type Sweeper struct {
	interval time.Duration
	units    inventory.Store
	requests request.Store
	matches  match.Store
	audit    audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(
	interval time.Duration,
	units inventory.Store,
	requests request.Store,
	matches match.Store,
	auditor audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		interval: interval,
		units:    units,
		requests: requests,
		matches:  matches,
		audit:    auditor,
		metrics:  m,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiration sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiration sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Each pass observes the clock once so every entity
// is judged against the same instant.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))

	s.sweepUnits(ctx)
	s.sweepRequests(ctx)
	s.sweepMatches(ctx)

	s.metrics.ObserveSweep(time.Since(start))
}

func (s *Sweeper) sweepUnits(ctx context.Context) {
	now := requestcontext.Now(ctx)
	unitIDs, err := s.units.ListExpiring(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: listing expiring units failed", slog.Any("error", err))
		return
	}
	for _, unitID := range unitIDs {
		n, err := s.units.MarkExpired(ctx, []id.UnitID{unitID})
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: unit expiry failed",
				slog.String("unit_id", unitID.String()), slog.Any("error", err))
			continue
		}
		if n == 0 {
			continue // resolved between listing and marking
		}
		s.metrics.AddUnitsExpired(n)
		s.emit(ctx, audit.EventUnitsExpired, unitID.String())
	}
}

// sweepRequests expires overdue requests and releases the units an assigned
// request was holding, so stock is not stranded behind a dead request.
func (s *Sweeper) sweepRequests(ctx context.Context) {
	now := requestcontext.Now(ctx)
	requestIDs, err := s.requests.ListExpiring(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: listing expiring requests failed", slog.Any("error", err))
		return
	}
	for _, requestID := range requestIDs {
		req, err := s.requests.Get(ctx, requestID)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: loading request failed",
				slog.String("request_id", requestID.String()), slog.Any("error", err))
			continue
		}
		n, err := s.requests.MarkExpired(ctx, []id.RequestID{requestID}, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: request expiry failed",
				slog.String("request_id", requestID.String()), slog.Any("error", err))
			continue
		}
		if n == 0 {
			continue
		}
		s.emit(ctx, audit.EventRequestExpired, requestID.String())
		s.releaseUnits(ctx, req.AssignedUnits)
	}
}

func (s *Sweeper) releaseUnits(ctx context.Context, unitIDs []id.UnitID) {
	for _, unitID := range unitIDs {
		err := s.units.Release(ctx, []id.UnitID{unitID})
		if err == nil {
			s.emit(ctx, audit.EventUnitsReleased, unitID.String())
			continue
		}
		// A unit that expired or was consumed already is not the sweeper's
		// to release.
		if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		s.logger.ErrorContext(ctx, "sweep: unit release failed",
			slog.String("unit_id", unitID.String()), slog.Any("error", err))
	}
}

func (s *Sweeper) sweepMatches(ctx context.Context) {
	now := requestcontext.Now(ctx)
	tokens, err := s.matches.ListExpiring(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: listing expiring matches failed", slog.Any("error", err))
		return
	}
	for _, token := range tokens {
		// Resolve the match ID up front; tokens are credentials and stay out
		// of the audit trail.
		m, err := s.matches.GetByToken(ctx, token)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: loading match failed", slog.Any("error", err))
			continue
		}
		err = s.matches.Expire(ctx, token, now)
		if err == nil {
			s.emit(ctx, audit.EventMatchExpired, m.ID.String())
			continue
		}
		// A concurrent confirmation won; its terminal status stands.
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		s.logger.ErrorContext(ctx, "sweep: match expiry failed", slog.Any("error", err))
	}
}

func (s *Sweeper) emit(ctx context.Context, action audit.AuditEvent, subject string) {
	s.audit.Emit(ctx, audit.Event{
		Action:  action,
		Actor:   "system",
		Subject: subject,
		Reason:  "expiration sweep",
	})
}
