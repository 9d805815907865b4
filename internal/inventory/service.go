package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"lifebank/internal/platform/metrics"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/platform/sentinel"
	"lifebank/pkg/requestcontext"
)

// Service owns blood unit intake, removal and the derived stock summary.
// Reservation paths belong to the allocator, which talks to the Store
// directly; everything caller-facing goes through here.
type Service struct {
	store               Store
	shelfLives          map[id.Component]time.Duration
	sufficientThreshold int
	criticalThreshold   int
	audit               audit.Emitter
	metrics             *metrics.Metrics
}

func NewService(
	store Store,
	shelfLives map[id.Component]time.Duration,
	sufficientThreshold, criticalThreshold int,
	auditor audit.Emitter,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:               store,
		shelfLives:          shelfLives,
		sufficientThreshold: sufficientThreshold,
		criticalThreshold:   criticalThreshold,
		audit:               auditor,
		metrics:             m,
	}
}

// Add takes a donated unit into inventory with status available.
func (s *Service) Add(
	ctx context.Context,
	bloodType id.BloodType,
	component id.Component,
	volumeML int,
	addedAt time.Time,
) (*BloodUnit, error) {
	now := requestcontext.Now(ctx)
	if addedAt.IsZero() {
		addedAt = now
	}

	shelfLife, ok := s.shelfLives[component]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no shelf life configured for component: "+component.String())
	}

	unit, err := NewBloodUnit(id.NewUnitID(), bloodType, component, volumeML, addedAt, shelfLife, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Add(ctx, unit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store unit")
	}

	s.metrics.IncUnitsAdded()
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.EventUnitAdded,
		Actor:     requestcontext.UserID(ctx).String(),
		Subject:   unit.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return unit, nil
}

// Get returns one unit by ID.
func (s *Service) Get(ctx context.Context, unitID id.UnitID) (*BloodUnit, error) {
	unit, err := s.store.Get(ctx, unitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load unit")
	}
	return unit, nil
}

// Remove hard-deletes a unit. Permitted from any status; removal is an
// explicit staff action, not a lifecycle state.
func (s *Service) Remove(ctx context.Context, unitID id.UnitID) error {
	if err := s.store.Remove(ctx, unitID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "unit not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove unit")
	}
	s.audit.Emit(ctx, audit.Event{
		Action:    audit.EventUnitRemoved,
		Actor:     requestcontext.UserID(ctx).String(),
		Subject:   unitID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// Summary recomputes the stock overview on demand. Every type/component pair
// appears, including empty ones, so dashboards can show critical gaps.
func (s *Service) Summary(ctx context.Context) ([]SummaryRow, error) {
	counts, err := s.store.CountAvailable(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count inventory")
	}

	rows := make([]SummaryRow, 0, len(id.BloodTypes)*len(id.Components))
	for _, bt := range id.BloodTypes {
		for _, component := range id.Components {
			total := counts[SummaryKey{BloodType: bt, Component: component}]
			rows = append(rows, SummaryRow{
				BloodType: bt,
				Component: component,
				Available: total,
				Level:     s.level(total),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BloodType != rows[j].BloodType {
			return rows[i].BloodType < rows[j].BloodType
		}
		return rows[i].Component < rows[j].Component
	})
	return rows, nil
}

func (s *Service) level(total int) SummaryLevel {
	switch {
	case total > s.sufficientThreshold:
		return LevelSufficient
	case total > s.criticalThreshold:
		return LevelMedium
	default:
		return LevelCritical
	}
}
