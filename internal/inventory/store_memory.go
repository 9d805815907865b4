package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/sentinel"
)

// InMemoryStore keeps units in a map guarded by a RWMutex. It is the
// authoritative implementation for unit tests and single-node dev runs; the
// postgres store mirrors its semantics.
type InMemoryStore struct {
	mu    sync.RWMutex
	units map[id.UnitID]*BloodUnit
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{units: make(map[id.UnitID]*BloodUnit)}
}

func (s *InMemoryStore) Add(_ context.Context, unit *BloodUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.units[unit.ID]; exists {
		return fmt.Errorf("unit %s already exists: %w", unit.ID, sentinel.ErrConflict)
	}
	clone := *unit
	s.units[unit.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, unitID id.UnitID) (*BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[unitID]
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	clone := *unit
	return &clone, nil
}

func (s *InMemoryStore) QueryAvailable(_ context.Context, bloodType id.BloodType, component id.Component, now time.Time) ([]*BloodUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*BloodUnit
	for _, unit := range s.units {
		if unit.Status != UnitAvailable {
			continue
		}
		if unit.BloodType != bloodType || unit.Component != component {
			continue
		}
		if unit.IsExpired(now) {
			continue
		}
		clone := *unit
		out = append(out, &clone)
	}
	// FEFO: earliest-expiring first.
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// transition applies a status-guarded batch update. All units must currently
// be in one of the from statuses; otherwise nothing is changed.
func (s *InMemoryStore) transition(unitIDs []id.UnitID, from []UnitStatus, to UnitStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := func(status UnitStatus) bool {
		for _, f := range from {
			if status == f {
				return true
			}
		}
		return false
	}

	// Check the whole batch before touching anything so a failure leaves no
	// partial effect.
	for _, unitID := range unitIDs {
		unit, ok := s.units[unitID]
		if !ok {
			return fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
		}
		if !eligible(unit.Status) {
			if to == UnitReserved {
				return fmt.Errorf("unit %s is %s: %w", unitID, unit.Status, sentinel.ErrConflict)
			}
			return fmt.Errorf("unit %s is %s: %w", unitID, unit.Status, sentinel.ErrInvalidState)
		}
	}

	now := time.Now()
	for _, unitID := range unitIDs {
		s.units[unitID].Status = to
		s.units[unitID].UpdatedAt = now
	}
	return nil
}

func (s *InMemoryStore) Reserve(_ context.Context, unitIDs []id.UnitID) error {
	return s.transition(unitIDs, []UnitStatus{UnitAvailable}, UnitReserved)
}

func (s *InMemoryStore) Consume(_ context.Context, unitIDs []id.UnitID) error {
	return s.transition(unitIDs, []UnitStatus{UnitReserved}, UnitConsumed)
}

func (s *InMemoryStore) Release(_ context.Context, unitIDs []id.UnitID) error {
	return s.transition(unitIDs, []UnitStatus{UnitReserved}, UnitAvailable)
}

func (s *InMemoryStore) MarkExpired(_ context.Context, unitIDs []id.UnitID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0
	for _, unitID := range unitIDs {
		unit, ok := s.units[unitID]
		if !ok {
			continue // already removed; expiry is idempotent
		}
		if unit.Status.IsTerminal() {
			continue
		}
		unit.Status = UnitExpired
		unit.UpdatedAt = now
		expired++
	}
	return expired, nil
}

func (s *InMemoryStore) ListExpiring(_ context.Context, before time.Time) ([]id.UnitID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []id.UnitID
	for _, unit := range s.units {
		if unit.Status.IsTerminal() {
			continue
		}
		if unit.ExpiresAt.Before(before) {
			out = append(out, unit.ID)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Remove(_ context.Context, unitID id.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unitID]; !ok {
		return fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	delete(s.units, unitID)
	return nil
}

func (s *InMemoryStore) CountAvailable(_ context.Context, now time.Time) (map[SummaryKey]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[SummaryKey]int)
	for _, unit := range s.units {
		if unit.Status != UnitAvailable || unit.IsExpired(now) {
			continue
		}
		counts[SummaryKey{BloodType: unit.BloodType, Component: unit.Component}]++
	}
	return counts, nil
}
