package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/sentinel"
)

func newTestUnit(t *testing.T, bloodType id.BloodType, component id.Component, expiresIn time.Duration) *BloodUnit {
	t.Helper()
	now := time.Now()
	unit, err := NewBloodUnit(id.NewUnitID(), bloodType, component, 450, now, expiresIn, now)
	require.NoError(t, err)
	return unit
}

func TestNewBloodUnit_Validation(t *testing.T) {
	now := time.Now()

	t.Run("rejects non-positive volume", func(t *testing.T) {
		_, err := NewBloodUnit(id.NewUnitID(), id.OPos, id.RedCells, 0, now, time.Hour, now)
		require.Error(t, err)
	})

	t.Run("rejects future intake date", func(t *testing.T) {
		_, err := NewBloodUnit(id.NewUnitID(), id.OPos, id.RedCells, 450, now.Add(time.Hour), time.Hour, now)
		require.Error(t, err)
	})

	t.Run("expiry is strictly after intake", func(t *testing.T) {
		unit, err := NewBloodUnit(id.NewUnitID(), id.OPos, id.RedCells, 450, now, time.Hour, now)
		require.NoError(t, err)
		assert.True(t, unit.ExpiresAt.After(unit.AddedAt))
	})
}

func TestQueryAvailable_FEFO(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	late := newTestUnit(t, id.OPos, id.RedCells, 5*24*time.Hour)
	early := newTestUnit(t, id.OPos, id.RedCells, 2*24*time.Hour)
	middle := newTestUnit(t, id.OPos, id.RedCells, 3*24*time.Hour)
	for _, u := range []*BloodUnit{late, early, middle} {
		require.NoError(t, store.Add(ctx, u))
	}

	units, err := store.QueryAvailable(ctx, id.OPos, id.RedCells, time.Now())
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, early.ID, units[0].ID, "earliest-expiring unit first")
	assert.Equal(t, middle.ID, units[1].ID)
	assert.Equal(t, late.ID, units[2].ID)
}

func TestQueryAvailable_Filters(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	match := newTestUnit(t, id.APos, id.Plasma, 24*time.Hour)
	wrongComponent := newTestUnit(t, id.APos, id.RedCells, 24*time.Hour)
	wrongType := newTestUnit(t, id.BPos, id.Plasma, 24*time.Hour)
	reserved := newTestUnit(t, id.APos, id.Plasma, 24*time.Hour)
	for _, u := range []*BloodUnit{match, wrongComponent, wrongType, reserved} {
		require.NoError(t, store.Add(ctx, u))
	}
	require.NoError(t, store.Reserve(ctx, []id.UnitID{reserved.ID}))

	units, err := store.QueryAvailable(ctx, id.APos, id.Plasma, time.Now())
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, match.ID, units[0].ID)
}

func TestQueryAvailable_ExcludesLapsedBeforeSweep(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	unit := newTestUnit(t, id.OPos, id.RedCells, time.Minute)
	require.NoError(t, store.Add(ctx, unit))

	// Past expiry but the sweeper has not run: the unit is still
	// status=available yet must not be allocatable.
	units, err := store.QueryAvailable(ctx, id.OPos, id.RedCells, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestReserve_AllOrNothing(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	a := newTestUnit(t, id.OPos, id.RedCells, 24*time.Hour)
	b := newTestUnit(t, id.OPos, id.RedCells, 24*time.Hour)
	require.NoError(t, store.Add(ctx, a))
	require.NoError(t, store.Add(ctx, b))

	// Take b out from under the batch.
	require.NoError(t, store.Reserve(ctx, []id.UnitID{b.ID}))

	err := store.Reserve(ctx, []id.UnitID{a.ID, b.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrConflict))

	// a must remain available: no partial reservation.
	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitAvailable, got.Status)
}

func TestReserve_Concurrent_NoDoubleReservation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	unit := newTestUnit(t, id.ONeg, id.RedCells, 24*time.Hour)
	require.NoError(t, store.Add(ctx, unit))

	const goroutines = 50
	var wg sync.WaitGroup
	var wins atomic.Int32
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if err := store.Reserve(ctx, []id.UnitID{unit.ID}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one reservation must win")
}

func TestConsumeAndRelease_RequireReserved(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	unit := newTestUnit(t, id.OPos, id.WholeBlood, 24*time.Hour)
	require.NoError(t, store.Add(ctx, unit))

	err := store.Consume(ctx, []id.UnitID{unit.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))

	require.NoError(t, store.Reserve(ctx, []id.UnitID{unit.ID}))
	require.NoError(t, store.Release(ctx, []id.UnitID{unit.ID}))

	got, err := store.Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitAvailable, got.Status)

	require.NoError(t, store.Reserve(ctx, []id.UnitID{unit.ID}))
	require.NoError(t, store.Consume(ctx, []id.UnitID{unit.ID}))

	got, err = store.Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitConsumed, got.Status)
}

func TestMarkExpired_IdempotentAndTerminalSafe(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	available := newTestUnit(t, id.OPos, id.Platelets, time.Minute)
	reserved := newTestUnit(t, id.OPos, id.Platelets, time.Minute)
	consumed := newTestUnit(t, id.OPos, id.Platelets, time.Minute)
	for _, u := range []*BloodUnit{available, reserved, consumed} {
		require.NoError(t, store.Add(ctx, u))
	}
	require.NoError(t, store.Reserve(ctx, []id.UnitID{reserved.ID, consumed.ID}))
	require.NoError(t, store.Consume(ctx, []id.UnitID{consumed.ID}))

	ids := []id.UnitID{available.ID, reserved.ID, consumed.ID}
	n, err := store.MarkExpired(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "consumed unit must not be touched")

	// Second pass changes nothing.
	n, err = store.MarkExpired(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := store.Get(ctx, consumed.ID)
	require.NoError(t, err)
	assert.Equal(t, UnitConsumed, got.Status)
}

func TestListExpiring(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	fresh := newTestUnit(t, id.OPos, id.RedCells, 48*time.Hour)
	stale := newTestUnit(t, id.OPos, id.RedCells, time.Minute)
	require.NoError(t, store.Add(ctx, fresh))
	require.NoError(t, store.Add(ctx, stale))

	expiring, err := store.ListExpiring(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, stale.ID, expiring[0])
}

func TestRemove(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	unit := newTestUnit(t, id.ABNeg, id.Plasma, 24*time.Hour)
	require.NoError(t, store.Add(ctx, unit))
	require.NoError(t, store.Remove(ctx, unit.ID))

	_, err := store.Get(ctx, unit.ID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	err = store.Remove(ctx, unit.ID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestCountAvailable(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Add(ctx, newTestUnit(t, id.OPos, id.RedCells, 24*time.Hour)))
	}
	reserved := newTestUnit(t, id.OPos, id.RedCells, 24*time.Hour)
	require.NoError(t, store.Add(ctx, reserved))
	require.NoError(t, store.Reserve(ctx, []id.UnitID{reserved.ID}))

	counts, err := store.CountAvailable(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[SummaryKey{BloodType: id.OPos, Component: id.RedCells}])
}
