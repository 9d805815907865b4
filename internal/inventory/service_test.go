package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
)

var testShelfLives = map[id.Component]time.Duration{
	id.WholeBlood: 35 * 24 * time.Hour,
	id.RedCells:   42 * 24 * time.Hour,
	id.Plasma:     365 * 24 * time.Hour,
	id.Platelets:  5 * 24 * time.Hour,
}

func newTestService() (*Service, *InMemoryStore) {
	store := NewInMemoryStore()
	svc := NewService(store, testShelfLives, 20, 10, audit.NopEmitter{}, nil)
	return svc, store
}

func TestAdd_DerivesExpiry(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	unit, err := svc.Add(ctx, id.APos, id.Platelets, 300, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, UnitAvailable, unit.Status)
	assert.WithinDuration(t, unit.AddedAt.Add(5*24*time.Hour), unit.ExpiresAt, time.Second)
}

func TestAdd_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	t.Run("non-positive volume", func(t *testing.T) {
		_, err := svc.Add(ctx, id.APos, id.Plasma, -10, time.Time{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("future intake date", func(t *testing.T) {
		_, err := svc.Add(ctx, id.APos, id.Plasma, 450, time.Now().Add(time.Hour))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown blood type", func(t *testing.T) {
		_, err := svc.Add(ctx, id.BloodType("X+"), id.Plasma, 450, time.Time{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestRemove_NotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Remove(context.Background(), id.NewUnitID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSummary_Thresholds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	addUnits := func(bt id.BloodType, n int) {
		for i := 0; i < n; i++ {
			_, err := svc.Add(ctx, bt, id.RedCells, 450, time.Time{})
			require.NoError(t, err)
		}
	}
	addUnits(id.OPos, 25) // sufficient
	addUnits(id.APos, 15) // medium
	addUnits(id.BPos, 5)  // critical

	rows, err := svc.Summary(ctx)
	require.NoError(t, err)

	levels := make(map[SummaryKey]SummaryLevel)
	counts := make(map[SummaryKey]int)
	for _, row := range rows {
		key := SummaryKey{BloodType: row.BloodType, Component: row.Component}
		levels[key] = row.Level
		counts[key] = row.Available
	}

	assert.Equal(t, LevelSufficient, levels[SummaryKey{id.OPos, id.RedCells}])
	assert.Equal(t, 25, counts[SummaryKey{id.OPos, id.RedCells}])
	assert.Equal(t, LevelMedium, levels[SummaryKey{id.APos, id.RedCells}])
	assert.Equal(t, LevelCritical, levels[SummaryKey{id.BPos, id.RedCells}])

	// Empty pairs still appear, flagged critical.
	assert.Equal(t, LevelCritical, levels[SummaryKey{id.ABNeg, id.Platelets}])
	assert.Len(t, rows, len(id.BloodTypes)*len(id.Components))
}

func TestSummary_BoundaryCounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Exactly 20 is medium (sufficient needs strictly more), exactly 10 is
	// critical (medium needs strictly more).
	for i := 0; i < 20; i++ {
		_, err := svc.Add(ctx, id.ONeg, id.Plasma, 450, time.Time{})
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		_, err := svc.Add(ctx, id.ANeg, id.Plasma, 450, time.Time{})
		require.NoError(t, err)
	}

	rows, err := svc.Summary(ctx)
	require.NoError(t, err)
	for _, row := range rows {
		if row.BloodType == id.ONeg && row.Component == id.Plasma {
			assert.Equal(t, LevelMedium, row.Level)
		}
		if row.BloodType == id.ANeg && row.Component == id.Plasma {
			assert.Equal(t, LevelCritical, row.Level)
		}
	}
}
