package request

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifebank/internal/inventory"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
	"lifebank/pkg/platform/audit"
	"lifebank/pkg/requestcontext"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *inventory.InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	units := inventory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, units, 7*24*time.Hour, audit.NopEmitter{}, nil, logger)
	return svc, store, units
}

func ctxAs(userID id.UserID, role id.Role) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithRole(ctx, role)
}

func addReservedUnit(t *testing.T, units *inventory.InMemoryStore) id.UnitID {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	unit, err := inventory.NewBloodUnit(id.NewUnitID(), id.OPos, id.RedCells, 450, now, 42*24*time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, units.Add(ctx, unit))
	require.NoError(t, units.Reserve(ctx, []id.UnitID{unit.ID}))
	return unit.ID
}

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := ctxAs(newUserID(), id.RoleMember)

	req, err := svc.Create(ctx, id.ABNeg, id.Plasma, 3, "scheduled transfusion")
	require.NoError(t, err)
	assert.Equal(t, RequestOpen, req.Status)
	assert.Equal(t, 3, req.UnitsNeeded)
	assert.WithinDuration(t, req.CreatedAt.Add(7*24*time.Hour), req.Deadline, time.Second)

	t.Run("rejects non-positive units", func(t *testing.T) {
		_, err := svc.Create(ctx, id.ABNeg, id.Plasma, 0, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects missing requester", func(t *testing.T) {
		_, err := svc.Create(context.Background(), id.ABNeg, id.Plasma, 1, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestList_RoleFiltering(t *testing.T) {
	svc, _, _ := newTestService(t)

	alice := newUserID()
	bob := newUserID()
	_, err := svc.Create(ctxAs(alice, id.RoleMember), id.APos, id.RedCells, 1, "")
	require.NoError(t, err)
	_, err = svc.Create(ctxAs(bob, id.RoleMember), id.BPos, id.RedCells, 1, "")
	require.NoError(t, err)

	t.Run("member sees only own", func(t *testing.T) {
		got, err := svc.List(ctxAs(alice, id.RoleMember), "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, alice, got[0].RequestedBy)
	})

	t.Run("staff sees all", func(t *testing.T) {
		got, err := svc.List(ctxAs(newUserID(), id.RoleStaff), "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestGet_ForeignRequestReadsAsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	owner := newUserID()
	req, err := svc.Create(ctxAs(owner, id.RoleMember), id.APos, id.RedCells, 1, "")
	require.NoError(t, err)

	_, err = svc.Get(ctxAs(newUserID(), id.RoleMember), req.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	got, err := svc.Get(ctxAs(newUserID(), id.RoleStaff), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
}

func TestSetStatus_Fulfil(t *testing.T) {
	svc, store, units := newTestService(t)
	staff := ctxAs(newUserID(), id.RoleStaff)

	req, err := svc.Create(staff, id.OPos, id.RedCells, 1, "")
	require.NoError(t, err)
	unitID := addReservedUnit(t, units)
	require.NoError(t, store.Assign(context.Background(), req.ID, []id.UnitID{unitID}, time.Now()))

	got, err := svc.SetStatus(staff, req.ID, RequestFulfilled)
	require.NoError(t, err)
	assert.Equal(t, RequestFulfilled, got.Status)

	unit, err := units.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitConsumed, unit.Status)
}

func TestSetStatus_Reopen_ReleasesUnits(t *testing.T) {
	svc, store, units := newTestService(t)
	staff := ctxAs(newUserID(), id.RoleStaff)

	req, err := svc.Create(staff, id.OPos, id.RedCells, 1, "")
	require.NoError(t, err)
	unitID := addReservedUnit(t, units)
	require.NoError(t, store.Assign(context.Background(), req.ID, []id.UnitID{unitID}, time.Now()))

	got, err := svc.SetStatus(staff, req.ID, RequestOpen)
	require.NoError(t, err)
	assert.Equal(t, RequestOpen, got.Status)
	assert.Empty(t, got.AssignedUnits)

	unit, err := units.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitAvailable, unit.Status)
}

func TestSetStatus_FulfilToleratesExpiredUnit(t *testing.T) {
	svc, store, units := newTestService(t)
	staff := ctxAs(newUserID(), id.RoleStaff)

	req, err := svc.Create(staff, id.OPos, id.RedCells, 2, "")
	require.NoError(t, err)
	live := addReservedUnit(t, units)
	lapsed := addReservedUnit(t, units)
	require.NoError(t, store.Assign(context.Background(), req.ID, []id.UnitID{live, lapsed}, time.Now()))
	_, err = units.MarkExpired(context.Background(), []id.UnitID{lapsed})
	require.NoError(t, err)

	got, err := svc.SetStatus(staff, req.ID, RequestFulfilled)
	require.NoError(t, err)
	assert.Equal(t, RequestFulfilled, got.Status)

	unit, err := units.Get(context.Background(), live)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitConsumed, unit.Status)
	unit, err = units.Get(context.Background(), lapsed)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitExpired, unit.Status, "expired unit stays expired")
}

func TestSetStatus_InvalidTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)
	staff := ctxAs(newUserID(), id.RoleStaff)

	req, err := svc.Create(staff, id.OPos, id.RedCells, 1, "")
	require.NoError(t, err)

	t.Run("open cannot be fulfilled", func(t *testing.T) {
		_, err := svc.SetStatus(staff, req.ID, RequestFulfilled)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("assigned is not a direct target", func(t *testing.T) {
		_, err := svc.SetStatus(staff, req.ID, RequestAssigned)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("terminal status has no exits", func(t *testing.T) {
		_, err := svc.SetStatus(staff, req.ID, RequestExpired)
		require.NoError(t, err)
		_, err = svc.SetStatus(staff, req.ID, RequestOpen)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := svc.SetStatus(staff, id.NewRequestID(), RequestExpired)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestSetStatus_ManualExpireReleasesUnits(t *testing.T) {
	svc, store, units := newTestService(t)
	staff := ctxAs(newUserID(), id.RoleStaff)

	req, err := svc.Create(staff, id.OPos, id.RedCells, 1, "")
	require.NoError(t, err)
	unitID := addReservedUnit(t, units)
	require.NoError(t, store.Assign(context.Background(), req.ID, []id.UnitID{unitID}, time.Now()))

	got, err := svc.SetStatus(staff, req.ID, RequestExpired)
	require.NoError(t, err)
	assert.Equal(t, RequestExpired, got.Status)

	unit, err := units.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitAvailable, unit.Status)
}

func TestDelete(t *testing.T) {
	t.Run("member deletes own", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		owner := newUserID()
		req, err := svc.Create(ctxAs(owner, id.RoleMember), id.APos, id.RedCells, 1, "")
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctxAs(owner, id.RoleMember), req.ID))
	})

	t.Run("member cannot delete foreign", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		req, err := svc.Create(ctxAs(newUserID(), id.RoleMember), id.APos, id.RedCells, 1, "")
		require.NoError(t, err)

		err = svc.Delete(ctxAs(newUserID(), id.RoleMember), req.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("staff deletes assigned and frees units", func(t *testing.T) {
		svc, store, units := newTestService(t)
		staff := ctxAs(newUserID(), id.RoleStaff)
		req, err := svc.Create(staff, id.APos, id.RedCells, 1, "")
		require.NoError(t, err)
		unitID := addReservedUnit(t, units)
		require.NoError(t, store.Assign(context.Background(), req.ID, []id.UnitID{unitID}, time.Now()))

		require.NoError(t, svc.Delete(staff, req.ID))

		unit, err := units.Get(context.Background(), unitID)
		require.NoError(t, err)
		assert.Equal(t, inventory.UnitAvailable, unit.Status)
	})
}
