package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifebank/internal/allocation"
	"lifebank/internal/inventory"
	"lifebank/internal/jwttoken"
	"lifebank/internal/match"
	"lifebank/internal/notify"
	"lifebank/internal/request"
	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/audit"
)

const testSigningKey = "test-signing-key-for-handler-tests"

var testShelfLives = map[id.Component]time.Duration{
	id.WholeBlood: 35 * 24 * time.Hour,
	id.RedCells:   42 * 24 * time.Hour,
	id.Plasma:     365 * 24 * time.Hour,
	id.Platelets:  5 * 24 * time.Hour,
}

type env struct {
	handler  http.Handler
	jwt      *jwttoken.JWTService
	units    *inventory.InMemoryStore
	requests *request.InMemoryStore
	matches  *match.InMemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	units := inventory.NewInMemoryStore()
	requests := request.NewInMemoryStore()
	matches := match.NewInMemoryStore()

	inventorySvc := inventory.NewService(units, testShelfLives, 20, 10, audit.NopEmitter{}, nil)
	requestSvc := request.NewService(requests, units, 7*24*time.Hour, audit.NopEmitter{}, nil, logger)
	allocator := allocation.New(units, requests, audit.NopEmitter{}, nil, logger)
	matchSvc := match.NewService(matches, 72*time.Hour, "https://lifebank.example",
		notify.NewLogNotifier(logger), allocator, audit.NopEmitter{}, nil, logger)

	jwtService := jwttoken.NewJWTService(testSigningKey, "lifebank", "lifebank")
	handler := NewRouter(Deps{
		Logger:    logger,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Inventory: NewInventoryHandler(inventorySvc, logger),
		Requests:  NewRequestHandler(requestSvc, allocator, logger),
		Matches:   NewMatchHandler(matchSvc, logger),
	})
	return &env{handler: handler, jwt: jwtService, units: units, requests: requests, matches: matches}
}

func (e *env) token(t *testing.T, role id.Role) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken(id.UserID(uuid.New()), role, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAuthBoundaries(t *testing.T) {
	e := newEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/requests", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("member cannot add inventory", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/inventory", e.token(t, id.RoleMember),
			addUnitRequest{BloodType: "O+", Component: "red_cells", VolumeML: 450})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("member cannot create matches", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/matches", e.token(t, id.RoleMember),
			createMatchBody{DonorID: uuid.NewString()})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("confirm needs no token", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/confirm/unknown-token", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		out := decode[match.Outcome](t, rec)
		assert.Equal(t, match.ConfirmError, out.Status)
	})

	t.Run("healthz is public", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestInventoryEndpoints(t *testing.T) {
	e := newEnv(t)
	staff := e.token(t, id.RoleStaff)

	rec := e.do(t, http.MethodPost, "/inventory", staff,
		addUnitRequest{BloodType: "A-", Component: "plasma", VolumeML: 300})
	require.Equal(t, http.StatusCreated, rec.Code)
	unit := decode[inventory.BloodUnit](t, rec)
	assert.Equal(t, id.ANeg, unit.BloodType)
	assert.Equal(t, inventory.UnitAvailable, unit.Status)

	t.Run("validation surfaces as 400", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/inventory", staff,
			addUnitRequest{BloodType: "A-", Component: "plasma", VolumeML: -1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("summary covers every pair", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/inventory/summary", e.token(t, id.RoleMember), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string][]inventory.SummaryRow](t, rec)
		assert.Len(t, body["summary"], 32)
	})

	t.Run("remove", func(t *testing.T) {
		rec := e.do(t, http.MethodDelete, "/inventory/"+unit.ID.String(), staff, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = e.do(t, http.MethodDelete, "/inventory/"+unit.ID.String(), staff, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	staff := e.token(t, id.RoleStaff)

	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/inventory", staff,
			addUnitRequest{BloodType: "O+", Component: "red_cells", VolumeML: 450})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := e.do(t, http.MethodPost, "/requests", staff,
		createRequestBody{BloodType: "O+", Component: "red_cells", UnitsNeeded: 2, Reason: "surgery"})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decode[request.NeedRequest](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/requests/%s/allocate", req.ID), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	allocated := decode[map[string][]id.UnitID](t, rec)
	assert.Len(t, allocated["reserved_units"], 2)

	t.Run("second allocate is invalid state", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/requests/%s/allocate", req.ID), staff, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/requests/%s/status", req.ID), staff,
		setStatusBody{Status: "fulfilled"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[request.NeedRequest](t, rec)
	assert.Equal(t, request.RequestFulfilled, updated.Status)

	t.Run("terminal transition rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/requests/%s/status", req.ID), staff,
			setStatusBody{Status: "open"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestAllocate_InsufficientInventoryOverHTTP(t *testing.T) {
	e := newEnv(t)
	staff := e.token(t, id.RoleStaff)

	rec := e.do(t, http.MethodPost, "/requests", staff,
		createRequestBody{BloodType: "AB-", Component: "platelets", UnitsNeeded: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decode[request.NeedRequest](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/requests/%s/allocate", req.ID), staff, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/requests/"+req.ID.String(), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[request.NeedRequest](t, rec)
	assert.Equal(t, request.RequestOpen, got.Status, "request stays open")
}

func TestMemberVisibilityOverHTTP(t *testing.T) {
	e := newEnv(t)
	member := e.token(t, id.RoleMember)
	otherMember := e.token(t, id.RoleMember)

	rec := e.do(t, http.MethodPost, "/requests", member,
		createRequestBody{BloodType: "B+", Component: "plasma", UnitsNeeded: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decode[request.NeedRequest](t, rec)

	rec = e.do(t, http.MethodGet, "/requests", otherMember, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]request.NeedRequest](t, rec)
	assert.Empty(t, body["requests"])

	rec = e.do(t, http.MethodGet, "/requests/"+req.ID.String(), otherMember, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	staff := e.token(t, id.RoleStaff)

	rec := e.do(t, http.MethodPost, "/matches", staff, createMatchBody{DonorID: uuid.NewString()})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decode[match.DonationMatch](t, rec)

	rec = e.do(t, http.MethodGet, "/confirm/"+m.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[match.Outcome](t, rec)
	assert.Equal(t, match.ConfirmSuccess, out.Status)

	rec = e.do(t, http.MethodGet, "/confirm/"+m.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[match.Outcome](t, rec)
	assert.Equal(t, match.ConfirmAlreadyMatched, out.Status)
}

func TestHealthzDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := healthHandler(logger, map[string]HealthChecker{
		"redis": healthFunc(func(context.Context) error { return assert.AnError }),
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }
