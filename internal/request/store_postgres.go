package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/sentinel"
)

// PostgresStore persists need requests in PostgreSQL. Status transitions are
// guarded UPDATEs (`WHERE status = <from>`); the row count tells us whether
// the compare-and-set won.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the need_requests table. Applied by migrations
// in deployment; integration tests execute it directly.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS need_requests (
	id             UUID PRIMARY KEY,
	requested_by   UUID NOT NULL,
	blood_type     TEXT NOT NULL,
	component      TEXT NOT NULL,
	units_needed   INTEGER NOT NULL CHECK (units_needed > 0),
	reason         TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	assigned_units TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	deadline       TIMESTAMPTZ NOT NULL,
	decided_at     TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_need_requests_status
	ON need_requests (status, deadline);
CREATE INDEX IF NOT EXISTS idx_need_requests_requester
	ON need_requests (requested_by, created_at DESC);
`
}

func (s *PostgresStore) Create(ctx context.Context, req *NeedRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO need_requests (id, requested_by, blood_type, component, units_needed, reason, status, assigned_units, created_at, deadline, decided_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID.String(), req.RequestedBy.String(), req.BloodType.String(), req.Component.String(),
		req.UnitsNeeded, req.Reason, string(req.Status), pq.Array(unitIDStrings(req.AssignedUnits)),
		req.CreatedAt, req.Deadline, req.DecidedAt, req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("request %s already exists: %w", req.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*NeedRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, requested_by, blood_type, component, units_needed, reason, status, assigned_units, created_at, deadline, decided_at, updated_at
		FROM need_requests WHERE id = $1`, requestID.String())
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return req, err
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*NeedRequest, error) {
	query := `
		SELECT id, requested_by, blood_type, component, units_needed, reason, status, assigned_units, created_at, deadline, decided_at, updated_at
		FROM need_requests WHERE 1=1`
	var args []any
	if !filter.RequestedBy.IsNil() {
		args = append(args, filter.RequestedBy.String())
		query += fmt.Sprintf(" AND requested_by = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*NeedRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Assign(ctx context.Context, requestID id.RequestID, unitIDs []id.UnitID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE need_requests
		SET status = $1, assigned_units = $2, decided_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(RequestAssigned), pq.Array(unitIDStrings(unitIDs)), at,
		requestID.String(), string(RequestOpen),
	)
	if err != nil {
		return fmt.Errorf("assign request: %w", err)
	}
	return s.checkGuard(ctx, res, requestID, RequestOpen)
}

func (s *PostgresStore) SetStatus(ctx context.Context, requestID id.RequestID, from, to RequestStatus, at time.Time) error {
	query := `
		UPDATE need_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`
	if to == RequestOpen {
		query = `
		UPDATE need_requests SET status = $1, updated_at = $2, assigned_units = '{}', decided_at = NULL
		WHERE id = $3 AND status = $4`
	} else if to.IsTerminal() {
		query = `
		UPDATE need_requests SET status = $1, updated_at = $2, decided_at = $2
		WHERE id = $3 AND status = $4`
	}
	res, err := s.db.ExecContext(ctx, query, string(to), at, requestID.String(), string(from))
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	return s.checkGuard(ctx, res, requestID, from)
}

// checkGuard distinguishes a missing row from a row whose status no longer
// matches the guard.
func (s *PostgresStore) checkGuard(ctx context.Context, res sql.Result, requestID id.RequestID, from RequestStatus) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM need_requests WHERE id = $1`, requestID.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	return fmt.Errorf("request %s is %s, expected %s: %w", requestID, current, from, sentinel.ErrConflict)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, requestIDs []id.RequestID, at time.Time) (int, error) {
	if len(requestIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(requestIDs))
	for i, requestID := range requestIDs {
		ids[i] = requestID.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE need_requests SET status = $1, decided_at = $2, updated_at = $2
		WHERE id = ANY($3) AND status NOT IN ($4, $5)`,
		string(RequestExpired), at, pq.Array(ids),
		string(RequestFulfilled), string(RequestExpired),
	)
	if err != nil {
		return 0, fmt.Errorf("mark requests expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark requests expired: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) ListExpiring(ctx context.Context, before time.Time) ([]id.RequestID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM need_requests
		WHERE deadline < $1 AND status NOT IN ($2, $3)`,
		before, string(RequestFulfilled), string(RequestExpired),
	)
	if err != nil {
		return nil, fmt.Errorf("list expiring requests: %w", err)
	}
	defer rows.Close()

	var out []id.RequestID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		requestID, err := id.ParseRequestID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt request id %q: %w", raw, err)
		}
		out = append(out, requestID)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, requestID id.RequestID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM need_requests WHERE id = $1`, requestID.String())
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*NeedRequest, error) {
	var req NeedRequest
	var rawID, rawRequester, bloodType, component, status string
	var rawUnits pq.StringArray
	var decidedAt sql.NullTime
	if err := row.Scan(&rawID, &rawRequester, &bloodType, &component, &req.UnitsNeeded,
		&req.Reason, &status, &rawUnits, &req.CreatedAt, &req.Deadline, &decidedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	requestID, err := id.ParseRequestID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt request id %q: %w", rawID, err)
	}
	requester, err := id.ParseUserID(rawRequester)
	if err != nil {
		return nil, fmt.Errorf("corrupt requester id %q: %w", rawRequester, err)
	}
	req.ID = requestID
	req.RequestedBy = requester
	req.BloodType = id.BloodType(bloodType)
	req.Component = id.Component(component)
	req.Status = RequestStatus(status)
	for _, raw := range rawUnits {
		unitID, err := id.ParseUnitID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit id %q: %w", raw, err)
		}
		req.AssignedUnits = append(req.AssignedUnits, unitID)
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	return &req, nil
}

func unitIDStrings(unitIDs []id.UnitID) []string {
	out := make([]string, len(unitIDs))
	for i, unitID := range unitIDs {
		out[i] = unitID.String()
	}
	return out
}
