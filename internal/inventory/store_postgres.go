package inventory

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

// PostgresStore persists blood units in PostgreSQL. Status transitions are
// guarded UPDATEs (`WHERE status = <from>`): the row count tells us whether
// the compare-and-set won, and batch transitions roll back inside one
// transaction when any unit misses its guard.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema returns the DDL for the blood_units table. Applied by migrations in
// deployment; integration tests execute it directly.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS blood_units (
	id         UUID PRIMARY KEY,
	blood_type TEXT NOT NULL,
	component  TEXT NOT NULL,
	volume_ml  INTEGER NOT NULL CHECK (volume_ml > 0),
	added_at   TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL CHECK (expires_at > added_at),
	status     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blood_units_fefo
	ON blood_units (blood_type, component, status, expires_at);
`
}

func (s *PostgresStore) Add(ctx context.Context, unit *BloodUnit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blood_units (id, blood_type, component, volume_ml, added_at, expires_at, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		unit.ID.String(), unit.BloodType.String(), unit.Component.String(),
		unit.VolumeML, unit.AddedAt, unit.ExpiresAt, string(unit.Status), unit.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("unit %s already exists: %w", unit.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, unitID id.UnitID) (*BloodUnit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, blood_type, component, volume_ml, added_at, expires_at, status, updated_at
		FROM blood_units WHERE id = $1`, unitID.String())
	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	return unit, err
}

func (s *PostgresStore) QueryAvailable(ctx context.Context, bloodType id.BloodType, component id.Component, now time.Time) ([]*BloodUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, blood_type, component, volume_ml, added_at, expires_at, status, updated_at
		FROM blood_units
		WHERE blood_type = $1 AND component = $2 AND status = $3 AND expires_at > $4
		ORDER BY expires_at ASC`,
		bloodType.String(), component.String(), string(UnitAvailable), now,
	)
	if err != nil {
		return nil, fmt.Errorf("query available units: %w", err)
	}
	defer rows.Close()

	var out []*BloodUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

// transition runs a status-guarded batch update in one transaction. When the
// guarded UPDATE covers fewer rows than the batch, the transaction rolls back
// so no unit keeps a partial transition.
func (s *PostgresStore) transition(ctx context.Context, unitIDs []id.UnitID, from UnitStatus, to UnitStatus, conflictErr error) error {
	if len(unitIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE blood_units SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status = $4`,
		string(to), time.Now(), pq.Array(idStrings(unitIDs)), string(from),
	)
	if err != nil {
		return fmt.Errorf("transition units: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition units: %w", err)
	}
	if affected != int64(len(unitIDs)) {
		return fmt.Errorf("%d of %d units were not %s: %w", int64(len(unitIDs))-affected, len(unitIDs), from, conflictErr)
	}
	return tx.Commit()
}

// Reserve takes each unit with its own guarded UPDATE and rolls back the
// units already taken when one misses its guard. The atomicity scope stays a
// single row; all-or-nothing comes from the rollback, not a batch lock.
func (s *PostgresStore) Reserve(ctx context.Context, unitIDs []id.UnitID) error {
	var taken []id.UnitID
	for _, unitID := range unitIDs {
		res, err := s.db.ExecContext(ctx, `
			UPDATE blood_units SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4`,
			string(UnitReserved), time.Now(), unitID.String(), string(UnitAvailable),
		)
		if err == nil {
			var affected int64
			if affected, err = res.RowsAffected(); err == nil && affected == 0 {
				err = fmt.Errorf("unit %s is not available: %w", unitID, sentinel.ErrConflict)
			}
		}
		if err != nil {
			if releaseErr := s.Release(ctx, taken); releaseErr != nil {
				return fmt.Errorf("rollback of partial reservation failed: %v: %w", releaseErr, err)
			}
			return err
		}
		taken = append(taken, unitID)
	}
	return nil
}

func (s *PostgresStore) Consume(ctx context.Context, unitIDs []id.UnitID) error {
	return s.transition(ctx, unitIDs, UnitReserved, UnitConsumed, sentinel.ErrInvalidState)
}

func (s *PostgresStore) Release(ctx context.Context, unitIDs []id.UnitID) error {
	return s.transition(ctx, unitIDs, UnitReserved, UnitAvailable, sentinel.ErrInvalidState)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, unitIDs []id.UnitID) (int, error) {
	if len(unitIDs) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE blood_units SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status NOT IN ($4, $5)`,
		string(UnitExpired), time.Now(), pq.Array(idStrings(unitIDs)),
		string(UnitConsumed), string(UnitExpired),
	)
	if err != nil {
		return 0, fmt.Errorf("mark units expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark units expired: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) ListExpiring(ctx context.Context, before time.Time) ([]id.UnitID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM blood_units
		WHERE expires_at < $1 AND status NOT IN ($2, $3)`,
		before, string(UnitConsumed), string(UnitExpired),
	)
	if err != nil {
		return nil, fmt.Errorf("list expiring units: %w", err)
	}
	defer rows.Close()

	var out []id.UnitID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		unitID, err := id.ParseUnitID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit id %q: %w", raw, err)
		}
		out = append(out, unitID)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Remove(ctx context.Context, unitID id.UnitID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blood_units WHERE id = $1`, unitID.String())
	if err != nil {
		return fmt.Errorf("remove unit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove unit: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %s: %w", unitID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CountAvailable(ctx context.Context, now time.Time) (map[SummaryKey]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT blood_type, component, COUNT(*)
		FROM blood_units
		WHERE status = $1 AND expires_at > $2
		GROUP BY blood_type, component`,
		string(UnitAvailable), now,
	)
	if err != nil {
		return nil, fmt.Errorf("count available units: %w", err)
	}
	defer rows.Close()

	counts := make(map[SummaryKey]int)
	for rows.Next() {
		var bloodType, component string
		var n int
		if err := rows.Scan(&bloodType, &component, &n); err != nil {
			return nil, err
		}
		counts[SummaryKey{BloodType: id.BloodType(bloodType), Component: id.Component(component)}] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*BloodUnit, error) {
	var unit BloodUnit
	var rawID, bloodType, component, status string
	if err := row.Scan(&rawID, &bloodType, &component, &unit.VolumeML,
		&unit.AddedAt, &unit.ExpiresAt, &status, &unit.UpdatedAt); err != nil {
		return nil, err
	}
	unitID, err := id.ParseUnitID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt unit id %q: %w", rawID, err)
	}
	unit.ID = unitID
	unit.BloodType = id.BloodType(bloodType)
	unit.Component = id.Component(component)
	unit.Status = UnitStatus(status)
	return &unit, nil
}

func idStrings(unitIDs []id.UnitID) []string {
	out := make([]string, len(unitIDs))
	for i, unitID := range unitIDs {
		out[i] = unitID.String()
	}
	return out
}
