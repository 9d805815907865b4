package inventory

import (
	"time"

	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// UnitStatus is the lifecycle state of a blood unit.
//
// Transitions: available→reserved (allocator), reserved→consumed (fulfilment),
// reserved→available (rollback), any non-terminal→expired (sweeper).
// Consumed and expired are terminal.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitConsumed  UnitStatus = "consumed"
	UnitExpired   UnitStatus = "expired"
)

var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitAvailable: {UnitReserved, UnitExpired},
	UnitReserved:  {UnitConsumed, UnitAvailable, UnitExpired},
	UnitConsumed:  {},
	UnitExpired:   {},
}

// CanTransitionTo consults the transition table.
func (s UnitStatus) CanTransitionTo(target UnitStatus) bool {
	for _, allowed := range unitTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no outgoing transitions exist.
func (s UnitStatus) IsTerminal() bool {
	return len(unitTransitions[s]) == 0
}

func (s UnitStatus) String() string { return string(s) }

// BloodUnit is a physical donated unit in inventory.
//
// Invariants:
//   - VolumeML is positive
//   - ExpiresAt is strictly after AddedAt
//   - a consumed or expired unit is never returned by allocation queries
type BloodUnit struct {
	ID        id.UnitID     `json:"id"`
	BloodType id.BloodType  `json:"blood_type"`
	Component id.Component  `json:"component"`
	VolumeML  int           `json:"volume_ml"`
	AddedAt   time.Time     `json:"added_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    UnitStatus    `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewBloodUnit validates intake input and derives ExpiresAt from the
// component shelf life.
func NewBloodUnit(
	unitID id.UnitID,
	bloodType id.BloodType,
	component id.Component,
	volumeML int,
	addedAt time.Time,
	shelfLife time.Duration,
	now time.Time,
) (*BloodUnit, error) {
	if !bloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid blood type: "+bloodType.String())
	}
	if !component.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid component: "+component.String())
	}
	if volumeML <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "volume must be positive")
	}
	if addedAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "intake date cannot be in the future")
	}
	if shelfLife <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "shelf life must be positive")
	}
	return &BloodUnit{
		ID:        unitID,
		BloodType: bloodType,
		Component: component,
		VolumeML:  volumeML,
		AddedAt:   addedAt,
		ExpiresAt: addedAt.Add(shelfLife),
		Status:    UnitAvailable,
		UpdatedAt: now,
	}, nil
}

// IsExpired reports whether the unit is past its expiry deadline.
func (u *BloodUnit) IsExpired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// SummaryLevel classifies stock health for one type/component pair.
type SummaryLevel string

const (
	LevelSufficient SummaryLevel = "sufficient"
	LevelMedium     SummaryLevel = "medium"
	LevelCritical   SummaryLevel = "critical"
)

// SummaryKey groups available units for the summary view.
type SummaryKey struct {
	BloodType id.BloodType
	Component id.Component
}

// SummaryRow is one line of the derived stock overview. It is recomputed on
// demand, never persisted.
type SummaryRow struct {
	BloodType id.BloodType `json:"blood_type"`
	Component id.Component `json:"component"`
	Available int          `json:"available"`
	Level     SummaryLevel `json:"level"`
}
