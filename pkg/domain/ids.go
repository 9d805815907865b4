// Package domain holds identifiers and value types shared across features.
//
// IDs are distinct types over uuid.UUID so the compiler rejects mixing a
// UnitID with a RequestID. Construct via the Parse helpers at trust
// boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "lifebank/pkg/domain-errors"
)

type (
	// UnitID identifies a physical blood unit in inventory.
	UnitID uuid.UUID
	// RequestID identifies a need request.
	RequestID uuid.UUID
	// MatchID identifies a donation match record. The confirmation URL does
	// not carry this ID; it carries the opaque match token.
	MatchID uuid.UUID
	// DonorID identifies a donor known to the outreach system.
	DonorID uuid.UUID
	// UserID identifies an authenticated caller (member or staff).
	UserID uuid.UUID
)

func (id UnitID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id MatchID) String() string   { return uuid.UUID(id).String() }
func (id DonorID) String() string   { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

func (id UnitID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DonorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func NewUnitID() UnitID       { return UnitID(uuid.New()) }
func NewRequestID() RequestID { return RequestID(uuid.New()) }
func NewMatchID() MatchID     { return MatchID(uuid.New()) }

// Text marshalling keeps the defined types rendering as UUID strings in JSON
// rather than raw byte arrays.

func (id UnitID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id RequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id MatchID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id DonorID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *UnitID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = UnitID(parsed)
	return nil
}

func (id *RequestID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = RequestID(parsed)
	return nil
}

func (id *MatchID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = MatchID(parsed)
	return nil
}

func (id *DonorID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = DonorID(parsed)
	return nil
}

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

// parseUUID enforces the shared invariant: valid, non-empty, non-nil UUID.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

func ParseUnitID(s string) (UnitID, error) {
	u, err := parseUUID(s)
	return UnitID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s)
	return RequestID(u), err
}

func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID(s)
	return MatchID(u), err
}

func ParseDonorID(s string) (DonorID, error) {
	u, err := parseUUID(s)
	return DonorID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}
