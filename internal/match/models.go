package match

import (
	"time"

	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// MatchStatus is the lifecycle state of a donation match.
//
// Exactly one terminal transition happens: pending→confirmed (donor follows
// the link in time) or pending→expired (the window closes first). There is no
// way back from either.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchExpired   MatchStatus = "expired"
)

func (s MatchStatus) IsTerminal() bool { return s != MatchPending }

func (s MatchStatus) String() string { return string(s) }

// DonationMatch pairs an identified donor with an outreach opportunity. The
// token in the confirmation URL is the only credential a donor presents, so
// it must be unguessable (see NewToken).
//
// Matches are never deleted; a resolved match stays around as its own audit
// record.
type DonationMatch struct {
	ID id.MatchID `json:"id"`
	// Token is the opaque credential embedded in the confirmation link.
	Token   string     `json:"token"`
	DonorID id.DonorID `json:"donor_id"`
	// RequestID is nil for a general availability match not tied to one
	// request.
	RequestID *id.RequestID `json:"request_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    MatchStatus   `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewDonationMatch validates creation input and derives the confirmation
// window from the configured match TTL.
func NewDonationMatch(
	matchID id.MatchID,
	token string,
	donorID id.DonorID,
	requestID *id.RequestID,
	ttl time.Duration,
	now time.Time,
) (*DonationMatch, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "match token cannot be empty")
	}
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "match must reference a donor")
	}
	if requestID != nil && requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "request reference cannot be the nil UUID")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "match validity window must be positive")
	}
	return &DonationMatch{
		ID:        matchID,
		Token:     token,
		DonorID:   donorID,
		RequestID: requestID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Status:    MatchPending,
		UpdatedAt: now,
	}, nil
}

// IsExpired reports whether the confirmation window has closed, regardless of
// whether the lazy expiry or the sweeper has recorded it yet.
func (m *DonationMatch) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
