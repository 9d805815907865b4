package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lifebank/pkg/platform/sentinel"
)

// InMemoryStore keeps matches in a map guarded by a RWMutex. Semantics match
// the redis store; unit tests run against this one.
type InMemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*DonationMatch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{matches: make(map[string]*DonationMatch)}
}

func clone(m *DonationMatch) *DonationMatch {
	out := *m
	if m.RequestID != nil {
		requestID := *m.RequestID
		out.RequestID = &requestID
	}
	return &out
}

func (s *InMemoryStore) Create(_ context.Context, m *DonationMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[m.Token]; exists {
		return fmt.Errorf("match token already exists: %w", sentinel.ErrConflict)
	}
	s.matches[m.Token] = clone(m)
	return nil
}

func (s *InMemoryStore) GetByToken(_ context.Context, token string) (*DonationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[token]
	if !ok {
		return nil, fmt.Errorf("match: %w", sentinel.ErrNotFound)
	}
	return clone(m), nil
}

// transition is the compare-and-set: the pending check and the status write
// happen under one lock hold.
func (s *InMemoryStore) transition(token string, to MatchStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[token]
	if !ok {
		return fmt.Errorf("match: %w", sentinel.ErrNotFound)
	}
	if m.Status != MatchPending {
		return fmt.Errorf("match is %s: %w", m.Status, sentinel.ErrConflict)
	}
	m.Status = to
	m.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) Confirm(_ context.Context, token string, at time.Time) error {
	return s.transition(token, MatchConfirmed, at)
}

func (s *InMemoryStore) Expire(_ context.Context, token string, at time.Time) error {
	return s.transition(token, MatchExpired, at)
}

func (s *InMemoryStore) ListExpiring(_ context.Context, before time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for token, m := range s.matches {
		if m.Status == MatchPending && m.ExpiresAt.Before(before) {
			out = append(out, token)
		}
	}
	return out, nil
}
