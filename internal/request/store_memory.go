package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in a map guarded by a RWMutex. Semantics match
// the postgres store; unit tests run against this one.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*NeedRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*NeedRequest)}
}

func clone(req *NeedRequest) *NeedRequest {
	out := *req
	if req.AssignedUnits != nil {
		out.AssignedUnits = append([]id.UnitID(nil), req.AssignedUnits...)
	}
	if req.DecidedAt != nil {
		decidedAt := *req.DecidedAt
		out.DecidedAt = &decidedAt
	}
	return &out
}

func (s *InMemoryStore) Create(_ context.Context, req *NeedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists: %w", req.ID, sentinel.ErrConflict)
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, requestID id.RequestID) (*NeedRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return clone(req), nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*NeedRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*NeedRequest
	for _, req := range s.requests {
		if !filter.RequestedBy.IsNil() && req.RequestedBy != filter.RequestedBy {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, clone(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Assign(_ context.Context, requestID id.RequestID, unitIDs []id.UnitID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Status != RequestOpen {
		return fmt.Errorf("request %s is %s: %w", requestID, req.Status, sentinel.ErrConflict)
	}
	req.Status = RequestAssigned
	req.AssignedUnits = append([]id.UnitID(nil), unitIDs...)
	decidedAt := at
	req.DecidedAt = &decidedAt
	req.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, requestID id.RequestID, from, to RequestStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Status != from {
		return fmt.Errorf("request %s is %s, expected %s: %w", requestID, req.Status, from, sentinel.ErrConflict)
	}
	req.Status = to
	req.UpdatedAt = at
	if to == RequestOpen {
		req.AssignedUnits = nil
		req.DecidedAt = nil
	} else if to.IsTerminal() {
		decidedAt := at
		req.DecidedAt = &decidedAt
	}
	return nil
}

func (s *InMemoryStore) MarkExpired(_ context.Context, requestIDs []id.RequestID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, requestID := range requestIDs {
		req, ok := s.requests[requestID]
		if !ok {
			continue // already deleted; expiry is idempotent
		}
		if req.Status.IsTerminal() {
			continue
		}
		req.Status = RequestExpired
		decidedAt := at
		req.DecidedAt = &decidedAt
		req.UpdatedAt = at
		expired++
	}
	return expired, nil
}

func (s *InMemoryStore) ListExpiring(_ context.Context, before time.Time) ([]id.RequestID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []id.RequestID
	for _, req := range s.requests {
		if req.Status.IsTerminal() {
			continue
		}
		if req.Deadline.Before(before) {
			out = append(out, req.ID)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	delete(s.requests, requestID)
	return nil
}
