package callstore

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps call sessions in process memory for single-node
// deployments and tests.
type InMemoryStore struct {
	mu    sync.Mutex
	calls map[string]*Call
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{calls: make(map[string]*Call)}
}

func (s *InMemoryStore) Create(_ context.Context, callID string) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.calls[callID]; ok {
		return clone(existing), nil
	}
	now := time.Now().UTC()
	c := &Call{
		CallID:         callID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	s.calls[callID] = c
	return clone(c), nil
}

func (s *InMemoryStore) Get(_ context.Context, callID string) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) BeginTurn(_ context.Context, callID string, expectedTurn int) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != StatusActive {
		return nil, ErrEnded
	}
	if c.TurnCount != expectedTurn {
		return nil, ErrStaleTurn
	}
	c.TurnCount++
	c.LastActivityAt = time.Now().UTC()
	return clone(c), nil
}

func (s *InMemoryStore) CompleteTurn(_ context.Context, callID, utterance string, ended bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.LastUtterance = utterance
	if ended {
		c.Status = StatusEnded
	}
	c.LastActivityAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) End(_ context.Context, callID string) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = StatusEnded
	c.LastActivityAt = time.Now().UTC()
	return clone(c), nil
}

func (s *InMemoryStore) ExpireInactive(_ context.Context, idleTimeout time.Duration) (int, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for _, c := range s.calls {
		if c.Status != StatusActive {
			continue
		}
		if now.Sub(c.LastActivityAt) < idleTimeout {
			continue
		}
		c.Status = StatusEnded
		c.LastActivityAt = now
		expired++
	}
	return expired, nil
}

func (s *InMemoryStore) ActiveCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.calls {
		if c.Status == StatusActive {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) Close() error { return nil }

func clone(c *Call) *Call {
	out := *c
	return &out
}
