package callstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCreateIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first, err := s.Create(ctx, "CA123")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.Status != StatusActive || first.TurnCount != 0 {
		t.Fatalf("unexpected new call state: %+v", first)
	}

	again, err := s.Create(ctx, "CA123")
	if err != nil {
		t.Fatalf("Create() retry error = %v", err)
	}
	if !again.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("retried create replaced the record")
	}
}

func TestBeginTurnGuardsDuplicates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c, err := s.BeginTurn(ctx, "CA123", 0)
	if err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}
	if c.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", c.TurnCount)
	}

	if _, err := s.BeginTurn(ctx, "CA123", 0); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("duplicate BeginTurn error = %v, want ErrStaleTurn", err)
	}
}

func TestBeginTurnConcurrentDuplicatesAdvanceOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const deliveries = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.BeginTurn(ctx, "CA123", 0); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("winning deliveries = %d, want 1", won)
	}
	c, err := s.Get(ctx, "CA123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", c.TurnCount)
	}
}

func TestBeginTurnOnEndedCall(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.End(ctx, "CA123"); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, err := s.BeginTurn(ctx, "CA123", 0); !errors.Is(err, ErrEnded) {
		t.Fatalf("BeginTurn on ended call error = %v, want ErrEnded", err)
	}
}

func TestCompleteTurnEndsCall(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.BeginTurn(ctx, "CA123", 0); err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}
	if err := s.CompleteTurn(ctx, "CA123", "goodbye", true); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}

	c, err := s.Get(ctx, "CA123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", c.Status, StatusEnded)
	}
	if c.LastUtterance != "goodbye" {
		t.Fatalf("LastUtterance = %q, want %q", c.LastUtterance, "goodbye")
	}
}

func TestCompleteTurnNeverRevivesEndedCall(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.BeginTurn(ctx, "CA123", 0); err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}

	// Hangup webhook lands while the turn is still in flight.
	if _, err := s.End(ctx, "CA123"); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if err := s.CompleteTurn(ctx, "CA123", "still talking", false); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}

	c, err := s.Get(ctx, "CA123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.Status != StatusEnded {
		t.Fatalf("Status = %q after in-flight hangup, want %q", c.Status, StatusEnded)
	}
	if _, err := s.BeginTurn(ctx, "CA123", 1); !errors.Is(err, ErrEnded) {
		t.Fatalf("BeginTurn after hangup error = %v, want ErrEnded", err)
	}
}

func TestExpireInactive(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if _, err := s.Create(ctx, "CA123"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	expired, err := s.ExpireInactive(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ExpireInactive() error = %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	c, err := s.Get(ctx, "CA123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", c.Status, StatusEnded)
	}

	active, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("ActiveCount() error = %v", err)
	}
	if active != 0 {
		t.Fatalf("ActiveCount = %d, want 0", active)
	}
}
