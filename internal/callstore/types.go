package callstore

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("call not found")
	// ErrStaleTurn means the callback's turn sequence no longer matches the
	// stored turn count: either a webhook retry or an out-of-order delivery.
	ErrStaleTurn = errors.New("turn already processed")
	ErrEnded     = errors.New("call already ended")
)

// Call is the per-call session record. The call ID is the opaque identifier
// supplied by the telephony provider (e.g. the Twilio CallSid).
type Call struct {
	CallID         string    `json:"call_id"`
	TurnCount      int       `json:"turn_count"`
	Status         Status    `json:"status"`
	LastUtterance  string    `json:"last_utterance,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Store persists call sessions. Implementations must make BeginTurn an
// atomic compare-and-set so that concurrent duplicate webhook deliveries
// for the same call advance the turn count exactly once.
type Store interface {
	// Create registers a new call, or returns the existing record when the
	// provider retries the call-start webhook.
	Create(ctx context.Context, callID string) (*Call, error)

	Get(ctx context.Context, callID string) (*Call, error)

	// BeginTurn advances the turn count if and only if the call is active
	// and its stored turn count equals expectedTurn. Returns the updated
	// record, or ErrStaleTurn / ErrEnded / ErrNotFound.
	BeginTurn(ctx context.Context, callID string, expectedTurn int) (*Call, error)

	// CompleteTurn records the caller utterance for the turn and optionally
	// marks the call ended.
	CompleteTurn(ctx context.Context, callID, utterance string, ended bool) error

	// End marks the call ended regardless of turn state (hangup webhook).
	End(ctx context.Context, callID string) (*Call, error)

	// ExpireInactive ends active calls idle longer than the timeout and
	// returns how many were expired.
	ExpireInactive(ctx context.Context, idleTimeout time.Duration) (int, error)

	ActiveCount(ctx context.Context) (int, error)

	Close() error
}
