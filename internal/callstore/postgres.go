package callstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call sessions in PostgreSQL so duplicate webhook
// deliveries are guarded even across multiple service instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			call_id TEXT PRIMARY KEY,
			turn_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			last_utterance TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_status_activity ON calls (status, last_activity_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, callID string) (*Call, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (call_id, status, started_at, last_activity_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (call_id) DO NOTHING`,
		callID, StatusActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}
	return s.Get(ctx, callID)
}

func (s *PostgresStore) Get(ctx context.Context, callID string) (*Call, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT call_id, turn_count, status, last_utterance, started_at, last_activity_at
		 FROM calls WHERE call_id=$1`,
		callID,
	)
	var c Call
	if err := row.Scan(&c.CallID, &c.TurnCount, &c.Status, &c.LastUtterance, &c.StartedAt, &c.LastActivityAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) BeginTurn(ctx context.Context, callID string, expectedTurn int) (*Call, error) {
	// The conditional UPDATE is the at-most-once guard: only one delivery
	// of a given turn sequence can match the WHERE clause.
	row := s.pool.QueryRow(ctx,
		`UPDATE calls
		 SET turn_count = turn_count + 1, last_activity_at = now()
		 WHERE call_id=$1 AND status=$2 AND turn_count=$3
		 RETURNING call_id, turn_count, status, last_utterance, started_at, last_activity_at`,
		callID, StatusActive, expectedTurn,
	)
	var c Call
	err := row.Scan(&c.CallID, &c.TurnCount, &c.Status, &c.LastUtterance, &c.StartedAt, &c.LastActivityAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("begin turn: %w", err)
	}

	// Distinguish why the guard rejected.
	existing, getErr := s.Get(ctx, callID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Status != StatusActive {
		return nil, ErrEnded
	}
	return nil, ErrStaleTurn
}

func (s *PostgresStore) CompleteTurn(ctx context.Context, callID, utterance string, ended bool) error {
	// Ended is terminal: a hangup webhook or the janitor may have ended the
	// call while this turn was in flight, and completing the turn must never
	// flip it back to active.
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls
		 SET last_utterance=$2,
		     status=CASE WHEN $3 THEN $4::text ELSE status END,
		     last_activity_at=now()
		 WHERE call_id=$1`,
		callID, utterance, ended, StatusEnded,
	)
	if err != nil {
		return fmt.Errorf("complete turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) End(ctx context.Context, callID string) (*Call, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE calls SET status=$2, last_activity_at=now() WHERE call_id=$1
		 RETURNING call_id, turn_count, status, last_utterance, started_at, last_activity_at`,
		callID, StatusEnded,
	)
	var c Call
	if err := row.Scan(&c.CallID, &c.TurnCount, &c.Status, &c.LastUtterance, &c.StartedAt, &c.LastActivityAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("end call: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ExpireInactive(ctx context.Context, idleTimeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idleTimeout)
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET status=$1, last_activity_at=now()
		 WHERE status=$2 AND last_activity_at < $3`,
		StatusEnded, StatusActive, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("expire calls: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ActiveCount(ctx context.Context) (int, error) {
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM calls WHERE status=$1`, StatusActive)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active calls: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
