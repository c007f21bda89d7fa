// Package sqliteadapter is a single-node pipeline state store for local runs
// where Postgres is not available.
package sqliteadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const stateTable = "pipeline_state"

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type StateStore struct {
	db    *sql.DB
	clock ports.Clock
}

// OpenStateStore opens or creates the database at path.
func OpenStateStore(path string, clock ports.Clock) (*StateStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS pipeline_state (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS pipeline_state_expires_at ON pipeline_state (expires_at);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if clock == nil {
		clock = systemClock{}
	}
	return &StateStore{db: db, clock: clock}, nil
}

func (s *StateStore) Close() error {
	return s.db.Close()
}

func (s *StateStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := s.clock.Now().UTC().Add(ttl)
	query, args, err := sq.Insert(stateTable).
		Columns("key", "value", "expires_at").
		Values(key, value, expiresAt.UnixNano()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build state upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

func (s *StateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := sq.Select("value").
		From(stateTable).
		Where(sq.Eq{"key": key}).
		Where(sq.Gt{"expires_at": s.clock.Now().UTC().UnixNano()}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build state select: %w", err)
	}

	var value []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read state: %w", err)
	}
	return value, true, nil
}

func (s *StateStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query, args, err := sq.Delete(stateTable).
		Where(sq.LtOrEq{"expires_at": now.UTC().UnixNano()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build state purge: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
