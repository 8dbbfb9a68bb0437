// Package postgres provides pgx-backed durable store implementations.
//
// Sessions are stored as one jsonb payload per crawl root:
//
//	CREATE TABLE crawl_sessions (
//	    root_key   TEXT PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// DB is the subset of pgxpool.Pool the stores need; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore persists crawl sessions in Postgres.
type SessionStore struct {
	db DB
}

// NewSessionStore connects a pool and wraps it in a SessionStore.
func NewSessionStore(ctx context.Context, dsn string) (*SessionStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	return &SessionStore{db: pool}, pool, nil
}

// NewSessionStoreWithDB wraps an existing connection, mainly for tests.
func NewSessionStoreWithDB(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get loads the session payload for rootKey.
func (s *SessionStore) Get(ctx context.Context, rootKey string) (crawl.Session, bool, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM crawl_sessions WHERE root_key = $1`,
		rootKey,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawl.Session{}, false, nil
	}
	if err != nil {
		return crawl.Session{}, false, fmt.Errorf("select session: %w", err)
	}

	var sess crawl.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return crawl.Session{}, false, fmt.Errorf("unmarshal session payload: %w", err)
	}
	if sess.Visited == nil {
		sess.Visited = make(map[string]bool)
	}
	return sess, true, nil
}

// Put upserts the session payload.
func (s *SessionStore) Put(ctx context.Context, session crawl.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session payload: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO crawl_sessions (root_key, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (root_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		session.RootKey, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes the session record for rootKey.
func (s *SessionStore) Delete(ctx context.Context, rootKey string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM crawl_sessions WHERE root_key = $1`,
		rootKey,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
