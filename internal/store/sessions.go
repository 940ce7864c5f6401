// Package store persists session activity so operators can see which
// conversations are live across gateway restarts. The conversation history
// itself lives with the agent backend; this is bookkeeping only.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRecord is one row of session activity.
type SessionRecord struct {
	Key          string
	AgentID      string
	Channel      string
	ChatID       string
	MessageCount int64
	LastActive   time.Time
}

// SessionStore tracks per-session activity in a local sqlite database.
type SessionStore struct {
	db *sql.DB
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	key           TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL DEFAULT '',
	channel       TEXT NOT NULL DEFAULT '',
	chat_id       TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	last_active   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active DESC);
`

// Open creates or opens the session database at path, creating parent
// directories as needed.
func Open(path string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// sqlite handles one writer; a larger pool just queues on the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sessionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Touch records one message of activity for a session key.
func (s *SessionStore) Touch(ctx context.Context, key, agentID, channel, chatID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, agent_id, channel, chat_id, message_count, last_active)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			message_count = message_count + 1,
			last_active = excluded.last_active`,
		key, agentID, channel, chatID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: touch session: %w", err)
	}
	return nil
}

// List returns sessions ordered by recency, newest first.
func (s *SessionStore) List(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, agent_id, channel, chat_id, message_count, last_active
		FROM sessions ORDER BY last_active DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var lastActive int64
		if err := rows.Scan(&rec.Key, &rec.AgentID, &rec.Channel, &rec.ChatID,
			&rec.MessageCount, &lastActive); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		rec.LastActive = time.Unix(lastActive, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one session record, or nil when the key is unknown.
func (s *SessionStore) Get(ctx context.Context, key string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, agent_id, channel, chat_id, message_count, last_active
		FROM sessions WHERE key = ?`, key)

	var rec SessionRecord
	var lastActive int64
	err := row.Scan(&rec.Key, &rec.AgentID, &rec.Channel, &rec.ChatID,
		&rec.MessageCount, &lastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	rec.LastActive = time.Unix(lastActive, 0)
	return &rec, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
