// Package sqlite provides a checkpoint store backed by an embedded SQLite
// database. Checkpoint state is stored as JSON; the thread's latest pointer
// lives in its own table and is advanced in the same transaction as the
// checkpoint insert.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forkline-ai/forkline"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id     TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	parent_id     TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	next_nodes    TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL,
	PRIMARY KEY (thread_id, checkpoint_id)
);

CREATE TABLE IF NOT EXISTS thread_latest (
	thread_id     TEXT PRIMARY KEY,
	checkpoint_id TEXT NOT NULL
);
`

// Store implements forkline.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the checkpoint database in dataDir. Pass
// ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "forkline.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts the checkpoint and advances the thread's latest pointer in
// one transaction. Re-putting the same checkpoint ID replaces the identical
// row, so retries are safe.
func (s *Store) Put(ctx context.Context, checkpoint *forkline.Checkpoint) error {
	stateJSON, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	nextJSON, err := json.Marshal(checkpoint.NextNodes)
	if err != nil {
		return fmt.Errorf("failed to marshal next nodes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints
		 (thread_id, checkpoint_id, parent_id, state, next_nodes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		checkpoint.ThreadID, checkpoint.ID, checkpoint.ParentID,
		string(stateJSON), string(nextJSON),
		checkpoint.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_latest (thread_id, checkpoint_id) VALUES (?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET checkpoint_id = excluded.checkpoint_id`,
		checkpoint.ThreadID, checkpoint.ID,
	); err != nil {
		return fmt.Errorf("failed to advance latest pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Get returns a checkpoint by ID, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*forkline.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, checkpoint_id, parent_id, state, next_nodes, created_at
		 FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?`,
		threadID, checkpointID)
	return scanCheckpoint(row)
}

// Latest returns the thread's most recent checkpoint, or nil for an unknown
// thread.
func (s *Store) Latest(ctx context.Context, threadID string) (*forkline.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.thread_id, c.checkpoint_id, c.parent_id, c.state, c.next_nodes, c.created_at
		 FROM checkpoints c
		 JOIN thread_latest l ON l.thread_id = c.thread_id AND l.checkpoint_id = c.checkpoint_id
		 WHERE c.thread_id = ?`,
		threadID)
	return scanCheckpoint(row)
}

// DeleteThread removes the thread's checkpoints and latest pointer.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_latest WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete latest pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func scanCheckpoint(row *sql.Row) (*forkline.Checkpoint, error) {
	var (
		checkpoint forkline.Checkpoint
		stateJSON  string
		nextJSON   string
		createdAt  string
	)
	err := row.Scan(&checkpoint.ThreadID, &checkpoint.ID, &checkpoint.ParentID,
		&stateJSON, &nextJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &checkpoint.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	if err := json.Unmarshal([]byte(nextJSON), &checkpoint.NextNodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal next nodes: %w", err)
	}
	checkpoint.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint timestamp: %w", err)
	}
	return &checkpoint, nil
}
