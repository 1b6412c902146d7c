package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store: a single-file database with
// zero setup, suited to development and single-process deployments.
//
// WAL mode is enabled for concurrent reads, and the per-conversation
// sequence number is assigned inside the insert transaction, so
// concurrent appends from distinct conversations never interleave
// numbering.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path
// and ensures the schema exists. Use ":memory:" for tests.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// The sqlite driver supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &SQLiteStore[S]{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}

// Save implements Store. The next sequence number is computed and the
// row inserted in one transaction; the primary key makes overwriting
// an existing entry impossible.
func (s *SQLiteStore[S]) Save(ctx context.Context, conversationID string, snapshot S, label string) (Checkpoint, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: serialize snapshot: %v", ErrUnavailable, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: begin transaction: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE conversation_id = ?",
		conversationID,
	).Scan(&seq)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: next sequence: %v", ErrUnavailable, err)
	}

	createdAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO checkpoints (conversation_id, seq, label, state, created_at) VALUES (?, ?, ?, ?, ?)",
		conversationID, seq, label, string(data), createdAt,
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: insert checkpoint: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: commit checkpoint: %v", ErrUnavailable, err)
	}

	return Checkpoint{
		ConversationID: conversationID,
		Seq:            seq,
		Label:          label,
		CreatedAt:      createdAt,
	}, nil
}

// List implements Store.
func (s *SQLiteStore[S]) List(ctx context.Context, conversationID string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, label, created_at FROM checkpoints WHERE conversation_id = ? ORDER BY seq ASC",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	checkpoints := make([]Checkpoint, 0)
	for rows.Next() {
		cp := Checkpoint{ConversationID: conversationID}
		if err := rows.Scan(&cp.Seq, &cp.Label, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan checkpoint: %v", ErrUnavailable, err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %v", ErrUnavailable, err)
	}
	return checkpoints, nil
}

// Rollback implements Store.
func (s *SQLiteStore[S]) Rollback(ctx context.Context, conversationID string, seq int) (S, error) {
	var zero S

	var row *sql.Row
	if seq <= 0 {
		row = s.db.QueryRowContext(ctx,
			"SELECT state FROM checkpoints WHERE conversation_id = ? ORDER BY seq DESC LIMIT 1",
			conversationID,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			"SELECT state FROM checkpoints WHERE conversation_id = ? AND seq = ?",
			conversationID, seq,
		)
	}

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%w: conversation %q seq %d", ErrNotFound, conversationID, seq)
		}
		return zero, fmt.Errorf("%w: load checkpoint: %v", ErrUnavailable, err)
	}

	var state S
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return zero, fmt.Errorf("%w: decode snapshot: %v", ErrUnavailable, err)
	}
	return state, nil
}
