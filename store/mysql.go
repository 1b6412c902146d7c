package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store for deployments that need shared
// durable storage across processes.
//
// The DSN must include parseTime=true so created_at scans into
// time.Time. Sequence assignment takes a row lock on the
// conversation's latest entry (SELECT ... FOR UPDATE), so concurrent
// appends to one conversation serialize while distinct conversations
// proceed independently.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL and ensures the schema exists.
//
// Example DSN: "user:pass@tcp(localhost:3306)/agentwalk?parseTime=true"
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			conversation_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			label VARCHAR(255) NOT NULL DEFAULT '',
			state LONGTEXT NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &MySQLStore[S]{db: db}, nil
}

// Close releases the connection pool.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}

// Save implements Store.
func (s *MySQLStore[S]) Save(ctx context.Context, conversationID string, snapshot S, label string) (Checkpoint, error) {
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
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE conversation_id = ? FOR UPDATE",
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
func (s *MySQLStore[S]) List(ctx context.Context, conversationID string) ([]Checkpoint, error) {
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
func (s *MySQLStore[S]) Rollback(ctx context.Context, conversationID string, seq int) (S, error) {
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
