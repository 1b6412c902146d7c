// Package store provides the durable, append-only checkpoint store for
// workflow state snapshots.
//
// Checkpoints are keyed by conversation id and carry strictly
// increasing per-conversation sequence numbers, giving each
// conversation a total order usable for rollback. A checkpoint is
// immutable once written: rollback is non-destructive and restoring
// the same sequence number twice yields an identical state.
//
// Backends: in-memory (testing, single process), SQLite (single file,
// zero setup), and MySQL (shared durable storage).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the durable medium could not be written or
// read. A run cannot make forward progress past a failed checkpoint
// write, so the runner treats this as terminal.
var ErrUnavailable = errors.New("checkpoint store unavailable")

// ErrNotFound indicates the conversation or sequence number does not
// exist.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the metadata of one immutable snapshot.
type Checkpoint struct {
	// ConversationID keys the checkpoint to its run.
	ConversationID string `json:"conversation_id"`

	// Seq is the per-conversation sequence number, strictly
	// increasing from 1 with no gaps introduced by the writer.
	Seq int `json:"seq"`

	// Label is an optional user-supplied name ("" for automatic
	// checkpoints).
	Label string `json:"label,omitempty"`

	// CreatedAt records when the checkpoint was written.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists state snapshots per conversation.
//
// Type parameter S is the snapshot type; it must be JSON-serializable,
// and implementations serialize on Save so the stored bytes are
// immutable regardless of what the caller later does with the value.
//
// Implementations must support concurrent appends from distinct
// conversation ids without interleaving sequence numbers across
// conversations.
type Store[S any] interface {
	// Save appends a snapshot under the next sequence number for the
	// conversation. Existing entries are never overwritten. Fails
	// with ErrUnavailable if the medium cannot be written.
	Save(ctx context.Context, conversationID string, snapshot S, label string) (Checkpoint, error)

	// List returns the conversation's checkpoint metadata in
	// ascending sequence order. A conversation with no checkpoints
	// yields an empty slice, not an error.
	List(ctx context.Context, conversationID string) ([]Checkpoint, error)

	// Rollback returns the state captured at the given sequence
	// number, or at the most recent checkpoint when seq <= 0. Fails
	// with ErrNotFound if the conversation or sequence number does
	// not exist. Rollback never deletes checkpoints.
	Rollback(ctx context.Context, conversationID string, seq int) (S, error)
}
