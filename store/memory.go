package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store.
//
// Snapshots are serialized to JSON at Save time, so a stored
// checkpoint is immune to later mutation of the value the caller
// passed in, and Rollback always decodes from the same bytes -
// rolling back twice to one sequence number yields identical states.
//
// MemStore is safe for concurrent use. Data is lost when the process
// exits; use SQLiteStore or MySQLStore for durability.
type MemStore[S any] struct {
	mu          sync.RWMutex
	checkpoints map[string][]memRecord // conversationID -> append-only log
}

type memRecord struct {
	meta Checkpoint
	data []byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{checkpoints: make(map[string][]memRecord)}
}

// Save implements Store.
func (m *MemStore[S]) Save(ctx context.Context, conversationID string, snapshot S, label string) (Checkpoint, error) {
	if conversationID == "" {
		return Checkpoint{}, fmt.Errorf("%w: conversation id cannot be empty", ErrUnavailable)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: serialize snapshot: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meta := Checkpoint{
		ConversationID: conversationID,
		Seq:            len(m.checkpoints[conversationID]) + 1,
		Label:          label,
		CreatedAt:      time.Now().UTC(),
	}
	m.checkpoints[conversationID] = append(m.checkpoints[conversationID], memRecord{meta: meta, data: data})
	return meta, nil
}

// List implements Store.
func (m *MemStore[S]) List(ctx context.Context, conversationID string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.checkpoints[conversationID]
	metas := make([]Checkpoint, len(records))
	for i, rec := range records {
		metas[i] = rec.meta
	}
	return metas, nil
}

// Rollback implements Store.
func (m *MemStore[S]) Rollback(ctx context.Context, conversationID string, seq int) (S, error) {
	var zero S

	m.mu.RLock()
	records := m.checkpoints[conversationID]
	m.mu.RUnlock()

	if len(records) == 0 {
		return zero, fmt.Errorf("%w: conversation %q has no checkpoints", ErrNotFound, conversationID)
	}
	if seq <= 0 {
		seq = len(records)
	}
	if seq > len(records) {
		return zero, fmt.Errorf("%w: conversation %q has no sequence %d", ErrNotFound, conversationID, seq)
	}

	var state S
	if err := json.Unmarshal(records[seq-1].data, &state); err != nil {
		return zero, fmt.Errorf("%w: decode snapshot: %v", ErrUnavailable, err)
	}
	return state, nil
}
