package agent

import (
	"context"
	"sync"
)

// MockChatModel is a scripted ChatModel for tests and demos. Each Chat
// call consumes the next response in order; when the script runs out,
// the last response repeats.
//
// Safe for concurrent use.
type MockChatModel struct {
	mu sync.Mutex

	// Responses is the script, consumed in order.
	Responses []string

	// Err, when set, is returned by every Chat call.
	Err error

	// Calls records the messages of each Chat invocation.
	Calls [][]ChatMessage

	next int
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]ChatMessage, len(messages))
	copy(copied, messages)
	m.Calls = append(m.Calls, copied)

	if m.Err != nil {
		return "", m.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++
	return m.Responses[idx], nil
}

// CallCount returns how many times Chat has been invoked.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
