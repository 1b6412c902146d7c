package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes events to a writer as structured log lines.
//
// Two output modes:
//   - text (default): one human-readable line per event,
//     `[node_complete] conversation=demo-1 step=2 node=processing`
//   - JSON: one JSON object per line (JSONL)
//
// Writes are serialized with a mutex so events from concurrent runs do
// not interleave mid-line.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		ConversationID string         `json:"conversation_id"`
		Step           int            `json:"step"`
		NodeID         string         `json:"node_id"`
		Msg            string         `json:"msg"`
		Meta           map[string]any `json:"meta,omitempty"`
	}{event.ConversationID, event.Step, event.NodeID, event.Msg, event.Meta})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] conversation=%s step=%d node=%s",
		event.Msg, event.ConversationID, event.Step, event.NodeID)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
