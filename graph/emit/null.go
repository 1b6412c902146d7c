package emit

// NullEmitter discards all events. Use it to disable event emission
// without changing wiring code; it is safe for concurrent use and has
// no overhead.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
