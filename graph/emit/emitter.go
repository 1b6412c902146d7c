// Package emit defines the observability event stream produced during
// workflow execution and pluggable backends that consume it.
package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be non-blocking, safe for concurrent use from
// independent runs, and resilient: Emit must never panic and a failing
// backend must never fail the workflow.
type Emitter interface {
	// Emit sends one event to the configured backend.
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event Event) { f(event) }
