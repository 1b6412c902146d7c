package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span.
//
// Spans are named after the event message and carry the conversation
// id, step, and node id as attributes, plus every Meta entry. Events
// represent points in time, so spans are ended immediately; the span
// processor batches them for export. An "error" Meta entry sets the
// span status to error.
//
// Usage:
//
//	tracer := otel.Tracer("agentwalk")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter over the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("conversation_id", event.ConversationID),
		attribute.Int("step", event.Step),
		attribute.String("node_id", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// metaAttribute converts a Meta entry to a typed span attribute,
// falling back to its string form for unhandled types.
func metaAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
