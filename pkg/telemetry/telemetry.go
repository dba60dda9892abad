package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const PACKAGE = "tessera"

// Attributes recorded on the spans of the layout passes.
const (
	MemberKey  = attribute.Key("tessera.member")
	PageKey    = attribute.Key("tessera.page")
	AutoKey    = attribute.Key("tessera.auto")
	StreamsKey = attribute.Key("tessera.streams")
	BatchesKey = attribute.Key("tessera.batches")
	RoomKey    = attribute.Key("tessera.break_room")
)

// Resolved through the global provider, so spans go wherever `Setup` points them to.
var tracer = otel.Tracer(PACKAGE)

// A span of a layout pass together with the context that carries it.
type Telemetry struct {
	span    trace.Span
	context context.Context //nolint:containedctx
}

func NewTelemetry(ctx context.Context, name string, attributes ...attribute.KeyValue) *Telemetry {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attributes...))
	return &Telemetry{span: span, context: ctx}
}

// Starts a span for a step of the pass, e.g. the classification or the rendering.
func (t *Telemetry) CreateChild(name string, attributes ...attribute.KeyValue) *Telemetry {
	return NewTelemetry(t.context, name, attributes...)
}

func (t *Telemetry) Context() context.Context {
	return t.context
}

func (t *Telemetry) SetAttributes(attributes ...attribute.KeyValue) {
	t.span.SetAttributes(attributes...)
}

func (t *Telemetry) AddEvent(text string, attributes ...attribute.KeyValue) {
	t.span.AddEvent(text, trace.WithAttributes(attributes...))
}

// Ends the span. A non-nil `err` marks it as failed.
func (t *Telemetry) End(err error) {
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}

	t.span.End()
}
