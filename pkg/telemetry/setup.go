package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var ErrNoExporter = errors.New("neither OTLP nor Jaeger is configured")

// Configures OpenTelemetry for the layout engine. The returned function flushes and
// stops the tracer provider.
func Setup(ctx context.Context, config Config) (func(context.Context) error, error) {
	res, err := NewResource(config)
	if err != nil {
		return nil, err
	}

	exp, err := NewExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	tp := NewTracerProvider(exp, res)

	// Set the trace provider as the global trace provider.
	otel.SetTracerProvider(tp)

	// Context propagation for the OpenTelemetry SDK.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Creates a trace provider that samples every span and batches them to the exporter.
func NewTracerProvider(exp tracesdk.SpanExporter, res *resource.Resource) *tracesdk.TracerProvider {
	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
	)
}

// Creates the OTLP exporter if configured, the Jaeger one otherwise.
func NewExporter(ctx context.Context, config Config) (tracesdk.SpanExporter, error) {
	switch {
	case config.OTLP.Host != "":
		options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLP.Host)}
		if !config.OTLP.Secure {
			options = append(options, otlptracehttp.WithInsecure())
		}

		exp, err := otlptrace.New(ctx, otlptracehttp.NewClient(options...))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

		return exp, nil
	case config.JaegerURL != "":
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}

		return exp, nil
	default:
		return nil, ErrNoExporter
	}
}

// Creates a new resource to identify the service instance.
func NewResource(config Config) (*resource.Resource, error) {
	name := config.Package
	if name == "" {
		name = PACKAGE
	}

	instanceID := config.ID
	if instanceID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}

		instanceID = id.String()
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		attribute.String("ID", instanceID),
	), nil
}
