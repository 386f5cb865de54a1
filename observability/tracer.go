package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/flowkit/logger"
)

const instrumentation = "github.com/kbukum/flowkit"

// Span names and attribute keys used by workflow execution.
const (
	SpanRun  = "workflow.run"
	SpanTask = "task.invoke"

	AttrRunID    = "workflow.run_id"
	AttrNodeID   = "workflow.node_id"
	AttrNodeType = "workflow.node_type"
	AttrTaskKind = "task.kind"
	AttrAttempts = "task.attempts"
	AttrStatus   = "status"
)

// Target is where telemetry goes and what it says about the service.
type Target struct {
	Service     string
	Version     string
	Environment string
	// Endpoint is an OTLP/HTTP host:port, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
}

func (t Target) resource() (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(t.Service),
		semconv.ServiceVersion(t.Version),
		semconv.DeploymentEnvironment(t.Environment),
	))
}

// installPropagator sets W3C trace context and baggage as the global
// propagator. It runs even with export disabled, so a caller's trace id
// still reaches the remote task runner.
func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// InitTracer installs a batching OTLP tracer provider globally. Root
// spans are sampled at sampleRate; a span with a remote parent follows
// the parent's decision.
func InitTracer(ctx context.Context, t Target, sampleRate float64, log *logger.Logger) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.Endpoint)}
	if t.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	res, err := t.resource()
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	otel.SetTracerProvider(tp)
	log.Info("Tracing enabled", logger.Fields("endpoint", t.Endpoint, "sample_rate", sampleRate))
	return tp, nil
}

// StartSpan starts a span on the global provider, a no-op until one is
// installed.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is set, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
