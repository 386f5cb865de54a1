package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/flowkit/logger"
)

// InitMeter installs a periodically exporting OTLP meter provider
// globally. A zero interval keeps the SDK default of one minute.
func InitMeter(ctx context.Context, t Target, interval time.Duration, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(t.Endpoint)}
	if t.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := t.resource()
	if err != nil {
		return nil, fmt.Errorf("metric resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	log.Info("Metrics export enabled", logger.Fields("endpoint", t.Endpoint, "interval", interval.String()))
	return mp, nil
}

// Meter returns the flowkit meter from the global provider.
func Meter() metric.Meter { return otel.Meter(instrumentation) }

// Metrics holds the instruments recorded during workflow execution.
type Metrics struct {
	nodeTotal     metric.Int64Counter
	nodeDuration  metric.Float64Histogram
	runTotal      metric.Int64Counter
	runDuration   metric.Float64Histogram
	taskAttempts  metric.Int64Histogram
	taskFallbacks metric.Int64Counter
	errorTotal    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.nodeTotal, err = meter.Int64Counter("workflow.node.total",
		metric.WithDescription("Node executions by type and status")); err != nil {
		return nil, fmt.Errorf("creating workflow.node.total counter: %w", err)
	}
	if m.nodeDuration, err = meter.Float64Histogram("workflow.node.duration",
		metric.WithDescription("Node execution time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating workflow.node.duration histogram: %w", err)
	}
	if m.runTotal, err = meter.Int64Counter("workflow.run.total",
		metric.WithDescription("Finished runs by status")); err != nil {
		return nil, fmt.Errorf("creating workflow.run.total counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("workflow.run.duration",
		metric.WithDescription("Run wall time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating workflow.run.duration histogram: %w", err)
	}
	if m.taskAttempts, err = meter.Int64Histogram("task.poll.attempts",
		metric.WithDescription("Poll attempts until a task reached a terminal state")); err != nil {
		return nil, fmt.Errorf("creating task.poll.attempts histogram: %w", err)
	}
	if m.taskFallbacks, err = meter.Int64Counter("task.inline_fallback.total",
		metric.WithDescription("Tasks executed inline because the runner was unreachable")); err != nil {
		return nil, fmt.Errorf("creating task.inline_fallback.total counter: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("error.total",
		metric.WithDescription("Errors by type and component")); err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}
	return &m, nil
}

// RecordNode records one node execution.
func (m *Metrics) RecordNode(ctx context.Context, nodeType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_type", nodeType),
		attribute.String("status", status),
	))
	m.nodeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("node_type", nodeType)))
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.runDuration.Record(ctx, d.Seconds())
}

// RecordTask records how many poll attempts a task took and how it ended.
func (m *Metrics) RecordTask(ctx context.Context, kind, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.taskAttempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordFallback records a task executed inline.
func (m *Metrics) RecordFallback(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.taskFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
