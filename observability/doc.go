// Package observability wires OpenTelemetry tracing and metrics for
// workflow execution.
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability, "flowkit", version.Get().Version, log)
//	defer shutdown(ctx)
//
//	metrics, _ := observability.NewMetrics(observability.Meter())
//	metrics.RecordNode(ctx, "llm", "completed", d)
//
// A nil *Metrics is valid and records nothing.
package observability
