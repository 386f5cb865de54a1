package dag

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
)

// WithTracing runs node inside a span named "{prefix}.{nodeName}" carrying
// attrs and the node id.
func WithTracing(node Node, prefix string, attrs ...attribute.KeyValue) Node {
	attrs = append(attrs, attribute.String(observability.AttrNodeID, node.Name()))
	return &tracingNode{inner: node, prefix: prefix, attrs: attrs}
}

type tracingNode struct {
	inner  Node
	prefix string
	attrs  []attribute.KeyValue
}

func (n *tracingNode) Name() string { return n.inner.Name() }

func (n *tracingNode) Run(ctx context.Context, state *State) (result any, err error) {
	ctx, span := observability.StartSpan(ctx, n.prefix+"."+n.inner.Name(), n.attrs...)
	defer func() { observability.EndSpan(span, err) }()
	return n.inner.Run(ctx, state)
}

// WithMetrics wraps a Node with metric recording under the given label.
func WithMetrics(node Node, label string, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, label: label, metrics: metrics}
}

type metricsNode struct {
	inner   Node
	label   string
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)

	status := string(StatusCompleted)
	if err != nil {
		status = string(StatusFailed)
		n.metrics.RecordError(ctx, "node", n.label)
	}
	n.metrics.RecordNode(ctx, n.label, status, time.Since(start))
	return result, err
}

// WithLogging wraps a Node with execution logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)

	fields := logger.DurationFields("dag.run", time.Since(start))
	fields[logger.FieldNodeID] = n.inner.Name()

	if err != nil {
		fields[logger.FieldError] = err.Error()
		n.log.Warn("dag node failed", fields)
	} else {
		n.log.Debug("dag node completed", fields)
	}
	return result, err
}
