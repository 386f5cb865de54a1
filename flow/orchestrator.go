package flow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/flowkit/dag"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/runstore"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/workflow"
)

// MsgCyclic is the message of the error returned for cyclic graphs.
const MsgCyclic = "Workflow contains cycles - not a valid DAG"

// Config configures the Orchestrator.
type Config struct {
	// MaxParallel limits concurrently running nodes per level (0 = no limit).
	MaxParallel int `mapstructure:"max_parallel"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithMetrics records node and run metrics.
func WithMetrics(m *observability.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithEvents streams run progress to b.
func WithEvents(b sse.Broadcaster) Option { return func(o *Orchestrator) { o.events = b } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// Orchestrator runs workflow graphs and records their runs.
type Orchestrator struct {
	store      runstore.Store
	dispatcher *Dispatcher
	config     Config
	log        *logger.Logger
	metrics    *observability.Metrics
	events     sse.Broadcaster
	now        func() time.Time

	inflight sync.WaitGroup
	active   atomic.Int64
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store runstore.Store, dispatcher *Dispatcher, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store, dispatcher: dispatcher, config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	o.log = o.log.WithComponent("orchestrator")
	return o
}

// Request is one execution of a graph on behalf of a caller.
type Request struct {
	WorkflowRef string
	OwnerID     string
	Graph       *workflow.Graph
}

// Validate rejects graphs that cannot run: duplicate ids, dangling edges,
// repeated single-valued handles and cycles.
func Validate(g *workflow.Graph) error {
	if g == nil {
		return errors.MissingField("nodes")
	}
	if err := g.CheckStructure(); err != nil {
		return err
	}
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	if !dag.IsAcyclic(ids, dagEdges(g)) {
		return errors.InvalidGraph(MsgCyclic)
	}
	return nil
}

// Levels returns the execution levels of a valid graph.
func Levels(g *workflow.Graph) ([][]string, error) {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	levels, err := dag.Levels(ids, dagEdges(g))
	if err != nil {
		return nil, errors.InvalidGraph(MsgCyclic)
	}
	return levels, nil
}

func dagEdges(g *workflow.Graph) []dag.Edge {
	edges := make([]dag.Edge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = dag.Edge{From: e.Source, To: e.Target}
	}
	return edges
}

// Execute validates and runs req.Graph. Invalid graphs fail before any run
// is stored. Node failures are recorded in the returned run, not returned
// as errors. A non-nil error with a non-nil run means the run executed but
// could not be fully persisted or was interrupted.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*workflow.Run, error) {
	run, err := o.create(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, req, run)
}

// Start validates req and stores its run like Execute, then executes it in
// the background and returns the run in its initial state. The background
// execution ignores ctx cancellation; Wait blocks until it is done.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*workflow.Run, error) {
	run, err := o.create(ctx, req)
	if err != nil {
		return nil, err
	}
	initial := run.Clone()

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		if _, err := o.run(context.WithoutCancel(ctx), req, run); err != nil {
			o.log.Warn("Background run ended with error", logger.Fields(logger.FieldRunID, run.ID, logger.FieldError, err.Error()))
		}
	}()
	return initial, nil
}

// Wait blocks until every run started with Start has finished or ctx is
// done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) create(ctx context.Context, req Request) (*workflow.Run, error) {
	if err := Validate(req.Graph); err != nil {
		return nil, err
	}

	run := workflow.NewRun(req.WorkflowRef, req.OwnerID, req.Graph.Nodes, o.now())
	id, err := o.store.Create(ctx, run)
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.DatabaseError(err)
	}
	run.ID = id
	return run, nil
}

// Active returns the number of runs executing now, synchronous or not.
func (o *Orchestrator) Active() int { return int(o.active.Load()) }

func (o *Orchestrator) run(ctx context.Context, req Request, run *workflow.Run) (*workflow.Run, error) {
	o.active.Add(1)
	defer o.active.Add(-1)
	id := run.ID
	log := o.log.WithContext(ctx).ForRun(id)
	log.Info("Run started", logger.Fields("nodes", len(req.Graph.Nodes), "edges", len(req.Graph.Edges)))

	ctx, span := observability.StartSpan(ctx, observability.SpanRun, attribute.String(observability.AttrRunID, id))
	obs := &runObserver{o: o, ctx: context.WithoutCancel(ctx), run: run, graph: req.Graph, log: log}
	engine := &dag.Engine{MaxParallel: o.config.MaxParallel, Now: o.now}
	result, execErr := engine.Execute(ctx, o.buildGraph(req, log), dag.NewState(), obs)

	obs.mu.Lock()
	run.Finish(o.now())
	if execErr != nil {
		run.Status = workflow.RunFailed
	}
	final := run.Clone()
	obs.mu.Unlock()

	fields := logger.Fields(logger.FieldStatus, string(final.Status))
	if result != nil {
		fields["levels"] = len(result.Levels)
		fields["halted"] = result.Halted
		o.metrics.RecordRun(ctx, string(final.Status), result.Duration)
	}
	log.Info("Run finished", fields)
	span.SetAttributes(attribute.String(observability.AttrStatus, string(final.Status)))
	observability.EndSpan(span, execErr)

	persistCtx := context.WithoutCancel(ctx)
	storeErr := o.store.Update(persistCtx, id, workflow.FinalUpdate(final))
	publish(o.events, Event{Type: EventRunFinished, RunID: id, Status: final.Status, At: o.now()})
	if storeErr != nil {
		log.Error("Failed to store final run state", logger.ErrorFields("run.finish", storeErr))
		return final, errors.DatabaseError(storeErr)
	}
	if execErr != nil {
		return final, execErr
	}
	return final, nil
}

func (o *Orchestrator) buildGraph(req Request, log *logger.Logger) *dag.Graph {
	g := &dag.Graph{Edges: dagEdges(req.Graph)}
	for _, n := range req.Graph.Nodes {
		node := n
		var dn dag.Node = dag.NodeFunc(node.ID, func(ctx context.Context, state *dag.State) (any, error) {
			in := ResolveInputs(req.Graph, node.ID, state)
			return o.dispatcher.Dispatch(ctx, req.OwnerID, node, in)
		})
		dn = dag.WithLogging(dn, log.ForNode(node.ID, string(node.Type)))
		dn = dag.WithMetrics(dn, string(node.Type), o.metrics)
		dn = dag.WithTracing(dn, "workflow", attribute.String(observability.AttrNodeType, string(node.Type)))
		g.Nodes = append(g.Nodes, dn)
	}
	return g
}

// runObserver mirrors engine transitions into the run, the store and the
// event stream. Store failures on node transitions are logged only.
type runObserver struct {
	o     *Orchestrator
	ctx   context.Context
	graph *workflow.Graph
	log   *logger.Logger

	mu  sync.Mutex
	run *workflow.Run
}

func (r *runObserver) NodeStarted(name string, at time.Time) {
	node, _ := r.graph.Node(name)
	nr := workflow.NodeResult{NodeID: name, NodeType: node.Type, Status: workflow.NodeRunning, StartedAt: &at}
	r.record(nr)
}

func (r *runObserver) NodeFinished(res dag.NodeResult) {
	node, _ := r.graph.Node(res.Name)
	started, completed := res.StartedAt, res.CompletedAt
	nr := workflow.NodeResult{
		NodeID:      res.Name,
		NodeType:    node.Type,
		StartedAt:   &started,
		CompletedAt: &completed,
	}
	if res.Status == dag.StatusCompleted {
		nr.Status = workflow.NodeCompleted
		if out, ok := res.Output.(workflow.Output); ok {
			nr.Output = out
		}
	} else {
		nr.Status = workflow.NodeFailed
		nr.Error = errors.NodeExecution(res.Name, res.Error).Message
	}
	r.record(nr)
}

func (r *runObserver) record(nr workflow.NodeResult) {
	r.mu.Lock()
	r.run.NodeResults[nr.NodeID] = nr
	r.mu.Unlock()

	if err := r.o.store.Update(r.ctx, r.run.ID, workflow.NodeUpdate(nr)); err != nil {
		r.log.Warn("Failed to store node result", logger.Fields(
			logger.FieldNodeID, nr.NodeID,
			logger.FieldStatus, string(nr.Status),
			logger.FieldError, err.Error(),
		))
	}
	publish(r.o.events, Event{Type: nodeEventType(nr.Status), RunID: r.run.ID, NodeResult: &nr, At: r.o.now()})
}
