package flow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentflux/flowcore/internal/metrics"
	"github.com/agentflux/flowcore/llm"
	"github.com/agentflux/flowcore/types"
)

// Engine drives one flow run to completion: it owns the run queue and the
// output store, routes control flow through conditions and loops, replays
// checkpointed outputs, and halts with downstream cancellation on the first
// fatal node error. Node dispatch is strictly sequential; concurrent runs
// must use independent FlowState instances, which Execute guarantees by
// creating the state per call.
type Engine struct {
	registry  *ExecutorRegistry
	provider  llm.Provider
	logger    *zap.Logger
	collector *metrics.Collector
	validator *Validator
	loops     *LoopController
	evaluator *Evaluator
	tracer    trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithProvider sets the reasoning collaborator used for delegated branch
// decisions.
func WithProvider(p llm.Provider) EngineOption {
	return func(e *Engine) { e.provider = p }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.collector = c }
}

// WithValidator replaces the default validator, e.g. to attach a
// credential checker.
func WithValidator(v *Validator) EngineOption {
	return func(e *Engine) { e.validator = v }
}

// NewEngine creates an Engine dispatching through the given registry.
func NewEngine(registry *ExecutorRegistry, opts ...EngineOption) *Engine {
	e := &Engine{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewExecutorRegistry()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	if e.validator == nil {
		e.validator = NewValidator(e.logger)
	}
	e.loops = NewLoopController(e.logger)
	e.evaluator = NewEvaluator(e.provider, e.logger)
	e.tracer = otel.Tracer("github.com/agentflux/flowcore/flow")
	return e
}

// RunConfig is the caller's input for one run.
type RunConfig struct {
	Graph *Graph
	// Input is the initial user input.
	Input string
	// Context is optional conversation/memory context injected as ambient
	// state, readable by node executors.
	Context map[string]any
	// Checkpoint, when set, replays prior successful outputs instead of
	// re-executing their nodes.
	Checkpoint *RunCheckpoint
	// Sink receives live progress and streaming events. May be nil.
	Sink EventSink
}

// RunResult is the terminal outcome of one run.
type RunResult struct {
	RunID        string
	Outputs      map[string]NodeOutput
	Completed    bool
	FailedNodeID string
}

// run bundles the per-run mutable machinery so Execute stays re-entrant
// across concurrent runs on one Engine.
type run struct {
	id       string
	graph    *Graph
	adj      map[string][]AdjacencyEntry
	bounds   map[int]LoopBoundary
	state    *FlowState
	resolver *Resolver
	queue    *workQueue
	executed map[string]bool
	skipped  map[string]bool
	reusable map[string]bool
	cp       *RunCheckpoint
	sink     EventSink
	logger   *zap.Logger
}

func (r *run) emit(ev Event) {
	if r.sink == nil {
		return
	}
	ev.RunID = r.id
	r.sink(ev)
}

func (r *run) nodeEvent(t EventType, n *Node, out NodeOutput) {
	r.emit(Event{
		Type:     t,
		NodeID:   n.ID,
		NodeType: n.Type,
		Label:    n.DisplayLabel(),
		Output:   out,
	})
}

// Execute validates the graph and runs it to a single terminal event:
// flow-complete with the full output store, or flow-error with a message.
func (e *Engine) Execute(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))

	ctx, span := e.tracer.Start(ctx, "flow.run", trace.WithAttributes(
		attribute.String("run.id", runID),
	))
	defer span.End()

	r := &run{
		id:       runID,
		graph:    cfg.Graph,
		state:    NewFlowState(cfg.Input, cfg.Context),
		queue:    &workQueue{},
		executed: make(map[string]bool),
		skipped:  make(map[string]bool),
		reusable: make(map[string]bool),
		cp:       cfg.Checkpoint,
		sink:     cfg.Sink,
		logger:   logger,
	}

	validation := e.validator.Validate(cfg.Graph)
	if !validation.Valid {
		msg := strings.Join(validation.Errors, "; ")
		logger.Warn("flow rejected by validator", zap.Strings("errors", validation.Errors))
		r.emit(Event{Type: EventFlowError, Message: msg})
		span.SetStatus(codes.Error, "invalid graph")
		e.collector.RunFinished("failed")
		return nil, types.NewError(types.ErrInvalidGraph, msg)
	}
	for _, w := range validation.Warnings {
		logger.Warn("validation warning", zap.String("warning", w))
	}

	r.adj = BuildAdjacency(cfg.Graph)
	r.bounds = LoopBoundaries(cfg.Graph)
	r.resolver = NewResolver(r.state, logger)

	if cfg.Checkpoint != nil {
		for id, out := range cfg.Checkpoint.Outputs {
			if id == cfg.Checkpoint.FailedNodeID || out.Kind() == KindError {
				continue
			}
			r.reusable[id] = true
		}
		logger.Info("retrying from checkpoint",
			zap.String("failed_node", cfg.Checkpoint.FailedNodeID),
			zap.Int("reusable_outputs", len(r.reusable)),
		)
	}

	e.collector.RunStarted()
	logger.Info("starting flow run",
		zap.Int("nodes", len(cfg.Graph.Nodes)),
		zap.Strings("start_nodes", validation.StartNodeIDs),
	)

	e.seed(r, validation.StartNodeIDs)
	result, err := e.loop(ctx, r)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.collector.RunFinished("failed")
		return result, err
	}

	r.emit(Event{Type: EventFlowComplete, Outputs: r.state.Outputs()})
	e.collector.RunFinished("completed")
	logger.Info("flow run completed", zap.Int("outputs", len(r.state.Outputs())))
	return &RunResult{
		RunID:     runID,
		Outputs:   r.state.Outputs(),
		Completed: true,
	}, nil
}

// seed synthesizes trigger outputs for the start set and enqueues the rest
// of the frontier. Trigger outputs are replayed from the checkpoint when
// reusable.
func (e *Engine) seed(r *run, startIDs []string) {
	for _, id := range startIDs {
		node, ok := r.graph.Node(id)
		if !ok {
			continue
		}
		if node.Type != NodeTypeTrigger {
			r.queue.PushBack(id)
			continue
		}

		if r.reusable[id] {
			out := r.cp.Outputs[id]
			r.state.SetOutput(id, out)
			r.executed[id] = true
			r.nodeEvent(EventNodeReused, node, out)
		} else {
			out := &TriggerOutput{Input: r.state.Input, Timestamp: time.Now()}
			r.state.SetOutput(id, out)
			r.executed[id] = true
			r.nodeEvent(EventNodeComplete, node, out)
		}
		e.followAll(r, id)
	}
}

// loop is the engine's main FIFO dispatch loop.
func (e *Engine) loop(ctx context.Context, r *run) (*RunResult, error) {
	for {
		id, ok := r.queue.Pop()
		if !ok {
			return nil, nil
		}
		if r.executed[id] || r.skipped[id] {
			continue
		}
		node, ok := r.graph.Node(id)
		if !ok {
			r.logger.Warn("queued node not in graph", zap.String("node_id", id))
			continue
		}

		if node.Type.Structural() {
			out := &PassthroughOutput{}
			r.state.SetOutput(id, out)
			r.executed[id] = true
			if len(r.adj[id]) == 0 {
				// Terminal structural node: completed silently so the
				// caller's UI is not told about a meaningless surface.
				continue
			}
			r.nodeEvent(EventNodeComplete, node, out)
			e.followAll(r, id)
			continue
		}

		if r.reusable[id] {
			out := r.cp.Outputs[id]
			r.state.SetOutput(id, out)
			r.executed[id] = true
			r.nodeEvent(EventNodeReused, node, out)
			// Follow edges exactly as a fresh execution would, including a
			// condition's previously chosen branch.
			if co, isCond := out.(*ConditionOutput); isCond {
				e.followBranch(r, id, co.BranchID)
			} else {
				e.followAll(r, id)
			}
			continue
		}

		r.nodeEvent(EventNodeStart, node, nil)
		started := time.Now()
		result, err := e.dispatch(ctx, r, node)
		elapsed := time.Since(started)

		if err == nil && result == nil {
			// A misbehaving executor; fold it into the normal failure path
			// rather than dereferencing nil below.
			err = types.NewError(types.ErrNodeFailed, "executor returned no result").WithNodeID(id)
		}
		if err == nil {
			if eo, isErr := result.Output.(*ErrorOutput); isErr {
				err = types.NewError(types.ErrNodeFailed, eo.Message).WithNodeID(id)
			}
		}
		if err != nil {
			e.collector.NodeExecuted(string(node.Type), "errored", elapsed)
			return e.failFast(r, node, err)
		}

		if lo, isLoop := result.Output.(*LoopOutput); isLoop && node.Type == NodeTypeLoopEnd && !lo.Completed {
			// Unfinished loop: clear the body's completed marks and put the
			// continuation at the head of the queue. The exit node itself
			// stays un-completed so it runs again after the next pass.
			e.requeueIteration(r, lo)
			e.collector.NodeExecuted(string(node.Type), "completed", elapsed)
			continue
		}

		r.state.SetOutput(id, result.Output)
		r.executed[id] = true
		r.nodeEvent(EventNodeComplete, node, result.Output)
		e.collector.NodeExecuted(string(node.Type), "completed", elapsed)

		if node.Type == NodeTypeCondition {
			e.followBranch(r, id, result.SelectedBranch)
		} else {
			e.followAll(r, id)
		}
	}
}

// dispatch executes one node through its built-in handler or the registry.
func (e *Engine) dispatch(ctx context.Context, r *run, node *Node) (*ExecResult, error) {
	ctx, span := e.tracer.Start(ctx, "flow.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	switch node.Type {
	case NodeTypeTrigger:
		// Mid-graph trigger: behaves like its start-node counterpart.
		return &ExecResult{Output: &TriggerOutput{Input: r.state.Input, Timestamp: time.Now()}}, nil

	case NodeTypeCondition:
		branches, err := decodeBranches(node.Config["branches"])
		if err != nil {
			return nil, types.NewError(types.ErrNodeFailed, err.Error()).WithNodeID(node.ID)
		}
		decision := e.evaluator.Evaluate(ctx, branches, r.state, r.graph, r.resolver)
		out := &ConditionOutput{
			BranchID:    decision.BranchID,
			BranchIndex: decision.BranchIndex,
			Method:      decision.Method,
			Reasoning:   decision.Reasoning,
		}
		r.nodeEvent(EventEvalResult, node, out)
		return &ExecResult{Output: out, SelectedBranch: decision.BranchID}, nil

	case NodeTypeLoopStart:
		return &ExecResult{Output: e.loops.Enter(node, r.adj, r.bounds, r.state)}, nil

	case NodeTypeLoopEnd:
		return &ExecResult{Output: e.loops.Exit(node, r.state)}, nil
	}

	exec, ok := e.registry.Get(node.Type)
	if !ok {
		return nil, types.NewError(types.ErrExecutorNotFound,
			"no executor registered for node type "+string(node.Type)).WithNodeID(node.ID)
	}
	return exec.Execute(ctx, &ExecContext{
		RunID:     r.id,
		Node:      node,
		Graph:     r.graph,
		Adjacency: r.adj,
		State:     r.state,
		Resolver:  r.resolver,
		Emit:      r.sink,
		Logger:    r.logger,
	})
}

// requeueIteration clears the loop body's completed marks and re-inserts
// the enter node's immediate successors at the front of the queue, so the
// next iteration runs before unrelated queued work.
func (e *Engine) requeueIteration(r *run, lo *LoopOutput) {
	frame := r.state.LoopFrameFor(lo.LoopNumber)
	if frame == nil {
		return
	}
	for bodyID := range frame.Body {
		delete(r.executed, bodyID)
	}
	var continuation []string
	for _, entry := range r.adj[frame.EnterID] {
		continuation = append(continuation, entry.Target)
	}
	r.queue.PushFront(continuation...)
	e.collector.LoopIteration()
	r.logger.Debug("loop iteration re-queued",
		zap.Int("loop_number", lo.LoopNumber),
		zap.Int("current_index", lo.CurrentIndex),
	)
}

// failFast records the failure, cancels every node reachable from the
// failed one breadth-first, and terminates the run with a single terminal
// flow-error event. The failed node's output is never recorded: a node is
// either fully completed or absent from the store.
func (e *Engine) failFast(r *run, failed *Node, cause error) (*RunResult, error) {
	msg := cause.Error()
	if fe, ok := cause.(*types.Error); ok {
		msg = fe.Message
	}
	r.state.AddError(msg)
	r.logger.Error("node failed, canceling downstream",
		zap.String("node_id", failed.ID),
		zap.String("node_type", string(failed.Type)),
		zap.Error(cause),
	)
	r.nodeEvent(EventNodeError, failed, &ErrorOutput{Message: msg})

	queue := []string{failed.ID}
	seen := map[string]bool{failed.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, entry := range r.adj[id] {
			if seen[entry.Target] {
				continue
			}
			seen[entry.Target] = true
			queue = append(queue, entry.Target)
			r.skipped[entry.Target] = true
			if node, ok := r.graph.Node(entry.Target); ok {
				r.nodeEvent(EventNodeSkipped, node, nil)
			}
		}
	}

	r.emit(Event{Type: EventFlowError, Message: r.graph.LabelOf(failed.ID) + ": " + msg})
	return &RunResult{
		RunID:        r.id,
		Outputs:      r.state.Outputs(),
		Completed:    false,
		FailedNodeID: failed.ID,
	}, cause
}

// followAll enqueues every outgoing edge target in declaration order.
func (e *Engine) followAll(r *run, id string) {
	for _, entry := range r.adj[id] {
		r.queue.PushBack(entry.Target)
	}
}

// followBranch enqueues only the edges tagged with the chosen branch
// handle, falling back to all edges when none carry the tag so a graph
// with missing handles is not stranded.
func (e *Engine) followBranch(r *run, id, branch string) {
	matched := false
	for _, entry := range r.adj[id] {
		if entry.Handle == branch {
			r.queue.PushBack(entry.Target)
			matched = true
		}
	}
	if !matched {
		if branch != "" {
			r.logger.Warn("no edge carries chosen branch handle, following all edges",
				zap.String("node_id", id),
				zap.String("branch", branch),
			)
		}
		e.followAll(r, id)
	}
}
