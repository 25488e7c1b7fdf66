package flow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentflux/flowcore/llm"
	"github.com/agentflux/flowcore/retry"
)

// ExecContext is the bundle handed to a node executor: the run state, the
// node being dispatched, graph adjacency, a resolver over prior outputs, an
// emit handle for progress and streaming events, and tracing identifiers.
type ExecContext struct {
	RunID     string
	Node      *Node
	Graph     *Graph
	Adjacency map[string][]AdjacencyEntry
	State     *FlowState
	Resolver  *Resolver
	Emit      EventSink
	Logger    *zap.Logger
}

// Config returns the node's configuration with every string field resolved
// against prior outputs.
func (ec *ExecContext) Config() map[string]any {
	return ec.Resolver.ResolveConfig(ec.Node.Config)
}

// EmitDelta forwards one incremental text chunk to the event sink.
func (ec *ExecContext) EmitDelta(delta string) {
	if ec.Emit != nil {
		ec.Emit(Event{
			Type:     EventTextDelta,
			RunID:    ec.RunID,
			NodeID:   ec.Node.ID,
			NodeType: ec.Node.Type,
			Label:    ec.Node.DisplayLabel(),
			Delta:    delta,
		})
	}
}

// ExecResult is what a node executor hands back to the engine.
type ExecResult struct {
	Output NodeOutput
	// SelectedBranch names the edge handle to follow for condition nodes.
	SelectedBranch string
	// Streamed marks that partial output events were already emitted.
	Streamed bool
}

// NodeExecutor executes one node type. Implementations must not panic or
// return an error for expected failure modes; they return an ErrorOutput
// instead so the failure carries a clean message. The engine treats a
// returned error and an ErrorOutput identically for fail-fast purposes.
type NodeExecutor interface {
	Execute(ctx context.Context, ec *ExecContext) (*ExecResult, error)
}

// ExecutorFunc adapts a function to the NodeExecutor interface.
type ExecutorFunc func(ctx context.Context, ec *ExecContext) (*ExecResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, ec *ExecContext) (*ExecResult, error) {
	return f(ctx, ec)
}

// ExecutorRegistry maps node types to their executors.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[NodeType]NodeExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[NodeType]NodeExecutor)}
}

// Register binds an executor to a node type, replacing any previous binding.
func (r *ExecutorRegistry) Register(t NodeType, exec NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[t] = exec
}

// Get looks up the executor for a node type.
func (r *ExecutorRegistry) Get(t NodeType) (NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[t]
	return exec, ok
}

// AgentExecutor runs agent nodes through the language-model collaborator,
// wrapping the call in the platform retry policy and streaming deltas when
// the provider supports it.
type AgentExecutor struct {
	Provider llm.Provider
	Retryer  *retry.Retryer
	Model    string
}

// NewAgentExecutor creates an AgentExecutor with the default retry policy.
func NewAgentExecutor(provider llm.Provider, logger *zap.Logger) *AgentExecutor {
	return &AgentExecutor{
		Provider: provider,
		Retryer:  retry.New(nil, logger),
	}
}

// Execute resolves the node's prompt against prior outputs, appends the
// ambient loop item when one is active, and generates a response.
func (a *AgentExecutor) Execute(ctx context.Context, ec *ExecContext) (*ExecResult, error) {
	if a.Provider == nil {
		return &ExecResult{Output: &ErrorOutput{Message: "no language-model provider configured"}}, nil
	}

	cfg := ec.Config()
	prompt, _ := cfg["prompt"].(string)
	if prompt == "" {
		prompt = ec.State.Input
	}
	if ec.State.CurrentItem != nil {
		prompt = fmt.Sprintf("%s\n\nCurrent item: %s", prompt, stringify(ec.State.CurrentItem))
	}

	model := a.Model
	if m, ok := cfg["model"].(string); ok && m != "" {
		model = m
	}
	req := &llm.ChatRequest{
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	}

	streamer, canStream := a.Provider.(llm.StreamingProvider)
	result, err := a.Retryer.DoWithResult(ctx, func() (any, error) {
		if canStream {
			return streamer.Stream(ctx, req, ec.EmitDelta)
		}
		return a.Provider.Complete(ctx, req)
	})
	if err != nil {
		return &ExecResult{Output: &ErrorOutput{Message: err.Error()}}, nil
	}

	resp, ok := result.(*llm.ChatResponse)
	if !ok || resp == nil {
		return &ExecResult{Output: &ErrorOutput{Message: "provider returned no response"}}, nil
	}
	return &ExecResult{
		Output: &AIResponseOutput{
			Content:   resp.Content,
			Model:     resp.Model,
			TokensIn:  resp.Usage.PromptTokens,
			TokensOut: resp.Usage.CompletionTokens,
		},
		Streamed: canStream,
	}, nil
}
