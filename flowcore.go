// Package flowcore provides a top-level convenience entry point for running
// flows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/agentflux/flowcore"
//
//	engine := flowcore.New(myProvider)
//	result, err := engine.Execute(ctx, flowcore.RunConfig{Graph: g, Input: "hello"})
//
// This is a thin wrapper around [flow.NewEngine] with the agent executor
// pre-registered. Use the flow package directly when you need a custom
// executor registry.
package flowcore

import (
	"github.com/agentflux/flowcore/flow"
	"github.com/agentflux/flowcore/llm"
)

// Re-export the run-facing types so callers never need to import flow/.

// RunConfig is the caller's input for one run.
type RunConfig = flow.RunConfig

// RunResult is the terminal outcome of one run.
type RunResult = flow.RunResult

// Event is one entry in the run's progress stream.
type Event = flow.Event

// RunCheckpoint carries prior successful node outputs into a retried run.
type RunCheckpoint = flow.RunCheckpoint

// New creates an engine with the agent executor registered against the
// given provider. The provider is also used for delegated branch decisions.
func New(provider llm.Provider, opts ...flow.EngineOption) *flow.Engine {
	registry := flow.NewExecutorRegistry()
	registry.Register(flow.NodeTypeAgent, flow.NewAgentExecutor(provider, nil))
	opts = append(opts, flow.WithProvider(provider))
	return flow.NewEngine(registry, opts...)
}
