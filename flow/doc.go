/*
Package flow implements the workflow execution engine: it takes a
declarative graph of typed nodes and edges and runs it to completion,
dispatching each node, routing control flow through conditions and loops,
resolving inter-node data references, and halting cleanly on fatal errors.

# Core types

  - Graph / Node / Edge    — the read-only workflow model
  - Validator              — pre-run structural checks and cycle detection
  - NodeOutput             — the closed union of per-node results
  - FlowState              — one run's mutable context: output store and loop stack
  - Resolver               — {{nodeId.path}} substitution against prior outputs
  - Evaluator              — deterministic-first multi-way branch selection
  - LoopController         — bounded iteration over a collection
  - NodeExecutor           — the contract node-type executors implement
  - Engine                 — the sequential dispatch loop with fail-fast
  - RunCheckpoint          — prior outputs replayed on a retried run
  - FlowDefinition         — YAML/JSON serialization of a graph

# Execution model

One run executes on one goroutine: node dispatch is strictly sequential and
breadth-first by enqueue time. The only concurrency visible to the engine is
the incremental delivery of streamed text from a single in-flight node,
forwarded through the event sink. On the first node error the engine cancels
every reachable downstream node and ends the run with a single flow-error
event; a caller may later retry by supplying a RunCheckpoint that excludes
the failed node.
*/
package flow
