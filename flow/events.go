package flow

// EventType identifies one progress event in the run's event stream.
type EventType string

const (
	// EventNodeStart fires when a node begins executing.
	EventNodeStart EventType = "node-start"
	// EventNodeComplete fires when a node records its output.
	EventNodeComplete EventType = "node-complete"
	// EventNodeReused fires when a checkpointed output is replayed.
	EventNodeReused EventType = "node-reused"
	// EventNodeError fires when a node fails fatally.
	EventNodeError EventType = "node-error"
	// EventNodeSkipped fires for each node canceled downstream of a failure.
	EventNodeSkipped EventType = "node-skipped"
	// EventTextDelta carries one incremental chunk from a streaming node.
	EventTextDelta EventType = "text-delta"
	// EventEvalResult reports a condition node's branch decision.
	EventEvalResult EventType = "eval-result"
	// EventFlowComplete is the terminal event of a successful run.
	EventFlowComplete EventType = "flow-complete"
	// EventFlowError is the terminal event of a failed run.
	EventFlowError EventType = "flow-error"
)

// Event is one entry in the run's progress stream. Fields are populated per
// type: node events carry node identity and output, text-delta carries
// Delta, terminal events carry Outputs or Message.
type Event struct {
	Type     EventType             `json:"type"`
	RunID    string                `json:"runId,omitempty"`
	NodeID   string                `json:"nodeId,omitempty"`
	NodeType NodeType              `json:"nodeType,omitempty"`
	Label    string                `json:"label,omitempty"`
	Output   NodeOutput            `json:"output,omitempty"`
	Delta    string                `json:"delta,omitempty"`
	Message  string                `json:"message,omitempty"`
	Outputs  map[string]NodeOutput `json:"outputs,omitempty"`
}

// EventSink receives live progress and streaming events. A nil sink is
// allowed; the engine drops events.
type EventSink func(Event)
