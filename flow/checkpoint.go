package flow

import (
	"encoding/json"
	"fmt"
)

// RunCheckpoint carries prior successful node outputs into a retried run.
// The engine replays every checkpointed output except the failed node's,
// re-executing only the failed node and everything after it.
type RunCheckpoint struct {
	FailedNodeID string
	Outputs      map[string]NodeOutput
}

// NewCheckpoint builds a retry checkpoint from a run's output store,
// dropping the failed node and any error outputs: only non-error outputs
// are reusable.
func NewCheckpoint(outputs map[string]NodeOutput, failedNodeID string) *RunCheckpoint {
	cp := &RunCheckpoint{
		FailedNodeID: failedNodeID,
		Outputs:      make(map[string]NodeOutput, len(outputs)),
	}
	for id, out := range outputs {
		if id == failedNodeID || out.Kind() == KindError {
			continue
		}
		cp.Outputs[id] = out
	}
	return cp
}

// checkpointWire is the JSON form of a RunCheckpoint with tagged outputs.
type checkpointWire struct {
	FailedNodeID string                     `json:"failedNodeId"`
	Outputs      map[string]json.RawMessage `json:"outputs"`
}

// MarshalJSON serializes the checkpoint with each output in its tagged
// wire form.
func (cp *RunCheckpoint) MarshalJSON() ([]byte, error) {
	wire := checkpointWire{
		FailedNodeID: cp.FailedNodeID,
		Outputs:      make(map[string]json.RawMessage, len(cp.Outputs)),
	}
	for id, out := range cp.Outputs {
		raw, err := MarshalOutput(out)
		if err != nil {
			return nil, fmt.Errorf("checkpoint output %s: %w", id, err)
		}
		wire.Outputs[id] = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the tagged wire form.
func (cp *RunCheckpoint) UnmarshalJSON(data []byte) error {
	var wire checkpointWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	cp.FailedNodeID = wire.FailedNodeID
	cp.Outputs = make(map[string]NodeOutput, len(wire.Outputs))
	for id, raw := range wire.Outputs {
		out, err := UnmarshalOutput(raw)
		if err != nil {
			return fmt.Errorf("checkpoint output %s: %w", id, err)
		}
		cp.Outputs[id] = out
	}
	return nil
}
