package flow

import (
	"encoding/json"

	"go.uber.org/zap"
)

// DefaultMaxIterations caps a loop when the node config does not set one.
const DefaultMaxIterations = 100

// LoopController manages bounded iteration over a collection. It owns frame
// lifecycle only; re-queuing the loop body is the engine's job.
type LoopController struct {
	logger *zap.Logger
}

// NewLoopController creates a LoopController.
func NewLoopController(logger *zap.Logger) *LoopController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoopController{logger: logger.With(zap.String("component", "loop"))}
}

// Enter opens the loop tagged on the node: resolves the collection,
// truncates it to the iteration cap, computes the loop body between this
// enter node and its matched exit, pushes a frame, and exposes the first
// element as the ambient current item.
func (c *LoopController) Enter(node *Node, adj map[string][]AdjacencyEntry, bounds map[int]LoopBoundary, state *FlowState) *LoopOutput {
	num := node.IntConfig(loopNumberKey, 0)
	maxIter := node.IntConfig("maxIterations", DefaultMaxIterations)
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	collection := c.collection(node, state)
	if len(collection) > maxIter {
		collection = collection[:maxIter]
	}

	boundary := bounds[num]
	frame := &LoopFrame{
		Number:        num,
		Collection:    collection,
		Index:         0,
		MaxIterations: maxIter,
		EnterID:       boundary.Enter,
		ExitID:        boundary.Exit,
		Body:          LoopBody(adj, boundary.Enter, boundary.Exit),
	}
	state.PushLoop(frame)
	state.CurrentItem = frame.CurrentItem()

	c.logger.Debug("loop entered",
		zap.Int("loop_number", num),
		zap.Int("collection_size", len(collection)),
		zap.Int("max_iterations", maxIter),
		zap.Int("body_size", len(frame.Body)),
	)
	return &LoopOutput{
		LoopNumber:     num,
		CurrentIndex:   0,
		CollectionSize: len(collection),
		Completed:      false,
	}
}

// Exit advances the loop cursor. While the new cursor stays within both the
// collection and the iteration cap it reports Completed=false and the
// engine re-queues the body; otherwise the frame is popped and the loop is
// done. A missing frame is a no-op reported as completed.
func (c *LoopController) Exit(node *Node, state *FlowState) *LoopOutput {
	num := node.IntConfig(loopNumberKey, 0)
	frame := state.LoopFrameFor(num)
	if frame == nil {
		c.logger.Warn("loop exit without active frame", zap.Int("loop_number", num))
		return &LoopOutput{LoopNumber: num, Completed: true}
	}

	frame.Index++
	if frame.Remaining() {
		state.CurrentItem = frame.CurrentItem()
		c.logger.Debug("loop advanced",
			zap.Int("loop_number", num),
			zap.Int("current_index", frame.Index),
		)
		return &LoopOutput{
			LoopNumber:     num,
			CurrentIndex:   frame.Index,
			CollectionSize: len(frame.Collection),
			Completed:      false,
		}
	}

	state.PopLoop(num)
	state.CurrentItem = nil
	c.logger.Debug("loop completed",
		zap.Int("loop_number", num),
		zap.Int("iterations", frame.Index),
	)
	return &LoopOutput{
		LoopNumber:     num,
		CurrentIndex:   frame.Index,
		CollectionSize: len(frame.Collection),
		Completed:      true,
	}
}

// collection resolves the iteration source: a previously produced output's
// data field, a parsed array from a text output, or a single synthetic
// one-item collection built from the current input when nothing resolves.
func (c *LoopController) collection(node *Node, state *FlowState) []any {
	var out NodeOutput
	if source := node.StringConfig("source"); source != "" {
		if o, ok := state.Output(source); ok {
			out = o
		}
	} else if o, ok := state.LatestOutput(); ok {
		out = o
	}

	if out != nil {
		if items := collectionFromOutput(out); len(items) > 0 {
			return items
		}
	}
	c.logger.Debug("loop collection fell back to single-item input",
		zap.String("node_id", node.ID),
	)
	return []any{state.Input}
}

// collectionFromOutput pulls an array out of an output: the data field of
// an integration result, or a JSON array parsed from textual content.
func collectionFromOutput(out NodeOutput) []any {
	switch v := out.(type) {
	case *IntegrationOutput:
		if v.Data == nil {
			return nil
		}
		if items, ok := v.Data["items"].([]any); ok {
			return items
		}
		for _, value := range v.Data {
			if items, ok := value.([]any); ok {
				return items
			}
		}
		return nil
	case *KnowledgeOutput:
		return v.Results
	default:
		text := OutputText(out)
		if text == "" {
			return nil
		}
		var items []any
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil
		}
		return items
	}
}
