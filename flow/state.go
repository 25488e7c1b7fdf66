package flow

// LoopFrame is one active loop's iteration state, owned exclusively by the
// engine and loop controller for the duration of a run.
type LoopFrame struct {
	Number        int
	Collection    []any
	Index         int
	MaxIterations int
	EnterID       string
	ExitID        string
	// Body holds the node ids reachable from the enter node without passing
	// through the exit node; these are re-queued per iteration.
	Body map[string]struct{}
}

// Remaining reports whether the frame still has iterations left at the
// current index.
func (f *LoopFrame) Remaining() bool {
	if f.Index >= f.MaxIterations {
		return false
	}
	return f.Index < len(f.Collection)
}

// CurrentItem returns the collection element at the cursor.
func (f *LoopFrame) CurrentItem() any {
	if f.Index < 0 || f.Index >= len(f.Collection) {
		return nil
	}
	return f.Collection[f.Index]
}

// FlowState is the mutable run-wide context, created fresh per run (or
// seeded from a checkpoint) and discarded at run end. It is owned by one
// run instance and never shared across runs.
type FlowState struct {
	// Input is the current user input that started the run.
	Input string
	// Context is optional externally supplied conversation/memory context.
	Context map[string]any
	// CurrentItem is the active loop's element, visible to downstream nodes
	// as ambient context.
	CurrentItem any
	// Errors accumulates run-level error messages.
	Errors []string

	outputs map[string]NodeOutput
	// order records output insertion order so "most recent output" queries
	// are well defined even though the store itself is a map.
	order []string
	loops []*LoopFrame
}

// NewFlowState creates the state for one run.
func NewFlowState(input string, context map[string]any) *FlowState {
	return &FlowState{
		Input:   input,
		Context: context,
		outputs: make(map[string]NodeOutput),
	}
}

// SetOutput records a node's output. Re-recording the same node id (a loop
// pass) overwrites the previous value and refreshes its recency.
func (s *FlowState) SetOutput(nodeID string, out NodeOutput) {
	if _, seen := s.outputs[nodeID]; seen {
		for i, id := range s.order {
			if id == nodeID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.outputs[nodeID] = out
	s.order = append(s.order, nodeID)
}

// Output retrieves a node's recorded output.
func (s *FlowState) Output(nodeID string) (NodeOutput, bool) {
	o, ok := s.outputs[nodeID]
	return o, ok
}

// Outputs returns the output store keyed by node id. Callers must treat the
// map as read-only.
func (s *FlowState) Outputs() map[string]NodeOutput {
	return s.outputs
}

// OutputOrder returns node ids in output insertion order, oldest first.
func (s *FlowState) OutputOrder() []string {
	return s.order
}

// LatestText returns the textual content of the most recent output that has
// one, skipping structural and bookkeeping outputs. Empty when nothing
// textual has been produced yet.
func (s *FlowState) LatestText() string {
	for i := len(s.order) - 1; i >= 0; i-- {
		if text := OutputText(s.outputs[s.order[i]]); text != "" {
			return text
		}
	}
	return ""
}

// LatestOutput returns the most recently recorded output.
func (s *FlowState) LatestOutput() (NodeOutput, bool) {
	if len(s.order) == 0 {
		return nil, false
	}
	return s.outputs[s.order[len(s.order)-1]], true
}

// PushLoop pushes a frame onto the loop stack; the last frame is the
// innermost active loop.
func (s *FlowState) PushLoop(f *LoopFrame) {
	s.loops = append(s.loops, f)
}

// LoopFrameFor finds the active frame for a loop number, innermost first.
func (s *FlowState) LoopFrameFor(number int) *LoopFrame {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i].Number == number {
			return s.loops[i]
		}
	}
	return nil
}

// PopLoop removes the frame for a loop number. Loop push/pop is strictly
// nested, so in practice this always pops the innermost frame.
func (s *FlowState) PopLoop(number int) {
	for i := len(s.loops) - 1; i >= 0; i-- {
		if s.loops[i].Number == number {
			s.loops = append(s.loops[:i], s.loops[i+1:]...)
			return
		}
	}
}

// ActiveLoops returns the number of frames on the loop stack.
func (s *FlowState) ActiveLoops() int {
	return len(s.loops)
}

// AddError appends a run-level error message.
func (s *FlowState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
