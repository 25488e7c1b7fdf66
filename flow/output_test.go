package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputRoundTrip(t *testing.T) {
	t.Parallel()
	samples := []NodeOutput{
		&TriggerOutput{Input: "go", Timestamp: time.Unix(1700000000, 0).UTC()},
		&AIResponseOutput{Content: "hi", Model: "m", TokensIn: 3, TokensOut: 7},
		&ConditionOutput{BranchID: "b", BranchIndex: 2, Method: MethodDelegated, Reasoning: "because"},
		&LoopOutput{LoopNumber: 1, CurrentIndex: 4, CollectionSize: 9},
		&IntegrationOutput{Service: "slack", Action: "post", Success: true, Data: map[string]any{"ok": true}},
		&KnowledgeOutput{Query: "q", Results: []any{"r1"}},
		&PassthroughOutput{},
		&ErrorOutput{Message: "boom"},
	}
	for _, sample := range samples {
		raw, err := MarshalOutput(sample)
		require.NoError(t, err, sample.Kind())
		back, err := UnmarshalOutput(raw)
		require.NoError(t, err, sample.Kind())
		assert.Equal(t, sample, back, sample.Kind())
	}
}

func TestUnmarshalOutput_UnknownKind(t *testing.T) {
	t.Parallel()
	_, err := UnmarshalOutput([]byte(`{"kind":"hologram","data":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output kind")
}

func TestOutputText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", OutputText(&TriggerOutput{Input: "hello"}))
	assert.Equal(t, "draft", OutputText(&AIResponseOutput{Content: "draft"}))
	assert.Equal(t, "bad", OutputText(&ErrorOutput{Message: "bad"}))
	assert.Equal(t, `{"n":1}`, OutputText(&IntegrationOutput{Data: map[string]any{"n": 1}}))
	assert.Equal(t, `["a"]`, OutputText(&KnowledgeOutput{Results: []any{"a"}}))
	assert.Empty(t, OutputText(&IntegrationOutput{}))
	assert.Empty(t, OutputText(&PassthroughOutput{}))
	assert.Empty(t, OutputText(&ConditionOutput{BranchID: "x"}))
}

func TestFlowState_RecencyTracking(t *testing.T) {
	t.Parallel()
	state := NewFlowState("in", nil)
	state.SetOutput("a", &AIResponseOutput{Content: "first"})
	state.SetOutput("b", &AIResponseOutput{Content: "second"})
	assert.Equal(t, "second", state.LatestText())
	assert.Equal(t, []string{"a", "b"}, state.OutputOrder())

	// re-recording a loop pass refreshes recency
	state.SetOutput("a", &AIResponseOutput{Content: "again"})
	assert.Equal(t, []string{"b", "a"}, state.OutputOrder())
	assert.Equal(t, "again", state.LatestText())
}

func TestFlowState_LatestTextSkipsNonTextual(t *testing.T) {
	t.Parallel()
	state := NewFlowState("in", nil)
	state.SetOutput("a", &AIResponseOutput{Content: "spoken"})
	state.SetOutput("c", &ConditionOutput{BranchID: "b"})
	state.SetOutput("l", &LoopOutput{LoopNumber: 1})
	assert.Equal(t, "spoken", state.LatestText())
}
