package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentflux/flowcore/llm"
	"github.com/agentflux/flowcore/types"
)

// scriptedProvider replies with a fixed content string and counts calls.
type scriptedProvider struct {
	reply string
	err   error
	calls atomic.Int32
	last  *llm.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.calls.Add(1)
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{
		Content: p.reply,
		Model:   "scripted-1",
		Usage:   types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func evalSetup(latest string) (*FlowState, *Resolver) {
	state := NewFlowState("input", nil)
	if latest != "" {
		state.SetOutput("prev", &AIResponseOutput{Content: latest})
	}
	return state, NewResolver(state, zap.NewNop())
}

func branchesOf(texts ...string) []Branch {
	out := make([]Branch, len(texts))
	for i, t := range texts {
		out[i] = Branch{ID: t, Text: t}
	}
	return out
}

func TestEvaluate_TruthyKeywords(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("whatever")
	e := NewEvaluator(nil, zap.NewNop())

	for _, kw := range []string{"true", "yes", "always"} {
		d := e.Evaluate(context.Background(), branchesOf("is_empty", kw), state, nil, r)
		assert.Equal(t, 1, d.BranchIndex, kw)
		assert.Equal(t, MethodDeterministic, d.Method)
	}
}

func TestEvaluate_ContainsRule(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("This ticket is URGENT, escalate now")
	e := NewEvaluator(nil, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf(`contains "billing"`, `contains "urgent"`), state, nil, r)
	assert.Equal(t, 1, d.BranchIndex)
	assert.Equal(t, MethodDeterministic, d.Method)
}

func TestEvaluate_CatchAllHeldBack(t *testing.T) {
	t.Parallel()
	// a catch-all listed first must lose to a later specific match
	state, r := evalSetup("this is urgent")
	e := NewEvaluator(nil, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf("default", `contains "urgent"`), state, nil, r)
	assert.Equal(t, 1, d.BranchIndex)
	assert.Equal(t, MethodDeterministic, d.Method)
}

func TestEvaluate_CatchAllWhenNothingMatches(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("a calm message")
	provider := &scriptedProvider{reply: "1"}
	e := NewEvaluator(provider, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf(`contains "urgent"`, "otherwise"), state, nil, r)
	assert.Equal(t, 1, d.BranchIndex)
	assert.Equal(t, MethodDeterministic, d.Method)
	assert.Zero(t, provider.calls.Load(), "catch-all must not reach the provider")
}

func TestEvaluate_EmptinessRules(t *testing.T) {
	t.Parallel()
	e := NewEvaluator(nil, zap.NewNop())

	state, r := evalSetup("")
	d := e.Evaluate(context.Background(), branchesOf("is_not_empty", "is_empty"), state, nil, r)
	assert.Equal(t, 1, d.BranchIndex)

	state, r = evalSetup("content")
	d = e.Evaluate(context.Background(), branchesOf("is_not_empty", "is_empty"), state, nil, r)
	assert.Equal(t, 0, d.BranchIndex)
}

func TestEvaluate_BranchTextIsResolved(t *testing.T) {
	t.Parallel()
	state := NewFlowState("input", nil)
	state.SetOutput("router", &AIResponseOutput{Content: "yes"})
	state.SetOutput("prev", &AIResponseOutput{Content: "subject"})
	r := NewResolver(state, zap.NewNop())
	e := NewEvaluator(nil, zap.NewNop())

	d := e.Evaluate(context.Background(), []Branch{
		{ID: "a", Text: "is_empty"},
		{ID: "b", Text: "{{router.content}}"},
	}, state, nil, r)
	assert.Equal(t, 1, d.BranchIndex)
}

func TestEvaluate_DelegatesAtZeroTemperature(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("an ambiguous request")
	provider := &scriptedProvider{reply: "1"}
	e := NewEvaluator(provider, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf("handle refunds", "handle shipping"), state, nil, r)
	require.EqualValues(t, 1, provider.calls.Load())
	assert.Equal(t, 1, d.BranchIndex)
	assert.Equal(t, MethodDelegated, d.Method)
	assert.Zero(t, provider.last.Temperature)
}

func TestEvaluate_NoProviderDefaultsToFirst(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("an ambiguous request")
	e := NewEvaluator(nil, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf("refunds", "shipping"), state, nil, r)
	assert.Equal(t, 0, d.BranchIndex)
	assert.Equal(t, MethodDelegated, d.Method)
}

func TestEvaluate_ProviderErrorDefaultsToFirst(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("an ambiguous request")
	provider := &scriptedProvider{err: errors.New("upstream down")}
	e := NewEvaluator(provider, zap.NewNop())

	d := e.Evaluate(context.Background(), branchesOf("refunds", "shipping"), state, nil, r)
	assert.Equal(t, 0, d.BranchIndex)
	assert.Equal(t, MethodDelegated, d.Method)
}

func TestEvaluate_NoBranches(t *testing.T) {
	t.Parallel()
	state, r := evalSetup("x")
	e := NewEvaluator(nil, zap.NewNop())
	d := e.Evaluate(context.Background(), nil, state, nil, r)
	assert.Equal(t, 0, d.BranchIndex)
}

func TestParseBranchReply(t *testing.T) {
	t.Parallel()
	branches := []Branch{
		{ID: "refund", Text: "handle refunds"},
		{ID: "ship", Text: "handle shipping"},
	}

	cases := []struct {
		name  string
		reply string
		want  int
		ok    bool
	}{
		{"exact numeral", "1", 1, true},
		{"padded numeral", "  0 ", 0, true},
		{"embedded numeral", "I would pick branch 1 here.", 1, true},
		{"out of range numeral ignored", "option 7", 0, false},
		{"exact id", "refund", 0, true},
		{"exact text", "Handle Shipping", 1, true},
		{"id substring", "the ship branch fits best", 1, true},
		{"text substring", "clearly this should handle refunds", 0, true},
		{"garbage", "no idea", 0, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseBranchReply(tc.reply, branches)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeBranches(t *testing.T) {
	t.Parallel()
	branches, err := decodeBranches([]any{
		map[string]any{"id": "a", "text": "contains \"x\""},
		map[string]any{"text": "default"},
	})
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "a", branches[0].ID)
	assert.Equal(t, "1", branches[1].ID, "missing id defaults to the index")

	_, err = decodeBranches("nope")
	require.Error(t, err)
	_, err = decodeBranches([]any{42})
	require.Error(t, err)
}
