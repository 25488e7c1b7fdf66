package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestResolver(outputs map[string]NodeOutput) *Resolver {
	state := NewFlowState("hello", nil)
	for id, out := range outputs {
		state.SetOutput(id, out)
	}
	return NewResolver(state, zap.NewNop())
}

func TestResolver_SimpleField(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"writer": &AIResponseOutput{Content: "a short poem", Model: "gpt-4o"},
	})
	assert.Equal(t, "Summarize: a short poem", r.Resolve("Summarize: {{writer.content}}"))
	assert.Equal(t, "used gpt-4o", r.Resolve("used {{writer.model}}"))
}

func TestResolver_MultipleTokens(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"a": &AIResponseOutput{Content: "one"},
		"b": &AIResponseOutput{Content: "two"},
	})
	assert.Equal(t, "one and two", r.Resolve("{{a.content}} and {{b.content}}"))
}

func TestResolver_UnknownNodeKeepsLiteral(t *testing.T) {
	t.Parallel()
	r := newTestResolver(nil)
	assert.Equal(t, "say {{ghost.content}}", r.Resolve("say {{ghost.content}}"))
}

func TestResolver_DeadEndPathKeepsLiteral(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"writer": &AIResponseOutput{Content: "x"},
	})
	assert.Equal(t, "{{writer.nope}}", r.Resolve("{{writer.nope}}"))
	assert.Equal(t, "{{writer.content.deeper}}", r.Resolve("{{writer.content.deeper}}"))
}

func TestResolver_NestedIntegrationData(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"crm": &IntegrationOutput{
			Service: "hubspot",
			Success: true,
			Data: map[string]any{
				"contact": map[string]any{"email": "a@b.c"},
				"items":   []any{"first", "second"},
			},
		},
	})
	// explicit data prefix and the shorthand that skips it
	assert.Equal(t, "a@b.c", r.Resolve("{{crm.data.contact.email}}"))
	assert.Equal(t, "a@b.c", r.Resolve("{{crm.contact.email}}"))
	assert.Equal(t, "second", r.Resolve("{{crm.items.1}}"))
	assert.Equal(t, "hubspot", r.Resolve("{{crm.service}}"))
}

func TestResolver_ArrayIndexOutOfRange(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"kb": &KnowledgeOutput{Query: "q", Results: []any{"only"}},
	})
	assert.Equal(t, "only", r.Resolve("{{kb.results.0}}"))
	assert.Equal(t, "{{kb.results.5}}", r.Resolve("{{kb.results.5}}"))
	assert.Equal(t, "{{kb.results.-1}}", r.Resolve("{{kb.results.-1}}"))
}

func TestResolver_StringifiesStructures(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"crm": &IntegrationOutput{Data: map[string]any{"tags": []any{"a", "b"}}},
	})
	assert.Equal(t, `["a","b"]`, r.Resolve("{{crm.tags}}"))
}

func TestResolver_NumericAndBoolFields(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"writer": &AIResponseOutput{Content: "x", TokensIn: 12, TokensOut: 34},
		"loop":   &LoopOutput{LoopNumber: 1, CurrentIndex: 2, CollectionSize: 5, Completed: true},
	})
	assert.Equal(t, "in 12 out 34", r.Resolve("in {{writer.tokensIn}} out {{writer.tokensOut}}"))
	assert.Equal(t, "2/5 done=true", r.Resolve("{{loop.currentIndex}}/{{loop.collectionSize}} done={{loop.completed}}"))
}

func TestResolver_TriggerAndConditionFields(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"start":  &TriggerOutput{Input: "ping", Timestamp: time.Unix(0, 0).UTC()},
		"router": &ConditionOutput{BranchID: "hot", BranchIndex: 1, Method: MethodDeterministic},
	})
	assert.Equal(t, "ping", r.Resolve("{{start.input}}"))
	assert.Equal(t, "hot via deterministic", r.Resolve("{{router.branch}} via {{router.method}}"))
}

func TestResolver_TokenWhitespace(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"a": &AIResponseOutput{Content: "ok"},
	})
	assert.Equal(t, "ok", r.Resolve("{{ a.content }}"))
}

func TestResolveConfig_StringsOnly(t *testing.T) {
	t.Parallel()
	r := newTestResolver(map[string]NodeOutput{
		"a": &AIResponseOutput{Content: "ok"},
	})
	cfg := map[string]any{
		"prompt":  "say {{a.content}}",
		"retries": 3,
		"nested":  map[string]any{"left": "{{a.content}}"},
	}
	resolved := r.ResolveConfig(cfg)
	assert.Equal(t, "say ok", resolved["prompt"])
	assert.Equal(t, 3, resolved["retries"])
	// resolution is shallow on purpose
	assert.Equal(t, map[string]any{"left": "{{a.content}}"}, resolved["nested"])
	assert.Nil(t, r.ResolveConfig(nil))
}
