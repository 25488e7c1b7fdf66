package flow

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutputKind tags the variant of a NodeOutput.
type OutputKind string

const (
	KindTrigger     OutputKind = "trigger"
	KindAIResponse  OutputKind = "ai-response"
	KindCondition   OutputKind = "condition"
	KindLoop        OutputKind = "loop"
	KindIntegration OutputKind = "integration"
	KindKnowledge   OutputKind = "knowledge-search"
	KindPassthrough OutputKind = "passthrough"
	KindError       OutputKind = "error"
)

// NodeOutput is the typed result of executing one node: a closed set of
// variants, exactly one per node per execution, immutable once recorded.
// All field access switches exhaustively on Kind; the resolver's per-kind
// field table is a direct enumeration of this union.
type NodeOutput interface {
	Kind() OutputKind
}

// TriggerOutput carries the initial user input into the flow.
type TriggerOutput struct {
	Input     string    `json:"input"`
	Timestamp time.Time `json:"timestamp"`
}

func (*TriggerOutput) Kind() OutputKind { return KindTrigger }

// AIResponseOutput is the result of a text-generation node.
type AIResponseOutput struct {
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"`
	TokensIn  int    `json:"tokensIn,omitempty"`
	TokensOut int    `json:"tokensOut,omitempty"`
}

func (*AIResponseOutput) Kind() OutputKind { return KindAIResponse }

// DecisionMethod records how a condition branch was chosen.
type DecisionMethod string

const (
	// MethodDeterministic means a pattern rule selected the branch.
	MethodDeterministic DecisionMethod = "deterministic"
	// MethodDelegated means the reasoning collaborator selected the branch.
	MethodDelegated DecisionMethod = "delegated"
)

// ConditionOutput records the branch a condition node chose.
type ConditionOutput struct {
	BranchID    string         `json:"branch"`
	BranchIndex int            `json:"branchIndex"`
	Method      DecisionMethod `json:"method"`
	Reasoning   string         `json:"reasoning,omitempty"`
}

func (*ConditionOutput) Kind() OutputKind { return KindCondition }

// LoopOutput records the iteration state of a loop boundary node.
type LoopOutput struct {
	LoopNumber     int  `json:"loopNumber"`
	CurrentIndex   int  `json:"currentIndex"`
	CollectionSize int  `json:"collectionSize"`
	Completed      bool `json:"completed"`
}

func (*LoopOutput) Kind() OutputKind { return KindLoop }

// IntegrationOutput is the result of a third-party connector call.
type IntegrationOutput struct {
	Service string         `json:"service"`
	Action  string         `json:"action"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
}

func (*IntegrationOutput) Kind() OutputKind { return KindIntegration }

// KnowledgeOutput is the result of a knowledge-base search node.
type KnowledgeOutput struct {
	Query   string `json:"query"`
	Results []any  `json:"results,omitempty"`
}

func (*KnowledgeOutput) Kind() OutputKind { return KindKnowledge }

// PassthroughOutput is produced by structural node types without dispatch.
type PassthroughOutput struct{}

func (*PassthroughOutput) Kind() OutputKind { return KindPassthrough }

// ErrorOutput is an executor's clean report of an expected failure mode.
type ErrorOutput struct {
	Message string `json:"message"`
}

func (*ErrorOutput) Kind() OutputKind { return KindError }

// outputEnvelope is the wire form of the union for checkpoint persistence.
type outputEnvelope struct {
	Kind OutputKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalOutput serializes a NodeOutput into its tagged wire form.
func MarshalOutput(o NodeOutput) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal %s output: %w", o.Kind(), err)
	}
	return json.Marshal(outputEnvelope{Kind: o.Kind(), Data: data})
}

// UnmarshalOutput decodes a NodeOutput from its tagged wire form.
func UnmarshalOutput(raw []byte) (NodeOutput, error) {
	var env outputEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode output envelope: %w", err)
	}

	var out NodeOutput
	switch env.Kind {
	case KindTrigger:
		out = &TriggerOutput{}
	case KindAIResponse:
		out = &AIResponseOutput{}
	case KindCondition:
		out = &ConditionOutput{}
	case KindLoop:
		out = &LoopOutput{}
	case KindIntegration:
		out = &IntegrationOutput{}
	case KindKnowledge:
		out = &KnowledgeOutput{}
	case KindPassthrough:
		out = &PassthroughOutput{}
	case KindError:
		out = &ErrorOutput{}
	default:
		return nil, fmt.Errorf("unknown output kind: %q", env.Kind)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", env.Kind, err)
	}
	return out, nil
}

// OutputText extracts the primary textual content of an output, used by the
// condition evaluator and the loop controller. Structural and bookkeeping
// variants have no text.
func OutputText(o NodeOutput) string {
	switch v := o.(type) {
	case *TriggerOutput:
		return v.Input
	case *AIResponseOutput:
		return v.Content
	case *IntegrationOutput:
		if v.Data == nil {
			return ""
		}
		b, err := json.Marshal(v.Data)
		if err != nil {
			return ""
		}
		return string(b)
	case *KnowledgeOutput:
		if len(v.Results) == 0 {
			return ""
		}
		b, err := json.Marshal(v.Results)
		if err != nil {
			return ""
		}
		return string(b)
	case *ErrorOutput:
		return v.Message
	default:
		return ""
	}
}
