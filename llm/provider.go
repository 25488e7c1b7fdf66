package llm

import (
	"context"

	"github.com/agentflux/flowcore/types"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a text-generation request. No vendor API shape is assumed
// beyond "text in, text plus usage out".
type ChatRequest struct {
	Model       string            `json:"model,omitempty"`
	Messages    []Message         `json:"messages"`
	Temperature float32           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChatResponse is the generated text plus token/cost accounting.
type ChatResponse struct {
	Content string           `json:"content"`
	Model   string           `json:"model,omitempty"`
	Usage   types.TokenUsage `json:"usage"`
}

// Provider is the reasoning collaborator used by the condition evaluator and
// by text-generating node executors. Implementations must return a
// *types.Error for expected failure modes so the retry classifier can see
// the transient/permanent distinction.
type Provider interface {
	// Name returns the provider name for logging and tracing.
	Name() string
	// Complete performs a synchronous request/response generation call.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// StreamHandler receives incremental text deltas during a streaming call.
type StreamHandler func(delta string)

// StreamingProvider is implemented by providers capable of incremental
// delivery. The engine forwards deltas without blocking on completion.
type StreamingProvider interface {
	Provider
	// Stream performs a generation call, invoking onDelta for each partial
	// chunk, and returns the final assembled response.
	Stream(ctx context.Context, req *ChatRequest, onDelta StreamHandler) (*ChatResponse, error)
}
