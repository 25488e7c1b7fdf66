package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/agentflux/flowcore/llm"
)

// Branch is one candidate out of a multi-way condition node.
type Branch struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Decision is the evaluator's choice of branch.
type Decision struct {
	BranchID    string
	BranchIndex int
	Method      DecisionMethod
	Reasoning   string
}

// decodeBranches decodes the generic "branches" config value into typed
// candidates. Malformed entries are a structural error surfaced by the
// validator, not a runtime panic.
func decodeBranches(raw any) ([]Branch, error) {
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]Branch); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("branches must be a list, got %T", raw)
	}
	branches := make([]Branch, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("branch %d must be an object, got %T", i, item)
		}
		b := Branch{}
		if id, ok := entry["id"].(string); ok {
			b.ID = id
		}
		if text, ok := entry["text"].(string); ok {
			b.Text = text
		}
		if b.ID == "" {
			b.ID = strconv.Itoa(i)
		}
		branches = append(branches, b)
	}
	return branches, nil
}

// catchAllKeywords are branch texts that match anything when no specific
// rule fires.
var catchAllKeywords = map[string]bool{
	"default":           true,
	"else":              true,
	"other":             true,
	"otherwise":         true,
	"fallback":          true,
	"catch-all":         true,
	"no match":          true,
	"none of the above": true,
}

// truthyKeywords are branch texts that always match.
var truthyKeywords = map[string]bool{
	"true":   true,
	"yes":    true,
	"always": true,
}

var containsPattern = regexp.MustCompile(`^contains\s+"(.*)"$`)

// Evaluator chooses a branch out of a condition node, trying deterministic
// pattern rules first and falling back to the reasoning collaborator.
type Evaluator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewEvaluator creates an Evaluator. The provider may be nil, in which case
// the delegated fallback degrades to branch 0.
func NewEvaluator(provider llm.Provider, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		provider: provider,
		logger:   logger.With(zap.String("component", "condition")),
	}
}

// Evaluate picks a branch. Branch texts are resolved against prior outputs
// before rule matching. The result always names a valid branch: the
// fallback cascade guarantees the workflow is never left stuck.
func (e *Evaluator) Evaluate(ctx context.Context, branches []Branch, state *FlowState, g *Graph, r *Resolver) *Decision {
	if len(branches) == 0 {
		return &Decision{BranchIndex: 0, Method: MethodDeterministic}
	}

	texts := make([]string, len(branches))
	for i, b := range branches {
		texts[i] = strings.ToLower(strings.TrimSpace(r.Resolve(b.Text)))
	}
	subject := strings.ToLower(state.LatestText())

	// Deterministic pass: specific rules in candidate order, earliest
	// match wins. Catch-all branches are held back so they only fire
	// when no specific rule matched.
	for i, text := range texts {
		if matchesRule(text, subject) {
			e.logger.Debug("deterministic rule matched",
				zap.Int("branch_index", i),
				zap.String("branch_text", text),
			)
			return &Decision{BranchID: branches[i].ID, BranchIndex: i, Method: MethodDeterministic}
		}
	}
	for i, text := range texts {
		if catchAllKeywords[text] {
			return &Decision{BranchID: branches[i].ID, BranchIndex: i, Method: MethodDeterministic}
		}
	}

	return e.delegate(ctx, branches, state, g)
}

// matchesRule applies the specific deterministic rules to one branch text.
func matchesRule(text, subject string) bool {
	if truthyKeywords[text] {
		return true
	}
	if m := containsPattern.FindStringSubmatch(text); m != nil {
		return m[1] != "" && strings.Contains(subject, strings.ToLower(m[1]))
	}
	switch text {
	case "is_empty":
		return subject == ""
	case "is_not_empty":
		return subject != ""
	}
	return false
}

// delegate asks the reasoning collaborator to choose a branch by number at
// zero sampling temperature, then parses the reply with cascading
// strategies. The collaborator's output format cannot be strictly
// constrained, so the cascade ends in a guaranteed default of branch 0.
func (e *Evaluator) delegate(ctx context.Context, branches []Branch, state *FlowState, g *Graph) *Decision {
	fallback := &Decision{BranchID: branches[0].ID, BranchIndex: 0, Method: MethodDelegated}
	if e.provider == nil {
		e.logger.Warn("no reasoning provider configured, defaulting to first branch")
		return fallback
	}

	resp, err := e.provider.Complete(ctx, &llm.ChatRequest{
		Temperature: 0,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You route a workflow. Reply with the number of the branch that best matches the context."},
			{Role: llm.RoleUser, Content: e.buildPrompt(branches, state, g)},
		},
	})
	if err != nil {
		e.logger.Warn("branch delegation failed, defaulting to first branch", zap.Error(err))
		return fallback
	}

	idx, ok := parseBranchReply(resp.Content, branches)
	if !ok {
		e.logger.Warn("could not parse branch decision, defaulting to first branch",
			zap.String("reply", resp.Content),
		)
		idx = 0
	}
	return &Decision{
		BranchID:    branches[idx].ID,
		BranchIndex: idx,
		Method:      MethodDelegated,
		Reasoning:   strings.TrimSpace(resp.Content),
	}
}

// buildPrompt summarizes every prior node's output using display labels
// rather than raw ids to reduce ambiguity for the collaborator.
func (e *Evaluator) buildPrompt(branches []Branch, state *FlowState, g *Graph) string {
	var sb strings.Builder
	sb.WriteString("Context so far:\n")
	for _, nodeID := range state.OutputOrder() {
		out, _ := state.Output(nodeID)
		label := nodeID
		if g != nil {
			label = g.LabelOf(nodeID)
		}
		text := OutputText(out)
		if text == "" {
			text = string(out.Kind())
		}
		fmt.Fprintf(&sb, "- %s: %s\n", label, text)
	}
	sb.WriteString("\nBranches:\n")
	for i, b := range branches {
		fmt.Fprintf(&sb, "%d. %s\n", i, b.Text)
	}
	sb.WriteString("\nAnswer with the branch number only.")
	return sb.String()
}

var numeralPattern = regexp.MustCompile(`\d+`)

// parseBranchReply parses a free-text branch decision through an ordered
// strategy list: exact numeral, first embedded numeral, exact id, exact
// text, id substring, text substring.
func parseBranchReply(reply string, branches []Branch) (int, bool) {
	trimmed := strings.TrimSpace(reply)
	lower := strings.ToLower(trimmed)

	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 && n < len(branches) {
		return n, true
	}
	if m := numeralPattern.FindString(trimmed); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n >= 0 && n < len(branches) {
			return n, true
		}
	}
	for i, b := range branches {
		if b.ID != "" && strings.EqualFold(trimmed, b.ID) {
			return i, true
		}
	}
	for i, b := range branches {
		if b.Text != "" && strings.EqualFold(trimmed, b.Text) {
			return i, true
		}
	}
	for i, b := range branches {
		if b.ID != "" && strings.Contains(lower, strings.ToLower(b.ID)) {
			return i, true
		}
	}
	for i, b := range branches {
		if b.Text != "" && strings.Contains(lower, strings.ToLower(b.Text)) {
			return i, true
		}
	}
	return 0, false
}
