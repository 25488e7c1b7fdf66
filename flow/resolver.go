package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// tokenPattern matches {{nodeId.path.to.field}} references embedded in free
// text. The first segment is the producing node's id, the rest is a field
// path into its output.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\.([A-Za-z0-9_.\-]+)\s*\}\}`)

// Resolver substitutes references to prior node outputs into text and node
// configuration values. Unresolved tokens are non-fatal: they degrade to
// literal text and log a warning, never fail the run.
type Resolver struct {
	state  *FlowState
	logger *zap.Logger
}

// NewResolver creates a resolver over one run's output store.
func NewResolver(state *FlowState, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		state:  state,
		logger: logger.With(zap.String("component", "resolver")),
	}
}

// Resolve replaces every {{nodeId.path}} token in text with the referenced
// output value. Tokens naming a node absent from the output store, or a
// path that dead-ends, are preserved as literal text.
func (r *Resolver) Resolve(text string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		nodeID, path := groups[1], groups[2]

		out, ok := r.state.Output(nodeID)
		if !ok {
			r.logger.Warn("variable references node with no recorded output",
				zap.String("node_id", nodeID),
				zap.String("token", match),
			)
			return match
		}

		segments := strings.Split(path, ".")
		value, ok := fieldValue(out, segments[0])
		if !ok {
			r.logger.Warn("variable path did not resolve",
				zap.String("node_id", nodeID),
				zap.String("path", path),
			)
			return match
		}
		for _, seg := range segments[1:] {
			value, ok = traverse(value, seg)
			if !ok {
				r.logger.Warn("variable path did not resolve",
					zap.String("node_id", nodeID),
					zap.String("path", path),
				)
				return match
			}
		}
		return stringify(value)
	})
}

// ResolveConfig resolves every string-valued field of a shallow
// configuration object in one pass; non-string fields pass through
// unchanged.
func (r *Resolver) ResolveConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	resolved := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if s, ok := v.(string); ok {
			resolved[k] = r.Resolve(s)
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

// fieldValue extracts the first path segment through the per-output-kind
// field table. Unknown fields fall back to direct property access on the
// whole output object; integration outputs additionally forward unmatched
// names into their nested data object as a convenience.
func fieldValue(out NodeOutput, field string) (any, bool) {
	switch v := out.(type) {
	case *TriggerOutput:
		switch field {
		case "input":
			return v.Input, true
		case "timestamp":
			return v.Timestamp, true
		}
	case *AIResponseOutput:
		switch field {
		case "content":
			return v.Content, true
		case "model":
			return v.Model, true
		case "tokensIn":
			return v.TokensIn, true
		case "tokensOut":
			return v.TokensOut, true
		}
	case *ConditionOutput:
		switch field {
		case "branch":
			return v.BranchID, true
		case "branchIndex":
			return v.BranchIndex, true
		case "method":
			return string(v.Method), true
		case "reasoning":
			return v.Reasoning, true
		}
	case *LoopOutput:
		switch field {
		case "loopNumber":
			return v.LoopNumber, true
		case "currentIndex":
			return v.CurrentIndex, true
		case "collectionSize":
			return v.CollectionSize, true
		case "completed":
			return v.Completed, true
		}
	case *IntegrationOutput:
		switch field {
		case "data":
			return v.Data, true
		case "service":
			return v.Service, true
		case "action":
			return v.Action, true
		case "success":
			return v.Success, true
		default:
			if v.Data != nil {
				if nested, ok := v.Data[field]; ok {
					return nested, true
				}
			}
		}
	case *KnowledgeOutput:
		switch field {
		case "query":
			return v.Query, true
		case "results":
			return v.Results, true
		}
	case *ErrorOutput:
		if field == "message" {
			return v.Message, true
		}
	case *PassthroughOutput:
		// no addressable fields
	}
	return propertyAccess(out, field)
}

// propertyAccess looks the field up on the output's generic object form.
func propertyAccess(out NodeOutput, field string) (any, bool) {
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok
}

// traverse steps one path segment into a nested object or array; numeric
// segments index arrays. Traversal stops the moment it hits a nil or
// non-traversable value.
func traverse(value any, segment string) (any, bool) {
	if value == nil {
		return nil, false
	}
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[segment]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		// Re-enter through the generic object form for struct-typed values.
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, false
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, false
		}
		switch generic.(type) {
		case map[string]any, []any:
			return traverse(generic, segment)
		}
		return nil, false
	}
}

// stringify renders a resolved value: objects and arrays serialize to their
// JSON form, primitives stringify as-is.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
