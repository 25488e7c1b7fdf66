package flow

import (
	"fmt"

	"go.uber.org/zap"
)

// ValidationResult is the outcome of the pre-run static checks. Valid is
// false iff Errors is non-empty; execution must not proceed when invalid.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	StartNodeIDs []string `json:"startNodeIds,omitempty"`
}

// Validator runs the static graph checks once before dispatch. It never
// mutates the graph.
type Validator struct {
	logger *zap.Logger
	creds  CredentialChecker
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithCredentialChecker enables integration-credential warnings.
func WithCredentialChecker(c CredentialChecker) ValidatorOption {
	return func(v *Validator) { v.creds = c }
}

// NewValidator creates a Validator. A nil logger selects a no-op logger.
func NewValidator(logger *zap.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{logger: logger.With(zap.String("component", "validator"))}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the structural checks in order, accumulating human-readable
// errors and warnings. Field-level and credential findings are warnings
// only; everything else is fatal to the run.
func (v *Validator) Validate(g *Graph) *ValidationResult {
	res := &ValidationResult{}

	if g == nil || len(g.Nodes) == 0 {
		res.Errors = append(res.Errors, "flow has no nodes")
		return res
	}

	// Orphan edges
	for _, e := range g.Edges {
		if _, ok := g.Node(e.Source); !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("edge %s references missing source node %s", e.ID, e.Source))
		}
		if _, ok := g.Node(e.Target); !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("edge %s references missing target node %s", e.ID, e.Target))
		}
	}

	// Start set
	res.StartNodeIDs = StartNodes(g)
	if len(res.StartNodeIDs) == 0 {
		res.Errors = append(res.Errors, "flow has no start node")
	}

	// Loop integrity
	for num, b := range LoopBoundaries(g) {
		if b.Enter == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("loop %d has an exit node but no enter node", num))
		}
		if b.Exit == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("loop %d has an enter node but no exit node", num))
		}
	}

	// Per-node config decoding and field-level checks
	for _, n := range g.Nodes {
		v.checkNode(n, res)
	}

	// Cycle freedom over the reduced edge set
	v.checkCycles(g, res)

	res.Valid = len(res.Errors) == 0
	if !res.Valid {
		v.logger.Warn("flow validation failed",
			zap.Int("errors", len(res.Errors)),
			zap.Int("warnings", len(res.Warnings)),
		)
	}
	return res
}

// checkNode decodes the typed view of a node's config. A malformed value is
// a structural error; a missing recommended field or missing integration
// credential is a warning.
func (v *Validator) checkNode(n *Node, res *ValidationResult) {
	spec, known := SpecFor(n.Type)
	if !known {
		res.Warnings = append(res.Warnings, fmt.Sprintf("node %s has unrecognized type %q", n.DisplayLabel(), n.Type))
		return
	}

	switch n.Type {
	case NodeTypeLoopStart, NodeTypeLoopEnd:
		if raw, present := n.Config[loopNumberKey]; present {
			switch raw.(type) {
			case int, int64, float64:
			default:
				res.Errors = append(res.Errors, fmt.Sprintf("node %s: %s must be a number, got %T", n.DisplayLabel(), loopNumberKey, raw))
			}
		}
	case NodeTypeCondition:
		if raw, present := n.Config["branches"]; present {
			if _, err := decodeBranches(raw); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("node %s: %v", n.DisplayLabel(), err))
			}
		}
	}

	for _, field := range spec.RequiredFields {
		if _, present := n.Config[field]; !present {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %s is missing recommended field %q", n.DisplayLabel(), field))
		}
	}

	if spec.Integration != "" && v.creds != nil {
		if service := n.StringConfig(spec.Integration); service != "" && !v.creds.HasCredentials(service) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %s uses integration %q without configured credentials", n.DisplayLabel(), service))
		}
	}
}

// checkCycles runs a topological sort over a reduced edge set: edges whose
// source is a loop-end boundary are intentional loop-back paths and are
// excluded, and structural pass-through nodes are collapsed so they do not
// register as graph participants.
func (v *Validator) checkCycles(g *Graph, res *ValidationResult) {
	type redEdge struct{ from, to string }

	var edges []redEdge
	for _, e := range g.Edges {
		src, ok := g.Node(e.Source)
		if !ok {
			continue
		}
		if _, ok := g.Node(e.Target); !ok {
			continue
		}
		if src.Type == NodeTypeLoopEnd {
			continue
		}
		edges = append(edges, redEdge{from: e.Source, to: e.Target})
	}

	// Collapse structural nodes: replace A -> structural -> B with A -> B.
	for _, n := range g.Nodes {
		if !n.Type.Structural() {
			continue
		}
		var in, out []redEdge
		var rest []redEdge
		for _, e := range edges {
			switch {
			case e.to == n.ID && e.from == n.ID:
				// structural self-edge, drop
			case e.to == n.ID:
				in = append(in, e)
			case e.from == n.ID:
				out = append(out, e)
			default:
				rest = append(rest, e)
			}
		}
		for _, i := range in {
			for _, o := range out {
				rest = append(rest, redEdge{from: i.from, to: o.to})
			}
		}
		edges = rest
	}

	indeg := make(map[string]int)
	succ := make(map[string][]string)
	participants := make(map[string]bool)
	for _, e := range edges {
		indeg[e.to]++
		succ[e.from] = append(succ[e.from], e.to)
		participants[e.from] = true
		participants[e.to] = true
	}

	var queue []string
	for _, n := range g.Nodes {
		if participants[n.ID] && indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	sorted := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted++
		for _, next := range succ[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if sorted == len(participants) {
		return
	}
	for _, n := range g.Nodes {
		if participants[n.ID] && indeg[n.ID] > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("flow contains a cycle involving node %s", n.DisplayLabel()))
			return
		}
	}
}
