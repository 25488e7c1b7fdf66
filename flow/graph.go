package flow

import "fmt"

// NodeType tags a node with the executor that runs it.
type NodeType string

const (
	// NodeTypeTrigger starts a flow and carries the initial user input.
	NodeTypeTrigger NodeType = "trigger"
	// NodeTypeAgent generates text through the language-model collaborator.
	NodeTypeAgent NodeType = "agent"
	// NodeTypeCondition performs multi-way branching.
	NodeTypeCondition NodeType = "condition"
	// NodeTypeLoopStart opens a bounded iteration over a collection.
	NodeTypeLoopStart NodeType = "loop-start"
	// NodeTypeLoopEnd closes a bounded iteration and re-queues the body.
	NodeTypeLoopEnd NodeType = "loop-end"
	// NodeTypeIntegration calls a third-party service connector.
	NodeTypeIntegration NodeType = "integration"
	// NodeTypeKnowledge searches an attached knowledge base.
	NodeTypeKnowledge NodeType = "knowledge-search"
	// NodeTypeNote is a structural annotation with no runtime behavior.
	NodeTypeNote NodeType = "note"
	// NodeTypeDisplay is a structural UI output surface with no runtime behavior.
	NodeTypeDisplay NodeType = "display"
)

// Node is one workflow step. Config is the free-form configuration bag
// supplied by the caller; it is interpreted per node type.
type Node struct {
	ID     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// DisplayLabel returns the node label, falling back to the id.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// IntConfig reads an integer config value, tolerating the numeric types a
// JSON or YAML decode produces.
func (n *Node) IntConfig(key string, def int) int {
	v, ok := n.Config[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return def
	}
}

// StringConfig reads a string config value.
func (n *Node) StringConfig(key string) string {
	if s, ok := n.Config[key].(string); ok {
		return s
	}
	return ""
}

// Edge is a directed control-flow link. SourceHandle disambiguates which
// edge to follow out of a multi-way node: a condition's branch id or a
// loop direction.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// AdjacencyEntry is one outgoing edge of a node, derived by BuildAdjacency
// and never hand-constructed.
type AdjacencyEntry struct {
	Target string
	Handle string
	EdgeID string
}

// Graph is the read-only workflow supplied once per run.
type Graph struct {
	Nodes []*Node
	Edges []*Edge

	byID map[string]*Node
}

// NewGraph builds a Graph and its node index. Duplicate node ids are
// rejected here because every later lookup assumes id uniqueness.
func NewGraph(nodes []*Node, edges []*Edge) (*Graph, error) {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		byID[n.ID] = n
	}
	return &Graph{Nodes: nodes, Edges: edges, byID: byID}, nil
}

// Node retrieves a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// LabelOf returns the display label for a node id, falling back to the id
// when the node is unknown.
func (g *Graph) LabelOf(id string) string {
	if n, ok := g.byID[id]; ok {
		return n.DisplayLabel()
	}
	return id
}
