package flow

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FlowDefinition is the serializable form of a workflow graph, suitable for
// storing alongside the application or editing by hand.
type FlowDefinition struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []NodeDefinition `json:"nodes" yaml:"nodes"`
	Edges       []EdgeDefinition `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// NodeDefinition is one serializable node.
type NodeDefinition struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// EdgeDefinition is one serializable edge.
type EdgeDefinition struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
}

// FromYAML decodes a FlowDefinition from YAML (JSON is a YAML subset and
// decodes through the same path).
func FromYAML(data []byte) (*FlowDefinition, error) {
	var def FlowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode flow definition: %w", err)
	}
	return &def, nil
}

// LoadDefinition reads a FlowDefinition from a YAML or JSON file.
func LoadDefinition(filename string) (*FlowDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read flow definition: %w", err)
	}
	return FromYAML(data)
}

// ToYAML serializes the definition to YAML.
func (d *FlowDefinition) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal flow definition: %w", err)
	}
	return data, nil
}

// ToJSON serializes the definition to indented JSON.
func (d *FlowDefinition) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal flow definition: %w", err)
	}
	return data, nil
}

// Graph materializes the definition into the runtime Graph. Edge ids are
// synthesized when absent; config maps are normalized so YAML's
// map[any]any forms become the map[string]any the engine works with.
func (d *FlowDefinition) Graph() (*Graph, error) {
	nodes := make([]*Node, 0, len(d.Nodes))
	for _, nd := range d.Nodes {
		if nd.ID == "" {
			return nil, fmt.Errorf("node with type %q has no id", nd.Type)
		}
		nodes = append(nodes, &Node{
			ID:     nd.ID,
			Type:   NodeType(nd.Type),
			Label:  nd.Label,
			Config: normalizeMap(nd.Config),
		})
	}
	edges := make([]*Edge, 0, len(d.Edges))
	for i, ed := range d.Edges {
		id := ed.ID
		if id == "" {
			id = fmt.Sprintf("e%d-%s-%s", i, ed.Source, ed.Target)
		}
		edges = append(edges, &Edge{
			ID:           id,
			Source:       ed.Source,
			Target:       ed.Target,
			SourceHandle: ed.SourceHandle,
		})
	}
	return NewGraph(nodes, edges)
}

// normalizeMap converts YAML-decoded nested values into JSON-shaped
// map[string]any / []any structures.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalizeMap(x)
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprintf("%v", k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
