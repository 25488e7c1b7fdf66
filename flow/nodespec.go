package flow

// NodeSpec declares the static properties of a node type: whether it is a
// pure pass-through structural type, which config fields the validator
// should expect, and which external integration it depends on.
//
// Structural is a declared property here, not a hardcoded list inside the
// validator, so adding a new structural type cannot silently produce
// false-positive cycles during the topological check.
type NodeSpec struct {
	Type NodeType
	// Structural marks pass-through node types that are collapsed during
	// cycle detection and produce a passthrough output without dispatch.
	Structural bool
	// RequiredFields lists config keys the validator warns about when absent.
	RequiredFields []string
	// Integration names the external service credential the node needs,
	// empty when none.
	Integration string
}

var nodeSpecs = map[NodeType]NodeSpec{
	NodeTypeTrigger:     {Type: NodeTypeTrigger},
	NodeTypeAgent:       {Type: NodeTypeAgent, RequiredFields: []string{"prompt"}},
	NodeTypeCondition:   {Type: NodeTypeCondition, RequiredFields: []string{"branches"}},
	NodeTypeLoopStart:   {Type: NodeTypeLoopStart, RequiredFields: []string{"loopNumber"}},
	NodeTypeLoopEnd:     {Type: NodeTypeLoopEnd, RequiredFields: []string{"loopNumber"}},
	NodeTypeIntegration: {Type: NodeTypeIntegration, RequiredFields: []string{"service", "action"}, Integration: "service"},
	NodeTypeKnowledge:   {Type: NodeTypeKnowledge, RequiredFields: []string{"query"}},
	NodeTypeNote:        {Type: NodeTypeNote, Structural: true},
	NodeTypeDisplay:     {Type: NodeTypeDisplay, Structural: true},
}

// SpecFor returns the declared spec for a node type.
func SpecFor(t NodeType) (NodeSpec, bool) {
	s, ok := nodeSpecs[t]
	return s, ok
}

// Structural reports whether the type is a declared pass-through type.
func (t NodeType) Structural() bool {
	return nodeSpecs[t].Structural
}

// CredentialChecker reports whether credentials for an integration service
// are configured. It is consulted by the validator for warnings only.
type CredentialChecker interface {
	HasCredentials(service string) bool
}
