package flow

// loopNumberKey is the shared integer tag matching a loop-start node to its
// loop-end counterpart.
const loopNumberKey = "loopNumber"

// BuildAdjacency derives the adjacency map from source node id to its
// ordered outgoing edges. Edge declaration order is preserved so sibling
// dispatch order stays deterministic.
func BuildAdjacency(g *Graph) map[string][]AdjacencyEntry {
	adj := make(map[string][]AdjacencyEntry, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], AdjacencyEntry{
			Target: e.Target,
			Handle: e.SourceHandle,
			EdgeID: e.ID,
		})
	}
	return adj
}

// StartNodes selects the run's start set by priority: explicit trigger
// nodes first, else nodes with no incoming edge, else the first declared
// node for degenerate graphs.
func StartNodes(g *Graph) []string {
	var triggers []string
	for _, n := range g.Nodes {
		if n.Type == NodeTypeTrigger {
			triggers = append(triggers, n.ID)
		}
	}
	if len(triggers) > 0 {
		return triggers
	}

	hasIncoming := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasIncoming[e.Target] = true
	}
	var roots []string
	for _, n := range g.Nodes {
		if !hasIncoming[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	if len(roots) > 0 {
		return roots
	}

	if len(g.Nodes) > 0 {
		return []string{g.Nodes[0].ID}
	}
	return nil
}

// LoopBoundary is a matched loop-start/loop-end pair.
type LoopBoundary struct {
	Enter string
	Exit  string
}

// LoopBoundaries maps each loop number to its enter/exit pair, matched by
// the shared loopNumber tag on the two boundary node types. Pairs missing
// either side are still returned so the validator can report them.
func LoopBoundaries(g *Graph) map[int]LoopBoundary {
	bounds := make(map[int]LoopBoundary)
	for _, n := range g.Nodes {
		switch n.Type {
		case NodeTypeLoopStart:
			num := n.IntConfig(loopNumberKey, 0)
			b := bounds[num]
			b.Enter = n.ID
			bounds[num] = b
		case NodeTypeLoopEnd:
			num := n.IntConfig(loopNumberKey, 0)
			b := bounds[num]
			b.Exit = n.ID
			bounds[num] = b
		}
	}
	return bounds
}

// LoopBody returns the set of node ids reachable from enter without passing
// through exit, breadth-first, with exit itself excluded. This is the body
// re-queued on each loop iteration.
func LoopBody(adj map[string][]AdjacencyEntry, enter, exit string) map[string]struct{} {
	body := make(map[string]struct{})
	visited := map[string]bool{enter: true, exit: true}
	queue := []string{}
	for _, entry := range adj[enter] {
		if !visited[entry.Target] {
			visited[entry.Target] = true
			queue = append(queue, entry.Target)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		body[id] = struct{}{}
		for _, entry := range adj[id] {
			if !visited[entry.Target] {
				visited[entry.Target] = true
				queue = append(queue, entry.Target)
			}
		}
	}
	return body
}
