package octree

import "github.com/Orrigine/OverScoped/geometry"

// NodeInfo is the read-only view of a node handed to external renderers.
type NodeInfo struct {
	Address Address       `json:"address"`
	State   Occupancy     `json:"state"`
	Bounds  geometry.AABB `json:"bounds"`
	Leaf    bool          `json:"leaf"`
}

// Walk calls fn for every node in arena order (breadth first) until fn
// returns false.
func (t *Octree) Walk(fn func(NodeInfo) bool) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if !fn(NodeInfo{Address: n.Address, State: n.State, Bounds: n.Bounds, Leaf: n.IsLeaf()}) {
			return
		}
	}
}

// Leaves returns every leaf, optionally filtered by state.
func (t *Octree) Leaves(states ...Occupancy) []NodeInfo {
	var out []NodeInfo
	t.Walk(func(n NodeInfo) bool {
		if !n.Leaf {
			return true
		}
		if len(states) == 0 {
			out = append(out, n)
			return true
		}
		for _, s := range states {
			if n.State == s {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}
