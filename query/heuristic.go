package query

import (
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
)

// estimate returns the scaled heuristic distance between two points.
func (o Options) estimate(a, b math32.Vector3) float32 {
	var d float32
	switch o.Heuristic {
	case Manhattan:
		d = a.ManhattanDistance(b)
	default:
		d = a.Distance(b)
	}
	return d * o.HeuristicScale
}

// traversal returns the cost of moving between two node centres.
func (o Options) traversal(a, b math32.Vector3) float32 {
	if o.Cost == FixedCost {
		return o.FixedCost
	}
	return a.Distance(b)
}

// compensation returns the factor applied to f for a node of size s.
func (o Options) compensation(n octree.Node, leafSize float32) float32 {
	if !o.NodeSizeCompensation || leafSize <= 0 {
		return 1
	}
	return 1 / math32.Max(1, n.Size()/leafSize)
}
