package octree

import (
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

// TraceHit describes the first non-Open leaf met by a trace.
type TraceHit struct {
	Node     Node
	Distance float32
}

// LineOfSight traces the segment ab through the tree, inflated by half the
// clearance, and reports whether every leaf it passes is Open. Segments
// leaving the volume are blocked.
func (t *Octree) LineOfSight(a, b math32.Vector3, clearance float32) bool {
	_, hit := t.Trace(a, b, clearance)
	return !hit
}

// Trace returns the closest non-Open leaf crossed by the inflated segment ab.
func (t *Octree) Trace(a, b math32.Vector3, clearance float32) (TraceHit, bool) {
	bounds := t.volume.Bounds
	if !bounds.Contains(a) || !bounds.Contains(b) {
		return TraceHit{}, true
	}
	// shrink by a hair so that running along a shared face does not count
	// as entering the neighbour
	inflate := clearance/2 - t.volume.epsilon()
	dir := b.Sub(a)

	best := TraceHit{Distance: math32.MaxFloat32}
	found := false
	stack := []int32{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[idx]
		box := n.Bounds.Expand(inflate)
		if !geometry.SegmentAABB(a, b, box) {
			continue
		}
		if !n.IsLeaf() {
			for i := int32(0); i < 8; i++ {
				stack = append(stack, n.FirstChild+i)
			}
			continue
		}
		if n.State == Open {
			continue
		}
		tmin, _, _ := geometry.RayAABB(a, dir, box)
		if d := tmin * dir.Length(); d < best.Distance {
			best = TraceHit{Node: *n, Distance: d}
			found = true
		}
	}
	return best, found
}
