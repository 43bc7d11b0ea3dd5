// Package collision provides an in-memory collision world built from
// primitive geometry, usable as the collision source of an octree build.
package collision

import (
	"sync"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

// minSampleStep bounds the sampling step used for shapes without an exact
// swept test.
const minSampleStep = 0.05

// World is a set of solid geometries. It is safe for concurrent use.
type World struct {
	mu         sync.RWMutex
	geometries []geometry.Geometry
}

// NewWorld returns a world holding geoms.
func NewWorld(geoms ...geometry.Geometry) *World {
	w := &World{}
	w.Add(geoms...)
	return w
}

// Add appends geometries to the world.
func (w *World) Add(geoms ...geometry.Geometry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.geometries = append(w.geometries, geoms...)
}

// Reset removes every geometry.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.geometries = nil
}

// Len returns the number of geometries.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.geometries)
}

// Geometries returns a copy of the geometry list.
func (w *World) Geometries() []geometry.Geometry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]geometry.Geometry(nil), w.geometries...)
}

// Overlaps reports whether any geometry touches box.
func (w *World) Overlaps(box geometry.AABB) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, g := range w.geometries {
		if g.IntersectsAABB(box) {
			return true, nil
		}
	}
	return false, nil
}

// Encloses reports whether a single box geometry contains box entirely.
func (w *World) Encloses(box geometry.AABB) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, g := range w.geometries {
		if b, ok := g.(*geometry.Box); ok && b.ContainsAABB(box) {
			return true, nil
		}
	}
	return false, nil
}

// LineOfSight reports whether a cube of edge clearance can move from a to b
// without touching any geometry.
func (w *World) LineOfSight(a, b math32.Vector3, clearance float32) (bool, error) {
	half := clearance / 2
	sweep := geometry.NewAABB(a, b).Expand(half)

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, g := range w.geometries {
		if !g.GetBounds().Intersects(sweep) {
			continue
		}
		if blocks(g, a, b, half) {
			return false, nil
		}
	}
	return true, nil
}

func blocks(g geometry.Geometry, a, b math32.Vector3, half float32) bool {
	switch shape := g.(type) {
	case *geometry.Box:
		return geometry.SegmentAABB(a, b, shape.GetBounds().Expand(half))
	case *geometry.Capsule:
		return geometry.SegmentSegmentDistance(a, b, shape.Start, shape.End) <= shape.Radius+half
	case *geometry.Triangle:
		if !geometry.SegmentAABB(a, b, shape.GetBounds().Expand(half)) {
			return false
		}
		if geometry.SegmentTriangle(a, b, shape) {
			return true
		}
		if half == 0 {
			return false
		}
		return sampled(g, a, b, half)
	default:
		return sampled(g, a, b, half)
	}
}

// sampled sweeps the cube along ab in steps of half its edge.
func sampled(g geometry.Geometry, a, b math32.Vector3, half float32) bool {
	length := a.Distance(b)
	step := math32.Max(half, minSampleStep)
	steps := math32.CeilToInt(length / step)
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		p := a.Lerp(b, float32(i)/float32(steps))
		if g.IntersectsAABB(geometry.AABB{Min: p, Max: p}.Expand(half)) {
			return true
		}
	}
	return false
}
