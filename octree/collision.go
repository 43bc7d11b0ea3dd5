package octree

import (
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

// CollisionQuery is the world geometry the octree is built against. It is
// supplied by the application; implementations must be safe for concurrent
// use because subtrees are classified in parallel.
type CollisionQuery interface {
	// Overlaps reports whether any solid geometry touches the closed box.
	Overlaps(box geometry.AABB) (bool, error)
	// LineOfSight reports whether a cube of edge clearance can travel from a
	// to b without touching solid geometry.
	LineOfSight(a, b math32.Vector3, clearance float32) (bool, error)
}

// SolidityQuery is optionally implemented by collision sources that can tell
// when a box is entirely solid, which lets the builder stop subdividing early.
type SolidityQuery interface {
	Encloses(box geometry.AABB) (bool, error)
}
