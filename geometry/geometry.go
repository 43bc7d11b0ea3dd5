package geometry

import "github.com/Orrigine/OverScoped/math32"

// Geometry is a solid shape of the collision world.
type Geometry interface {
	GetBounds() AABB
	IntersectsAABB(aabb AABB) bool
	ContainsPoint(point math32.Vector3) bool
	GetType() string
}

const (
	TypeBox      = "box"
	TypeTriangle = "triangle"
	TypeCapsule  = "capsule"
)
