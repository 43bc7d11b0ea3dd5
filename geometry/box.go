package geometry

import "github.com/Orrigine/OverScoped/math32"

// Box is a solid axis-aligned box given by its center and full size.
type Box struct {
	Center math32.Vector3 `json:"center" yaml:"center"`
	Size   math32.Vector3 `json:"size" yaml:"size"`
}

// BoxFromAABB returns the box occupying exactly aabb.
func BoxFromAABB(aabb AABB) Box {
	return Box{Center: aabb.Center(), Size: aabb.Size()}
}

// GetBounds returns the bounding box of the box
func (b *Box) GetBounds() AABB {
	halfSize := b.Size.Scale(0.5)
	return AABB{
		Min: b.Center.Sub(halfSize),
		Max: b.Center.Add(halfSize),
	}
}

// IntersectsAABB checks if the box intersects with an AABB
func (b *Box) IntersectsAABB(aabb AABB) bool {
	return b.GetBounds().Intersects(aabb)
}

// ContainsAABB checks if aabb lies entirely inside the box.
func (b *Box) ContainsAABB(aabb AABB) bool {
	return b.GetBounds().ContainsAABB(aabb)
}

// ContainsPoint checks if the point is inside the box
func (b *Box) ContainsPoint(point math32.Vector3) bool {
	return b.GetBounds().Contains(point)
}

func (b *Box) GetType() string {
	return TypeBox
}
