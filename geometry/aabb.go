package geometry

import "github.com/Orrigine/OverScoped/math32"

// AABB is axis-aligned bounding box
type AABB struct {
	Min math32.Vector3 `json:"min" yaml:"min" msgpack:"min"`
	Max math32.Vector3 `json:"max" yaml:"max" msgpack:"max"`
}

// NewAABB returns the box spanning the two corners in any order.
func NewAABB(a, b math32.Vector3) AABB {
	return AABB{Min: a.Min(b), Max: a.Max(b)}
}

// Contains checks if the point is inside the AABB
func (aabb AABB) Contains(point math32.Vector3) bool {
	return point.X >= aabb.Min.X && point.X <= aabb.Max.X &&
		point.Y >= aabb.Min.Y && point.Y <= aabb.Max.Y &&
		point.Z >= aabb.Min.Z && point.Z <= aabb.Max.Z
}

// ContainsAABB checks if other lies entirely inside the AABB.
func (aabb AABB) ContainsAABB(other AABB) bool {
	return aabb.Contains(other.Min) && aabb.Contains(other.Max)
}

// Center returns the center of the AABB
func (aabb AABB) Center() math32.Vector3 {
	return aabb.Min.Add(aabb.Max).Scale(0.5)
}

// Size returns the size of the AABB
func (aabb AABB) Size() math32.Vector3 {
	return aabb.Max.Sub(aabb.Min)
}

// Intersects checks if the closed boxes share at least one point.
func (aabb AABB) Intersects(other AABB) bool {
	return aabb.Min.X <= other.Max.X && aabb.Max.X >= other.Min.X &&
		aabb.Min.Y <= other.Max.Y && aabb.Max.Y >= other.Min.Y &&
		aabb.Min.Z <= other.Max.Z && aabb.Max.Z >= other.Min.Z
}

// Touches is Intersects with a tolerance of eps on every axis.
func (aabb AABB) Touches(other AABB, eps float32) bool {
	return aabb.Expand(eps).Intersects(other)
}

// OverlapsInterior checks if the open interiors of the boxes intersect,
// shrinking both by eps first.
func (aabb AABB) OverlapsInterior(other AABB, eps float32) bool {
	return aabb.Min.X+eps < other.Max.X && aabb.Max.X-eps > other.Min.X &&
		aabb.Min.Y+eps < other.Max.Y && aabb.Max.Y-eps > other.Min.Y &&
		aabb.Min.Z+eps < other.Max.Z && aabb.Max.Z-eps > other.Min.Z
}

// IsEmpty checks if the AABB is empty (invalid)
func (aabb AABB) IsEmpty() bool {
	return aabb.Min.X >= aabb.Max.X || aabb.Min.Y >= aabb.Max.Y || aabb.Min.Z >= aabb.Max.Z
}

// Expand grows the box by r on every side.
func (aabb AABB) Expand(r float32) AABB {
	d := math32.Splat(r)
	return AABB{Min: aabb.Min.Sub(d), Max: aabb.Max.Add(d)}
}

// Union returns the smallest box containing both boxes.
func (aabb AABB) Union(other AABB) AABB {
	return AABB{Min: aabb.Min.Min(other.Min), Max: aabb.Max.Max(other.Max)}
}

// Intersection returns the box shared by both boxes. It is empty when they
// do not intersect and flat when they only touch.
func (aabb AABB) Intersection(other AABB) AABB {
	return AABB{Min: aabb.Min.Max(other.Min), Max: aabb.Max.Min(other.Max)}
}

// Octant returns the child box i of an even split, where bit 0 of i selects
// the upper x half, bit 1 the upper y half and bit 2 the upper z half.
func (aabb AABB) Octant(i uint8) AABB {
	c := aabb.Center()
	out := AABB{Min: aabb.Min, Max: c}
	if i&1 != 0 {
		out.Min.X, out.Max.X = c.X, aabb.Max.X
	}
	if i&2 != 0 {
		out.Min.Y, out.Max.Y = c.Y, aabb.Max.Y
	}
	if i&4 != 0 {
		out.Min.Z, out.Max.Z = c.Z, aabb.Max.Z
	}
	return out
}

// ClosestPoint returns the point of the box closest to p.
func (aabb AABB) ClosestPoint(p math32.Vector3) math32.Vector3 {
	return math32.Vector3{
		X: math32.Clamp(p.X, aabb.Min.X, aabb.Max.X),
		Y: math32.Clamp(p.Y, aabb.Min.Y, aabb.Max.Y),
		Z: math32.Clamp(p.Z, aabb.Min.Z, aabb.Max.Z),
	}
}
