package geometry

import "github.com/Orrigine/OverScoped/math32"

// Triangle is a triangle geometry
type Triangle struct {
	A math32.Vector3 `json:"a" yaml:"a"`
	B math32.Vector3 `json:"b" yaml:"b"`
	C math32.Vector3 `json:"c" yaml:"c"`
}

// GetBounds returns the bounding box of the triangle
func (t *Triangle) GetBounds() AABB {
	return AABB{
		Min: t.A.Min(t.B).Min(t.C),
		Max: t.A.Max(t.B).Max(t.C),
	}
}

var boxAxes = [3]math32.Vector3{{X: 1}, {Y: 1}, {Z: 1}}

// IntersectsAABB runs the separating axis test between the triangle and aabb.
func (t *Triangle) IntersectsAABB(aabb AABB) bool {
	if !t.GetBounds().Intersects(aabb) {
		return false
	}
	if aabb.Contains(t.A) || aabb.Contains(t.B) || aabb.Contains(t.C) {
		return true
	}

	// work relative to the box center
	center := aabb.Center()
	halfSize := aabb.Size().Scale(0.5)
	v0 := t.A.Sub(center)
	v1 := t.B.Sub(center)
	v2 := t.C.Sub(center)

	edges := [3]math32.Vector3{v1.Sub(v0), v2.Sub(v1), v0.Sub(v2)}

	if normal := edges[0].Cross(edges[1]); normal.LengthSquared() > 1e-20 {
		if separated(normal, v0, v1, v2, halfSize) {
			return false
		}
	}

	// the box face normals are already covered by the bounds test above
	for _, axis := range boxAxes {
		for _, edge := range edges {
			cross := axis.Cross(edge)
			if cross.LengthSquared() < 1e-20 {
				continue
			}
			if separated(cross, v0, v1, v2, halfSize) {
				return false
			}
		}
	}
	return true
}

// separated reports whether axis separates the triangle from the box
// centered at the origin with the given half size.
func separated(axis, v0, v1, v2, halfSize math32.Vector3) bool {
	p0 := v0.Dot(axis)
	p1 := v1.Dot(axis)
	p2 := v2.Dot(axis)
	lo := math32.Min(math32.Min(p0, p1), p2)
	hi := math32.Max(math32.Max(p0, p1), p2)
	r := math32.Abs(halfSize.X*axis.X) + math32.Abs(halfSize.Y*axis.Y) + math32.Abs(halfSize.Z*axis.Z)
	return hi < -r || lo > r
}

// ContainsPoint treats the triangle as a thin solid: a point is inside when
// it lies on the triangle plane within its bounds.
func (t *Triangle) ContainsPoint(point math32.Vector3) bool {
	if !t.GetBounds().Contains(point) {
		return false
	}
	n := t.GetNormal()
	if n.LengthSquared() == 0 {
		return true
	}
	return math32.Abs(point.Sub(t.A).Dot(n)) < 1e-5
}

// GetNormal returns the unit normal of the triangle
func (t *Triangle) GetNormal() math32.Vector3 {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Normalize()
}

func (t *Triangle) GetType() string {
	return TypeTriangle
}
