package geometry

import "github.com/Orrigine/OverScoped/math32"

// Capsule is a capsule geometry
type Capsule struct {
	Start  math32.Vector3 `json:"start" yaml:"start"`
	End    math32.Vector3 `json:"end" yaml:"end"`
	Radius float32        `json:"radius" yaml:"radius"`
}

// GetBounds returns the bounding box of the capsule
func (c *Capsule) GetBounds() AABB {
	return NewAABB(c.Start, c.End).Expand(c.Radius)
}

// IntersectsAABB tests the capsule axis against the box grown by the radius.
// Corners are treated as square, so the test is conservative near box edges.
func (c *Capsule) IntersectsAABB(aabb AABB) bool {
	return SegmentAABB(c.Start, c.End, aabb.Expand(c.Radius))
}

// ContainsPoint checks if the point is inside the capsule
func (c *Capsule) ContainsPoint(point math32.Vector3) bool {
	return PointSegmentDistance(point, c.Start, c.End) <= c.Radius
}

func (c *Capsule) GetType() string {
	return TypeCapsule
}

// PointSegmentDistance returns the distance from point to the segment ab.
func PointSegmentDistance(point, a, b math32.Vector3) float32 {
	return point.Distance(ClosestPointOnSegment(a, b, point))
}

// ClosestPointOnSegment returns the point of segment ab closest to point.
func ClosestPointOnSegment(a, b, point math32.Vector3) math32.Vector3 {
	ab := b.Sub(a)
	l2 := ab.LengthSquared()
	if l2 == 0 {
		return a
	}
	t := math32.Clamp(point.Sub(a).Dot(ab)/l2, 0, 1)
	return a.Add(ab.Scale(t))
}

// SegmentSegmentDistance returns the smallest distance between segments
// p1q1 and p2q2.
func SegmentSegmentDistance(p1, q1, p2, q2 math32.Vector3) float32 {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float32
	switch {
	case a <= rayEpsilon && e <= rayEpsilon:
		return p1.Distance(p2)
	case a <= rayEpsilon:
		t = math32.Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= rayEpsilon {
			s = math32.Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = math32.Clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = math32.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = math32.Clamp((b-c)/a, 0, 1)
			}
		}
	}
	c1 := p1.Add(d1.Scale(s))
	c2 := p2.Add(d2.Scale(t))
	return c1.Distance(c2)
}
