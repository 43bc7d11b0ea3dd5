package geometry

import "github.com/Orrigine/OverScoped/math32"

const rayEpsilon = 1e-6

// RayTriangle checks if the ray intersects with the triangle (based on Möller–Trumbore).
// The returned distance is measured in units of dir.
func RayTriangle(origin, dir math32.Vector3, tri *Triangle) (bool, float32) {
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)
	pvec := dir.Cross(e2)
	det := e1.Dot(pvec)
	if det > -rayEpsilon && det < rayEpsilon {
		return false, 0
	}
	invDet := 1.0 / det
	tvec := origin.Sub(tri.A)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return false, 0
	}
	qvec := tvec.Cross(e1)
	v := dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return false, 0
	}
	t := e2.Dot(qvec) * invDet
	if t < 0 {
		return false, 0
	}
	return true, t
}

// RayAABB intersects a ray with the box using the slab method and returns the
// entry and exit parameters. tmin is clamped to 0 when the origin is inside.
func RayAABB(origin, dir math32.Vector3, aabb AABB) (float32, float32, bool) {
	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		o, d := origin.Get(axis), dir.Get(axis)
		lo, hi := aabb.Min.Get(axis), aabb.Max.Get(axis)
		if math32.Abs(d) < rayEpsilon {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
		if tmin > tmax {
			return 0, 0, false
		}
	}

	if tmax < 0 {
		return 0, 0, false
	}
	return math32.Max(tmin, 0), tmax, true
}

// SegmentAABB checks if the closed segment ab touches the box.
func SegmentAABB(a, b math32.Vector3, aabb AABB) bool {
	dir := b.Sub(a)
	if dir.LengthSquared() < rayEpsilon*rayEpsilon {
		return aabb.Contains(a)
	}
	tmin, _, ok := RayAABB(a, dir, aabb)
	return ok && tmin <= 1
}

// SegmentTriangle checks if the closed segment ab crosses the triangle.
func SegmentTriangle(a, b math32.Vector3, tri *Triangle) bool {
	hit, t := RayTriangle(a, b.Sub(a), tri)
	return hit && t <= 1
}
