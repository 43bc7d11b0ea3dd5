package math32

import (
	"fmt"
	"math"
)

// Vector3 is a point or direction in world space.
type Vector3 struct {
	X float32 `json:"x" yaml:"x" msgpack:"x"`
	Y float32 `json:"y" yaml:"y" msgpack:"y"`
	Z float32 `json:"z" yaml:"z" msgpack:"z"`
}

// Vec3 is shorthand for building a Vector3.
func Vec3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Splat returns a vector with all three components set to s.
func Splat(s float32) Vector3 {
	return Vector3{s, s, s}
}

// Add adds two vectors.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub subtracts two vectors.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale multiplies a vector by a scalar.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Distance returns the euclidean distance between two points.
func (v Vector3) Distance(other Vector3) float32 {
	return v.Sub(other).Length()
}

// ManhattanDistance returns the sum of the per-axis distances.
func (v Vector3) ManhattanDistance(other Vector3) float32 {
	d := v.Sub(other)
	return Abs(d.X) + Abs(d.Y) + Abs(d.Z)
}

// LengthSquared returns the squared length of a vector.
func (v Vector3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length returns the length of a vector.
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// Dot returns the dot product of two vectors.
func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product of two vectors.
func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Min returns the component-wise minimum.
func (v Vector3) Min(other Vector3) Vector3 {
	return Vector3{Min(v.X, other.X), Min(v.Y, other.Y), Min(v.Z, other.Z)}
}

// Max returns the component-wise maximum.
func (v Vector3) Max(other Vector3) Vector3 {
	return Vector3{Max(v.X, other.X), Max(v.Y, other.Y), Max(v.Z, other.Z)}
}

// MinComponent returns the smallest of the three components.
func (v Vector3) MinComponent() float32 {
	return Min(Min(v.X, v.Y), v.Z)
}

// Lerp interpolates linearly between v and other.
func (v Vector3) Lerp(other Vector3, t float32) Vector3 {
	return v.Add(other.Sub(v).Scale(t))
}

// Normalize returns the unit vector, or the zero vector for zero input.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// ApproxEqual reports whether each component differs by at most eps.
func (v Vector3) ApproxEqual(other Vector3, eps float32) bool {
	return Abs(v.X-other.X) <= eps && Abs(v.Y-other.Y) <= eps && Abs(v.Z-other.Z) <= eps
}

// String returns a string representation of the vector.
func (v Vector3) String() string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f]", v.X, v.Y, v.Z)
}

// Get returns the component at axis i (0 = x, 1 = y, 2 = z).
func (v Vector3) Get(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	return 0
}
