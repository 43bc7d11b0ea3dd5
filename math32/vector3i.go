package math32

// Vector3i is an integer grid coordinate.
type Vector3i struct {
	X int32
	Y int32
	Z int32
}

func (v Vector3i) Add(other Vector3i) Vector3i {
	return Vector3i{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vector3i) Sub(other Vector3i) Vector3i {
	return Vector3i{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// InRange reports whether every component lies in [0, n).
func (v Vector3i) InRange(n int32) bool {
	return v.X >= 0 && v.X < n && v.Y >= 0 && v.Y < n && v.Z >= 0 && v.Z < n
}

// NeighborOffsets26 lists the face, edge and corner offsets of a grid cell, in
// a fixed order.
var NeighborOffsets26 = func() []Vector3i {
	offsets := make([]Vector3i, 0, 26)
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				offsets = append(offsets, Vector3i{dx, dy, dz})
			}
		}
	}
	return offsets
}()
