package octree

import (
	"fmt"

	"github.com/Orrigine/OverScoped/math32"
)

// MortonCode interleaves the bits of a node's integer grid coordinates,
// x in bit 0, y in bit 1 and z in bit 2 of every triple.
type MortonCode uint64

// EncodeMorton3D encodes a 3D coordinate to a Morton code
func EncodeMorton3D(x, y, z uint32) MortonCode {
	return MortonCode(splitBy3(x) | (splitBy3(y) << 1) | (splitBy3(z) << 2))
}

// splitBy3 spreads the low 21 bits of v so that two zero bits follow each one.
func splitBy3(v uint32) uint64 {
	x := uint64(v) & 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// DecodeMorton3D decodes a Morton code to a 3D coordinate
func DecodeMorton3D(morton MortonCode) (uint32, uint32, uint32) {
	x := compact1By2(uint64(morton))
	y := compact1By2(uint64(morton) >> 1)
	z := compact1By2(uint64(morton) >> 2)
	return uint32(x), uint32(y), uint32(z)
}

// compact1By2 is the reverse of splitBy3.
func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}

// Address identifies a node by its depth and the path of child indices taken
// from the root. The path is stored as the morton code of the node's grid
// cell at that depth, so the child index chosen at level k is the k-th octal
// digit of Code counted from the most significant end.
type Address struct {
	Depth uint8      `json:"depth" msgpack:"d"`
	Code  MortonCode `json:"code" msgpack:"c"`
}

// RootAddress is the address of the root node.
var RootAddress = Address{}

// NewAddress returns the address of grid cell (x, y, z) at depth.
func NewAddress(depth uint8, x, y, z uint32) Address {
	return Address{Depth: depth, Code: EncodeMorton3D(x, y, z)}
}

// AddressOf returns the address of grid cell c at depth. c must be in range.
func AddressOf(depth uint8, c math32.Vector3i) Address {
	return NewAddress(depth, uint32(c.X), uint32(c.Y), uint32(c.Z))
}

// Coords returns the grid cell of the address at its own depth.
func (a Address) Coords() (uint32, uint32, uint32) {
	return DecodeMorton3D(a.Code)
}

// Cell returns Coords as a signed vector, convenient for neighbour offsets.
func (a Address) Cell() math32.Vector3i {
	x, y, z := a.Coords()
	return math32.Vector3i{X: int32(x), Y: int32(y), Z: int32(z)}
}

// Child returns the address of child i (0..7).
func (a Address) Child(i uint8) Address {
	return Address{Depth: a.Depth + 1, Code: a.Code<<3 | MortonCode(i&7)}
}

// Parent returns the parent address. The root is its own parent.
func (a Address) Parent() Address {
	if a.Depth == 0 {
		return a
	}
	return Address{Depth: a.Depth - 1, Code: a.Code >> 3}
}

// ChildIndex returns the child index taken at level (1..Depth).
func (a Address) ChildIndex(level uint8) uint8 {
	return uint8(a.Code>>(3*uint(a.Depth-level))) & 7
}

// Ancestor returns the address of the ancestor at depth d (d <= a.Depth).
func (a Address) Ancestor(d uint8) Address {
	if d >= a.Depth {
		return a
	}
	return Address{Depth: d, Code: a.Code >> (3 * uint(a.Depth-d))}
}

// IsAncestorOf reports whether a lies on the path from the root to other.
func (a Address) IsAncestorOf(other Address) bool {
	return a.Depth < other.Depth && other.Ancestor(a.Depth) == a
}

// Less orders addresses by depth, then by code.
func (a Address) Less(other Address) bool {
	if a.Depth != other.Depth {
		return a.Depth < other.Depth
	}
	return a.Code < other.Code
}

func (a Address) String() string {
	if a.Depth == 0 {
		return "root"
	}
	digits := make([]byte, a.Depth)
	for level := uint8(1); level <= a.Depth; level++ {
		digits[level-1] = '0' + a.ChildIndex(level)
	}
	return fmt.Sprintf("%d:%s", a.Depth, digits)
}
