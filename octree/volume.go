package octree

import (
	"github.com/pkg/errors"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

// MaxSupportedDepth bounds MaxDepth so that addresses fit in a MortonCode.
const MaxSupportedDepth = 16

// Volume is the navigable region and its subdivision settings.
type Volume struct {
	Bounds   geometry.AABB `json:"bounds"`
	MaxDepth uint8         `json:"max_depth"`
	// MinLeafSize rejects configurations whose leaves would be smaller.
	// When zero, DefaultClearance is used instead.
	MinLeafSize      float32 `json:"min_leaf_size"`
	DefaultClearance float32 `json:"default_clearance"`
	// CoarseOpenNodes keeps free regions as large Open leaves instead of
	// splitting them down to MaxDepth.
	CoarseOpenNodes bool `json:"coarse_open_nodes"`
}

// NewVolume returns a volume with coarse open nodes enabled.
func NewVolume(bounds geometry.AABB, maxDepth uint8) Volume {
	return Volume{Bounds: bounds, MaxDepth: maxDepth, CoarseOpenNodes: true}
}

// Validate checks the bounds, the depth and the leaf size.
func (v Volume) Validate() error {
	if v.Bounds.IsEmpty() {
		return errors.Wrapf(ErrInvalidVolume, "empty bounds %v-%v", v.Bounds.Min, v.Bounds.Max)
	}
	if v.MaxDepth > MaxSupportedDepth {
		return errors.Wrapf(ErrInvalidVolume, "max depth %d exceeds %d", v.MaxDepth, MaxSupportedDepth)
	}
	minLeaf := v.MinLeafSize
	if minLeaf <= 0 {
		minLeaf = v.DefaultClearance
	}
	if leaf := v.LeafSize(); leaf < minLeaf {
		return errors.Wrapf(ErrVolumeTooSmallForDepth, "leaf size %.3f at depth %d is below %.3f", leaf, v.MaxDepth, minLeaf)
	}
	return nil
}

// Resolution returns the number of cells per axis at depth.
func (v Volume) Resolution(depth uint8) uint32 {
	return 1 << depth
}

// NodeSize returns the per-axis size of a node at depth.
func (v Volume) NodeSize(depth uint8) math32.Vector3 {
	return v.Bounds.Size().Scale(1 / float32(v.Resolution(depth)))
}

// LeafSize returns the smallest edge of a max depth node.
func (v Volume) LeafSize() float32 {
	return v.NodeSize(v.MaxDepth).MinComponent()
}

// MinExtent returns the smallest edge of the whole volume.
func (v Volume) MinExtent() float32 {
	return v.Bounds.Size().MinComponent()
}

// NodeBounds returns the box of the node at a. Boxes are computed from grid
// coordinates so that siblings share their faces exactly.
func (v Volume) NodeBounds(a Address) geometry.AABB {
	x, y, z := a.Coords()
	res := float32(v.Resolution(a.Depth))
	size := v.Bounds.Size()
	at := func(cx, cy, cz uint32) math32.Vector3 {
		return math32.Vector3{
			X: v.Bounds.Min.X + size.X*(float32(cx)/res),
			Y: v.Bounds.Min.Y + size.Y*(float32(cy)/res),
			Z: v.Bounds.Min.Z + size.Z*(float32(cz)/res),
		}
	}
	return geometry.AABB{Min: at(x, y, z), Max: at(x+1, y+1, z+1)}
}

// CellAt returns the address of the depth d cell containing p. Points on the
// upper boundary belong to the last cell.
func (v Volume) CellAt(p math32.Vector3, depth uint8) (Address, bool) {
	if !v.Bounds.Contains(p) {
		return Address{}, false
	}
	res := v.Resolution(depth)
	size := v.Bounds.Size()
	cell := func(axis int) uint32 {
		t := (p.Get(axis) - v.Bounds.Min.Get(axis)) / size.Get(axis)
		c := uint32(t * float32(res))
		if c >= res {
			c = res - 1
		}
		return c
	}
	return NewAddress(depth, cell(0), cell(1), cell(2)), true
}

// epsilon is the tolerance used for face contact tests.
func (v Volume) epsilon() float32 {
	return v.LeafSize() * 1e-3
}
