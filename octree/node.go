package octree

import (
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
)

const noIndex int32 = -1

// Node is one slot of the octree arena. The eight children of an interior
// node occupy consecutive slots starting at FirstChild.
type Node struct {
	Address    Address       `json:"address"`
	State      Occupancy     `json:"state"`
	Bounds     geometry.AABB `json:"bounds"`
	Parent     int32         `json:"parent"`
	FirstChild int32         `json:"first_child"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return n.FirstChild < 0
}

// Center returns the center of the node box.
func (n Node) Center() math32.Vector3 {
	return n.Bounds.Center()
}

// Size returns the smallest edge of the node box, the value compared against
// agent clearance.
func (n Node) Size() float32 {
	return n.Bounds.Size().MinComponent()
}
