package query

import (
	"container/heap"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
)

// line returns a corridor of unit cubes along x.
func line(n int) Corridor {
	var c Corridor
	for i := 0; i < n; i++ {
		min := math32.Vec3(float32(i), 0, 0)
		c.Nodes = append(c.Nodes, octree.Node{Bounds: geometry.AABB{Min: min, Max: min.Add(math32.Splat(1))}})
	}
	return c
}

func always(v bool) LineOfSightFunc {
	return func(math32.Vector3, math32.Vector3, float32) (bool, error) { return v, nil }
}

func TestSmoothStringPulling(t *testing.T) {
	c := line(5)
	start, goal := math32.Vec3(0.2, 0.5, 0.5), math32.Vec3(4.8, 0.5, 0.5)

	out, err := NewSmoother(always(true), 0).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []math32.Vector3{start, goal})

	_, err = NewSmoother(always(false), 0).Smooth(c, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)

	// only the middle point can see the goal
	mid := c.Nodes[2].Center()
	seesFrom := func(a, b math32.Vector3, _ float32) (bool, error) {
		return b == mid || a == mid, nil
	}
	out, err = NewSmoother(seesFrom, 0).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []math32.Vector3{start, mid, goal})
}

// near sees only moves of at most one unit.
func near(a, b math32.Vector3, _ float32) (bool, error) {
	return a.Distance(b) <= 1.0001, nil
}

func TestSmoothThroughPortals(t *testing.T) {
	c := line(5)
	start, goal := math32.Vec3(0.2, 0.5, 0.5), math32.Vec3(4.8, 0.5, 0.5)

	out, err := NewSmoother(near, 0).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []math32.Vector3{
		start,
		math32.Vec3(1, 0.5, 0.5),
		c.Nodes[1].Center(),
		c.Nodes[2].Center(),
		c.Nodes[3].Center(),
		math32.Vec3(4, 0.5, 0.5),
		goal,
	})
	for i := 1; i < len(out); i++ {
		clear, _ := near(out[i-1], out[i], 0)
		test.That(t, clear, test.ShouldBeTrue)
	}

	// the shared face is hidden from the start point
	hidden := func(a, b math32.Vector3, _ float32) (bool, error) {
		if a == start {
			return false, nil
		}
		return near(a, b, 0)
	}
	_, err = NewSmoother(hidden, 0).Smooth(c, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)
}

func TestSmoothSingleNode(t *testing.T) {
	c := line(1)
	start, goal := math32.Vec3(0.1, 0.1, 0.1), math32.Vec3(0.9, 0.9, 0.9)
	out, err := NewSmoother(always(true), 0).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []math32.Vector3{start, goal})

	_, err = NewSmoother(always(false), 0).Smooth(c, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)

	center := c.Nodes[0].Center()
	viaCenter := func(a, b math32.Vector3, _ float32) (bool, error) {
		return a == center || b == center, nil
	}
	out, err = NewSmoother(viaCenter, 0).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []math32.Vector3{start, center, goal})

	_, err = NewSmoother(always(true), 0).Smooth(Corridor{}, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)
}

func TestSmoothPropagatesCollisionErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := CollisionLineOfSight(failingWorld{err: boom})
	_, err := NewSmoother(failing, 0).Smooth(line(4), math32.Vec3(0.5, 0.5, 0.5), math32.Vec3(3.5, 0.5, 0.5), 0)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, errors.Is(err, octree.ErrCollisionQueryFailed), test.ShouldBeTrue)
}

func TestSmoothCatmullRom(t *testing.T) {
	c := line(3)
	start, goal := math32.Vec3(0.5, 0.5, 0.5), math32.Vec3(2.5, 0.5, 0.5)
	mid := c.Nodes[1].Center()
	blockDirect := func(a, b math32.Vector3, _ float32) (bool, error) {
		return !(a == start && b == goal), nil
	}

	out, err := NewSmoother(blockDirect, 2).Smooth(c, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldEqual, 3+2*2)
	test.That(t, out[0], test.ShouldResemble, start)
	test.That(t, out[3], test.ShouldResemble, mid)
	test.That(t, out[len(out)-1], test.ShouldResemble, goal)
	test.That(t, catmullRom(start, start, mid, goal, 0).ApproxEqual(start, 1e-6), test.ShouldBeTrue)
	test.That(t, catmullRom(start, start, mid, goal, 1).ApproxEqual(mid, 1e-6), test.ShouldBeTrue)
}

func TestSmoothAroundWall(t *testing.T) {
	world := wall()
	tree := build(t, 3, true, world)
	start, goal := math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60)
	const clearance = 1

	c, err := newFinder(t, tree, DefaultOptions()).FindPath(nil, start, goal, clearance)
	test.That(t, err, test.ShouldBeNil)

	out, err := NewSmoother(CollisionLineOfSight(world), 0).Smooth(c, start, goal, clearance)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldBeLessThan, 2*len(c.Nodes))
	test.That(t, len(out), test.ShouldBeGreaterThan, 2)
	test.That(t, out[0], test.ShouldResemble, start)
	test.That(t, out[len(out)-1], test.ShouldResemble, goal)
	for i := 1; i < len(out); i++ {
		clear, err := world.LineOfSight(out[i-1], out[i], clearance)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, clear, test.ShouldBeTrue)
	}
}

func TestHeapOrder(t *testing.T) {
	h := &nodeHeap{}
	heap.Push(h, newHeapNode(1, 10, 2, 1))
	heap.Push(h, newHeapNode(2, 10, 5, 2))
	heap.Push(h, newHeapNode(3, 9, 0, 3))
	heap.Push(h, newHeapNode(4, 10, 5, 4))
	heap.Push(h, newHeapNode(5, 11, 9, 5))

	var order []int32
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(*heapNode).nodeID)
	}
	test.That(t, order, test.ShouldResemble, []int32{3, 2, 4, 1, 5})
}

type failingWorld struct {
	err error
}

func (w failingWorld) LineOfSight(math32.Vector3, math32.Vector3, float32) (bool, error) {
	return false, w.err
}

func (w failingWorld) Overlaps(geometry.AABB) (bool, error) {
	return false, w.err
}
