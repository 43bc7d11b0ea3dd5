package query

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/Orrigine/OverScoped/collision"
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
)

func solid(minX, minY, minZ, maxX, maxY, maxZ float32) *geometry.Box {
	b := geometry.BoxFromAABB(geometry.AABB{
		Min: math32.Vec3(minX, minY, minZ),
		Max: math32.Vec3(maxX, maxY, maxZ),
	})
	return &b
}

// wall is a slab at x in [25, 39] with a hole spanning y, z in [24, 32].
func wall() *collision.World {
	return collision.NewWorld(
		solid(25, 0, 0, 39, 24, 64),
		solid(25, 32, 0, 39, 64, 64),
		solid(25, 24, 0, 39, 32, 24),
		solid(25, 24, 32, 39, 32, 64),
	)
}

// cage walls off the corner region [44, 64] on three sides.
func cage() *collision.World {
	return collision.NewWorld(
		solid(40, 40, 40, 44, 64, 64),
		solid(40, 40, 40, 64, 44, 64),
		solid(40, 40, 40, 64, 64, 44),
	)
}

func build(t *testing.T, depth uint8, coarse bool, world *collision.World) *octree.Octree {
	t.Helper()
	vol := octree.NewVolume(geometry.AABB{Max: math32.Splat(64)}, depth)
	vol.DefaultClearance = 1
	vol.CoarseOpenNodes = coarse
	tree, err := octree.NewBuilder(octree.WithLogger(zaptest.NewLogger(t).Sugar())).Build(context.Background(), vol, world)
	test.That(t, err, test.ShouldBeNil)
	return tree
}

func newFinder(t *testing.T, tree *octree.Octree, opts Options) *Finder {
	f := NewFinder(tree, opts)
	f.SetLogger(zaptest.NewLogger(t).Sugar())
	return f
}

func requireLinked(t *testing.T, tree *octree.Octree, c Corridor) {
	t.Helper()
	for i := 1; i < len(c.Nodes); i++ {
		test.That(t, tree.Links().Neighbors(c.Nodes[i-1].Address), test.ShouldContain, c.Nodes[i].Address)
	}
}

func TestFindPathEmptyVolume(t *testing.T) {
	start, goal := math32.Vec3(1, 1, 1), math32.Vec3(60, 60, 60)

	t.Run("coarse", func(t *testing.T) {
		tree := build(t, 3, true, collision.NewWorld())
		c, err := newFinder(t, tree, DefaultOptions()).FindPath(nil, start, goal, 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(c.Nodes), test.ShouldEqual, 1)
	})

	t.Run("leaves", func(t *testing.T) {
		tree := build(t, 3, false, collision.NewWorld())
		c, err := newFinder(t, tree, DefaultOptions()).FindPath(nil, start, goal, 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(c.Nodes), test.ShouldEqual, 8)
		test.That(t, c.Nodes[0].Bounds.Contains(start), test.ShouldBeTrue)
		test.That(t, c.Nodes[len(c.Nodes)-1].Bounds.Contains(goal), test.ShouldBeTrue)
		for _, n := range c.Nodes {
			test.That(t, n.State, test.ShouldEqual, octree.Open)
			test.That(t, n.Address.Depth, test.ShouldEqual, uint8(3))
		}
		requireLinked(t, tree, c)
	})
}

func TestFindPathThroughGap(t *testing.T) {
	tree := build(t, 3, true, wall())
	f := newFinder(t, tree, DefaultOptions())
	start, goal := math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60)

	c, err := f.FindPath(nil, start, goal, 1)
	test.That(t, err, test.ShouldBeNil)
	requireLinked(t, tree, c)
	addrs := c.Addresses()
	test.That(t, addrs, test.ShouldContain, octree.NewAddress(3, 3, 3, 3))
	test.That(t, addrs, test.ShouldContain, octree.NewAddress(3, 4, 3, 3))
	test.That(t, c.Cost, test.ShouldBeGreaterThan, float32(0))

	// an agent exactly as wide as the hole still fits
	c, err = f.FindPath(nil, start, goal, 8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Addresses(), test.ShouldContain, octree.NewAddress(3, 3, 3, 3))
}

func TestFindPathErrors(t *testing.T) {
	tree := build(t, 3, true, wall())
	f := newFinder(t, tree, DefaultOptions())
	start, goal := math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60)

	cases := []struct {
		name      string
		start     math32.Vector3
		goal      math32.Vector3
		clearance float32
		want      error
	}{
		{"wider than gap", start, goal, 9, ErrNoPathExists},
		{"wider than start node", start, goal, 20, ErrPointNotNavigable},
		{"wider than volume", start, goal, 100, ErrClearanceExceedsVolume},
		{"start in wall", math32.Vec3(30, 10, 30), goal, 0, ErrPointNotNavigable},
		{"goal outside", start, math32.Vec3(70, 1, 1), 0, ErrPointNotNavigable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.FindPath(nil, tc.start, tc.goal, tc.clearance)
			test.That(t, errors.Is(err, tc.want), test.ShouldBeTrue)
		})
	}
}

func TestFindPathSameNode(t *testing.T) {
	tree := build(t, 3, true, wall())
	c, err := newFinder(t, tree, DefaultOptions()).FindPath(nil, math32.Vec3(1, 1, 1), math32.Vec3(10, 12, 3), 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(c.Nodes), test.ShouldEqual, 1)
	test.That(t, c.Cost, test.ShouldEqual, float32(0))
}

// dijkstra returns the cheapest centre to centre cost between two leaves.
func dijkstra(tree *octree.Octree, from, to int32, clearance float32) float64 {
	dist := make([]float64, tree.Len())
	done := make([]bool, tree.Len())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[from] = 0
	for {
		cur := int32(-1)
		for i := range dist {
			if !done[i] && !math.IsInf(dist[i], 1) && (cur < 0 || dist[i] < dist[cur]) {
				cur = int32(i)
			}
		}
		if cur < 0 || cur == to {
			return dist[to]
		}
		done[cur] = true
		for _, nb := range tree.NeighborIndices(cur) {
			if tree.NodeAt(nb).Size() < clearance {
				continue
			}
			d := dist[cur] + float64(tree.NodeAt(cur).Center().Distance(tree.NodeAt(nb).Center()))
			if d < dist[nb] {
				dist[nb] = d
			}
		}
	}
}

func TestAStarMatchesDijkstra(t *testing.T) {
	tree := build(t, 3, true, wall())
	f := newFinder(t, tree, DefaultOptions())

	pairs := [][2]math32.Vector3{
		{math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60)},
		{math32.Vec3(2, 60, 2), math32.Vec3(62, 2, 62)},
		{math32.Vec3(20, 30, 50), math32.Vec3(44, 10, 10)},
	}
	for _, p := range pairs {
		c, err := f.FindPath(nil, p[0], p[1], 1)
		test.That(t, err, test.ShouldBeNil)
		from, _ := tree.LeafIndexAt(p[0])
		to, _ := tree.LeafIndexAt(p[1])
		test.That(t, float64(c.Cost), test.ShouldAlmostEqual, dijkstra(tree, from, to, 1), 1e-2)
	}
}

func TestFindPathExhaustsEnclosedGoal(t *testing.T) {
	tree := build(t, 4, false, cage())
	start, goal := math32.Vec3(2, 2, 2), math32.Vec3(60, 60, 60)

	opts := DefaultOptions()
	opts.MaxIterations = 0
	c, err := newFinder(t, tree, opts).FindPath(nil, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)
	test.That(t, c.Iterations, test.ShouldBeGreaterThan, 1000)

	opts.MaxIterations = 50
	c, err = newFinder(t, tree, opts).FindPath(nil, start, goal, 0)
	test.That(t, errors.Is(err, ErrNoPathExists), test.ShouldBeTrue)
	test.That(t, c.Iterations, test.ShouldEqual, 50)
}

func TestFindPathCancellation(t *testing.T) {
	tree := build(t, 4, false, cage())
	start, goal := math32.Vec3(2, 2, 2), math32.Vec3(60, 60, 60)
	f := newFinder(t, tree, DefaultOptions())

	_, err := f.FindPath(CancellerFunc(func() bool { return true }), start, goal, 0)
	test.That(t, err, test.ShouldEqual, ErrCancelled)

	calls := 0
	c, err := f.FindPath(CancellerFunc(func() bool {
		calls++
		return calls > 1
	}), start, goal, 0)
	test.That(t, err, test.ShouldEqual, ErrCancelled)
	test.That(t, calls, test.ShouldEqual, 2)
	test.That(t, c.Iterations, test.ShouldEqual, 64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FindPath(ContextCanceller(ctx), start, goal, 0)
	test.That(t, err, test.ShouldEqual, ErrCancelled)
}

func TestAnyAngleSearch(t *testing.T) {
	tree := build(t, 3, false, collision.NewWorld())
	start, goal := math32.Vec3(4, 4, 4), math32.Vec3(60, 28, 4)

	grid, err := newFinder(t, tree, DefaultOptions()).FindPath(nil, start, goal, 0)
	test.That(t, err, test.ShouldBeNil)

	for _, alg := range []Algorithm{ThetaStar, LazyThetaStar} {
		t.Run(alg.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Algorithm = alg
			c, err := newFinder(t, tree, opts).FindPath(nil, start, goal, 0)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(c.Nodes), test.ShouldEqual, 2)
			test.That(t, c.Cost, test.ShouldAlmostEqual, start.Distance(goal), 1e-3)
			test.That(t, c.Cost, test.ShouldBeLessThan, grid.Cost)
		})
	}
}

func TestAnyAngleSearchAroundWall(t *testing.T) {
	world := wall()
	tree := build(t, 3, true, world)
	start, goal := math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60)

	for _, alg := range []Algorithm{ThetaStar, LazyThetaStar} {
		t.Run(alg.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Algorithm = alg
			f := newFinder(t, tree, opts)
			f.SetCollision(world)
			c, err := f.FindPath(nil, start, goal, 1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, c.Nodes[0].Bounds.Contains(start), test.ShouldBeTrue)
			test.That(t, c.Nodes[len(c.Nodes)-1].Bounds.Contains(goal), test.ShouldBeTrue)
			test.That(t, len(c.Nodes), test.ShouldBeGreaterThan, 2)
		})
	}
}

func TestHeuristicOptions(t *testing.T) {
	opts := DefaultOptions()
	a, b := math32.Vec3(0, 0, 0), math32.Vec3(3, 4, 0)
	test.That(t, opts.estimate(a, b), test.ShouldEqual, float32(5))

	opts.Heuristic = Manhattan
	opts.HeuristicScale = 2
	test.That(t, opts.estimate(a, b), test.ShouldEqual, float32(14))

	test.That(t, opts.traversal(a, b), test.ShouldEqual, float32(5))
	opts.Cost = FixedCost
	test.That(t, opts.traversal(a, b), test.ShouldEqual, float32(1))

	big := octree.Node{Bounds: geometry.AABB{Max: math32.Splat(32)}}
	test.That(t, opts.compensation(big, 8), test.ShouldEqual, float32(1))
	opts.NodeSizeCompensation = true
	test.That(t, opts.compensation(big, 8), test.ShouldEqual, float32(0.25))

	for _, alg := range []Algorithm{AStar, ThetaStar, LazyThetaStar} {
		parsed, err := ParseAlgorithm(alg.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, alg)
	}
	_, err := ParseAlgorithm("dijkstra")
	test.That(t, err, test.ShouldNotBeNil)
	h, err := ParseHeuristic("manhattan")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h, test.ShouldEqual, Manhattan)
	cm, err := ParseCostMode("fixed")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm, test.ShouldEqual, FixedCost)
}

func TestFixedCostAndCompensation(t *testing.T) {
	tree := build(t, 3, true, wall())
	opts := DefaultOptions()
	opts.Cost = FixedCost
	opts.FixedCost = 2
	opts.NodeSizeCompensation = true

	c, err := newFinder(t, tree, opts).FindPath(nil, math32.Vec3(4, 4, 4), math32.Vec3(60, 60, 60), 1)
	test.That(t, err, test.ShouldBeNil)
	requireLinked(t, tree, c)
	test.That(t, c.Cost, test.ShouldEqual, float32(2*(len(c.Nodes)-1)))
}
