package octree

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Orrigine/OverScoped/geometry"
)

// Builder voxelizes volumes against a collision source.
type Builder struct {
	logger      *zap.SugaredLogger
	parallelism int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for build progress.
func WithLogger(logger *zap.SugaredLogger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithParallelism bounds the number of subtrees classified at once and the
// number of link workers. 1 builds on the calling goroutine.
func WithParallelism(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// NewBuilder returns a builder using every CPU by default.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		logger:      zap.NewNop().Sugar(),
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs a full build with a default builder.
func Build(ctx context.Context, vol Volume, cq CollisionQuery) (*Octree, error) {
	return NewBuilder().Build(ctx, vol, cq)
}

// buildNode is the transient tree produced by classification before it is
// flattened into the arena. ref >= 0 marks a subtree copied unchanged from
// the previous snapshot.
type buildNode struct {
	state    Occupancy
	children *[8]buildNode
	ref      int32
}

func leaf(state Occupancy) buildNode {
	return buildNode{state: state, ref: noIndex}
}

// Build classifies the whole volume and computes its link table.
func (b *Builder) Build(ctx context.Context, vol Volume, cq CollisionQuery) (*Octree, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	c := b.classifier(vol, cq)
	root, err := c.classify(ctx, RootAddress, true)
	if err != nil {
		b.logger.Warnw("octree build failed", "error", err)
		return nil, err
	}
	classified := time.Since(start)

	tree := flatten(vol, &root, nil)
	if _, err := tree.buildLinks(ctx, b.parallelism, nil); err != nil {
		return nil, err
	}
	tree.generation = 1
	tree.finishStats(time.Since(start), tree.links.Len())

	b.logger.Infow("octree built",
		"nodes", tree.stats.Nodes,
		"open", tree.stats.Open,
		"blocked", tree.stats.Blocked,
		"links", tree.stats.Links,
		"classify", classified,
		"total", tree.stats.Duration,
	)
	return tree, nil
}

type classifier struct {
	vol         Volume
	cq          CollisionQuery
	solid       SolidityQuery
	parallelism int
	// prev resolves copied subtrees during a partial rebuild.
	prev *Octree
}

func (b *Builder) classifier(vol Volume, cq CollisionQuery) *classifier {
	c := &classifier{vol: vol, cq: cq, parallelism: b.parallelism}
	c.solid, _ = cq.(SolidityQuery)
	return c
}

// classify returns the classification of the subtree at a. When parallel is
// set the children of a are classified concurrently.
func (c *classifier) classify(ctx context.Context, a Address, parallel bool) (buildNode, error) {
	if err := ctx.Err(); err != nil {
		return buildNode{}, err
	}
	box := c.vol.NodeBounds(a)
	// geometry touching only a face, edge or corner leaves the node Open
	hit, err := c.cq.Overlaps(box.Expand(-c.vol.epsilon()))
	if err != nil {
		return buildNode{}, &CollisionError{Box: box, Err: err}
	}

	atLeaf := a.Depth >= c.vol.MaxDepth
	if !hit {
		if atLeaf || c.vol.CoarseOpenNodes {
			return leaf(Open), nil
		}
		return c.split(ctx, a, parallel)
	}
	if atLeaf {
		return leaf(Blocked), nil
	}
	if c.solid != nil {
		solid, err := c.solid.Encloses(box)
		if err != nil {
			return buildNode{}, &CollisionError{Box: box, Err: err}
		}
		if solid {
			return leaf(Blocked), nil
		}
	}
	return c.split(ctx, a, parallel)
}

func (c *classifier) split(ctx context.Context, a Address, parallel bool) (buildNode, error) {
	var children [8]buildNode
	if parallel && c.parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.parallelism)
		for i := uint8(0); i < 8; i++ {
			i := i
			g.Go(func() error {
				child, err := c.classify(gctx, a.Child(i), false)
				children[i] = child
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return buildNode{}, err
		}
	} else {
		for i := uint8(0); i < 8; i++ {
			child, err := c.classify(ctx, a.Child(i), false)
			if err != nil {
				return buildNode{}, err
			}
			children[i] = child
		}
	}
	return c.collapse(&children), nil
}

// collapse merges eight uniform leaves into one leaf. Open leaves merge
// only when coarse open nodes are allowed.
func (c *classifier) collapse(children *[8]buildNode) buildNode {
	first, uniform := c.leafState(&children[0])
	for i := 1; uniform && i < 8; i++ {
		state, isLeaf := c.leafState(&children[i])
		uniform = isLeaf && state == first
	}
	if uniform {
		switch first {
		case Blocked:
			return leaf(Blocked)
		case Open:
			if c.vol.CoarseOpenNodes {
				return leaf(Open)
			}
		}
	}
	return buildNode{state: Mixed, children: children, ref: noIndex}
}

// leafState returns the state of n and whether n is a leaf, looking through
// copied subtrees.
func (c *classifier) leafState(n *buildNode) (Occupancy, bool) {
	if n.ref >= 0 {
		p := c.prev.nodes[n.ref]
		return p.State, p.IsLeaf()
	}
	return n.state, n.children == nil
}

// flatten lays the transient tree out breadth first. Subtrees marked with a
// ref are copied from prev.
func flatten(vol Volume, root *buildNode, prev *Octree) *Octree {
	capacity := 64
	if prev != nil {
		capacity = len(prev.nodes)
	}
	t := newOctree(vol, capacity)

	type item struct {
		idx int32
		bn  *buildNode
		ref int32
	}
	push := func(a Address, parent int32, bn *buildNode, ref int32) item {
		n := Node{Address: a, Bounds: vol.NodeBounds(a), Parent: parent, FirstChild: noIndex}
		if ref >= 0 {
			p := prev.nodes[ref]
			n.State, n.Bounds = p.State, p.Bounds
		} else {
			n.State = bn.state
		}
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, n)
		t.index[a] = idx
		return item{idx: idx, bn: bn, ref: ref}
	}

	rootRef := noIndex
	if root.ref >= 0 {
		rootRef = root.ref
	}
	queue := []item{push(RootAddress, noIndex, root, rootRef)}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		a := t.nodes[it.idx].Address

		switch {
		case it.ref >= 0:
			p := prev.nodes[it.ref]
			if p.IsLeaf() {
				continue
			}
			t.nodes[it.idx].FirstChild = int32(len(t.nodes))
			for i := uint8(0); i < 8; i++ {
				queue = append(queue, push(a.Child(i), it.idx, nil, p.FirstChild+int32(i)))
			}
		case it.bn.children != nil:
			t.nodes[it.idx].FirstChild = int32(len(t.nodes))
			for i := uint8(0); i < 8; i++ {
				child := &it.bn.children[i]
				queue = append(queue, push(a.Child(i), it.idx, child, child.ref))
			}
		}
	}
	return t
}

// Region returns the union of boxes, or false for an empty list.
func Region(boxes ...geometry.AABB) (geometry.AABB, bool) {
	if len(boxes) == 0 {
		return geometry.AABB{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out, true
}
