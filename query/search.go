// Package query finds paths through a built octree: graph search over the
// link table and smoothing of the resulting corridor.
package query

import (
	"container/heap"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
)

const noParent int32 = -1

// Corridor is the ordered list of nodes a search returned, from the start
// node to the goal node.
type Corridor struct {
	Nodes []octree.Node
	// Cost is the accumulated traversal cost between node centres.
	Cost       float32
	Iterations int
}

// Centers returns the centre of every corridor node.
func (c Corridor) Centers() []math32.Vector3 {
	out := make([]math32.Vector3, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Center()
	}
	return out
}

// Addresses returns the address of every corridor node.
func (c Corridor) Addresses() []octree.Address {
	out := make([]octree.Address, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Address
	}
	return out
}

// LineOfSightFunc tests a straight move of a cube of edge clearance.
type LineOfSightFunc func(a, b math32.Vector3, clearance float32) (bool, error)

// Finder runs searches against one octree snapshot. A Finder holds no
// per-search state and may be shared between goroutines.
type Finder struct {
	tree   *octree.Octree
	opts   Options
	los    LineOfSightFunc
	logger *zap.SugaredLogger
}

// NewFinder returns a finder over tree.
func NewFinder(tree *octree.Octree, opts Options) *Finder {
	f := &Finder{
		tree:   tree,
		opts:   opts.withDefaults(),
		logger: zap.NewNop().Sugar(),
	}
	f.los = TreeLineOfSight(tree)
	return f
}

// SetLogger sets the logger used for search progress.
func (f *Finder) SetLogger(logger *zap.SugaredLogger) {
	if logger != nil {
		f.logger = logger
	}
}

// SetCollision makes any-angle searches check line of sight against cq
// instead of the octree.
func (f *Finder) SetCollision(cq octree.CollisionQuery) {
	if cq != nil {
		f.los = CollisionLineOfSight(cq)
	}
}

// Options returns the options in use.
func (f *Finder) Options() Options {
	return f.opts
}

// TreeLineOfSight traces through the octree leaves.
func TreeLineOfSight(tree *octree.Octree) LineOfSightFunc {
	return func(a, b math32.Vector3, clearance float32) (bool, error) {
		return tree.LineOfSight(a, b, clearance), nil
	}
}

// CollisionLineOfSight asks the collision source. Failures match
// octree.ErrCollisionQueryFailed.
func CollisionLineOfSight(cq octree.CollisionQuery) LineOfSightFunc {
	return func(a, b math32.Vector3, clearance float32) (bool, error) {
		ok, err := cq.LineOfSight(a, b, clearance)
		if err != nil {
			return false, &octree.CollisionError{Box: geometry.NewAABB(a, b).Expand(clearance / 2), Err: err}
		}
		return ok, nil
	}
}

// Locate returns the arena index of the Open leaf holding p that can fit an
// agent of the given clearance.
func (f *Finder) Locate(p math32.Vector3, clearance float32) (int32, error) {
	idx, ok := f.tree.LeafIndexAt(p)
	if !ok {
		return 0, errors.Wrapf(ErrPointNotNavigable, "%v is outside the volume", p)
	}
	n := f.tree.NodeAt(idx)
	if n.State != octree.Open {
		return 0, errors.Wrapf(ErrPointNotNavigable, "%v lies in a %s node", p, n.State)
	}
	if n.Size() < clearance {
		return 0, errors.Wrapf(ErrPointNotNavigable, "%v lies in node %s of size %.3f, below clearance %.3f",
			p, n.Address, n.Size(), clearance)
	}
	return idx, nil
}

// CheckClearance fails when no node of the volume could hold the agent.
func (f *Finder) CheckClearance(clearance float32) error {
	if extent := f.tree.Volume().MinExtent(); clearance > extent {
		return errors.Wrapf(ErrClearanceExceedsVolume, "clearance %.3f above volume extent %.3f", clearance, extent)
	}
	return nil
}

// FindPath searches a corridor of Open nodes from the node holding start to
// the node holding goal. cancel is polled every CancelCheckInterval
// iterations; nil never cancels.
func (f *Finder) FindPath(cancel Canceller, start, goal math32.Vector3, clearance float32) (Corridor, error) {
	if cancel == nil {
		cancel = never
	}
	if clearance < 0 {
		clearance = 0
	}
	if err := f.CheckClearance(clearance); err != nil {
		return Corridor{}, err
	}
	from, err := f.Locate(start, clearance)
	if err != nil {
		return Corridor{}, errors.Wrap(err, "start")
	}
	to, err := f.Locate(goal, clearance)
	if err != nil {
		return Corridor{}, errors.Wrap(err, "goal")
	}
	if cancel.Cancelled() {
		return Corridor{}, ErrCancelled
	}
	if from == to {
		return Corridor{Nodes: []octree.Node{f.tree.NodeAt(from)}}, nil
	}

	s := f.newSearch(cancel, from, to, clearance)
	startTime := time.Now()
	corridor, err := s.run()
	f.logger.Debugw("search finished",
		"algorithm", f.opts.Algorithm,
		"iterations", s.iterations,
		"corridor", len(corridor.Nodes),
		"cost", corridor.Cost,
		"took", time.Since(startTime),
		"error", err,
	)
	return corridor, err
}

// search is the state of one FindPath call.
type search struct {
	*Finder
	cancel    Canceller
	from, to  int32
	clearance float32
	goal      math32.Vector3
	leafSize  float32

	open       nodeHeap
	inOpen     []*heapNode
	closed     math32.Bitmap
	gScore     []float32
	parent     []int32
	seq        uint64
	iterations int
}

func (f *Finder) newSearch(cancel Canceller, from, to int32, clearance float32) *search {
	n := f.tree.Len()
	s := &search{
		Finder:    f,
		cancel:    cancel,
		from:      from,
		to:        to,
		clearance: clearance,
		goal:      f.tree.NodeAt(to).Center(),
		leafSize:  f.tree.Volume().LeafSize(),
		inOpen:    make([]*heapNode, n),
		closed:    math32.NewBitmap(n),
		gScore:    make([]float32, n),
		parent:    make([]int32, n),
	}
	for i := range s.gScore {
		s.gScore[i] = math32.MaxFloat32
		s.parent[i] = noParent
	}
	return s
}

func (s *search) center(idx int32) math32.Vector3 {
	return s.tree.NodeAt(idx).Center()
}

func (s *search) cost(a, b int32) float32 {
	return s.opts.traversal(s.center(a), s.center(b))
}

func (s *search) fScore(idx int32, g float32) float32 {
	n := s.tree.NodeAt(idx)
	return (g + s.opts.estimate(n.Center(), s.goal)) * s.opts.compensation(n, s.leafSize)
}

// relax records g as the best known cost of idx via parent and updates the
// open set.
func (s *search) relax(idx, parent int32, g float32) {
	s.gScore[idx] = g
	s.parent[idx] = parent
	f := s.fScore(idx, g)
	s.seq++
	if hn := s.inOpen[idx]; hn != nil {
		hn.fScore, hn.gScore, hn.seq = f, g, s.seq
		heap.Fix(&s.open, hn.index)
		return
	}
	hn := newHeapNode(idx, f, g, s.seq)
	heap.Push(&s.open, hn)
	s.inOpen[idx] = hn
}

func (s *search) run() (Corridor, error) {
	defer s.open.Clear()

	s.gScore[s.from] = 0
	if s.opts.Algorithm == AStar {
		s.relax(s.from, noParent, 0)
	} else {
		// any-angle searches treat the start as its own parent
		s.relax(s.from, s.from, 0)
	}

	interval := s.opts.CancelCheckInterval
	for s.open.Len() > 0 {
		if s.opts.MaxIterations > 0 && s.iterations >= s.opts.MaxIterations {
			return Corridor{Iterations: s.iterations}, errors.Wrapf(ErrNoPathExists, "iteration cap %d reached", s.opts.MaxIterations)
		}
		s.iterations++
		if s.iterations%interval == 0 && s.cancel.Cancelled() {
			return Corridor{Iterations: s.iterations}, ErrCancelled
		}

		hn := heap.Pop(&s.open).(*heapNode)
		cur := hn.nodeID
		heapNodePool.Put(hn)
		s.inOpen[cur] = nil

		if s.opts.Algorithm == LazyThetaStar {
			if err := s.setVertex(cur); err != nil {
				return Corridor{Iterations: s.iterations}, err
			}
		}
		if cur == s.to {
			return s.corridor(), nil
		}
		s.closed.Set(uint32(cur))

		for _, nb := range s.tree.NeighborIndices(cur) {
			if s.closed.Contains(uint32(nb)) {
				continue
			}
			if s.tree.NodeAt(nb).Size() < s.clearance {
				continue
			}
			if err := s.expand(cur, nb); err != nil {
				return Corridor{Iterations: s.iterations}, err
			}
		}
	}
	return Corridor{Iterations: s.iterations}, errors.Wrap(ErrNoPathExists, "frontier exhausted")
}

func (s *search) expand(cur, nb int32) error {
	switch s.opts.Algorithm {
	case ThetaStar:
		if p := s.parent[cur]; p != noParent {
			visible, err := s.los(s.center(p), s.center(nb), s.clearance)
			if err != nil {
				return err
			}
			if visible {
				if g := s.gScore[p] + s.cost(p, nb); g < s.gScore[nb] {
					s.relax(nb, p, g)
				}
				return nil
			}
		}
	case LazyThetaStar:
		// assume the parent sees nb; setVertex repairs it on expansion
		if p := s.parent[cur]; p != noParent {
			if g := s.gScore[p] + s.cost(p, nb); g < s.gScore[nb] {
				s.relax(nb, p, g)
			}
			return nil
		}
	}
	if g := s.gScore[cur] + s.cost(cur, nb); g < s.gScore[nb] {
		s.relax(nb, cur, g)
	}
	return nil
}

// setVertex checks the assumed line of sight of a Lazy Theta* node and
// falls back to its best closed neighbour.
func (s *search) setVertex(idx int32) error {
	p := s.parent[idx]
	if p == noParent || p == idx {
		return nil
	}
	visible, err := s.los(s.center(p), s.center(idx), s.clearance)
	if err != nil || visible {
		return err
	}
	best, bestG := noParent, float32(math32.MaxFloat32)
	for _, nb := range s.tree.NeighborIndices(idx) {
		if !s.closed.Contains(uint32(nb)) {
			continue
		}
		if g := s.gScore[nb] + s.cost(nb, idx); g < bestG {
			best, bestG = nb, g
		}
	}
	if best != noParent {
		s.parent[idx], s.gScore[idx] = best, bestG
	}
	return nil
}

func (s *search) corridor() Corridor {
	var path []int32
	for idx := s.to; ; idx = s.parent[idx] {
		path = append(path, idx)
		if idx == s.from || s.parent[idx] == noParent {
			break
		}
	}
	nodes := make([]octree.Node, len(path))
	for i, idx := range path {
		nodes[len(path)-1-i] = s.tree.NodeAt(idx)
	}
	return Corridor{Nodes: nodes, Cost: s.gScore[s.to], Iterations: s.iterations}
}
