package query

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
)

// Path is the outcome of a plan.
type Path struct {
	Waypoints []math32.Vector3
	Corridor  Corridor
	// Direct is set when the search was skipped because start saw goal.
	Direct bool
}

// Planner runs search and smoothing for one snapshot.
type Planner struct {
	finder   *Finder
	smoother *Smoother
	los      LineOfSightFunc
	opts     Options
	logger   *zap.SugaredLogger
}

// NewPlanner returns a planner over tree. Moves are checked against cq when
// it is not nil, and against the octree otherwise.
func NewPlanner(tree *octree.Octree, cq octree.CollisionQuery, opts Options, logger *zap.SugaredLogger) *Planner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	finder := NewFinder(tree, opts)
	finder.SetLogger(logger)
	los := TreeLineOfSight(tree)
	if cq != nil {
		finder.SetCollision(cq)
		los = CollisionLineOfSight(cq)
	}
	return &Planner{
		finder:   finder,
		smoother: NewSmoother(los, opts.SmoothingSubdivisions),
		los:      los,
		opts:     finder.Options(),
		logger:   logger,
	}
}

// Finder returns the underlying finder.
func (p *Planner) Finder() *Finder {
	return p.finder
}

// Plan returns waypoints from start to goal for an agent of the given
// clearance.
func (p *Planner) Plan(cancel Canceller, start, goal math32.Vector3, clearance float32) (Path, error) {
	if cancel == nil {
		cancel = never
	}
	if p.opts.DirectShortcut {
		path, ok, err := p.direct(cancel, start, goal, clearance)
		if err != nil || ok {
			return path, err
		}
	}

	corridor, err := p.finder.FindPath(cancel, start, goal, clearance)
	if err != nil {
		return Path{Corridor: corridor}, err
	}
	if cancel.Cancelled() {
		return Path{Corridor: corridor}, ErrCancelled
	}

	var waypoints []math32.Vector3
	if p.opts.Smoothing {
		waypoints, err = p.smoother.Smooth(corridor, start, goal, clearance)
		if err != nil {
			return Path{Corridor: corridor}, errors.Wrap(err, "smooth corridor")
		}
	} else {
		waypoints = pathPoints(corridor, start, goal)
	}
	if cancel.Cancelled() {
		return Path{Corridor: corridor}, ErrCancelled
	}
	return Path{Waypoints: waypoints, Corridor: corridor}, nil
}

func (p *Planner) direct(cancel Canceller, start, goal math32.Vector3, clearance float32) (Path, bool, error) {
	if err := p.finder.CheckClearance(clearance); err != nil {
		return Path{}, false, err
	}
	from, err := p.finder.Locate(start, clearance)
	if err != nil {
		return Path{}, false, errors.Wrap(err, "start")
	}
	to, err := p.finder.Locate(goal, clearance)
	if err != nil {
		return Path{}, false, errors.Wrap(err, "goal")
	}
	if cancel.Cancelled() {
		return Path{}, false, ErrCancelled
	}
	clear, err := p.los(start, goal, clearance)
	if err != nil || !clear {
		return Path{}, false, err
	}
	p.logger.Debugw("direct path", "start", start, "goal", goal)
	tree := p.finder.tree
	nodes := []octree.Node{tree.NodeAt(from)}
	if to != from {
		nodes = append(nodes, tree.NodeAt(to))
	}
	return Path{
		Waypoints: []math32.Vector3{start, goal},
		Corridor:  Corridor{Nodes: nodes, Cost: start.Distance(goal)},
		Direct:    true,
	}, true, nil
}
