package scheduler

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/octree"
)

// Navigator owns one navigation volume: its collision source and the
// currently published octree snapshot.
type Navigator struct {
	name     string
	volume   octree.Volume
	cq       octree.CollisionQuery
	builder  *octree.Builder
	builds   *semaphore.Weighted
	logger   *zap.SugaredLogger
	snapshot atomic.Pointer[octree.Octree]

	// buildMu serializes writers of the snapshot.
	buildMu sync.Mutex
}

// NewNavigator returns a navigator whose builds share the scheduler's build
// slots. The volume is built on the first call to BuildOrRebuild.
func (s *Scheduler) NewNavigator(name string, vol octree.Volume, cq octree.CollisionQuery) *Navigator {
	logger := s.logger.With("navigator", name)
	return &Navigator{
		name:    name,
		volume:  vol,
		cq:      cq,
		builder: octree.NewBuilder(octree.WithLogger(logger), octree.WithParallelism(s.opts.BuildParallelism)),
		builds:  s.builds,
		logger:  logger,
	}
}

// Name returns the navigator name.
func (n *Navigator) Name() string {
	return n.name
}

// Volume returns the configured volume.
func (n *Navigator) Volume() octree.Volume {
	return n.volume
}

// Collision returns the collision source.
func (n *Navigator) Collision() octree.CollisionQuery {
	return n.cq
}

// Snapshot returns the published octree, or nil before the first build.
func (n *Navigator) Snapshot() *octree.Octree {
	return n.snapshot.Load()
}

// BuildOrRebuild builds the volume, or rebuilds region of the current
// snapshot when both exist, and publishes the result. A nil region rebuilds
// everything. On failure the previous snapshot stays published.
func (n *Navigator) BuildOrRebuild(ctx context.Context, region *geometry.AABB) (*octree.Octree, error) {
	n.buildMu.Lock()
	defer n.buildMu.Unlock()

	if err := n.builds.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "waiting for a build slot")
	}
	defer n.builds.Release(1)

	prev := n.snapshot.Load()
	var (
		tree *octree.Octree
		err  error
	)
	switch {
	case prev == nil:
		tree, err = n.builder.Build(ctx, n.volume, n.cq)
	case region == nil:
		tree, err = n.builder.Rebuild(ctx, prev, prev.Volume().Bounds, n.cq)
	default:
		tree, err = n.builder.Rebuild(ctx, prev, *region, n.cq)
	}
	if err != nil {
		n.logger.Warnw("build failed, keeping previous snapshot", "error", err)
		return nil, err
	}
	n.snapshot.Store(tree)
	return tree, nil
}

// BuildHandle is the pending result of SubmitBuild.
type BuildHandle struct {
	done chan struct{}
	tree *octree.Octree
	err  error
}

// Done is closed when the build finished.
func (h *BuildHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the build finished or ctx is done.
func (h *BuildHandle) Wait(ctx context.Context) (*octree.Octree, error) {
	select {
	case <-h.done:
		return h.tree, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
