package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/Orrigine/OverScoped/collision"
	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
	"github.com/Orrigine/OverScoped/query"
)

var (
	start = math32.Vec3(4, 4, 4)
	goal  = math32.Vec3(60, 60, 60)
)

func cube64() octree.Volume {
	vol := octree.NewVolume(geometry.AABB{Max: math32.Splat(64)}, 3)
	vol.DefaultClearance = 1
	return vol
}

func solid(minX, minY, minZ, maxX, maxY, maxZ float32) *geometry.Box {
	b := geometry.BoxFromAABB(geometry.AABB{
		Min: math32.Vec3(minX, minY, minZ),
		Max: math32.Vec3(maxX, maxY, maxZ),
	})
	return &b
}

func wall() *collision.World {
	return collision.NewWorld(
		solid(25, 0, 0, 39, 24, 64),
		solid(25, 32, 0, 39, 64, 64),
		solid(25, 24, 0, 39, 32, 24),
		solid(25, 24, 32, 39, 32, 64),
	)
}

// blockingWorld holds every line of sight query until release is closed.
type blockingWorld struct {
	*collision.World
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingWorld() *blockingWorld {
	return &blockingWorld{
		World:   collision.NewWorld(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *blockingWorld) LineOfSight(a, b math32.Vector3, clearance float32) (bool, error) {
	w.once.Do(func() { close(w.entered) })
	<-w.release
	return w.World.LineOfSight(a, b, clearance)
}

// flakyWorld fails every query once broken is set.
type flakyWorld struct {
	*collision.World
	broken atomic.Bool
}

func (w *flakyWorld) Overlaps(box geometry.AABB) (bool, error) {
	if w.broken.Load() {
		return false, errors.New("collision backend unavailable")
	}
	return w.World.Overlaps(box)
}

func newScheduler(t *testing.T, opts Options) *Scheduler {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t).Sugar()
	s := New(opts)
	t.Cleanup(func() {
		test.That(t, s.Close(context.Background()), test.ShouldBeNil)
	})
	return s
}

func built(t *testing.T, s *Scheduler, cq octree.CollisionQuery) *Navigator {
	t.Helper()
	nav := s.NewNavigator("test", cube64(), cq)
	_, err := nav.BuildOrRebuild(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	return nav
}

func await(t *testing.T, s *Scheduler, token uuid.UUID) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := s.Await(ctx, token)
	test.That(t, err, test.ShouldBeNil)
	return res
}

func TestSubmitCompletes(t *testing.T) {
	s := newScheduler(t, Options{Workers: 2})
	nav := built(t, s, wall())

	done := make(chan Result, 1)
	token, err := s.Submit(nav, PathRequest{
		Start:      start,
		Goal:       goal,
		Clearance:  1,
		OnComplete: func(r Result) { done <- r },
	})
	test.That(t, err, test.ShouldBeNil)

	res := await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Completed)
	test.That(t, res.Err, test.ShouldBeNil)
	test.That(t, res.Token, test.ShouldEqual, token)
	test.That(t, res.Generation, test.ShouldEqual, uint64(1))
	test.That(t, res.Waypoints[0], test.ShouldResemble, start)
	test.That(t, res.Waypoints[len(res.Waypoints)-1], test.ShouldResemble, goal)
	test.That(t, res.Corridor, test.ShouldContain, octree.NewAddress(3, 3, 3, 3))

	cb := <-done
	test.That(t, cb.State, test.ShouldEqual, Completed)
	test.That(t, cb.Waypoints, test.ShouldResemble, res.Waypoints)

	polled, err := s.Poll(token)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, polled.State, test.ShouldEqual, Completed)
	test.That(t, s.Cancel(token), test.ShouldBeFalse)

	test.That(t, s.Forget(token), test.ShouldBeTrue)
	_, err = s.Poll(token)
	test.That(t, errors.Is(err, ErrUnknownRequest), test.ShouldBeTrue)
}

func TestNewFillsDefaults(t *testing.T) {
	s := newScheduler(t, Options{Workers: 1})
	test.That(t, s.opts.Search, test.ShouldResemble, query.DefaultOptions())
	test.That(t, s.opts.QueueSize, test.ShouldEqual, DefaultOptions().QueueSize)

	opts := query.DefaultOptions()
	opts.Algorithm = query.ThetaStar
	opts.Smoothing = false
	custom := newScheduler(t, Options{Workers: 1, Search: opts})
	test.That(t, custom.opts.Search, test.ShouldResemble, opts)

	// the zero search options still smooth the corridor
	world := &sightCounter{World: wall()}
	nav := built(t, s, world)
	token, err := s.Submit(nav, PathRequest{Start: start, Goal: goal, Clearance: 1})
	test.That(t, err, test.ShouldBeNil)
	res := await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Completed)
	test.That(t, world.calls.Load(), test.ShouldBeGreaterThan, int64(0))
}

// sightCounter counts line of sight queries.
type sightCounter struct {
	*collision.World
	calls atomic.Int64
}

func (w *sightCounter) LineOfSight(a, b math32.Vector3, clearance float32) (bool, error) {
	w.calls.Inc()
	return w.World.LineOfSight(a, b, clearance)
}

func TestSubmitFailures(t *testing.T) {
	s := newScheduler(t, Options{Workers: 1})
	nav := built(t, s, wall())

	token, err := s.Submit(nav, PathRequest{Start: start, Goal: goal, Clearance: 9})
	test.That(t, err, test.ShouldBeNil)
	res := await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Failed)
	test.That(t, errors.Is(res.Err, query.ErrNoPathExists), test.ShouldBeTrue)

	token, err = s.Submit(nav, PathRequest{Start: math32.Vec3(30, 10, 30), Goal: goal})
	test.That(t, err, test.ShouldBeNil)
	res = await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Failed)
	test.That(t, errors.Is(res.Err, query.ErrPointNotNavigable), test.ShouldBeTrue)

	unbuilt := s.NewNavigator("unbuilt", cube64(), wall())
	token, err = s.Submit(unbuilt, PathRequest{Start: start, Goal: goal})
	test.That(t, err, test.ShouldBeNil)
	res = await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Failed)
	test.That(t, errors.Is(res.Err, ErrNotBuilt), test.ShouldBeTrue)

	test.That(t, s.Cancel(uuid.New()), test.ShouldBeFalse)
	_, err = s.Await(context.Background(), uuid.New())
	test.That(t, errors.Is(err, ErrUnknownRequest), test.ShouldBeTrue)
}

func TestCancelRunningNeverCompletes(t *testing.T) {
	s := newScheduler(t, Options{Workers: 1})
	world := newBlockingWorld()
	nav := built(t, s, world)

	token, err := s.Submit(nav, PathRequest{Start: start, Goal: goal})
	test.That(t, err, test.ShouldBeNil)
	<-world.entered

	test.That(t, s.Cancel(token), test.ShouldBeTrue)
	res, err := s.Poll(token)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.State, test.ShouldEqual, Running)
	test.That(t, res.CancelRequested, test.ShouldBeTrue)

	close(world.release)
	res = await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Cancelled)
	test.That(t, errors.Is(res.Err, query.ErrCancelled), test.ShouldBeTrue)
	test.That(t, res.Waypoints, test.ShouldBeEmpty)
	test.That(t, s.Cancel(token), test.ShouldBeFalse)
}

func TestCancelQueued(t *testing.T) {
	s := newScheduler(t, Options{Workers: 1, QueueSize: 1})
	world := newBlockingWorld()
	nav := built(t, s, world)

	first, err := s.Submit(nav, PathRequest{Start: start, Goal: goal})
	test.That(t, err, test.ShouldBeNil)
	<-world.entered

	var called atomic.Int64
	second, err := s.Submit(nav, PathRequest{Start: start, Goal: goal, OnComplete: func(Result) { called.Inc() }})
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Submit(nav, PathRequest{Start: start, Goal: goal})
	test.That(t, errors.Is(err, ErrQueueFull), test.ShouldBeTrue)

	test.That(t, s.Cancel(second), test.ShouldBeTrue)
	res, err := s.Poll(second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.State, test.ShouldEqual, Cancelled)
	test.That(t, errors.Is(res.Err, query.ErrCancelled), test.ShouldBeTrue)

	close(world.release)
	test.That(t, await(t, s, first).State, test.ShouldEqual, Completed)
	test.That(t, s.Close(context.Background()), test.ShouldBeNil)
	test.That(t, called.Load(), test.ShouldEqual, int64(1))
}

func TestDeadlineCancels(t *testing.T) {
	mock := clock.NewMock()
	s := newScheduler(t, Options{Workers: 1, Clock: mock})
	world := newBlockingWorld()
	nav := built(t, s, world)

	token, err := s.Submit(nav, PathRequest{Start: start, Goal: goal, Timeout: time.Second})
	test.That(t, err, test.ShouldBeNil)
	<-world.entered

	mock.Add(500 * time.Millisecond)
	res, _ := s.Poll(token)
	test.That(t, res.CancelRequested, test.ShouldBeFalse)

	mock.Add(time.Second)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if res, _ = s.Poll(token); res.CancelRequested {
			break
		}
		time.Sleep(time.Millisecond)
	}
	test.That(t, res.CancelRequested, test.ShouldBeTrue)

	close(world.release)
	res = await(t, s, token)
	test.That(t, res.State, test.ShouldEqual, Cancelled)
	test.That(t, errors.Is(res.Err, ErrDeadlineExceeded), test.ShouldBeTrue)
	test.That(t, errors.Is(res.Err, query.ErrCancelled), test.ShouldBeTrue)
}

func TestConcurrentSearches(t *testing.T) {
	s := newScheduler(t, Options{Workers: 4})
	nav := built(t, s, wall())

	starts := []math32.Vector3{
		math32.Vec3(4, 4, 4), math32.Vec3(2, 60, 2), math32.Vec3(10, 30, 50), math32.Vec3(20, 4, 60),
	}
	var tokens []uuid.UUID
	for i := 0; i < 32; i++ {
		token, err := s.Submit(nav, PathRequest{Start: starts[i%len(starts)], Goal: goal, Clearance: 1})
		test.That(t, err, test.ShouldBeNil)
		tokens = append(tokens, token)
	}
	for _, token := range tokens {
		res := await(t, s, token)
		test.That(t, res.State, test.ShouldEqual, Completed)
		test.That(t, res.Waypoints[len(res.Waypoints)-1], test.ShouldResemble, goal)
	}
	test.That(t, s.Stats().Completed, test.ShouldEqual, len(tokens))
}

func TestFailedRebuildKeepsSnapshot(t *testing.T) {
	s := newScheduler(t, Options{Workers: 1})
	world := &flakyWorld{World: wall()}
	nav := built(t, s, world)
	first := nav.Snapshot()
	test.That(t, first.Generation(), test.ShouldEqual, uint64(1))

	world.broken.Store(true)
	region := geometry.AABB{Min: math32.Splat(2), Max: math32.Splat(10)}
	_, err := nav.BuildOrRebuild(context.Background(), &region)
	test.That(t, errors.Is(err, octree.ErrCollisionQueryFailed), test.ShouldBeTrue)
	test.That(t, nav.Snapshot(), test.ShouldEqual, first)

	world.broken.Store(false)
	world.Add(solid(2, 2, 2, 10, 10, 10))
	h := s.SubmitBuild(context.Background(), nav, &region)
	tree, err := h.Wait(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Generation(), test.ShouldEqual, uint64(2))
	test.That(t, nav.Snapshot(), test.ShouldEqual, tree)

	// searches started before the rebuild keep their snapshot
	leaf, ok := first.LeafAt(math32.Vec3(4, 4, 4))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, leaf.State, test.ShouldEqual, octree.Open)
	leaf, ok = tree.LeafAt(math32.Vec3(4, 4, 4))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, leaf.State, test.ShouldEqual, octree.Blocked)
}

func TestCloseStopsIntake(t *testing.T) {
	s := New(Options{Workers: 1, Logger: zaptest.NewLogger(t).Sugar()})
	nav := s.NewNavigator("test", cube64(), wall())
	test.That(t, s.Close(context.Background()), test.ShouldBeNil)
	test.That(t, s.Close(context.Background()), test.ShouldBeNil)

	_, err := s.Submit(nav, PathRequest{Start: start, Goal: goal})
	test.That(t, errors.Is(err, ErrClosed), test.ShouldBeTrue)

	_, err = s.SubmitBuild(context.Background(), nav, nil).Wait(context.Background())
	test.That(t, errors.Is(err, ErrClosed), test.ShouldBeTrue)
}

func TestCloseTimesOutOnRunningRequest(t *testing.T) {
	s := New(Options{Workers: 1, Logger: zaptest.NewLogger(t).Sugar()})
	world := newBlockingWorld()
	nav := built(t, s, world)

	token, err := s.Submit(nav, PathRequest{Start: start, Goal: goal})
	test.That(t, err, test.ShouldBeNil)
	<-world.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Close(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, token.String())

	close(world.release)
	test.That(t, await(t, s, token).State, test.ShouldEqual, Cancelled)
	s.workers.Wait()
}
