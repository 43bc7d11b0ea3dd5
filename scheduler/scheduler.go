// Package scheduler runs path requests and volume builds off the caller's
// goroutine. Requests are identified by a token and can be polled, awaited
// or cancelled.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Orrigine/OverScoped/geometry"
	"github.com/Orrigine/OverScoped/query"
)

// Options configures a Scheduler.
type Options struct {
	Workers           int
	QueueSize         int
	MaxParallelBuilds int
	// BuildParallelism is handed to the octree builder of every navigator.
	BuildParallelism int
	DefaultTimeout   time.Duration
	Search           query.Options
	Clock            clock.Clock
	Logger           *zap.SugaredLogger
}

// DefaultOptions returns one worker per CPU, a queue of 1024 requests and
// four concurrent builds.
func DefaultOptions() Options {
	return Options{
		Workers:           runtime.NumCPU(),
		QueueSize:         1024,
		MaxParallelBuilds: 4,
		BuildParallelism:  runtime.NumCPU(),
		Search:            query.DefaultOptions(),
	}
}

// Stats counts the requests held by the scheduler.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Scheduler is a bounded worker pool for path requests.
type Scheduler struct {
	opts   Options
	clock  clock.Clock
	logger *zap.SugaredLogger
	queue  chan *request
	builds *semaphore.Weighted

	mu       sync.RWMutex
	closed   bool
	requests map[uuid.UUID]*request

	workers sync.WaitGroup
	pending sync.WaitGroup
}

// New starts a scheduler and its workers.
func New(opts Options) *Scheduler {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.MaxParallelBuilds <= 0 {
		opts.MaxParallelBuilds = def.MaxParallelBuilds
	}
	if opts.BuildParallelism <= 0 {
		opts.BuildParallelism = def.BuildParallelism
	}
	if opts.Search == (query.Options{}) {
		opts.Search = def.Search
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	s := &Scheduler{
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger,
		queue:    make(chan *request, opts.QueueSize),
		builds:   semaphore.NewWeighted(int64(opts.MaxParallelBuilds)),
		requests: make(map[uuid.UUID]*request),
	}
	s.workers.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go s.worker()
	}
	return s
}

// Submit queues a path request on nav and returns its token. It never
// blocks.
func (s *Scheduler) Submit(nav *Navigator, req PathRequest) (uuid.UUID, error) {
	r := newRequest(nav, req, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return uuid.Nil, ErrClosed
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	if timeout > 0 {
		r.mu.Lock()
		r.timer = s.clock.AfterFunc(timeout, func() {
			s.logger.Debugw("request deadline reached", "token", r.token, "timeout", timeout)
			r.requestCancel(true, s.clock.Now())
		})
		r.mu.Unlock()
	}
	select {
	case s.queue <- r:
	default:
		if r.timer != nil {
			r.timer.Stop()
		}
		return uuid.Nil, ErrQueueFull
	}
	s.requests[r.token] = r
	s.logger.Debugw("path request queued", "token", r.token, "navigator", nav.Name(), "start", req.Start, "goal", req.Goal)
	return r.token, nil
}

func (s *Scheduler) lookup(token uuid.UUID) (*request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[token]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRequest, "token %s", token)
	}
	return r, nil
}

// Poll returns the current result of a request without blocking.
func (s *Scheduler) Poll(token uuid.UUID) (Result, error) {
	r, err := s.lookup(token)
	if err != nil {
		return Result{}, err
	}
	return r.snapshot(), nil
}

// Await blocks until the request is terminal or ctx is done, in which case
// the current result is returned with the context error.
func (s *Scheduler) Await(ctx context.Context, token uuid.UUID) (Result, error) {
	r, err := s.lookup(token)
	if err != nil {
		return Result{}, err
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Cancel requests cancellation. It returns false when the request is
// unknown or already terminal.
func (s *Scheduler) Cancel(token uuid.UUID) bool {
	r, err := s.lookup(token)
	if err != nil {
		return false
	}
	return r.requestCancel(false, s.clock.Now())
}

// Forget drops a terminal request. It returns false for unknown or
// unfinished requests.
func (s *Scheduler) Forget(token uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[token]
	if !ok {
		return false
	}
	select {
	case <-r.done:
		delete(s.requests, token)
		return true
	default:
		return false
	}
}

// Stats counts requests by state.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	reqs := make([]*request, 0, len(s.requests))
	for _, r := range s.requests {
		reqs = append(reqs, r)
	}
	s.mu.RUnlock()

	var st Stats
	for _, r := range reqs {
		switch r.snapshot().State {
		case Queued:
			st.Queued++
		case Running:
			st.Running++
		case Completed:
			st.Completed++
		case Failed:
			st.Failed++
		case Cancelled:
			st.Cancelled++
		}
	}
	return st
}

// SubmitBuild runs nav.BuildOrRebuild in the background.
func (s *Scheduler) SubmitBuild(ctx context.Context, nav *Navigator, region *geometry.AABB) *BuildHandle {
	h := &BuildHandle{done: make(chan struct{})}

	s.mu.RLock()
	closed := s.closed
	if !closed {
		s.pending.Add(1)
	}
	s.mu.RUnlock()
	if closed {
		h.err = ErrClosed
		close(h.done)
		return h
	}

	go func() {
		defer s.pending.Done()
		defer close(h.done)
		h.tree, h.err = nav.BuildOrRebuild(ctx, region)
	}()
	return h
}

func (s *Scheduler) worker() {
	defer s.workers.Done()
	for r := range s.queue {
		s.run(r)
	}
}

func (s *Scheduler) run(r *request) {
	if r.begin(s.clock.Now()) {
		tree := r.nav.Snapshot()
		if tree == nil {
			r.finish(nil, query.Path{}, errors.Wrapf(ErrNotBuilt, "navigator %s", r.nav.Name()), s.clock.Now())
		} else {
			planner := query.NewPlanner(tree, r.nav.Collision(), s.opts.Search, s.logger)
			path, err := planner.Plan(r, r.req.Start, r.req.Goal, r.req.Clearance)
			r.finish(tree, path, err, s.clock.Now())
		}
	}

	res := r.snapshot()
	s.logger.Debugw("path request finished", "token", r.token, "state", res.State, "error", res.Err)
	if r.req.OnComplete != nil {
		r.req.OnComplete(res)
	}
}

// Close stops intake, cancels queued requests and waits for the workers and
// background builds. If ctx ends first the running requests are cancelled
// too and an error lists the ones still running.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	reqs := make([]*request, 0, len(s.requests))
	for _, r := range s.requests {
		reqs = append(reqs, r)
	}
	s.mu.Unlock()

	now := s.clock.Now()
	for _, r := range reqs {
		if r.snapshot().State == Queued {
			r.requestCancel(false, now)
		}
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	err := errors.Wrap(ctx.Err(), "closing scheduler")
	for _, r := range reqs {
		if r.requestCancel(false, s.clock.Now()) {
			err = multierr.Append(err, errors.Errorf("request %s still running", r.token))
		}
	}
	return err
}
