package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/Orrigine/OverScoped/math32"
	"github.com/Orrigine/OverScoped/octree"
	"github.com/Orrigine/OverScoped/query"
)

// State is the lifecycle state of a path request.
type State uint8

const (
	Queued State = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s >= Completed
}

// PathRequest asks for a path between two points.
type PathRequest struct {
	Start     math32.Vector3 `json:"start"`
	Goal      math32.Vector3 `json:"goal"`
	Clearance float32        `json:"clearance"`
	// Timeout overrides the scheduler default when positive.
	Timeout time.Duration `json:"timeout"`
	// OnComplete runs on the worker goroutine once the request is terminal.
	OnComplete func(Result) `json:"-"`
}

// Result is the observable state of a request. It never changes once State
// is terminal.
type Result struct {
	Token      uuid.UUID        `json:"token"`
	State      State            `json:"state"`
	Waypoints  []math32.Vector3 `json:"waypoints,omitempty"`
	Corridor   []octree.Address `json:"corridor,omitempty"`
	Cost       float32          `json:"cost"`
	Direct     bool             `json:"direct"`
	Generation uint64           `json:"generation"`
	// CancelRequested is set as soon as Cancel or the deadline fired, even
	// while the search is still running.
	CancelRequested bool          `json:"cancel_requested"`
	Submitted       time.Time     `json:"submitted"`
	Duration        time.Duration `json:"duration"`
	Err             error         `json:"-"`
}

type request struct {
	token uuid.UUID
	nav   *Navigator
	req   PathRequest

	// mu orders finalization against Cancel.
	mu       sync.Mutex
	state    State
	result   Result
	timer    *clock.Timer
	started  time.Time
	cancel   atomic.Bool
	deadline atomic.Bool
	done     chan struct{}
}

func newRequest(nav *Navigator, req PathRequest, now time.Time) *request {
	token := uuid.New()
	return &request{
		token:  token,
		nav:    nav,
		req:    req,
		state:  Queued,
		result: Result{Token: token, State: Queued, Submitted: now},
		done:   make(chan struct{}),
	}
}

// Cancelled is polled by the search loop.
func (r *request) Cancelled() bool {
	return r.cancel.Load()
}

var _ query.Canceller = (*request)(nil)

// begin moves a queued request to Running.
func (r *request) begin(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Queued {
		return false
	}
	r.state = Running
	r.started = now
	return true
}

// requestCancel flags the request. A queued request is finalized at once.
func (r *request) requestCancel(byDeadline bool, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case Queued:
		r.flag(byDeadline)
		r.finalize(Cancelled, r.cancelErr(), now)
		return true
	case Running:
		r.flag(byDeadline)
		return true
	}
	return false
}

func (r *request) flag(byDeadline bool) {
	if byDeadline {
		r.deadline.Store(true)
	}
	r.cancel.Store(true)
}

func (r *request) cancelErr() error {
	if r.deadline.Load() {
		return ErrDeadlineExceeded
	}
	return query.ErrCancelled
}

// finish records the outcome of a search. A request flagged for cancellation
// ends Cancelled whatever the search returned.
func (r *request) finish(tree *octree.Octree, path query.Path, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	if tree != nil {
		r.result.Generation = tree.Generation()
	}
	switch {
	case r.cancel.Load():
		r.finalize(Cancelled, r.cancelErr(), now)
	case err == nil:
		r.result.Waypoints = path.Waypoints
		r.result.Corridor = path.Corridor.Addresses()
		r.result.Cost = path.Corridor.Cost
		r.result.Direct = path.Direct
		r.finalize(Completed, nil, now)
	default:
		r.finalize(Failed, err, now)
	}
}

// finalize must be called with mu held.
func (r *request) finalize(state State, err error, now time.Time) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.state = state
	r.result.State = state
	r.result.Err = err
	r.result.CancelRequested = r.cancel.Load()
	if !r.started.IsZero() {
		r.result.Duration = now.Sub(r.started)
	}
	close(r.done)
}

// snapshot returns the current result.
func (r *request) snapshot() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.result
	res.State = r.state
	res.CancelRequested = r.cancel.Load()
	return res
}
