package query

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrPointNotNavigable is returned when start or goal lies outside the
	// volume, in a non-Open node, or in a node too small for the clearance.
	ErrPointNotNavigable = errors.New("point not navigable")
	// ErrNoPathExists is returned when the frontier is exhausted or the
	// iteration cap is reached.
	ErrNoPathExists = errors.New("no path exists")
	// ErrCancelled is returned when the search observes a cancellation.
	ErrCancelled = errors.New("search cancelled")
	// ErrClearanceExceedsVolume is returned when the clearance is larger than
	// the smallest extent of the volume.
	ErrClearanceExceedsVolume = errors.New("clearance exceeds volume")
)

// Canceller is polled by the search loop.
type Canceller interface {
	Cancelled() bool
}

// CancellerFunc adapts a function to a Canceller.
type CancellerFunc func() bool

// Cancelled calls f.
func (f CancellerFunc) Cancelled() bool {
	return f()
}

// ContextCanceller reports cancellation once ctx is done.
func ContextCanceller(ctx context.Context) Canceller {
	return CancellerFunc(func() bool {
		return ctx.Err() != nil
	})
}

// never is used when no canceller is supplied.
var never = CancellerFunc(func() bool { return false })
