package scheduler

import (
	"github.com/pkg/errors"

	"github.com/Orrigine/OverScoped/query"
)

var (
	// ErrQueueFull is returned by Submit when the request queue is at capacity.
	ErrQueueFull = errors.New("request queue full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("scheduler closed")
	// ErrUnknownRequest is returned for tokens the scheduler does not hold.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrNotBuilt fails requests made against a navigator with no snapshot.
	ErrNotBuilt = errors.New("navigation volume not built")
	// ErrDeadlineExceeded is the error of requests cancelled by their
	// timeout. It matches query.ErrCancelled.
	ErrDeadlineExceeded = errors.Wrap(query.ErrCancelled, "request deadline exceeded")
)
