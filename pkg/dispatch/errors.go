package dispatch

import "errors"

var (
	// ErrQueueFull is returned by Submit when the run queue has no free slot.
	ErrQueueFull = errors.New("run queue is full")

	// ErrRateLimited is returned by Submit when the submission rate limit is exceeded.
	ErrRateLimited = errors.New("submission rate limit exceeded")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("dispatcher stopped")
)
