// Package workpool bounds CPU-bound work (vision inference, STT decoding,
// TTS synthesis) to a fixed-size pool so I/O-bound pipeline stages can
// interleave without blocking the ingress path (spec §5).
package workpool

import "context"

// DefaultSize is the worker pool size (spec §5: "a bounded worker pool of
// size 2").
const DefaultSize = 2

// Pool dispatches CPU-bound closures onto a fixed number of concurrent
// slots using a buffered semaphore channel, grounded on the teacher's
// semaphore-acquire pattern in pkg/queue but scoped to in-process tasks
// rather than sessions.
type Pool struct {
	slots chan struct{}
}

// New constructs a Pool with size concurrent slots.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Run executes fn once a slot is free, blocking until one is available or
// ctx is cancelled.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	return fn(ctx)
}
