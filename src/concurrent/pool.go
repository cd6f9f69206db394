package concurrent

import (
	"context"
	"sync/atomic"
)

// WorkerPool bounds the number of functions running at once.
type WorkerPool struct {
	maxWorkers int
	sem        chan struct{}
	inFlight   atomic.Int64
}

// NewWorkerPool creates a pool admitting at most maxWorkers concurrent calls.
// A non-positive value falls back to 10.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
	}
}

// Do runs fn once a slot is free. It returns ctx.Err() without running fn if
// the context ends first.
func (wp *WorkerPool) Do(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.sem <- struct{}{}:
	}
	wp.inFlight.Add(1)
	defer func() {
		wp.inFlight.Add(-1)
		<-wp.sem
	}()
	return fn()
}

// InFlight reports how many calls are currently running.
func (wp *WorkerPool) InFlight() int { return int(wp.inFlight.Load()) }

// Size returns the configured concurrency limit.
func (wp *WorkerPool) Size() int { return wp.maxWorkers }
