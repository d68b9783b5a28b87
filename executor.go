package rbc

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency is the number of concurrent sends allowed by the
// executor created when no executor is configured.
const DefaultMaxConcurrency = 64

// Executor admits units of work under a concurrency cap.
//
// Execute blocks until the task is admitted or ctx is done, runs the task in
// the calling goroutine and releases the slot when the task returns. It
// returns ctx's error if the task was never admitted.
type Executor interface {
	Execute(ctx context.Context, task func()) error
}

// BoundedExecutor is an Executor that runs at most a fixed number of tasks at
// a time. It may be shared by several broadcast engines, in which case the
// cap applies to all of them together.
type BoundedExecutor struct {
	sem *semaphore.Weighted
	cap int
}

// NewBoundedExecutor returns an executor running at most n tasks at a time.
// It panics if n is not positive.
func NewBoundedExecutor(n int) *BoundedExecutor {
	if n <= 0 {
		panic("rbc: executor capacity must be positive")
	}
	return &BoundedExecutor{sem: semaphore.NewWeighted(int64(n)), cap: n}
}

// Capacity returns the maximum number of concurrently running tasks.
func (e *BoundedExecutor) Capacity() int {
	return e.cap
}

// Execute runs task in the calling goroutine once a slot is available.
func (e *BoundedExecutor) Execute(ctx context.Context, task func()) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	task()
	return nil
}

// Spawn waits for a slot and then runs task in a new goroutine.
// The slot is released when task returns.
func (e *BoundedExecutor) Spawn(ctx context.Context, task func()) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer e.sem.Release(1)
		task()
	}()
	return nil
}

// TrySpawn runs task in a new goroutine if a slot is immediately available.
// It reports whether the task was started.
func (e *BoundedExecutor) TrySpawn(task func()) bool {
	if !e.sem.TryAcquire(1) {
		return false
	}
	go func() {
		defer e.sem.Release(1)
		task()
	}()
	return true
}
