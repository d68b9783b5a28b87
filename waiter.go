package rbc

import (
	"context"
	"iter"
)

// Future is a unit of asynchronous work producing a value of type T.
// The context is cancelled when the FutureWaiter running it is closed;
// a Future should return promptly after that.
type Future[T any] func(ctx context.Context) T

// FutureWaiter runs futures received on an injection channel and yields their
// results in completion order. Futures may be injected at any time, including
// while the waiter is being consumed.
//
// A FutureWaiter is consumed by a single goroutine. Its stream ends when the
// injection channel is closed and all started futures have completed, or when
// the waiter is closed or its context is done. An ended stream stays ended.
type FutureWaiter[T any] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	inject  <-chan Future[T]
	results chan T
	pending int
	closed  bool // injection channel closed
	done    bool
}

// NewFutureWaiter returns a waiter for futures received on inject.
// The futures run with a context derived from ctx.
func NewFutureWaiter[T any](ctx context.Context, inject <-chan Future[T]) *FutureWaiter[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &FutureWaiter[T]{
		ctx:     ctx,
		cancel:  cancel,
		inject:  inject,
		results: make(chan T),
	}
}

// Next blocks until the next future completes and returns its result.
// It returns false once the stream has ended.
func (w *FutureWaiter[T]) Next() (T, bool) {
	var zero T
	for !w.done {
		if w.closed && w.pending == 0 {
			w.done = true
			break
		}
		inject := w.inject
		if w.closed {
			inject = nil
		}
		select {
		case f, ok := <-inject:
			if !ok {
				w.closed = true
				continue
			}
			w.start(f)
		case r := <-w.results:
			w.pending--
			return r, true
		case <-w.ctx.Done():
			w.done = true
		}
	}
	return zero, false
}

// All returns an iterator over the remaining results.
func (w *FutureWaiter[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			r, ok := w.Next()
			if !ok || !yield(r) {
				return
			}
		}
	}
}

// Pending returns the number of started futures whose result has not yet been
// returned by Next.
func (w *FutureWaiter[T]) Pending() int {
	return w.pending
}

// Close ends the stream and cancels the context of all running futures.
// Their results are discarded.
func (w *FutureWaiter[T]) Close() {
	w.done = true
	w.cancel()
}

func (w *FutureWaiter[T]) start(f Future[T]) {
	w.pending++
	go func() {
		r := f(w.ctx)
		select {
		case w.results <- r:
		case <-w.ctx.Done():
		}
	}()
}
