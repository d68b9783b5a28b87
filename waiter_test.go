package rbc

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func value(v int, d time.Duration) Future[int] {
	return func(ctx context.Context) int {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		return v
	}
}

func TestFutureWaiterCompletionOrder(t *testing.T) {
	inject := make(chan Future[int], 3)
	inject <- value(3, 30*time.Millisecond)
	inject <- value(1, 0)
	inject <- value(2, 15*time.Millisecond)
	close(inject)

	w := NewFutureWaiter(t.Context(), inject)
	defer w.Close()
	got := slices.Collect(w.All())
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := w.Next(); ok {
		t.Error("Next() after end of stream = true, want false")
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", w.Pending())
	}
}

func TestFutureWaiterInjectWhileConsuming(t *testing.T) {
	inject := make(chan Future[int], 1)
	w := NewFutureWaiter(t.Context(), inject)
	defer w.Close()

	inject <- value(0, 0)
	var got []int
	for v := range w.All() {
		got = append(got, v)
		if v < 4 {
			inject <- value(v+1, 0)
		} else {
			close(inject)
		}
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestFutureWaiterEmpty(t *testing.T) {
	inject := make(chan Future[int])
	close(inject)
	w := NewFutureWaiter(t.Context(), inject)
	defer w.Close()
	if _, ok := w.Next(); ok {
		t.Error("Next() = true, want false")
	}
}

func TestFutureWaiterContextDone(t *testing.T) {
	inject := make(chan Future[int], 1)
	ctx, cancel := context.WithCancel(t.Context())
	w := NewFutureWaiter(ctx, inject)
	defer w.Close()

	cancelled := make(chan struct{})
	inject <- func(ctx context.Context) int {
		<-ctx.Done()
		close(cancelled)
		return 0
	}
	time.AfterFunc(10*time.Millisecond, cancel)
	if _, ok := w.Next(); ok {
		t.Error("Next() = true, want false after cancellation")
	}
	<-cancelled
	if _, ok := w.Next(); ok {
		t.Error("Next() = true, want false once ended")
	}
}

func TestFutureWaiterClose(t *testing.T) {
	inject := make(chan Future[int], 2)
	w := NewFutureWaiter(t.Context(), inject)

	cancelled := make(chan struct{})
	inject <- func(ctx context.Context) int {
		<-ctx.Done()
		close(cancelled)
		return 2
	}
	inject <- value(1, 0)
	if v, ok := w.Next(); !ok || v != 1 {
		t.Fatalf("Next() = (%d, %t), want (1, true)", v, ok)
	}
	if w.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", w.Pending())
	}
	w.Close()
	select {
	case <-cancelled:
	case <-time.After(defaultTestTimeout):
		t.Fatal("running future was not cancelled by Close")
	}
	if _, ok := w.Next(); ok {
		t.Error("Next() after Close = true, want false")
	}
}
