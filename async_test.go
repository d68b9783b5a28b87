package rbc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBroadcastAsync(t *testing.T) {
	tests := []struct {
		name    string
		behave  behavior
		backoff Backoff
		want    []int
		wantErr error
	}{
		{name: "Aggregated", behave: echo, backoff: fastBackoff, want: []int{0, 1, 2}},
		{name: "Exhausted", behave: failing(-1, 0), backoff: NewLimitBackoff(fastBackoff, 1), wantErr: ErrBackoffExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := New(peers(3), newFakeNetwork(tt.behave), WithBackoff(tt.backoff))
			fut := BroadcastAsync(testContext(t, defaultTestTimeout), rb, "msg", Identity[string], newThresholdStatus(3))
			got, err := fut.Get()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}
			if !fut.Done() {
				t.Error("Done() = false after Get returned")
			}
		})
	}
}

func TestBroadcastAsyncNotDone(t *testing.T) {
	rb := New(peers(1), newFakeNetwork(blocking(-1, 0)), WithRPCTimeout(time.Minute))
	ctx, cancel := context.WithCancel(t.Context())
	fut := BroadcastAsync(ctx, rb, "msg", Identity[string], newThresholdStatus(1))
	time.Sleep(10 * time.Millisecond)
	if fut.Done() {
		t.Error("Done() = true while the broadcast is blocked")
	}
	cancel()
	if _, err := fut.Get(); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want %v", err, context.Canceled)
	}
}
