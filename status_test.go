package rbc

import (
	"errors"
	"testing"
)

func TestAs(t *testing.T) {
	if got, err := As[string, any]("ack"); err != nil || got != "ack" {
		t.Errorf("As(\"ack\") = (%q, %v), want (\"ack\", nil)", got, err)
	}
	if _, err := As[string, any](42); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("As(42) error = %v, want %v", err, ErrTypeMismatch)
	}
	if got, err := Identity(3); err != nil || got != 3 {
		t.Errorf("Identity(3) = (%d, %v), want (3, nil)", got, err)
	}
}

func TestStatusFunc(t *testing.T) {
	seen := map[int]bool{}
	var status BroadcastStatus[int, string, int] = StatusFunc[int, string, int](func(peer int, _ string) (int, bool, error) {
		seen[peer] = true
		return len(seen), len(seen) == 2, nil
	})
	if _, done, _ := status.Add(1, "x"); done {
		t.Error("Add(1) done = true, want false")
	}
	if n, done, _ := status.Add(2, "x"); !done || n != 2 {
		t.Errorf("Add(2) = (%d, %t), want (2, true)", n, done)
	}
}
