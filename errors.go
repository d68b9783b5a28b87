package rbc

import (
	"errors"
	"fmt"
)

// ErrNoPeers is returned by a broadcast over an empty peer set,
// which could never reach any aggregation predicate.
var ErrNoPeers = errors.New("no peers to broadcast to")

// ErrBackoffExhausted is the cause of a BackoffExhaustedError.
var ErrBackoffExhausted = errors.New("backoff sequence exhausted")

// ErrTypeMismatch is returned when a response cannot be converted to the
// expected acknowledgment type.
var ErrTypeMismatch = errors.New("response type mismatch")

// ErrIncomplete is returned if the response stream of a broadcast ends
// without an aggregated result and without the context being cancelled.
var ErrIncomplete = errors.New("incomplete broadcast")

// BackoffExhaustedError reports that a peer failed and its backoff sequence
// had no further delay. This is a programming error in the choice of backoff
// policy, since the broadcast can no longer retry that peer.
type BackoffExhaustedError[P comparable] struct {
	Peer     P
	Attempts int
	Last     error
}

func (e BackoffExhaustedError[P]) Error() string {
	return fmt.Sprintf("peer %v: %s after %d attempts: %v", e.Peer, ErrBackoffExhausted, e.Attempts, e.Last)
}

// Is reports whether target is ErrBackoffExhausted.
func (e BackoffExhaustedError[P]) Is(target error) bool {
	return target == ErrBackoffExhausted
}

// Unwrap returns the error of the peer's last attempt.
func (e BackoffExhaustedError[P]) Unwrap() error {
	return e.Last
}

// PeerError reports on a failed attempt to a peer.
type PeerError[P comparable] struct {
	Peer    P
	Attempt int
	Cause   error
}

func (e PeerError[P]) Error() string {
	return fmt.Sprintf("peer %v (attempt %d): %v", e.Peer, e.Attempt, e.Cause)
}

func (e PeerError[P]) Unwrap() error {
	return e.Cause
}
