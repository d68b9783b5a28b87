package rbc

import "fmt"

// BroadcastStatus aggregates the acknowledgments collected by a single
// broadcast call and decides when the aggregated result is final.
//
// Add is called concurrently from many response handlers; implementations
// must guard their own state and apply each acknowledgment atomically.
// Add returns the aggregated value and true once the acknowledgments added so
// far satisfy the completion predicate, and the zero value and false while
// more acknowledgments are needed. A non-nil error rejects the acknowledgment;
// the peer that sent it is then retried like any other failed peer.
type BroadcastStatus[P comparable, Ack, Agg any] interface {
	Add(peer P, ack Ack) (Agg, bool, error)
}

// StatusFunc adapts an ordinary function to the BroadcastStatus interface.
// The function must be safe for concurrent use.
type StatusFunc[P comparable, Ack, Agg any] func(peer P, ack Ack) (Agg, bool, error)

// Add calls f(peer, ack).
func (f StatusFunc[P, Ack, Agg]) Add(peer P, ack Ack) (Agg, bool, error) {
	return f(peer, ack)
}

// Identity is an acknowledgment decoder for protocols where the
// peer's response is already the acknowledgment.
func Identity[T any](res T) (T, error) {
	return res, nil
}

// As is an acknowledgment decoder that asserts the peer's response to T.
// Responses of any other dynamic type fail with ErrTypeMismatch.
func As[T, Res any](res Res) (T, error) {
	if ack, ok := any(res).(T); ok {
		return ack, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, res, zero)
}
