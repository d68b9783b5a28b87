package rbc

import "context"

// Async is a future for the result of an asynchronous broadcast.
type Async[Agg any] struct {
	reply Agg
	err   error
	c     chan struct{}
}

// Get returns the aggregated value and any error of the broadcast.
// The method blocks until the broadcast has completed.
func (f *Async[Agg]) Get() (Agg, error) {
	<-f.c
	return f.reply, f.err
}

// Done reports if the broadcast has completed.
func (f *Async[Agg]) Done() bool {
	select {
	case <-f.c:
		return true
	default:
		return false
	}
}

// BroadcastAsync starts Broadcast in a new goroutine and returns a future
// for its result. Cancelling ctx aborts the broadcast.
func BroadcastAsync[P comparable, Req, Res, Ack, Agg any](
	ctx context.Context,
	rb *ReliableBroadcast[P, Req, Res],
	msg Req,
	decode func(Res) (Ack, error),
	status BroadcastStatus[P, Ack, Agg],
) *Async[Agg] {
	fut := &Async[Agg]{c: make(chan struct{})}
	go func() {
		defer close(fut.c)
		fut.reply, fut.err = Broadcast(ctx, rb, msg, decode, status)
	}()
	return fut
}
