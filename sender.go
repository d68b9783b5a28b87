package rbc

import (
	"context"
	"time"
)

// NetworkSender sends one message to one peer and waits for its reply.
//
// Implementations should give up once timeout has elapsed. The broadcast
// engine additionally bounds the context passed to Send by the same timeout.
type NetworkSender[P comparable, Req, Res any] interface {
	Send(ctx context.Context, peer P, req Req, timeout time.Duration) (Res, error)
}

// SenderFunc adapts an ordinary function to the NetworkSender interface.
type SenderFunc[P comparable, Req, Res any] func(ctx context.Context, peer P, req Req, timeout time.Duration) (Res, error)

// Send calls f(ctx, peer, req, timeout).
func (f SenderFunc[P, Req, Res]) Send(ctx context.Context, peer P, req Req, timeout time.Duration) (Res, error) {
	return f(ctx, peer, req, timeout)
}
