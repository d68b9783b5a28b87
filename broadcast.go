// Package rbc implements reliable broadcast: a message is sent to a fixed set
// of peers, their acknowledgments are aggregated by a caller-supplied
// BroadcastStatus, and failing peers are retried with per-peer backoff until
// the aggregation reports a final result.
//
// The engine is parametric over the peer identifier, the request and response
// types of the network, and the acknowledgment and aggregated types of each
// broadcast:
//
//	rb := rbc.New(peers, sender, rbc.WithRPCTimeout(500*time.Millisecond))
//	cert, err := rbc.Broadcast(ctx, rb, req, decodeSignature, aggregator)
//
// A broadcast only ends with the aggregated value, a cancelled context, or a
// backoff policy that ran out of delays. Individual peer failures are never
// returned to the caller; the aggregation predicate must therefore be
// satisfiable by the peers that are expected to stay reachable.
package rbc

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/relab/rbc/internal/snowflake"
	"github.com/relab/rbc/logging"
)

// ReliableBroadcast broadcasts messages to a fixed set of peers.
// It is safe for concurrent use; concurrent broadcasts share only the
// executor and never each other's per-call state.
type ReliableBroadcast[P comparable, Req, Res any] struct {
	peers    []P
	sender   NetworkSender[P, Req, Res]
	opts     options
	executor Executor
	ids      *snowflake.Snowflake
}

// New returns a broadcast engine for the given peers. Duplicate peers are
// ignored. The peer set is fixed for the lifetime of the engine.
// A non-positive RPC timeout is replaced by DefaultRPCTimeout.
func New[P comparable, Req, Res any](peers []P, sender NetworkSender[P, Req, Res], opts ...Option) *ReliableBroadcast[P, Req, Res] {
	o := newOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.rpcTimeout <= 0 {
		o.rpcTimeout = DefaultRPCTimeout
	}
	executor := o.executor
	if executor == nil {
		executor = NewBoundedExecutor(DefaultMaxConcurrency)
	}
	seen := make(map[P]struct{}, len(peers))
	unique := make([]P, 0, len(peers))
	for _, p := range peers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return &ReliableBroadcast[P, Req, Res]{
		peers:    unique,
		sender:   sender,
		opts:     o,
		executor: executor,
		ids:      snowflake.New(o.machineID),
	}
}

// Peers returns the peers that every broadcast is sent to.
func (rb *ReliableBroadcast[P, Req, Res]) Peers() []P {
	return slices.Clone(rb.peers)
}

// RPCTimeout returns the timeout of a single attempt to a peer.
func (rb *ReliableBroadcast[P, Req, Res]) RPCTimeout() time.Duration {
	return rb.opts.rpcTimeout
}

// outcome is the result of one attempt to one peer.
type outcome[P comparable, Agg any] struct {
	peer P
	agg  Agg
	done bool
	err  error
}

// Broadcast sends msg to every peer of rb and returns the aggregated value as
// soon as status reports it final.
//
// Each response is converted with decode and added to status. A failed send,
// a conversion error and an error from status.Add all count as a failure of
// that peer, which is then retried after the next delay of its own backoff
// sequence. At most one attempt per peer is outstanding at any time.
// Attempts still running when Broadcast returns are cancelled.
//
// Broadcast returns ErrNoPeers if rb has no peers, a BackoffExhaustedError if
// a failing peer cannot be retried, and the cause of ctx's cancellation if ctx
// is done first.
func Broadcast[P comparable, Req, Res, Ack, Agg any](
	ctx context.Context,
	rb *ReliableBroadcast[P, Req, Res],
	msg Req,
	decode func(Res) (Ack, error),
	status BroadcastStatus[P, Ack, Agg],
) (Agg, error) {
	var zero Agg
	if len(rb.peers) == 0 {
		return zero, ErrNoPeers
	}
	started := rb.opts.clock.Now()
	id := rb.ids.NewID()
	logger := rb.opts.logger
	if logger != nil {
		logger = logger.With(logging.BroadcastID(id))
	}
	var ti *traceInfo
	if rb.opts.trace {
		ti = newTraceInfo(id, len(rb.peers), rb.opts.rpcTimeout)
		defer ti.Finish()
	}

	backoffs := make(map[P]Backoff, len(rb.peers))
	attempts := make(map[P]int, len(rb.peers))
	for _, peer := range rb.peers {
		backoffs[peer] = rb.opts.backoff.Clone()
	}

	// Each peer has at most one future queued or running, so the channel
	// never holds more than len(rb.peers) futures.
	futures := make(chan Future[outcome[P, Agg]], len(rb.peers))
	waiter := NewFutureWaiter(ctx, futures)
	defer waiter.Close()

	send := func(peer P, delay time.Duration) {
		attempts[peer]++
		if ti != nil {
			ti.LazyLog(&payload{peer: peer, attempt: attempts[peer], delay: delay}, false)
		}
		futures <- func(ctx context.Context) outcome[P, Agg] {
			out := outcome[P, Agg]{peer: peer}
			if delay > 0 {
				if out.err = sleep(ctx, rb.opts.clock, delay); out.err != nil {
					return out
				}
			}
			err := rb.executor.Execute(ctx, func() {
				out.agg, out.done, out.err = deliver(ctx, rb, peer, msg, decode, status)
			})
			if err != nil {
				out.err = err
			}
			return out
		}
	}

	for _, peer := range rb.peers {
		send(peer, 0)
	}
	for out := range waiter.All() {
		if out.err == nil {
			if !out.done {
				continue
			}
			if logger != nil {
				logger.LogAttrs(ctx, slog.LevelDebug, "rbc: broadcast aggregated",
					logging.Peer(out.peer), logging.Peers(len(rb.peers)), logging.Elapsed(rb.opts.clock.Since(started)))
			}
			if ti != nil {
				ti.LazyLog(&result{peer: out.peer, agg: out.agg}, false)
			}
			return out.agg, nil
		}
		if ctx.Err() != nil {
			break
		}
		perr := PeerError[P]{Peer: out.peer, Attempt: attempts[out.peer], Cause: out.err}
		if ti != nil {
			ti.LazyLog(&result{peer: out.peer, err: perr}, false)
		}
		delay, ok := backoffs[out.peer].Next()
		if !ok {
			err := BackoffExhaustedError[P]{Peer: out.peer, Attempts: attempts[out.peer], Last: out.err}
			if logger != nil {
				logger.LogAttrs(ctx, slog.LevelError, "rbc: cannot retry peer", logging.Peer(out.peer), logging.Err(err))
			}
			if ti != nil {
				ti.SetError()
			}
			return zero, err
		}
		if logger != nil {
			logger.LogAttrs(ctx, slog.LevelInfo, "rbc: attempt failed",
				logging.Peer(out.peer), logging.Attempt(perr.Attempt), logging.Delay(delay), logging.Err(out.err))
		}
		send(out.peer, delay)
	}
	if ti != nil {
		ti.SetError()
	}
	if err := context.Cause(ctx); err != nil {
		return zero, err
	}
	return zero, ErrIncomplete
}

// deliver performs a single attempt: send msg to peer, convert the reply and
// add it to status.
func deliver[P comparable, Req, Res, Ack, Agg any](
	ctx context.Context,
	rb *ReliableBroadcast[P, Req, Res],
	peer P,
	msg Req,
	decode func(Res) (Ack, error),
	status BroadcastStatus[P, Ack, Agg],
) (Agg, bool, error) {
	var zero Agg
	ctx, cancel := context.WithTimeout(ctx, rb.opts.rpcTimeout)
	defer cancel()
	res, err := rb.sender.Send(ctx, peer, msg, rb.opts.rpcTimeout)
	if err != nil {
		return zero, false, err
	}
	ack, err := decode(res)
	if err != nil {
		return zero, false, err
	}
	return status.Add(peer, ack)
}

// sleep waits for d on clk, or until ctx is done.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
