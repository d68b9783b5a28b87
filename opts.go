package rbc

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultRPCTimeout bounds each attempt to a peer when no timeout is configured.
const DefaultRPCTimeout = time.Second

type options struct {
	backoff    Backoff
	rpcTimeout time.Duration
	executor   Executor
	clock      clock.Clock
	logger     *slog.Logger
	trace      bool
	machineID  uint64
}

func newOptions() options {
	return options{
		backoff:    NewExponentialBackoff(DefaultBackoffConfig),
		rpcTimeout: DefaultRPCTimeout,
		clock:      clock.New(),
	}
}

// Option configures a ReliableBroadcast.
type Option func(*options)

// WithBackoff sets the template of the per-peer retry delays. Every peer of
// every broadcast gets its own clone of b.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithRPCTimeout sets the timeout of every single attempt to a peer.
// It is fixed for the lifetime of the engine and not adjusted by backoff.
// Non-positive values select DefaultRPCTimeout.
func WithRPCTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.rpcTimeout = timeout
	}
}

// WithExecutor sets the executor that caps the number of concurrent sends.
// Sharing one executor between engines caps their sends together.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithClock sets the clock used to wait out retry delays.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets a structured logger for failed attempts and results.
// By default, nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTrace enables golang.org/x/net/trace events for every broadcast.
func WithTrace(enable bool) Option {
	return func(o *options) {
		o.trace = enable
	}
}

// WithMachineID sets the machine ID embedded in broadcast IDs.
// By default, a random machine ID is used.
func WithMachineID(id uint64) Option {
	return func(o *options) {
		o.machineID = id
	}
}
