package rbc

import (
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/backoff"
)

// Backoff is a sequence of retry delays for one peer.
//
// Next returns the delay to wait before the next retry, and false if the
// sequence is exhausted. Clone returns an independent sequence that starts
// over from the beginning; the broadcast engine clones its template once per
// peer at the start of every broadcast call.
type Backoff interface {
	Next() (time.Duration, bool)
	Clone() Backoff
}

// DefaultBackoffConfig is the exponential backoff used when no other policy is
// configured: 100ms, 200ms, 400ms, ... capped at 3s.
var DefaultBackoffConfig = backoff.Config{
	BaseDelay:  100 * time.Millisecond,
	Multiplier: 2,
	Jitter:     0,
	MaxDelay:   3 * time.Second,
}

// ExponentialBackoff is an unbounded sequence of exponentially growing delays.
// The n-th delay is BaseDelay * Multiplier^n, capped at MaxDelay, and
// randomized by ±Jitter (a fraction of the delay).
type ExponentialBackoff struct {
	cfg   backoff.Config
	delay float64 // next delay before jitter
}

// NewExponentialBackoff returns an exponential backoff sequence for the
// given configuration.
func NewExponentialBackoff(cfg backoff.Config) *ExponentialBackoff {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &ExponentialBackoff{cfg: cfg, delay: float64(cfg.BaseDelay)}
}

// Next returns the next delay. It never reports exhaustion.
func (b *ExponentialBackoff) Next() (time.Duration, bool) {
	delay := b.delay
	b.delay = min(b.delay*b.cfg.Multiplier, float64(b.cfg.MaxDelay))
	if b.cfg.Jitter > 0 {
		delay *= 1 + b.cfg.Jitter*(rand.Float64()*2-1)
	}
	return time.Duration(max(delay, 0)), true
}

// Clone returns a fresh sequence with the same configuration.
func (b *ExponentialBackoff) Clone() Backoff {
	return NewExponentialBackoff(b.cfg)
}

// ConstantBackoff is an unbounded sequence repeating the same delay.
type ConstantBackoff time.Duration

// Next returns the constant delay.
func (b ConstantBackoff) Next() (time.Duration, bool) {
	return time.Duration(b), true
}

// Clone returns b; a constant sequence has no state.
func (b ConstantBackoff) Clone() Backoff {
	return b
}

// LimitBackoff bounds another sequence to at most n delays.
type LimitBackoff struct {
	b    Backoff
	n    int
	left int
}

// NewLimitBackoff returns a sequence yielding the first n delays of b.
func NewLimitBackoff(b Backoff, n int) *LimitBackoff {
	return &LimitBackoff{b: b.Clone(), n: n, left: n}
}

// Next returns the next delay of the underlying sequence, or false once n
// delays have been returned.
func (l *LimitBackoff) Next() (time.Duration, bool) {
	if l.left <= 0 {
		return 0, false
	}
	d, ok := l.b.Next()
	if !ok {
		l.left = 0
		return 0, false
	}
	l.left--
	return d, true
}

// Clone returns a fresh bounded sequence over a fresh clone of the
// underlying sequence.
func (l *LimitBackoff) Clone() Backoff {
	return NewLimitBackoff(l.b, l.n)
}
