package rbc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
)

const defaultTestTimeout = 3 * time.Second

var errUnreachable = errors.New("peer unreachable")

// behavior decides the reply of a peer to its n-th attempt (starting at 1).
type behavior func(ctx context.Context, peer, attempt int, req string) (string, error)

// fakeNetwork is a NetworkSender for int peers and string messages whose
// replies are scripted per peer. It records attempts and concurrency.
type fakeNetwork struct {
	behave behavior

	mu          sync.Mutex
	attempts    map[int]int
	inflight    map[int]int
	maxInflight map[int]int
	total       int
	maxTotal    int
}

func newFakeNetwork(behave behavior) *fakeNetwork {
	return &fakeNetwork{
		behave:      behave,
		attempts:    make(map[int]int),
		inflight:    make(map[int]int),
		maxInflight: make(map[int]int),
	}
}

func (n *fakeNetwork) Send(ctx context.Context, peer int, req string, _ time.Duration) (string, error) {
	n.mu.Lock()
	n.attempts[peer]++
	attempt := n.attempts[peer]
	n.inflight[peer]++
	n.maxInflight[peer] = max(n.maxInflight[peer], n.inflight[peer])
	n.total++
	n.maxTotal = max(n.maxTotal, n.total)
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inflight[peer]--
		n.total--
		n.mu.Unlock()
	}()
	return n.behave(ctx, peer, attempt, req)
}

func (n *fakeNetwork) Attempts(peer int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts[peer]
}

func (n *fakeNetwork) MaxInflight(peer int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxInflight[peer]
}

func (n *fakeNetwork) MaxTotal() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxTotal
}

// echo acknowledges every message.
func echo(_ context.Context, peer, _ int, req string) (string, error) {
	return ack(peer, req), nil
}

func ack(peer int, req string) string {
	return fmt.Sprintf("%s@%d", req, peer)
}

// failing makes peers in bad fail their first n attempts; n < 0 fails forever.
func failing(n int, bad ...int) behavior {
	return func(ctx context.Context, peer, attempt int, req string) (string, error) {
		if slices.Contains(bad, peer) && (n < 0 || attempt <= n) {
			return "", errUnreachable
		}
		return echo(ctx, peer, attempt, req)
	}
}

// blocking makes peers in slow hang on their first n attempts until the
// attempt's context is done; n < 0 hangs forever.
func blocking(n int, slow ...int) behavior {
	return func(ctx context.Context, peer, attempt int, req string) (string, error) {
		if slices.Contains(slow, peer) && (n < 0 || attempt <= n) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return echo(ctx, peer, attempt, req)
	}
}

func peers(n int) []int {
	p := make([]int, n)
	for i := range n {
		p[i] = i
	}
	return p
}

// thresholdStatus completes exactly once, when threshold distinct peers have
// acknowledged, and returns the acknowledging peers in ascending order.
type thresholdStatus struct {
	threshold int
	reject    func(peer int, ack string) error

	mu    sync.Mutex
	acks  map[int]string
	adds  int
	final bool
}

func newThresholdStatus(threshold int) *thresholdStatus {
	return &thresholdStatus{threshold: threshold, acks: make(map[int]string)}
}

func (s *thresholdStatus) Add(peer int, ack string) ([]int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	if s.reject != nil {
		if err := s.reject(peer, ack); err != nil {
			return nil, false, err
		}
	}
	s.acks[peer] = ack
	if s.final || len(s.acks) < s.threshold {
		return nil, false, nil
	}
	s.final = true
	signers := make([]int, 0, len(s.acks))
	for p := range s.acks {
		signers = append(signers, p)
	}
	slices.Sort(signers)
	return signers, true, nil
}

func (s *thresholdStatus) Adds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds
}

// recordingBackoff records the delays handed out by every clone.
type recordingBackoff struct {
	b      Backoff
	mu     *sync.Mutex
	delays *[][]time.Duration
	idx    int
}

func newRecordingBackoff(b Backoff) *recordingBackoff {
	return &recordingBackoff{b: b, mu: new(sync.Mutex), delays: new([][]time.Duration), idx: -1}
}

func (r *recordingBackoff) Next() (time.Duration, bool) {
	d, ok := r.b.Next()
	if ok && r.idx >= 0 {
		r.mu.Lock()
		(*r.delays)[r.idx] = append((*r.delays)[r.idx], d)
		r.mu.Unlock()
	}
	return d, ok
}

func (r *recordingBackoff) Clone() Backoff {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.delays = append(*r.delays, nil)
	return &recordingBackoff{b: r.b.Clone(), mu: r.mu, delays: r.delays, idx: len(*r.delays) - 1}
}

func (r *recordingBackoff) Sequences() [][]time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]time.Duration, len(*r.delays))
	for i, d := range *r.delays {
		out[i] = slices.Clone(d)
	}
	return out
}

func testContext(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// eventually polls cond until it holds or the test timeout expires.
func eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(defaultTestTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not satisfied before timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(b *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
