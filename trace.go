package rbc

import (
	"fmt"
	"time"

	"golang.org/x/net/trace"
)

type traceInfo struct {
	trace.Trace
	firstLine firstLine
}

func newTraceInfo(id uint64, peers int, timeout time.Duration) *traceInfo {
	ti := &traceInfo{
		Trace:     trace.New("rbc.Broadcast", "Broadcast"),
		firstLine: firstLine{id: id, peers: peers, timeout: timeout},
	}
	ti.LazyLog(&ti.firstLine, false)
	return ti
}

type firstLine struct {
	id      uint64
	peers   int
	timeout time.Duration
}

func (f firstLine) String() string {
	return fmt.Sprintf("RB: broadcast %d to %d peers, rpc timeout: %v", f.id, f.peers, f.timeout)
}

type payload struct {
	peer    any
	attempt int
	delay   time.Duration
}

func (p payload) String() string {
	if p.delay > 0 {
		return fmt.Sprintf("send to %v: attempt %d after %v", p.peer, p.attempt, p.delay)
	}
	return fmt.Sprintf("send to %v: attempt %d", p.peer, p.attempt)
}

type result struct {
	peer any
	agg  any
	err  error
}

func (r result) String() string {
	if r.err == nil {
		return fmt.Sprintf("aggregated after reply from %v: %v", r.peer, r.agg)
	}
	return fmt.Sprintf("recv from %v: error: %v", r.peer, r.err)
}
