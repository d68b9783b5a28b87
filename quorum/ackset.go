package quorum

import (
	"cmp"
	"fmt"
	"maps"
	"sync"
)

// AckSet collects acknowledgments from distinct peers until a threshold
// number of peers has acknowledged. It is safe for concurrent use.
//
// A repeated acknowledgment from a peer is ignored, unless an equality
// function was given and the two acknowledgments differ, in which case it is
// rejected with ErrConflictingAck.
type AckSet[P comparable, A any] struct {
	mu        sync.Mutex
	threshold int
	equal     func(a, b A) bool
	acks      map[P]A
}

// NewAckSet returns an AckSet completing after threshold distinct peers
// acknowledged. The equal function may be nil.
func NewAckSet[P comparable, A any](threshold int, equal func(a, b A) bool) (*AckSet[P, A], error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	return &AckSet[P, A]{
		threshold: threshold,
		equal:     equal,
		acks:      make(map[P]A, threshold),
	}, nil
}

// Add records ack from peer and returns a copy of all acknowledgments once
// the threshold is reached.
func (s *AckSet[P, A]) Add(peer P, ack A) (map[P]A, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.acks[peer]; ok {
		if s.equal != nil && !s.equal(prev, ack) {
			return nil, false, fmt.Errorf("%w from %v", ErrConflictingAck, peer)
		}
	} else {
		s.acks[peer] = ack
	}
	if len(s.acks) >= s.threshold {
		return maps.Clone(s.acks), true, nil
	}
	return nil, false, nil
}

// Len returns the number of peers that have acknowledged.
func (s *AckSet[P, A]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acks)
}

// Mode selects when a WeightedAckSet is complete.
type Mode int

const (
	// Quorum completes once the acknowledging peers hold quorum voting power.
	Quorum Mode = iota
	// All completes once every peer with voting power has acknowledged.
	All
)

// WeightedAckSet collects acknowledgments from peers with voting power.
// It is safe for concurrent use.
type WeightedAckSet[P cmp.Ordered, A any] struct {
	mu       sync.Mutex
	verifier *Verifier[P]
	mode     Mode
	acks     map[P]A
	power    uint64
}

// NewWeightedAckSet returns a WeightedAckSet for the peers of verifier.
func NewWeightedAckSet[P cmp.Ordered, A any](verifier *Verifier[P], mode Mode) *WeightedAckSet[P, A] {
	return &WeightedAckSet[P, A]{
		verifier: verifier,
		mode:     mode,
		acks:     make(map[P]A),
	}
}

// Add records ack from peer. Acknowledgments from peers without voting
// power are rejected with ErrUnknownPeer; repeated ones are ignored.
func (s *WeightedAckSet[P, A]) Add(peer P, ack A) (map[P]A, bool, error) {
	w, ok := s.verifier.Power(peer)
	if !ok {
		return nil, false, fmt.Errorf("%w: %v", ErrUnknownPeer, peer)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.acks[peer]; !ok {
		s.acks[peer] = ack
		s.power += w
	}
	if s.complete() {
		return maps.Clone(s.acks), true, nil
	}
	return nil, false, nil
}

func (s *WeightedAckSet[P, A]) complete() bool {
	if s.mode == All {
		return s.power >= s.verifier.TotalPower()
	}
	return s.power >= s.verifier.QuorumPower()
}

// Power returns the voting power of the peers that have acknowledged.
func (s *WeightedAckSet[P, A]) Power() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}
