// Package quorum provides aggregations of broadcast acknowledgments:
// threshold acknowledgment sets, voting-power weighted sets, and BLS
// signature certificates.
package quorum

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Verifier holds the voting power of each peer of a broadcast.
// A quorum is any set of peers holding more than two thirds of the
// total voting power.
type Verifier[P cmp.Ordered] struct {
	power  map[P]uint64
	total  uint64
	quorum uint64
}

// NewVerifier returns a verifier for the given voting powers.
// Peers with zero voting power are dropped.
func NewVerifier[P cmp.Ordered](power map[P]uint64) (*Verifier[P], error) {
	v := &Verifier[P]{power: make(map[P]uint64, len(power))}
	for p, w := range power {
		if w == 0 {
			continue
		}
		v.power[p] = w
		v.total += w
	}
	if v.total == 0 {
		return nil, fmt.Errorf("%w: no voting power", ErrInvalidThreshold)
	}
	v.quorum = v.total*2/3 + 1
	return v, nil
}

// NewEqualVerifier returns a verifier giving each peer one vote.
func NewEqualVerifier[P cmp.Ordered](peers []P) (*Verifier[P], error) {
	power := make(map[P]uint64, len(peers))
	for _, p := range peers {
		power[p] = 1
	}
	return NewVerifier(power)
}

// Peers returns the peers with voting power in ascending order.
func (v *Verifier[P]) Peers() []P {
	return slices.Sorted(maps.Keys(v.power))
}

// Power returns the voting power of peer.
func (v *Verifier[P]) Power(peer P) (uint64, bool) {
	w, ok := v.power[peer]
	return w, ok
}

// TotalPower returns the voting power of all peers.
func (v *Verifier[P]) TotalPower() uint64 {
	return v.total
}

// QuorumPower returns the voting power a quorum must hold.
func (v *Verifier[P]) QuorumPower() uint64 {
	return v.quorum
}

// SumPower returns the voting power of the given peers. Repeated peers are
// counted once.
func (v *Verifier[P]) SumPower(peers []P) (uint64, error) {
	var sum uint64
	seen := make(map[P]struct{}, len(peers))
	for _, p := range peers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		w, ok := v.power[p]
		if !ok {
			return 0, fmt.Errorf("%w: %v", ErrUnknownPeer, p)
		}
		sum += w
	}
	return sum, nil
}

// CheckVotingPower returns an error unless peers form a quorum.
func (v *Verifier[P]) CheckVotingPower(peers []P) error {
	sum, err := v.SumPower(peers)
	if err != nil {
		return err
	}
	if sum < v.quorum {
		return fmt.Errorf("%w: got %d, want %d", ErrInsufficientPower, sum, v.quorum)
	}
	return nil
}
