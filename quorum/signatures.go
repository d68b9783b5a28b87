package quorum

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/pairing/bn256"
	"go.dedis.ch/kyber/v4/sign/bls"
	"go.dedis.ch/kyber/v4/util/random"
	"golang.org/x/crypto/sha3"
)

var suite = bn256.NewSuite()

// KeyPair is a BLS signing key and its public key.
type KeyPair struct {
	Private kyber.Scalar
	Public  kyber.Point
}

// GenerateKey returns a new random BLS key pair.
func GenerateKey() KeyPair {
	priv, pub := bls.NewKeyPair(suite, random.New())
	return KeyPair{Private: priv, Public: pub}
}

// Digest returns the SHA3-256 digest of msg. Signatures are made over the
// digest rather than the message itself.
func Digest(msg []byte) []byte {
	d := sha3.Sum256(msg)
	return d[:]
}

// Sign signs the digest of msg.
func (k KeyPair) Sign(msg []byte) ([]byte, error) {
	return bls.Sign(suite, k.Private, Digest(msg))
}

// Certificate is an aggregated signature by a quorum of signers over the
// digest of a message.
type Certificate[P cmp.Ordered] struct {
	Digest    []byte `json:"digest"`
	Signers   []P    `json:"signers"`
	Signature []byte `json:"signature"`
}

// Verify checks that the signers form a quorum of verifier and that the
// aggregated signature verifies under their aggregated public keys.
func (c *Certificate[P]) Verify(verifier *Verifier[P], keys map[P]kyber.Point) error {
	if err := verifier.CheckVotingPower(c.Signers); err != nil {
		return err
	}
	pubs := make([]kyber.Point, 0, len(c.Signers))
	for _, p := range c.Signers {
		pub, ok := keys[p]
		if !ok {
			return fmt.Errorf("%w: no public key for %v", ErrUnknownPeer, p)
		}
		pubs = append(pubs, pub)
	}
	if err := bls.Verify(suite, bls.AggregatePublicKeys(suite, pubs...), c.Digest, c.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Certifies reports whether c is a certificate over msg.
func (c *Certificate[P]) Certifies(msg []byte) bool {
	return bytes.Equal(c.Digest, Digest(msg))
}

// MarshalBinary encodes the certificate.
func (c *Certificate[P]) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalBinary decodes a certificate encoded by MarshalBinary.
func (c *Certificate[P]) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, c)
}

// SignatureAggregator collects BLS signatures over a message from the peers
// of a verifier and aggregates them into a Certificate once the signers hold
// quorum voting power. It is safe for concurrent use.
type SignatureAggregator[P cmp.Ordered] struct {
	verifier *Verifier[P]
	keys     map[P]kyber.Point
	digest   []byte

	mu    sync.Mutex
	sigs  map[P][]byte
	power uint64
	cert  *Certificate[P]
}

// NewSignatureAggregator returns an aggregator for signatures over msg.
// keys holds the public key of every peer of verifier.
func NewSignatureAggregator[P cmp.Ordered](verifier *Verifier[P], keys map[P]kyber.Point, msg []byte) *SignatureAggregator[P] {
	return &SignatureAggregator[P]{
		verifier: verifier,
		keys:     keys,
		digest:   Digest(msg),
		sigs:     make(map[P][]byte),
	}
}

// Add verifies sig as peer's signature and adds it. Once the signers hold
// quorum voting power it returns the certificate; later calls return the
// same certificate.
func (a *SignatureAggregator[P]) Add(peer P, sig []byte) (*Certificate[P], bool, error) {
	w, ok := a.verifier.Power(peer)
	if !ok {
		return nil, false, fmt.Errorf("%w: %v", ErrUnknownPeer, peer)
	}
	pub, ok := a.keys[peer]
	if !ok {
		return nil, false, fmt.Errorf("%w: no public key for %v", ErrUnknownPeer, peer)
	}
	// pairing checks are expensive; run them before taking the lock
	if err := bls.Verify(suite, pub, a.digest, sig); err != nil {
		return nil, false, fmt.Errorf("%w from %v: %v", ErrInvalidSignature, peer, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cert != nil {
		return a.cert, true, nil
	}
	if prev, ok := a.sigs[peer]; ok {
		if !bytes.Equal(prev, sig) {
			return nil, false, fmt.Errorf("%w from %v", ErrConflictingAck, peer)
		}
		return nil, false, nil
	}
	a.sigs[peer] = sig
	a.power += w
	if a.power < a.verifier.QuorumPower() {
		return nil, false, nil
	}
	signers := slices.Sorted(maps.Keys(a.sigs))
	sigs := make([][]byte, 0, len(signers))
	for _, p := range signers {
		sigs = append(sigs, a.sigs[p])
	}
	agg, err := bls.AggregateSignatures(suite, sigs...)
	if err != nil {
		return nil, false, fmt.Errorf("quorum: aggregate signatures: %w", err)
	}
	a.cert = &Certificate[P]{
		Digest:    slices.Clone(a.digest),
		Signers:   signers,
		Signature: agg,
	}
	return a.cert, true, nil
}

// Signers returns the peers whose signatures have been added.
func (a *SignatureAggregator[P]) Signers() []P {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Sorted(maps.Keys(a.sigs))
}
