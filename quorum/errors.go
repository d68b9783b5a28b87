package quorum

import "errors"

var (
	// ErrInvalidThreshold is returned when a quorum could never or would
	// always be reached.
	ErrInvalidThreshold = errors.New("quorum: invalid threshold")
	// ErrUnknownPeer is returned for acknowledgments from peers without voting power.
	ErrUnknownPeer = errors.New("quorum: unknown peer")
	// ErrConflictingAck is returned when a peer acknowledges twice with different values.
	ErrConflictingAck = errors.New("quorum: conflicting acknowledgment")
	// ErrInvalidSignature is returned for signatures that do not verify.
	ErrInvalidSignature = errors.New("quorum: invalid signature")
	// ErrInsufficientPower is returned when a set of peers holds less than
	// the quorum voting power.
	ErrInsufficientPower = errors.New("quorum: insufficient voting power")
)
