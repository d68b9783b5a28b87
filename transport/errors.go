package transport

import (
	"errors"
	"fmt"
)

// ErrUnknownNode is returned when sending to a node the Manager does not know.
var ErrUnknownNode = errors.New("unknown node")

// nodeError reports on a failed RPC call.
type nodeError struct {
	cause  error
	nodeID uint32
}

func (e nodeError) Error() string {
	return fmt.Sprintf("node %d: %v", e.nodeID, e.cause)
}

func (e nodeError) Unwrap() error {
	return e.cause
}
