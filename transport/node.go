package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"
)

const nilAngleString = "<nil>"

// Node encapsulates the connection to a node to which broadcast messages
// can be delivered.
type Node struct {
	// Only assigned at creation.
	id   uint32
	addr string

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// NewNode returns a new node for the provided address and id.
func NewNode(id uint32, addr string) (*Node, error) {
	if id == 0 {
		return nil, fmt.Errorf("node 0 is reserved")
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return &Node{id: id, addr: tcpAddr.String()}, nil
}

// connect creates the client connection to this node. The connection is
// established lazily by gRPC on the first call.
func (n *Node) connect(opts managerOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	conn, err := grpc.NewClient(n.addr, opts.grpcDialOpts...)
	if err != nil {
		return nodeError{nodeID: n.id, cause: err}
	}
	n.conn = conn
	return nil
}

// close this node.
func (n *Node) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	if err != nil {
		return nodeError{nodeID: n.id, cause: err}
	}
	return nil
}

func (n *Node) deliver(ctx context.Context, in *anypb.Any) (*anypb.Any, error) {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return nil, nodeError{nodeID: n.id, cause: fmt.Errorf("not connected")}
	}
	out := new(anypb.Any)
	if err := conn.Invoke(ctx, DeliverMethod, in, out); err != nil {
		return nil, nodeError{nodeID: n.id, cause: err}
	}
	return out, nil
}

// ID returns the ID of n.
func (n *Node) ID() uint32 {
	if n != nil {
		return n.id
	}
	return 0
}

// Address returns network address of n.
func (n *Node) Address() string {
	if n != nil {
		return n.addr
	}
	return nilAngleString
}

func (n *Node) String() string {
	if n != nil {
		return fmt.Sprintf("node %d (%s)", n.id, n.addr)
	}
	return nilAngleString
}
