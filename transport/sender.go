package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/relab/rbc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

var _ rbc.NetworkSender[uint32, proto.Message, proto.Message] = (*Sender)(nil)

// Sender delivers broadcast messages to the nodes of a Manager.
// It implements rbc.NetworkSender for node IDs and protobuf messages.
type Sender struct {
	mgr *Manager
}

// NewSender returns a Sender for the nodes of mgr.
func NewSender(mgr *Manager) *Sender {
	return &Sender{mgr: mgr}
}

// Send delivers req to the node with the given ID and returns its reply.
// The call is aborted after timeout.
func (s *Sender) Send(ctx context.Context, id uint32, req proto.Message, timeout time.Duration) (proto.Message, error) {
	node, ok := s.mgr.Node(id)
	if !ok {
		return nil, nodeError{nodeID: id, cause: ErrUnknownNode}
	}
	in, err := anypb.New(req)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = s.outgoingContext(ctx)
	out, err := node.deliver(ctx, in)
	if err != nil {
		return nil, err
	}
	resp, err := out.UnmarshalNew()
	if err != nil {
		return nil, nodeError{nodeID: id, cause: fmt.Errorf("unmarshal response: %w", err)}
	}
	return resp, nil
}

func (s *Sender) outgoingContext(ctx context.Context) context.Context {
	md := s.mgr.opts.metadata.Copy()
	if s.mgr.opts.selfID != 0 {
		md = metadata.Join(md, metadata.Pairs(FromKey, strconv.FormatUint(uint64(s.mgr.opts.selfID), 10)))
	}
	if len(md) == 0 {
		return ctx
	}
	return metadata.NewOutgoingContext(ctx, md)
}
