package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"

	"github.com/relab/rbc/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

const (
	// ServiceName is the gRPC service delivering broadcast messages.
	ServiceName = "rbc.ReliableBroadcast"
	// DeliverMethod is the full name of the delivery method.
	DeliverMethod = "/" + ServiceName + "/Deliver"
	// FromKey is the metadata key carrying the sender's node ID.
	FromKey = "rbc-from"
)

// Handler handles a broadcast message from the node with ID from and returns
// the acknowledgment to send back. The from ID is 0 if the sender did not
// identify itself. Returning an error fails the sender's attempt.
type Handler func(ctx context.Context, from uint32, req proto.Message) (proto.Message, error)

// deliverer is the handler type checked by grpc.Server.RegisterService.
type deliverer interface {
	deliver(context.Context, *anypb.Any) (*anypb.Any, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*deliverer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rbc/transport",
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(anypb.Any)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(deliverer).deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(deliverer).deliver(ctx, req.(*anypb.Any))
	}
	return interceptor(ctx, in, info, handler)
}

// Server serves broadcast messages with a Handler.
type Server struct {
	srv     *grpc.Server
	handler Handler
	opts    serverOptions
}

// NewServer returns a new Server delivering messages to handler.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	var serverOpts serverOptions
	for _, opt := range opts {
		opt(&serverOpts)
	}
	s := &Server{
		srv:     grpc.NewServer(serverOpts.grpcOpts...),
		handler: handler,
		opts:    serverOpts,
	}
	s.srv.RegisterService(&serviceDesc, s)
	return s
}

// Serve starts serving on the listener.
func (s *Server) Serve(listener net.Listener) error {
	return s.srv.Serve(listener)
}

// GracefulStop waits for all requests to be handled before stopping the server.
func (s *Server) GracefulStop() {
	s.srv.GracefulStop()
}

// Stop stops the server immediately, cancelling requests in progress.
func (s *Server) Stop() {
	s.srv.Stop()
}

func (s *Server) deliver(ctx context.Context, in *anypb.Any) (*anypb.Any, error) {
	req, err := in.UnmarshalNew()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unmarshal request: %v", err)
	}
	from := senderID(ctx)
	resp, err := s.handler(ctx, from, req)
	if err != nil {
		if s.opts.logger != nil {
			s.opts.logger.LogAttrs(ctx, slog.LevelDebug, "transport: handler failed", logging.Method(DeliverMethod), logging.From(from), logging.Err(err))
		}
		return nil, toStatus(err)
	}
	if resp == nil {
		return nil, status.Error(codes.Internal, "handler returned no response")
	}
	out, err := anypb.New(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	return out, nil
}

// toStatus converts handler errors to gRPC status errors. Errors that are
// already status errors are kept; context errors keep their meaning.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

func senderID(ctx context.Context) uint32 {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0
	}
	vals := md.Get(FromKey)
	if len(vals) == 0 {
		return 0
	}
	id, err := strconv.ParseUint(vals[0], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(id)
}
