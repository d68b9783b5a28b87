package transport

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/metadata"
)

type managerOptions struct {
	grpcDialOpts []grpc.DialOption
	logger       *slog.Logger
	backoff      backoff.Config
	selfID       uint32
	metadata     metadata.MD
}

func newManagerOptions() managerOptions {
	return managerOptions{
		backoff: backoff.DefaultConfig,
	}
}

// ManagerOption provides a way to set different options on a new Manager.
type ManagerOption func(*managerOptions)

// WithDialOptions returns a ManagerOption which sets any gRPC dial options
// the Manager should use when connecting to each node in its pool.
func WithDialOptions(opts ...grpc.DialOption) ManagerOption {
	return func(o *managerOptions) {
		o.grpcDialOpts = append(o.grpcDialOpts, opts...)
	}
}

// WithLogger returns a ManagerOption which sets an optional structured
// logger for the Manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithBackoff allows for changing the connection backoff delays used by gRPC.
// These delays apply to reconnecting to a node; retrying a broadcast to a
// node is governed by the broadcast engine's own backoff.
func WithBackoff(backoff backoff.Config) ManagerOption {
	return func(o *managerOptions) {
		o.backoff = backoff
	}
}

// WithSelfID returns a ManagerOption that makes every request carry the
// given node ID, which servers report to their handlers as the sender.
func WithSelfID(id uint32) ManagerOption {
	return func(o *managerOptions) {
		o.selfID = id
	}
}

// WithMetadata returns a ManagerOption that sets metadata sent with every
// request.
func WithMetadata(md metadata.MD) ManagerOption {
	return func(o *managerOptions) {
		o.metadata = md
	}
}

type serverOptions struct {
	grpcOpts []grpc.ServerOption
	logger   *slog.Logger
}

// ServerOption is used to change settings for the Server.
type ServerOption func(*serverOptions)

// WithGRPCServerOptions allows to set gRPC options for the server.
func WithGRPCServerOptions(opts ...grpc.ServerOption) ServerOption {
	return func(o *serverOptions) {
		o.grpcOpts = append(o.grpcOpts, opts...)
	}
}

// WithServerLogger sets a structured logger for failed requests.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}
