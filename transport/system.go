package transport

import (
	"errors"
	"io"
	"net"
)

// System encapsulates a broadcast node: the server delivering messages to
// it, its listener, and any registered closers (e.g. managers).
type System struct {
	closers []io.Closer
	srv     *Server
	lis     net.Listener
}

// NewSystem creates a new System serving handler on the provided listener.
func NewSystem(lis net.Listener, handler Handler, opts ...ServerOption) *System {
	return &System{
		srv: NewServer(handler, opts...),
		lis: lis,
	}
}

// RegisterCloser adds a closer to be closed when the system is stopped.
//
// Example usage:
//
//	sys := NewSystem(lis, handler)
//	mgr := NewManager(...)
//	sys.RegisterCloser(mgr)
func (s *System) RegisterCloser(closer io.Closer) {
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// Addr returns the address the system listens on.
func (s *System) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve starts the server.
func (s *System) Serve() error {
	return s.srv.Serve(s.lis)
}

// Stop stops the server and closes all registered closers.
// It immediately closes all open connections and listeners, cancelling
// active requests; the corresponding senders get connection errors.
func (s *System) Stop() (errs error) {
	s.srv.Stop()
	for _, closer := range s.closers {
		errs = errors.Join(errs, closer.Close())
	}
	return errs
}
