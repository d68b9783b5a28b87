package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// portCounter generates unique fake addresses for bufconn listeners.
var portCounter atomic.Uint32

// TestCluster is a set of in-memory servers for testing.
type TestCluster struct {
	// Addrs holds the address of each server, in creation order.
	Addrs []string

	mu        sync.Mutex
	listeners map[string]*bufconn.Listener
	active    map[int]*serverState
}

type serverState struct {
	srv     *Server
	lis     net.Listener
	stopped chan struct{}
}

func (s *serverState) stop() {
	s.srv.Stop()
	<-s.stopped
}

// TestServers starts numServers in-memory servers, using handlerFn(i) as the
// handler of server i. Servers are stopped when the test finishes, and
// goroutine leak detection via goleak runs after all other cleanup.
func TestServers(t testing.TB, numServers int, handlerFn func(i int) Handler) *TestCluster {
	t.Helper()
	// Register goleak check FIRST so it runs LAST (LIFO order)
	if _, ok := t.(*testing.B); !ok {
		t.Cleanup(func() { goleak.VerifyNone(t) })
	}
	c := &TestCluster{
		Addrs:     make([]string, numServers),
		listeners: make(map[string]*bufconn.Listener, numServers),
		active:    make(map[int]*serverState, numServers),
	}
	for i := range numServers {
		lis := bufconn.Listen(bufSize)
		addr := fmt.Sprintf("127.0.0.1:%d", 10000+portCounter.Add(1))
		c.Addrs[i] = addr
		c.listeners[addr] = lis
		state := &serverState{srv: NewServer(handlerFn(i)), lis: lis, stopped: make(chan struct{})}
		c.active[i] = state
		go func() {
			_ = state.srv.Serve(state.lis)
			close(state.stopped)
		}()
	}
	t.Cleanup(func() { c.Stop() })
	return c
}

// Stop stops the servers with the given indices, or all servers if no
// indices are given. Stopping a server twice has no effect.
func (c *TestCluster) Stop(indices ...int) {
	c.mu.Lock()
	if len(indices) == 0 {
		for i := range c.Addrs {
			indices = append(indices, i)
		}
	}
	toStop := make([]*serverState, 0, len(indices))
	for _, i := range indices {
		if state, ok := c.active[i]; ok {
			delete(c.active, i)
			toStop = append(toStop, state)
		}
	}
	c.mu.Unlock()
	for _, state := range toStop {
		state.stop()
	}
}

// DialOptions returns the manager option needed to dial the in-memory servers.
func (c *TestCluster) DialOptions() ManagerOption {
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		c.mu.Lock()
		lis, ok := c.listeners[addr]
		c.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("no bufconn listener for address: %s", addr)
		}
		return lis.DialContext(ctx)
	}
	return WithDialOptions(
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
}

// Manager returns a manager connected to all servers of the cluster, where
// server i has node ID i+1. The manager is closed when the test finishes,
// before the servers are stopped.
func (c *TestCluster) Manager(t testing.TB, opts ...ManagerOption) *Manager {
	t.Helper()
	mgr := NewManager(append([]ManagerOption{c.DialOptions()}, opts...)...)
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("mgr.Close() = %q, expected no error", err.Error())
		}
	})
	for i, addr := range c.Addrs {
		if _, err := mgr.AddNode(uint32(i+1), addr); err != nil {
			t.Fatal(err)
		}
	}
	return mgr
}
