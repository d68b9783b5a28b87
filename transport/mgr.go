package transport

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/relab/rbc/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
)

// Manager maintains a connection pool of nodes to which broadcast messages
// can be delivered.
type Manager struct {
	mu        sync.Mutex
	nodes     []*Node
	lookup    map[uint32]*Node
	closeOnce sync.Once
	logger    *slog.Logger
	opts      managerOptions
}

// NewManager returns a new Manager for managing connections to nodes added
// to the manager. This function accepts manager options used to configure
// various aspects of the manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		lookup: make(map[uint32]*Node),
		opts:   newManagerOptions(),
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	m.logger = m.opts.logger
	if m.opts.backoff != backoff.DefaultConfig {
		m.opts.grpcDialOpts = append(m.opts.grpcDialOpts, grpc.WithConnectParams(
			grpc.ConnectParams{Backoff: m.opts.backoff},
		))
	}
	return m
}

// AddNode adds a node with the given ID and address to the manager's node
// pool and creates its client connection.
func (m *Manager) AddNode(id uint32, addr string) (*Node, error) {
	node, err := NewNode(id, addr)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, found := m.lookup[id]; found {
		// Node IDs must be unique
		return nil, fmt.Errorf("node ID %d already exists (%s)", id, existing.Address())
	}
	for _, n := range m.nodes {
		if n.addr == node.addr {
			return nil, fmt.Errorf("address %q already in use by node %d", node.addr, n.id)
		}
	}
	if err := node.connect(m.opts); err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Debug("transport: added node", logging.NodeID(id), logging.NodeAddr(node.addr))
	}
	m.lookup[id] = node
	m.nodes = append(m.nodes, node)
	slices.SortFunc(m.nodes, func(a, b *Node) int { return cmp.Compare(a.id, b.id) })
	return node, nil
}

// AddNodes adds the given nodes in ascending ID order.
func (m *Manager) AddNodes(nodes map[uint32]string) error {
	for _, id := range slices.Sorted(maps.Keys(nodes)) {
		if _, err := m.AddNode(id, nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all node connections.
func (m *Manager) Close() (errs error) {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, node := range m.nodes {
			if err := node.close(); err != nil {
				if m.logger != nil {
					m.logger.Error("transport: closing node", logging.NodeID(node.id), logging.Err(err))
				}
				errs = errors.Join(errs, err)
			}
		}
	})
	return errs
}

// NodeIDs returns the identifier of each node in ascending order.
func (m *Manager) NodeIDs() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint32, 0, len(m.nodes))
	for _, node := range m.nodes {
		ids = append(ids, node.ID())
	}
	return ids
}

// Node returns the node with the given identifier if present.
func (m *Manager) Node(id uint32) (node *Node, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, found = m.lookup[id]
	return node, found
}

// Nodes returns a slice of each node, in ascending ID order.
func (m *Manager) Nodes() []*Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.nodes)
}

// Size returns the number of nodes in the Manager.
func (m *Manager) Size() (nodes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}
