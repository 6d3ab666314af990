package netconn

import (
	"net"
	"sync"

	"vision-node/internal/vlog"
)

// Conn pairs a live socket with the identity and direction established by
// its handshake.
type Conn struct {
	net.Conn
	NodeID    string
	Direction Direction
}

// ConnManager tracks at most one live connection per remote node id and
// resolves the case where both sides dial each other simultaneously.
type ConnManager struct {
	mu      sync.Mutex
	localID string
	conns   map[string]*Conn
	log     *vlog.Logger
}

// NewConnManager constructs a ConnManager for a node identified by localID.
func NewConnManager(localID string) *ConnManager {
	return &ConnManager{
		localID: localID,
		conns:   make(map[string]*Conn),
		log:     vlog.NewContext("component", "netconn"),
	}
}

// Admit registers newConn as the live connection for its peer, applying the
// deterministic duplicate-connection tie-break from spec.md §4.6: compare
// local node id to remote node id lexicographically — the smaller side
// keeps its Outbound connection, the larger keeps its Inbound; same-
// direction collisions are first-wins. Returns false (and leaves newConn
// unregistered; the caller must close it) if newConn lost the tie-break.
func (m *ConnManager) Admit(newConn *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.conns[newConn.NodeID]
	if !ok {
		m.conns[newConn.NodeID] = newConn
		return true
	}

	if existing.Direction == newConn.Direction {
		return false // first-wins on a same-direction collision
	}

	localWins := m.localID < newConn.NodeID
	newConnIsOutbound := newConn.Direction == DirectionOutbound
	// The smaller node id keeps its Outbound side; the larger keeps Inbound.
	keepNew := (localWins && newConnIsOutbound) || (!localWins && !newConnIsOutbound)
	if !keepNew {
		return false
	}

	_ = existing.Close()
	m.conns[newConn.NodeID] = newConn
	return true
}

// Remove drops the tracked connection for nodeID if conn is still the one
// registered (a stale caller closing an already-superseded connection must
// not evict its replacement).
func (m *ConnManager) Remove(nodeID string, conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.conns[nodeID]; ok && existing == conn {
		delete(m.conns, nodeID)
	}
}

// Get returns the live connection for nodeID, or nil.
func (m *ConnManager) Get(nodeID string) *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[nodeID]
}

// Count returns the number of live connections.
func (m *ConnManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Connected reports whether nodeID currently has a live connection.
func (m *ConnManager) Connected(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[nodeID]
	return ok
}
