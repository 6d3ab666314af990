package netconn

import (
	"net"
	"sort"
	"sync/atomic"
	"time"

	"vision-node/internal/vlog"
	"vision-node/peer"
)

// DialFunc opens a raw TCP connection to a peer-book address. Dependency-
// injected so the maintainer's rotation/backoff logic can be tested without
// real sockets.
type DialFunc func(address string) (net.Conn, error)

// MaintainerConfig bounds the outbound maintainer's tick pace and targets.
type MaintainerConfig struct {
	MinOutbound   int
	MaxDialsPerTick int
	TickInterval  time.Duration
}

// DefaultMaintainerConfig matches spec.md §4.6's "at most 3 new dials" per
// tick.
func DefaultMaintainerConfig() MaintainerConfig {
	return MaintainerConfig{
		MinOutbound:     8,
		MaxDialsPerTick: 3,
		TickInterval:    10 * time.Second,
	}
}

// FailureReason classifies why a dial or handshake attempt failed, driving
// the peer manager's cooldown and logging.
type FailureReason int

const (
	FailureOther FailureReason = iota
	FailureRefused
	FailureTimeout
	FailureNoRoute
	FailureHandshakeTimeout
	FailureIncompatibleChain
	FailureVersionMismatch
	FailureChainIDMismatch
)

func (r FailureReason) String() string {
	switch r {
	case FailureRefused:
		return "refused"
	case FailureTimeout:
		return "timeout"
	case FailureNoRoute:
		return "no_route"
	case FailureHandshakeTimeout:
		return "handshake_timeout"
	case FailureIncompatibleChain:
		return "incompatible_chain"
	case FailureVersionMismatch:
		return "version"
	case FailureChainIDMismatch:
		return "chain_id"
	default:
		return "other"
	}
}

// DialTarget is one candidate the maintainer may attempt, drawn either from
// the curated seed list or from the ranked peer book.
type DialTarget struct {
	NodeID  string
	Address string
}

// Maintainer continuously enforces a minimum outbound connection count by
// interleaving dials to rotated seeds and ranked peer-book entries.
type Maintainer struct {
	cfg    MaintainerConfig
	conns  *ConnManager
	peers  *peer.Manager
	dial   DialFunc
	seeds  []DialTarget
	seedAt int

	running int32
	exitCh  chan struct{}
	log     *vlog.Logger
}

// NewMaintainer wires a Maintainer against the connection and peer managers.
func NewMaintainer(cfg MaintainerConfig, conns *ConnManager, peers *peer.Manager, seeds []DialTarget, dial DialFunc) *Maintainer {
	return &Maintainer{
		cfg:    cfg,
		conns:  conns,
		peers:  peers,
		dial:   dial,
		seeds:  seeds,
		exitCh: make(chan struct{}),
		log:    vlog.NewContext("component", "netconn"),
	}
}

// Start begins the maintainer's tick loop. Safe to call once.
func (m *Maintainer) Start() {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return
	}
	go m.loop()
}

// Stop halts the tick loop.
func (m *Maintainer) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	close(m.exitCh)
}

func (m *Maintainer) loop() {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.exitCh:
			return
		}
	}
}

// tick attempts up to MaxDialsPerTick new dials, skipping peers in cooldown
// or quarantine, until MinOutbound is satisfied or the tick's dial budget
// is spent.
func (m *Maintainer) tick() {
	deficit := m.cfg.MinOutbound - m.conns.Count()
	if deficit <= 0 {
		return
	}

	attempts := m.cfg.MaxDialsPerTick
	if deficit < attempts {
		attempts = deficit
	}

	targets := m.candidates()
	now := time.Now()
	dialed := 0
	for _, t := range targets {
		if dialed >= attempts {
			break
		}
		if m.conns.Connected(t.NodeID) {
			continue
		}
		if m.peers.InCooldown(t.NodeID, now) {
			continue
		}
		dialed++
		m.dialOne(t)
	}
}

func (m *Maintainer) dialOne(t DialTarget) {
	conn, err := m.dial(t.Address)
	if err != nil {
		m.peers.RecordFailure(t.NodeID)
		m.log.Debug("outbound dial failed", "node", t.NodeID, "address", t.Address, "err", err)
		return
	}
	wrapped := &Conn{Conn: conn, NodeID: t.NodeID, Direction: DirectionOutbound}
	if !m.conns.Admit(wrapped) {
		_ = conn.Close()
		return
	}
	m.peers.RecordSuccess(t.NodeID, 0)
}

// candidates interleaves the rotated seed list with the Hot-bucket peers,
// ranked by reputation, so a fresh node with no successful connections yet
// still has somewhere to dial.
func (m *Maintainer) candidates() []DialTarget {
	var seeds []DialTarget
	if len(m.seeds) > 0 {
		seeds = append(append([]DialTarget{}, m.seeds[m.seedAt:]...), m.seeds[:m.seedAt]...)
		m.seedAt = (m.seedAt + 1) % len(m.seeds)
	}

	hot := m.peers.HotPeers()
	sort.Slice(hot, func(i, j int) bool { return hot[i].Reputation > hot[j].Reputation })
	var out []DialTarget
	for i := 0; i < len(seeds) || i < len(hot); i++ {
		if i < len(seeds) {
			out = append(out, seeds[i])
		}
		if i < len(hot) {
			out = append(out, DialTarget{NodeID: hot[i].NodeID, Address: hot[i].IP})
		}
	}
	return out
}
