package peer

import (
	"sync"
	"time"

	"vision-node/common"
	"vision-node/internal/vlog"
)

// Manager owns the peer book: one Record per stable node id, their
// bucketing, scoring, and the compatible-peer quorum view mining eligibility
// depends on.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	peers map[string]*Record
	clock common.Clock
	log   *vlog.Logger

	exitCh  chan struct{}
	running bool
}

// New constructs an empty Manager.
func New(cfg Config, clock common.Clock) *Manager {
	return &Manager{
		cfg:    cfg,
		peers:  make(map[string]*Record),
		clock:  clock,
		log:    vlog.NewContext("component", "peer"),
		exitCh: make(chan struct{}),
	}
}

// Upsert inserts or returns the existing record for nodeID, without altering
// its state.
func (m *Manager) Upsert(nodeID string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(nodeID)
}

func (m *Manager) upsertLocked(nodeID string) *Record {
	r, ok := m.peers[nodeID]
	if !ok {
		r = newRecord(nodeID)
		m.peers[nodeID] = r
		m.evictOverflowLocked()
	}
	return r
}

// Get returns the record for nodeID, or nil if untracked.
func (m *Manager) Get(nodeID string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers[nodeID]
}

// Len returns the number of tracked records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// RecordHandshake upserts identity, endpoint, and connection metadata
// established by a completed, validated handshake.
func (m *Manager) RecordHandshake(nodeID, ip string, port uint16, identity Identity, height uint64, direction State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.upsertLocked(nodeID)
	r.IP = ip
	r.Port = port
	r.Identity = identity
	r.Height = height
	r.State = direction
	now := m.clock.Now()
	r.LastSeen = now
}

// RecordSuccess marks a successful interaction: resets the failure streak,
// rewards reputation, refreshes activity timestamps, and re-buckets.
func (m *Manager) RecordSuccess(nodeID string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.upsertLocked(nodeID)
	now := m.clock.Now()
	r.FailStreak = 0
	r.CooldownUntil = time.Time{}
	r.LastSeen = now
	r.LastSuccess = now
	if r.LatencyEWMA == 0 {
		r.LatencyEWMA = latency
	} else {
		alpha := m.cfg.LatencyEWMAAlpha
		r.LatencyEWMA = time.Duration(float64(r.LatencyEWMA)*(1-alpha) + float64(latency)*alpha)
	}
	r.Reputation = clamp(r.Reputation+2, 0, 100)
	m.rebucketLocked(r, now)
}

// RecordFailure marks a failed dial or handshake attempt: hardens the
// backoff, dings reputation lightly, and re-buckets.
func (m *Manager) RecordFailure(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.upsertLocked(nodeID)
	now := m.clock.Now()
	r.FailStreak++
	r.LastFailure = now
	r.State = StateFailed
	r.CooldownUntil = now.Add(backoff(m.cfg, r.FailStreak))
	r.Reputation = clamp(r.Reputation-1, 0, 100)
	m.rebucketLocked(r, now)
}

// RecordMisbehavior applies a named penalty weight to the record's
// misbehavior score.
func (m *Manager) RecordMisbehavior(nodeID string, kind Misbehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.upsertLocked(nodeID)
	r.Misbehavior = clamp(r.Misbehavior+penaltyWeights[kind], 0, 100)
	m.log.Warn("peer misbehavior", "node", nodeID, "kind", kind.String(), "score", r.Misbehavior)
}

// InCooldown reports whether nodeID is currently serving a backoff or ban.
func (m *Manager) InCooldown(nodeID string, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.peers[nodeID]
	if !ok {
		return false
	}
	if r.Banned(m.cfg) {
		return true
	}
	return now.Before(r.CooldownUntil)
}

// rebucketLocked reassigns a record's Bucket from its current health
// signals, per the promotion/demotion rules: Hot requires a recent success,
// low latency, and a clean failure streak; Cold catches failing or
// long-idle peers; everything else is Warm.
func (m *Manager) rebucketLocked(r *Record, now time.Time) {
	switch {
	case r.FailStreak >= m.cfg.ColdFailureStreak:
		r.Bucket = BucketCold
	case r.LastSuccess.IsZero():
		r.Bucket = BucketCold
	case now.Sub(r.LastSuccess) > m.cfg.ColdIdle:
		r.Bucket = BucketCold
	case now.Sub(r.LastSuccess) <= m.cfg.HotIdle && r.LatencyEWMA > 0 && r.LatencyEWMA <= m.cfg.HotLatency:
		r.Bucket = BucketHot
	default:
		r.Bucket = BucketWarm
	}
}

// RunHealthPass re-buckets every tracked peer and decays reputation and
// misbehavior scores toward neutral. Intended to be called periodically
// (e.g. once a minute) by the caller's own driving loop.
func (m *Manager) RunHealthPass(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	hours := elapsed.Hours()
	decay := m.cfg.DecayPerHour * hours
	for _, r := range m.peers {
		m.rebucketLocked(r, now)
		if r.Trust(m.cfg) == TrustBanned {
			continue
		}
		if r.Reputation < 50 {
			r.Reputation = clamp(r.Reputation+decay, 0, 50)
		} else if r.Reputation > 50 {
			r.Reputation = clamp(r.Reputation-decay, 50, 100)
		}
		r.Misbehavior = clamp(r.Misbehavior-decay, 0, 100)
	}
}

// evictOverflowLocked drops the lowest-reputation Cold records once the book
// exceeds MaxPeerBook, making room for gossip/exchange merges.
func (m *Manager) evictOverflowLocked() {
	if m.cfg.MaxPeerBook <= 0 || len(m.peers) <= m.cfg.MaxPeerBook {
		return
	}
	var worst *Record
	for _, r := range m.peers {
		if r.Bucket != BucketCold {
			continue
		}
		if worst == nil || r.Reputation < worst.Reputation {
			worst = r
		}
	}
	if worst != nil {
		delete(m.peers, worst.NodeID)
	}
}

// CompatibleView summarizes the subset of peers sharing this node's chain-id
// and falling within the configured protocol-version window.
type CompatibleView struct {
	Peers     []*Record
	MinHeight uint64
	MaxHeight uint64
}

// CompatiblePeers returns every record whose handshake identity matches
// chainID and whose protocol version falls in [MinVersion, MaxVersion].
func (m *Manager) CompatiblePeers(chainID common.Hash) CompatibleView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view := CompatibleView{}
	first := true
	for _, r := range m.peers {
		if r.State != StateConnected {
			continue
		}
		if r.Identity.ChainID != chainID {
			continue
		}
		if r.Identity.ProtocolVersion < m.cfg.MinVersion || r.Identity.ProtocolVersion > m.cfg.MaxVersion {
			continue
		}
		view.Peers = append(view.Peers, r)
		if first {
			view.MinHeight, view.MaxHeight = r.Height, r.Height
			first = false
			continue
		}
		if r.Height < view.MinHeight {
			view.MinHeight = r.Height
		}
		if r.Height > view.MaxHeight {
			view.MaxHeight = r.Height
		}
	}
	return view
}

// MiningEligible reports whether the compatible-peer quorum meets the
// configured minimum count and height spread, gating whether this node
// should mine.
func (m *Manager) MiningEligible(chainID common.Hash) bool {
	view := m.CompatiblePeers(chainID)
	if len(view.Peers) < m.cfg.MinCompatiblePeers {
		return false
	}
	return view.MaxHeight-view.MinHeight <= m.cfg.MaxHeightSpread
}

// HotPeers returns every currently Hot-bucketed record, the outbound
// maintainer's preferred redial pool.
func (m *Manager) HotPeers() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.peers))
	for _, r := range m.peers {
		if r.Bucket == BucketHot {
			out = append(out, r)
		}
	}
	return out
}
