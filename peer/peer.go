// Package peer tracks remote-node records, their connection health, and the
// reputation/misbehavior scoring that buckets and bans them. It holds no
// socket or wire-format knowledge of its own; the connection layer reports
// outcomes in and reads bucket/quorum views back out.
package peer

import (
	"time"

	"vision-node/common"
)

// State is where a peer record currently sits in the connection lifecycle.
type State int

const (
	StateKnownOnly State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "known-only"
	}
}

// Bucket is the manager's health-based classification, used to prioritize
// outbound dialing and gossip propagation.
type Bucket int

const (
	BucketCold Bucket = iota
	BucketWarm
	BucketHot
)

func (b Bucket) String() string {
	switch b {
	case BucketHot:
		return "hot"
	case BucketWarm:
		return "warm"
	default:
		return "cold"
	}
}

// TrustLevel summarizes a peer's standing for logging and gating decisions.
type TrustLevel int

const (
	TrustNormal TrustLevel = iota
	TrustTrusted
	TrustProbation
	TrustGraylisted
	TrustBanned
)

func (l TrustLevel) String() string {
	switch l {
	case TrustTrusted:
		return "trusted"
	case TrustProbation:
		return "probation"
	case TrustGraylisted:
		return "graylisted"
	case TrustBanned:
		return "banned"
	default:
		return "normal"
	}
}

// Identity is the chain-identity snapshot a handshake establishes, kept
// alongside the peer record so quorum queries don't need to re-parse it.
type Identity struct {
	ChainID         common.Hash
	GenesisHash     common.Hash
	ProtocolVersion uint32
	NodeBuild       string
	BootstrapPrefix string
}

// Endpoint is an advertised reachable address plus whatever this node was
// able to verify about it.
type Endpoint struct {
	Address    string
	Reachable  bool
	VerifiedAt time.Time
}

// Record is everything the manager tracks about one remote node, keyed by
// its stable node id.
type Record struct {
	NodeID string
	EBID   string // Eternal Broadcast ID: restart-stable identity
	IP     string
	Port   uint16

	State  State
	Bucket Bucket

	LastSeen    time.Time
	LastSuccess time.Time
	LastFailure time.Time

	FailStreak int
	CooldownUntil time.Time

	LatencyEWMA time.Duration

	Reputation  float64 // [0, 100], neutral at 50
	Misbehavior float64 // [0, 100], neutral at 0

	Identity Identity
	Height   uint64

	Advertised *Endpoint
}

// Trust derives the record's current TrustLevel from its reputation and
// misbehavior scores. Ban and graylist take priority over reputation tiers.
func (r *Record) Trust(cfg Config) TrustLevel {
	if r.Misbehavior >= cfg.BanMisbehavior {
		return TrustBanned
	}
	if r.Misbehavior >= cfg.GraylistMisbehavior {
		return TrustGraylisted
	}
	if r.Reputation >= cfg.TrustedReputation {
		return TrustTrusted
	}
	if r.Reputation < cfg.ProbationReputation {
		return TrustProbation
	}
	return TrustNormal
}

// Banned reports whether the record is currently under a ban or graylist,
// independent of cooldown timing.
func (r *Record) Banned(cfg Config) bool {
	t := r.Trust(cfg)
	return t == TrustBanned || t == TrustGraylisted
}

func newRecord(nodeID string) *Record {
	return &Record{
		NodeID:     nodeID,
		State:      StateKnownOnly,
		Bucket:     BucketCold,
		Reputation: 50,
	}
}
