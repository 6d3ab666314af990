package peer

import "time"

// Config bounds the scoring, bucketing, and decay thresholds the manager
// applies to every tracked peer.
type Config struct {
	// Trust-level thresholds on the reputation scale (0-100).
	TrustedReputation   float64
	ProbationReputation float64
	// Misbehavior thresholds that gate temporary and long-term bans.
	GraylistMisbehavior float64
	BanMisbehavior      float64

	// DecayPerHour is how much reputation rises, and misbehavior falls,
	// toward neutral per hour for a non-banned peer.
	DecayPerHour float64

	// Backoff is the base cooldown a failing peer serves; doubled per
	// consecutive failure up to BackoffCap.
	Backoff    time.Duration
	BackoffCap time.Duration

	// HotLatency is the EWMA latency ceiling for the Hot bucket.
	HotLatency time.Duration
	// HotIdle is how long since last success a peer may go and still
	// qualify as Hot; beyond it a healthy peer is Warm instead.
	HotIdle time.Duration
	// ColdIdle is how long since last success demotes a peer to Cold
	// regardless of latency.
	ColdIdle time.Duration
	// ColdFailureStreak demotes a peer to Cold once its consecutive
	// failure count reaches this value.
	ColdFailureStreak int

	// LatencyEWMAAlpha weights new latency samples against the running
	// average; higher reacts faster to recent samples.
	LatencyEWMAAlpha float64

	// MinCompatiblePeers and MaxHeightSpread gate mining eligibility.
	MinCompatiblePeers int
	MaxHeightSpread    uint64

	// MinVersion/MaxVersion bound the protocol-version compatibility
	// window used by CompatiblePeers.
	MinVersion uint32
	MaxVersion uint32

	// MaxPeerBook caps the total number of tracked records (gossip and
	// exchange merges evict the lowest-reputation Cold entries past it).
	MaxPeerBook int
}

// DefaultConfig follows the reputation system's documented thresholds:
// Trusted >= 80, Probation below 20, Graylisted at misbehavior >= 30,
// Banned at misbehavior >= 80, and +/-5.0 per hour decay toward neutral.
func DefaultConfig() Config {
	return Config{
		TrustedReputation:   80,
		ProbationReputation: 20,
		GraylistMisbehavior: 30,
		BanMisbehavior:      80,
		DecayPerHour:        5.0,

		Backoff:    5 * time.Second,
		BackoffCap: 10 * time.Minute,

		HotLatency:        250 * time.Millisecond,
		HotIdle:           2 * time.Minute,
		ColdIdle:          30 * time.Minute,
		ColdFailureStreak: 3,
		LatencyEWMAAlpha:  0.2,

		MinCompatiblePeers: 3,
		MaxHeightSpread:    64,

		MinVersion: 1,
		MaxVersion: 1,

		MaxPeerBook: 2000,
	}
}
