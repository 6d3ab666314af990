package chain

import "vision-node/common"

// Config carries the acceptance pipeline's tunables from the configuration
// table: reorg depth bound, time-rule window/skew, checkpoint quarantine,
// and the orphan-drain cascade cap.
type Config struct {
	MaxReorgDepth uint64

	// MedianWindow is N in "timestamp strictly greater than the median of
	// the preceding N block timestamps"; 0 disables the median check in
	// favor of a plain greater-than-parent comparison.
	MedianWindow int

	// MaxFutureSecs bounds how far ahead of wall clock a timestamp may be.
	MaxFutureSecs int64

	// CheckpointHeight/CheckpointHash quarantine incompatible histories at
	// a fixed height; CheckpointHeight == 0 disables the check (genesis is
	// never checkpoint-gated).
	CheckpointHeight uint64
	CheckpointHash   common.Hash

	// OrphanCascadeCap bounds how many orphans a single tip advance may
	// drain before the rest are left for the next one.
	OrphanCascadeCap int

	// EpochBlocks is the PoW dataset epoch length, passed through to
	// header.Epoch() when recomputing visionx_hash.
	EpochBlocks uint64

	// SeenCacheSize bounds the recent-hash LRUs (blocks and transactions).
	SeenCacheSize int
}

// DefaultConfig mirrors consensus.rs's ConsensusParams::default: a 120s
// future-skew allowance and an 11-block median window, plus this port's own
// reorg-depth and cascade-cap choices.
func DefaultConfig() Config {
	return Config{
		MaxReorgDepth:    100,
		MedianWindow:     11,
		MaxFutureSecs:    120,
		CheckpointHeight: 9,
		OrphanCascadeCap: 512,
		EpochBlocks:      8192,
		SeenCacheSize:    8192,
	}
}
