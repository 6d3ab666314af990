package miner

import "time"

// Config bounds the job-assembly loop's pacing and the candidate block body
// it builds.
type Config struct {
	RecommitInterval time.Duration
	MaxBlockTxs      int
	EpochBlocks      uint64
}

// DefaultConfig mirrors the teacher's own recommit/gas-ceiling defaults in
// spirit: rebuild the candidate job often enough to pick up new mempool
// arrivals without resubmitting on every tx.
func DefaultConfig() Config {
	return Config{
		RecommitInterval: 3 * time.Second,
		MaxBlockTxs:      2000,
		EpochBlocks:      8192,
	}
}
