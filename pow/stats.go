package pow

import (
	"sync"
	"time"
)

// hashrateSampler keeps a rolling window of (timestamp, hash count) samples
// and reports hashes/sec over that window, the §4.1 stats() windowed
// hash-rate sample.
type hashrateSampler struct {
	mu     sync.Mutex
	window time.Duration
	at     []time.Time
	counts []uint64
}

func newHashrateSampler(window time.Duration) *hashrateSampler {
	return &hashrateSampler{window: window}
}

func (s *hashrateSampler) record(hashes uint64) {
	if hashes == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.at = append(s.at, now)
	s.counts = append(s.counts, hashes)
	s.trimLocked(now)
}

func (s *hashrateSampler) trimLocked(now time.Time) {
	cut := 0
	for cut < len(s.at) && now.Sub(s.at[cut]) > s.window {
		cut++
	}
	if cut > 0 {
		s.at = s.at[cut:]
		s.counts = s.counts[cut:]
	}
}

// rate returns the hashes/sec sampled over the configured window.
func (s *hashrateSampler) rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.at) == 0 {
		return 0
	}
	now := time.Now()
	s.trimLocked(now)
	if len(s.at) == 0 {
		return 0
	}

	var total uint64
	for _, c := range s.counts {
		total += c
	}
	elapsed := now.Sub(s.at[0]).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	return float64(total) / elapsed
}
