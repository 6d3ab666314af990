package difficulty

import (
	"sync"

	"github.com/holiman/uint256"

	"vision-node/internal/vlog"
)

// Metrics snapshots a tracker's state after the most recent adjustment, for
// logging and any future status surface.
type Metrics struct {
	Difficulty     uint64
	Target         *uint256.Int
	LastBlockTime  float64
	AvgBlockTime   float64
	AdjustmentRatio float64
	WindowSize     int
}

// Tracker runs the LWMA adjustment after every accepted block, the way
// DifficultyTracker in consensus_pow/difficulty.rs does: no fixed retarget
// interval, a rolling timestamp window instead.
type Tracker struct {
	mu sync.Mutex

	cfg        Config
	difficulty uint64
	target     *uint256.Int
	timestamps []int64
	metrics    *Metrics
	log        *vlog.Logger
}

// NewTracker seeds a Tracker at initialDifficulty.
func NewTracker(cfg Config, initialDifficulty uint64) *Tracker {
	return &Tracker{
		cfg:        cfg,
		difficulty: initialDifficulty,
		target:     DifficultyToTarget(initialDifficulty),
		log:        vlog.NewContext("component", "difficulty"),
	}
}

// RecordBlock appends a timestamp and, once at least two are known, runs the
// LWMA adjustment. Older timestamps beyond twice the window are trimmed.
func (t *Tracker) RecordBlock(timestamp int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timestamps = append(t.timestamps, timestamp)
	keep := int(t.cfg.AdjustmentWindow * 2)
	if keep > 0 && len(t.timestamps) > keep {
		t.timestamps = t.timestamps[len(t.timestamps)-keep:]
	}
	if len(t.timestamps) >= 2 {
		t.adjust()
	}
}

func (t *Tracker) adjust() {
	window := int(t.cfg.AdjustmentWindow)
	start := len(t.timestamps) - window
	if start < 0 {
		start = 0
	}
	ts := t.timestamps[start:]
	if len(ts) < 2 {
		return
	}

	nextTarget := NextTargetLWMA(ts, t.target, t.cfg)
	m := computeMetrics(ts, t.target, nextTarget)

	oldTarget := t.target
	t.target = nextTarget

	ratio := targetRatio(oldTarget, nextTarget)
	if ratio > 0 {
		t.difficulty = uint64(float64(t.difficulty) / ratio)
	}
	if t.difficulty < t.cfg.MinDifficulty {
		t.difficulty = t.cfg.MinDifficulty
	}
	m.Difficulty = t.difficulty
	t.metrics = &m

	changePct := (ratio - 1.0) * 100
	if changePct < 0 {
		changePct = -changePct
	}
	if changePct > 2.0 {
		t.log.Info("difficulty adjusted", "ratioPct", (ratio-1.0)*100, "avgBlockTime", m.AvgBlockTime, "difficulty", t.difficulty)
	}
}

// CurrentDifficulty returns the tracker's display-scalar difficulty.
func (t *Tracker) CurrentDifficulty() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.difficulty
}

// CurrentTarget returns the tracker's PoW target.
func (t *Tracker) CurrentTarget() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(uint256.Int).Set(t.target)
}

// LastMetrics returns the metrics computed at the most recent adjustment,
// or nil if fewer than two blocks have been recorded.
func (t *Tracker) LastMetrics() *Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// AverageBlockTime returns the mean solve time over the current window, or
// ok=false if fewer than two timestamps are known.
func (t *Tracker) AverageBlockTime() (avg float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	window := int(t.cfg.AdjustmentWindow)
	if window > len(t.timestamps) {
		window = len(t.timestamps)
	}
	start := len(t.timestamps) - window
	if start < 0 {
		start = 0
	}
	ts := t.timestamps[start:]
	if len(ts) < 2 {
		return 0, false
	}
	total := ts[len(ts)-1] - ts[0]
	return float64(total) / float64(len(ts)-1), true
}

func computeMetrics(timestamps []int64, current, next *uint256.Int) Metrics {
	n := len(timestamps)
	avg := 2.0
	if n > 1 {
		avg = float64(timestamps[n-1]-timestamps[0]) / float64(n-1)
	}
	last := 2.0
	if n >= 2 {
		last = float64(timestamps[n-1] - timestamps[n-2])
	}
	return Metrics{
		Target:          next,
		LastBlockTime:   last,
		AvgBlockTime:    avg,
		AdjustmentRatio: targetRatio(current, next),
		WindowSize:      n,
	}
}

// targetRatio compares the two targets' packed 64-bit magnitudes, matching
// difficulty.rs's calculate_target_ratio.
func targetRatio(current, next *uint256.Int) float64 {
	currHi := new(uint256.Int).Rsh(current, 192).Uint64()
	nextHi := new(uint256.Int).Rsh(next, 192).Uint64()
	if currHi == 0 {
		return 1.0
	}
	return float64(nextHi) / float64(currHi)
}
