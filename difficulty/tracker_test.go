package difficulty

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLWMASteadyState(t *testing.T) {
	cfg := DefaultConfig()
	timestamps := make([]int64, 120)
	for i := range timestamps {
		timestamps[i] = int64(i) * 2
	}
	target := DifficultyToTarget(100_000_000_000)
	next := NextTargetLWMA(timestamps, target, cfg)
	ratio := targetRatio(target, next)
	require.InDelta(t, 1.0, ratio, 0.15)
}

func TestLWMAFasterBlocksHardensDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	timestamps := make([]int64, 120)
	for i := range timestamps {
		timestamps[i] = int64(i)
	}
	target := DifficultyToTarget(100_000_000_000)
	next := NextTargetLWMA(timestamps, target, cfg)
	require.Less(t, targetRatio(target, next), 1.0)
}

func TestLWMASlowerBlocksEasesDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	timestamps := make([]int64, 120)
	for i := range timestamps {
		timestamps[i] = int64(i) * 4
	}
	target := DifficultyToTarget(100_000_000_000)
	next := NextTargetLWMA(timestamps, target, cfg)
	require.Greater(t, targetRatio(target, next), 1.0)
}

func TestLWMAPerBlockChangeClamped(t *testing.T) {
	cfg := DefaultConfig()
	timestamps := make([]int64, 120)
	for i := range timestamps {
		timestamps[i] = int64(i) / 10
	}
	target := DifficultyToTarget(100_000_000_000)
	next := NextTargetLWMA(timestamps, target, cfg)
	ratio := targetRatio(target, next)
	require.GreaterOrEqual(t, ratio, 0.85)
	require.LessOrEqual(t, ratio, 1.15)
}

func TestTrackerStaysStableAtTargetInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdjustmentWindow = 10
	tracker := NewTracker(cfg, 10000)
	for i := int64(0); i < 20; i++ {
		tracker.RecordBlock(i * 2)
	}
	final := tracker.CurrentDifficulty()
	changePct := (float64(final)/10000.0 - 1.0)
	if changePct < 0 {
		changePct = -changePct
	}
	require.Less(t, changePct*100, 20.0)
}

func TestTrackerRespondsToFasterBlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdjustmentWindow = 20
	tracker := NewTracker(cfg, 10000)
	for i := int64(0); i < 20; i++ {
		tracker.RecordBlock(i * 2)
	}
	initial := tracker.CurrentDifficulty()

	base := int64(20 * 2)
	for i := int64(20); i < 40; i++ {
		tracker.RecordBlock(base + (i - 20))
	}
	final := tracker.CurrentDifficulty()
	require.Greater(t, final, initial)
}

func TestTrackerAverageBlockTime(t *testing.T) {
	cfg := DefaultConfig()
	tracker := NewTracker(cfg, 10000)
	for i := int64(0); i < 60; i++ {
		tracker.RecordBlock((i * 25) / 10)
	}
	avg, ok := tracker.AverageBlockTime()
	require.True(t, ok)
	require.InDelta(t, 2.5, avg, 0.1)
}

func TestTrackerMetricsAvailableAfterEnoughBlocks(t *testing.T) {
	cfg := DefaultConfig()
	tracker := NewTracker(cfg, 10000)
	for i := int64(0); i < 30; i++ {
		tracker.RecordBlock(i * 2)
	}
	m := tracker.LastMetrics()
	require.NotNil(t, m)
	require.Greater(t, m.AvgBlockTime, 0.0)
	require.Greater(t, m.WindowSize, 0)
}
