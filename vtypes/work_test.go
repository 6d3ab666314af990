package vtypes

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vision-node/common"
)

func TestTargetFromDifficultyMonotonic(t *testing.T) {
	low := TargetFromDifficulty(100)
	high := TargetFromDifficulty(1_000_000)
	require.True(t, high.Lt(low), "higher difficulty must yield a smaller target")
}

func TestTargetDifficultyRoundTrip(t *testing.T) {
	target := TargetFromDifficulty(4096)
	got := DifficultyFromTarget(target)
	require.InDelta(t, 4096, got, 1)
}

func TestMeetsTarget(t *testing.T) {
	target := TargetFromDifficulty(1)
	var low common.Hash
	low[31] = 1
	require.True(t, MeetsTarget(low, target))

	var high common.Hash
	for i := range high {
		high[i] = 0xff
	}
	require.False(t, MeetsTarget(high, TargetFromDifficulty(1<<20)))
}

func TestBlockWorkIncreasesWithDifficulty(t *testing.T) {
	low := BlockWork(100)
	high := BlockWork(1_000_000)
	require.True(t, high.Gt(low), "higher difficulty must yield strictly more work")
}

func TestBlockWorkOfZeroDifficultyIsOne(t *testing.T) {
	require.Equal(t, uint256.NewInt(1), BlockWork(0))
}
