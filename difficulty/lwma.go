// Package difficulty implements the per-block LWMA (linearly weighted
// moving average) difficulty controller: a responsive, oscillation-resistant
// adjustment that runs after every block rather than waiting for a fixed
// retarget interval.
package difficulty

import (
	"vision-node/vtypes"

	"github.com/holiman/uint256"
)

// Config mirrors consensus_pow's DifficultyConfig: target block time, the
// LWMA window, solve-time clamps, and the per-block change clamps.
type Config struct {
	TargetBlockTime   int64  // seconds
	AdjustmentWindow  uint64 // blocks of LWMA history
	MinSolveDivisor   int64  // min solve time = TargetBlockTime / MinSolveDivisor
	MaxSolveMultiplier int64 // max solve time = TargetBlockTime * MaxSolveMultiplier
	MaxChangeUpPercent   uint64 // e.g. 110 for +10% per block
	MaxChangeDownPercent uint64 // e.g. 90 for -10% per block
	MinDifficulty        uint64
}

// DefaultConfig matches the teacher/original defaults: 2s blocks, a 120
// block window, solve times clamped to [0.5s, 20s], and per-block change
// clamped to ±10%.
func DefaultConfig() Config {
	return Config{
		TargetBlockTime:      2,
		AdjustmentWindow:     120,
		MinSolveDivisor:      4,
		MaxSolveMultiplier:   10,
		MaxChangeUpPercent:   110,
		MaxChangeDownPercent: 90,
		MinDifficulty:        1000,
	}
}

// NextTargetLWMA computes the next PoW target from a window of block
// timestamps (oldest first) and the previous target, clamping both the
// per-interval solve time and the overall per-block change ratio.
func NextTargetLWMA(timestamps []int64, prevTarget *uint256.Int, cfg Config) *uint256.Int {
	n := len(timestamps)
	if n < 2 {
		return new(uint256.Int).Set(prevTarget)
	}

	// Solve times are handled in milliseconds so a sub-second clamp such as
	// target/4 at a 2s target is representable.
	const msPerSec = 1000
	targetMS := cfg.TargetBlockTime * msPerSec
	minDT := targetMS / maxI64(cfg.MinSolveDivisor, 1)
	if minDT < 1 {
		minDT = 1
	}
	maxDT := targetMS * cfg.MaxSolveMultiplier

	var sumWeights int64
	var weightedSum int64
	for k := 1; k < n; k++ {
		weight := int64(k)
		sumWeights += weight

		rawDT := (timestamps[k] - timestamps[k-1]) * msPerSec
		clampedDT := clampI64(rawDT, minDT, maxDT)
		weightedSum += clampedDT * weight
	}
	if sumWeights == 0 {
		return new(uint256.Int).Set(prevTarget)
	}

	lwmaDT := weightedSum / sumWeights
	if lwmaDT < 1 {
		lwmaDT = 1
	}

	ratioNum, ratioDen := clampRatio(lwmaDT, maxI64(targetMS, 1), cfg.MaxChangeUpPercent, cfg.MaxChangeDownPercent)
	return u256MulDiv(prevTarget, ratioNum, ratioDen)
}

// clampRatio scales lwmaDT/targetSecs into a [maxDownPercent%, maxUpPercent%]
// window and returns it as an integer fraction with 1e9 granularity, mirroring
// difficulty.rs's clamp_ratio (float-based there; fixed-point here since Go's
// stdlib has no Decimal type the teacher pulls in for this kind of math).
func clampRatio(num, den int64, maxUpPercent, maxDownPercent uint64) (uint64, uint64) {
	const scale = 1_000_000_000
	// ratio = num/den, expressed in the same 1e9 fixed-point scale.
	ratioScaled := (num * scale) / den

	maxUp := int64(maxUpPercent) * scale / 100
	maxDown := int64(maxDownPercent) * scale / 100

	clamped := clampI64(ratioScaled, maxDown, maxUp)
	if clamped < 1 {
		clamped = 1
	}
	return uint64(clamped), scale
}

// u256MulDiv computes floor(target * num / den) on the 64-bit magnitude
// packed into target's upper 8 bytes (see vtypes.TargetFromDifficulty),
// enforcing a minimum target so next-target never collapses to zero.
func u256MulDiv(target *uint256.Int, num, den uint64) *uint256.Int {
	if num == den {
		return new(uint256.Int).Set(target)
	}
	hi := new(uint256.Int).Rsh(target, 192).Uint64()

	hi128 := new(uint256.Int).SetUint64(hi)
	hi128.Mul(hi128, new(uint256.Int).SetUint64(num))
	d := den
	if d == 0 {
		d = 1
	}
	hi128.Div(hi128, new(uint256.Int).SetUint64(d))

	result := hi128.Uint64()
	const minTarget = 0x0000_1000
	if result < minTarget {
		result = minTarget
	}
	return new(uint256.Int).Lsh(new(uint256.Int).SetUint64(result), 192)
}

func clampI64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// DifficultyToTarget and TargetToDifficulty are the legacy scalar/target
// bridge kept for callers (configuration, logging, peer chain-identity
// comparisons) that only carry a difficulty number, not the full target.
func DifficultyToTarget(d uint64) *uint256.Int { return vtypes.TargetFromDifficulty(d) }
func TargetToDifficulty(t *uint256.Int) uint64  { return vtypes.DifficultyFromTarget(t) }
