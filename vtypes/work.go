package vtypes

import (
	"github.com/holiman/uint256"

	"vision-node/common"
)

// maxTargetHi is the all-ones 64-bit ceiling the difficulty scalar divides,
// matching consensus_pow's u256_from_difficulty: a target is carried as a
// 64-bit magnitude packed into the most significant 8 bytes of an otherwise
// zero 256-bit big-endian value, not a full 256-bit division.
const maxTargetHi = ^uint64(0)

// TargetFromDifficulty converts a scalar difficulty into the 256-bit target
// a PoW digest must fall under: the high 64 bits hold maxTargetHi/difficulty,
// the low 192 bits are zero.
func TargetFromDifficulty(difficulty uint64) *uint256.Int {
	hi := maxTargetHi
	if difficulty != 0 {
		hi = maxTargetHi / difficulty
	}
	return new(uint256.Int).Lsh(new(uint256.Int).SetUint64(hi), 192)
}

// DifficultyFromTarget is TargetFromDifficulty's inverse, used when a peer
// reports its header only in target form.
func DifficultyFromTarget(target *uint256.Int) uint64 {
	if target == nil || target.IsZero() {
		return 0
	}
	hi := new(uint256.Int).Rsh(target, 192).Uint64()
	if hi == 0 {
		return maxTargetHi
	}
	d := maxTargetHi / hi
	if d < 1 {
		d = 1
	}
	return d
}

// MeetsTarget reports whether digest, read as a big-endian 256-bit integer,
// is at or below target.
func MeetsTarget(digest common.Hash, target *uint256.Int) bool {
	var v uint256.Int
	v.SetBytes(digest[:])
	return v.Cmp(target) <= 0
}

// BlockWork is a single block's contribution to cumulative work:
// 2^min(120, leadingZeroBits(target)), summed over a block and its
// ancestors to compare heaviest-work forks per the reorg rule. The header's
// difficulty field is the LWMA scalar; work is computed from the target it
// implies so harder (smaller) targets contribute strictly more work, the
// same leading-zero-bits style accounting Bitcoin-derived chains use.
func BlockWork(difficulty uint64) *uint256.Int {
	bits := leadingZeroBits(TargetFromDifficulty(difficulty))
	if bits > 120 {
		bits = 120
	}
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
}

// leadingZeroBits counts v's leading zero bits across the full 256-bit
// width (256 for v == 0).
func leadingZeroBits(v *uint256.Int) uint {
	b := v.Bytes32()
	for i, by := range b {
		if by != 0 {
			return uint(i*8) + uint(leadingZerosByte(by))
		}
	}
	return 256
}

func leadingZerosByte(b byte) int {
	n := 0
	for i := 7; i >= 0; i-- {
		if b&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}
