package pow

import (
	"sync/atomic"

	"github.com/holiman/uint256"

	"vision-node/common"
)

// Job is an immutable mining assignment: header preimage bytes (nonce slot
// excluded — the nonce is supplied separately to Hash), the target the
// digest must meet, the parent digest, the height being mined, and the
// epoch seed that selects the dataset.
type Job struct {
	Preimage   []byte
	Target     *uint256.Int
	ParentHash common.Hash
	Height     uint64
	EpochSeed  common.Hash
	Epoch      uint64

	winnerFlag *int32 // 0/1, set via atomic.CompareAndSwap
}

// newJob constructs a Job with a fresh, unset winner flag.
func newJob(preimage []byte, target *uint256.Int, parent common.Hash, height uint64, epochSeed common.Hash, epoch uint64) *Job {
	flag := int32(0)
	return &Job{
		Preimage:   preimage,
		Target:     target,
		ParentHash: parent,
		Height:     height,
		EpochSeed:  epochSeed,
		Epoch:      epoch,
		winnerFlag: &flag,
	}
}

// claimWinner attempts to flip the job's winner flag from unset to set,
// reporting whether this call was the one that did it — the single-winner
// invariant's enforcement point.
func (j *Job) claimWinner() bool {
	return atomic.CompareAndSwapInt32(j.winnerFlag, 0, 1)
}

func (j *Job) hasWinner() bool {
	return atomic.LoadInt32(j.winnerFlag) == 1
}

// Solution is a nonce/digest pair that meets a job's target.
type Solution struct {
	Job    *Job
	Nonce  uint64
	Digest common.Hash
}
