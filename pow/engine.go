package pow

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/internal/vlog"
	"vision-node/vtypes"
)

// BatchSize is the number of nonces a worker claims per round, matching the
// original's SIMD-friendly batch constant.
const BatchSize = 1000

// idleSleep is how long a worker sleeps when disabled, jobless, or without
// the job's dataset; a worker beaten to the current job's solution by
// another worker polls every 10 ms instead.
const idleSleep = 2 * time.Second

// Engine runs the VisionX worker pool against the currently installed Job.
// Dataset rebuilds (on epoch change) are the only operation requiring the
// engine's exclusive lock; job installation otherwise swaps an atomic
// pointer so workers never block on it.
type Engine struct {
	mu      sync.Mutex // guards dataset rebuilds only
	dataset atomic.Value // *Dataset

	job atomic.Value // *Job

	targetThreads int32 // atomic
	enabled       int32 // atomic bool
	nonceCounter  uint64 // atomic

	workersMu sync.Mutex
	workers   []chan struct{} // per-worker stop signals

	results chan Solution

	sampler *hashrateSampler
	log     *vlog.Logger
}

// NewEngine constructs an idle Engine with no job and no dataset.
func NewEngine() *Engine {
	e := &Engine{
		results: make(chan Solution, 8),
		sampler: newHashrateSampler(120 * time.Second),
		log:     vlog.NewContext("component", "pow"),
	}
	return e
}

// Results is the channel workers publish winning solutions to.
func (e *Engine) Results() <-chan Solution { return e.results }

// UpdateJob installs a new mining job. If the epoch implied by height and
// epochBlocks differs from the currently loaded dataset's epoch, the
// dataset is rebuilt under the engine's lock before the job is published —
// the only operation that may stall workers.
func (e *Engine) UpdateJob(preimage []byte, target *uint256.Int, parentHash common.Hash, height uint64, epochSeed common.Hash, epochBlocks uint64) {
	epoch := uint64(0)
	if epochBlocks > 0 {
		epoch = height / epochBlocks
	}

	cur, _ := e.dataset.Load().(*Dataset)
	if cur == nil || cur.Epoch() != epoch {
		e.mu.Lock()
		cur, _ = e.dataset.Load().(*Dataset)
		if cur == nil || cur.Epoch() != epoch {
			e.log.Info("rebuilding visionx dataset", "epoch", epoch)
			cur = NewDataset(epoch, epochSeed, DatasetSize)
			e.dataset.Store(cur)
			e.log.Info("visionx dataset ready", "epoch", epoch)
		}
		e.mu.Unlock()
	}

	j := newJob(preimage, target, parentHash, height, epochSeed, epoch)
	e.job.Store(j)
}

// ClearJob removes the current job so workers idle.
func (e *Engine) ClearJob() { e.job.Store((*Job)(nil)) }

func (e *Engine) currentJob() *Job {
	j, _ := e.job.Load().(*Job)
	return j
}

func (e *Engine) currentDataset() *Dataset {
	d, _ := e.dataset.Load().(*Dataset)
	return d
}

// SetThreads clamps n to [0, 2*logical_cores] and adjusts the running
// worker pool to match, spawning or retiring workers by index.
func (e *Engine) SetThreads(n int) {
	max := 2 * runtime.NumCPU()
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}

	e.workersMu.Lock()
	defer e.workersMu.Unlock()

	atomic.StoreInt32(&e.targetThreads, int32(n))
	if n > 0 {
		atomic.StoreInt32(&e.enabled, 1)
	} else {
		atomic.StoreInt32(&e.enabled, 0)
	}

	for len(e.workers) < n {
		id := len(e.workers)
		stop := make(chan struct{})
		e.workers = append(e.workers, stop)
		go e.workerLoop(id, stop)
	}
	for len(e.workers) > n {
		last := e.workers[len(e.workers)-1]
		close(last)
		e.workers = e.workers[:len(e.workers)-1]
	}
}

// workerLoop is worker i's body: idle when disabled/jobless/beaten, else
// claim a nonce batch, hash it, and submit on success.
func (e *Engine) workerLoop(id int, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if atomic.LoadInt32(&e.enabled) == 0 || id >= int(atomic.LoadInt32(&e.targetThreads)) {
			time.Sleep(idleSleep)
			continue
		}

		job := e.currentJob()
		dataset := e.currentDataset()
		if job == nil || dataset == nil || dataset.Epoch() != job.Epoch {
			time.Sleep(idleSleep)
			continue
		}
		if job.hasWinner() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		start := atomic.AddUint64(&e.nonceCounter, BatchSize) - BatchSize
		found, hashesDone := e.mineBatch(job, dataset, start, BatchSize)
		e.sampler.record(hashesDone)

		if found == nil {
			continue
		}
		if !job.claimWinner() {
			continue
		}
		select {
		case e.results <- *found:
		default:
			e.log.Warn("pow result channel full, dropping solution", "height", job.Height)
		}
	}
}

// mineBatch hashes nonces [start, start+count) against job's target,
// returning the first solution found (if any) and the number of hashes
// computed.
func (e *Engine) mineBatch(job *Job, dataset *Dataset, start uint64, count uint64) (*Solution, uint64) {
	for i := uint64(0); i < count; i++ {
		nonce := start + i
		digest := Hash(job.Preimage, nonce, dataset)
		if vtypes.MeetsTarget(digest, job.Target) {
			return &Solution{Job: job, Nonce: nonce, Digest: digest}, i + 1
		}
	}
	return nil, count
}

// Stats returns the current windowed hash-rate sample.
func (e *Engine) Stats() float64 { return e.sampler.rate() }
