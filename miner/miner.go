// Package miner bridges the mempool, difficulty controller, chain, and PoW
// engine: it assembles candidate block bodies, installs them as mining jobs,
// and submits whatever the engine finds back into the chain.
package miner

import (
	"sync"
	"sync/atomic"
	"time"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/internal/vlog"
	"vision-node/mempool"
	"vision-node/pow"
	"vision-node/vtypes"
)

// Miner owns the job-assembly loop and the result-submission loop. It does
// not itself decide how many worker threads run — that's the engine's
// SetThreads, driven by the caller's configuration.
type Miner struct {
	cfg     Config
	state   *chain.State
	pool    *mempool.Pool
	tracker *difficulty.Tracker
	engine  *pow.Engine
	clock   common.Clock

	running int32 // atomic bool

	startCh chan struct{}
	exitCh  chan struct{}

	pendingMu sync.Mutex
	pending   *vtypes.Block

	log *vlog.Logger
}

// New wires a Miner against the node's shared components. It does not start
// any goroutines; call Start to begin assembling and submitting jobs.
func New(state *chain.State, pool *mempool.Pool, tracker *difficulty.Tracker, engine *pow.Engine, cfg Config, clock common.Clock) *Miner {
	return &Miner{
		cfg:     cfg,
		state:   state,
		pool:    pool,
		tracker: tracker,
		engine:  engine,
		clock:   clock,
		startCh: make(chan struct{}, 1),
		exitCh:  make(chan struct{}),
		log:     vlog.NewContext("component", "miner"),
	}
}

// Start begins the job-assembly and result-submission loops. Safe to call
// once; a second call is a no-op.
func (m *Miner) Start() {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return
	}
	go m.newWorkLoop()
	go m.resultLoop()
	m.startCh <- struct{}{}
}

// Stop halts both loops. The engine's own worker threads are unaffected;
// stop those separately via Engine.SetThreads(0).
func (m *Miner) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	close(m.exitCh)
}

func (m *Miner) isRunning() bool { return atomic.LoadInt32(&m.running) == 1 }

// newWorkLoop rebuilds and installs a fresh candidate job on a fixed
// recommit interval, plus once immediately on start, matching the teacher's
// newWorkLoop/commit timer idiom (minus uncle/gas bookkeeping, which has no
// equivalent here).
func (m *Miner) newWorkLoop() {
	ticker := time.NewTicker(m.cfg.RecommitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.startCh:
			m.buildAndInstallJob()
		case <-ticker.C:
			m.buildAndInstallJob()
		case <-m.exitCh:
			return
		}
	}
}

// buildAndInstallJob selects mempool transactions, simulates the resulting
// state root against the current tip, and installs the candidate as the
// engine's mining job. The assembled (header-incomplete) body is held in
// m.pending until a solution for it arrives.
func (m *Miner) buildAndInstallJob() {
	tip, height := m.state.Tip()
	if tip == nil {
		return // not yet bootstrapped
	}

	diff := m.tracker.CurrentDifficulty()
	baseFee := m.pool.BaseFee()

	candidates := m.pool.SelectForBlock(m.cfg.MaxBlockTxs, baseFee)
	stateRoot, included := m.state.SimulateBlock(tip.Hash(), candidates)

	timestamp := m.clock.Unix()
	if timestamp <= tip.Header.Timestamp {
		timestamp = tip.Header.Timestamp + 1
	}

	header := &vtypes.BlockHeader{
		ParentHash: tip.Hash(),
		Height:     height + 1,
		Timestamp:  timestamp,
		Difficulty: diff,
		BaseFee:    baseFee,
		StateRoot:  stateRoot,
	}
	block := &vtypes.Block{Header: header, Transactions: included}
	block.RecomputeTxRoot()

	m.pendingMu.Lock()
	m.pending = block
	m.pendingMu.Unlock()

	epoch := header.Epoch(m.cfg.EpochBlocks)
	seed := chain.EpochSeed(m.state.GenesisHash(), epoch)
	m.engine.UpdateJob(header.PowPreimage(), vtypes.TargetFromDifficulty(diff), tip.Hash(), header.Height, seed, m.cfg.EpochBlocks)

	m.log.Debug("installed mining job", "height", header.Height, "parent", header.ParentHash, "txs", len(included))
}

// resultLoop consumes winning solutions from the engine, seals whichever
// pending body they match, and submits the result to the chain.
func (m *Miner) resultLoop() {
	for {
		select {
		case solution := <-m.engine.Results():
			m.submitSolution(solution)
		case <-m.exitCh:
			return
		}
	}
}

func (m *Miner) submitSolution(solution pow.Solution) {
	m.pendingMu.Lock()
	pending := m.pending
	m.pendingMu.Unlock()

	if pending == nil || pending.Header.Height != solution.Job.Height || pending.Header.ParentHash != solution.Job.ParentHash {
		m.log.Debug("discarding stale solution", "height", solution.Job.Height, "parent", solution.Job.ParentHash)
		return
	}

	pending.Header.Nonce = solution.Nonce
	pending.Header.PowHash = solution.Digest

	if err := m.state.ApplyBlock(pending, "self", m.clock.Now()); err != nil {
		m.log.Warn("mined block rejected by acceptance pipeline", "height", pending.Header.Height, "err", err)
		return
	}
	m.log.Info("mined block accepted", "height", pending.Header.Height, "hash", pending.Hash(), "txs", len(pending.Transactions))

	m.buildAndInstallJob()
}
