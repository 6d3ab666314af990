package chain

import (
	"time"

	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/pow"
	"vision-node/vtypes"
)

// ApplyBlock runs the §4.2 ordered validation against block and, on
// success, places it as the new tip, a side block, or (on an unresolved
// parent) buffers it as an orphan and returns UnknownParent. sourcePeer is
// carried through only for the caller's own logging/misbehavior scoring.
func (s *State) ApplyBlock(block *vtypes.Block, sourcePeer string, now time.Time) *AcceptError {
	if err := validateHeaderShape(block); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.processLocked(block, sourcePeer, now)
}

// processLocked is the body of the acceptance pipeline: steps 2-8 plus
// placement. It assumes validateHeaderShape already passed and that s.mu is
// held, so the orphan drain can re-enter it directly without recursive
// locking.
func (s *State) processLocked(block *vtypes.Block, sourcePeer string, now time.Time) *AcceptError {
	hash := block.Hash()

	// Step 2: known-hash dedup.
	if _, known := s.blocks[hash]; known {
		return newAcceptError(KindDuplicateBlock, errDuplicateBlock)
	}

	// Step 3: bootstrap checkpoint.
	if err := s.checkCheckpointLocked(block, hash); err != nil {
		return err
	}

	// Parent resolution (§3's parent_hash invariant): unresolved parent
	// buffers the block as an orphan rather than failing outright.
	parent, ok := s.blocks[block.Header.ParentHash]
	if !ok {
		if s.isDivergentForkLocked(block) {
			s.log.Debug("suppressing parent-fetch for divergent fork", "height", block.Header.Height, "parent", block.Header.ParentHash)
		} else {
			s.enqueueOrphanLocked(block)
			s.log.Debug("orphan buffered", "parent", block.Header.ParentHash, "height", block.Header.Height, "peer", sourcePeer)
		}
		return newAcceptError(KindUnknownParent, errUnknownParent)
	}
	if block.Header.Height != parent.Header.Height+1 {
		return newAcceptError(KindBadHeader, errBadHeader)
	}

	// Step 4: time rules.
	if err := s.validateTimeRulesLocked(block, parent, now); err != nil {
		return err
	}

	// Step 5: PoW.
	if err := s.validatePoWLocked(block); err != nil {
		return err
	}

	// Step 6: Merkle.
	wantRoot := vtypes.MerkleRoot(block.TxHashes())
	if block.Header.TxRoot != wantRoot {
		return newAcceptError(KindBadMerkle, errBadMerkle)
	}

	// Step 7 + 8: per-tx signatures/nonces, then state application against
	// a working copy seeded from the parent's post-apply state.
	balances, nonces, rerr := s.replayStateAtLocked(block.Header.ParentHash)
	if rerr != nil {
		return rerr
	}
	for _, tx := range block.Transactions {
		if err := tx.VerifySignature(); err != nil {
			return newAcceptError(KindBadSignature, errBadTxSignature)
		}
	}
	burned := new(uint256.Int)
	if err := applyTransactionsTo(balances, nonces, block, burned); err != nil {
		switch err {
		case errBadTxNonce:
			return newAcceptError(KindBadNonce, errBadTxNonce)
		default:
			return newAcceptError(KindBadState, errBadState)
		}
	}
	if computeStateRoot(balances, nonces) != block.Header.StateRoot {
		return newAcceptError(KindBadState, errBadState)
	}

	// Validation complete: record the block and decide placement.
	s.blocks[hash] = block
	s.seenBlocks.Add(hash, struct{}{})
	for _, tx := range block.Transactions {
		s.seenTxs.Add(tx.Hash(), struct{}{})
	}
	work := new(uint256.Int).Add(s.work[block.Header.ParentHash], vtypes.BlockWork(block.Header.Difficulty))
	s.work[hash] = work

	tipHash := s.tipHashLocked()
	switch {
	case block.Header.ParentHash == tipHash:
		s.advanceTipLocked(block, hash)
		s.drainOrphansLocked(hash, sourcePeer, now)
	default:
		s.placeSideBlockLocked(block, hash, work, sourcePeer, now)
	}

	return nil
}

// validateHeaderShape is step 1: structural checks that don't need chain
// state. height == 0 is reserved for genesis and never reaches ApplyBlock
// (Bootstrap installs it directly).
func validateHeaderShape(block *vtypes.Block) *AcceptError {
	if block == nil || block.Header == nil {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	h := block.Header
	if h.Height == 0 {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	if h.ParentHash.IsZero() {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	if h.BaseFee == nil {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	if h.Timestamp <= 0 {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	return nil
}

// checkCheckpointLocked enforces the bootstrap checkpoint when the
// candidate falls exactly on the checkpoint height and a checkpoint hash is
// configured (the zero hash disables the check).
func (s *State) checkCheckpointLocked(block *vtypes.Block, hash common.Hash) *AcceptError {
	if s.cfg.CheckpointHeight == 0 || s.cfg.CheckpointHash.IsZero() {
		return nil
	}
	if block.Header.Height != s.cfg.CheckpointHeight {
		return nil
	}
	if hash != s.cfg.CheckpointHash {
		s.log.Error("checkpoint mismatch, this build cannot follow this chain", "height", block.Header.Height, "got", hash, "want", s.cfg.CheckpointHash)
		return newAcceptError(KindCheckpointMismatch, errCheckpointMismatch)
	}
	return nil
}

// isDivergentForkLocked reports whether an orphan's parent height already
// has a *different* hash on the main chain — i.e. this orphan is chasing a
// fork our sync path, not the parent-fetch path, should resolve.
func (s *State) isDivergentForkLocked(block *vtypes.Block) bool {
	parentHeight := block.Header.Height - 1
	mainHash, ok := s.hashAtHeightLocked(parentHeight)
	if !ok {
		return false
	}
	return mainHash != block.Header.ParentHash
}

func (s *State) hashAtHeightLocked(height uint64) (common.Hash, bool) {
	if height >= uint64(len(s.mainChain)) {
		return common.Hash{}, false
	}
	return s.mainChain[height], true
}

// validateTimeRulesLocked is step 4, matching consensus.rs's
// validate_time_rules: future-skew bound, then either the median-window
// check or a plain greater-than-parent comparison.
func (s *State) validateTimeRulesLocked(block, parent *vtypes.Block, now time.Time) *AcceptError {
	ts := block.Header.Timestamp
	if ts > now.Unix()+s.cfg.MaxFutureSecs {
		return newAcceptError(KindBadTime, errFutureTimestamp)
	}
	recent := s.recentTimestampsLocked(parent.Header.Height)
	if s.cfg.MedianWindow > 0 && len(recent) > 0 {
		if ts <= medianOf(recent) {
			return newAcceptError(KindBadTime, errTimestampNotGreater)
		}
		return nil
	}
	if ts <= parent.Header.Timestamp {
		return newAcceptError(KindBadTime, errTimestampNotGreater)
	}
	return nil
}

func medianOf(ts []int64) int64 {
	sorted := append([]int64(nil), ts...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1]/2 + sorted[n/2]/2
}

// validatePoWLocked is step 5: recompute visionx_hash over the sealed
// preimage and confirm it both equals the claimed digest and meets the
// target the header's difficulty implies.
func (s *State) validatePoWLocked(block *vtypes.Block) *AcceptError {
	epoch := block.Header.Epoch(s.cfg.EpochBlocks)
	dataset := s.datasets.forEpoch(epoch)
	digest := pow.Hash(block.Header.PowPreimage(), block.Header.Nonce, dataset)
	if digest != block.Header.PowHash {
		return newAcceptError(KindBadPoW, errBadPoW)
	}
	target := vtypes.TargetFromDifficulty(block.Header.Difficulty)
	if !vtypes.MeetsTarget(digest, target) {
		return newAcceptError(KindBadPoW, errBadPoW)
	}
	return nil
}

// replayStateAtLocked returns the balances/nonces a candidate block on top
// of parentHash would see: the live state directly if parentHash is the
// current tip, otherwise a replay from the genesis snapshot along
// parentHash's ancestor path.
func (s *State) replayStateAtLocked(parentHash common.Hash) (map[common.Address]*uint256.Int, map[common.Address]uint64, *AcceptError) {
	if parentHash == s.tipHashLocked() {
		b, n := s.cloneLiveStateLocked()
		return b, n, nil
	}
	balances := cloneBalanceMap(s.genesisBalances)
	nonces := cloneNonceMap(s.genesisNonces)
	for _, h := range s.ancestorPathLocked(parentHash) {
		blk, ok := s.blocks[h]
		if !ok {
			return nil, nil, newAcceptError(KindUnknownParent, errUnknownParent)
		}
		if err := applyTransactionsTo(balances, nonces, blk, nil); err != nil {
			return nil, nil, newAcceptError(KindBadState, errBadState)
		}
	}
	return balances, nonces, nil
}

// advanceTipLocked applies block directly to live state and extends the
// main chain by one, the fast path taken when block builds on the current
// tip.
func (s *State) advanceTipLocked(block *vtypes.Block, hash common.Hash) {
	rec := &undoRecord{
		Height:       block.Header.Height,
		BlockHash:    hash,
		Touched:      s.snapshotSendersLocked(block),
		BurnedDelta:  new(uint256.Int),
		Transactions: block.Transactions,
	}
	if err := applyTransactionsTo(s.balances, s.nonces, block, rec.BurnedDelta); err != nil {
		// Unreachable: the same application already succeeded against an
		// identical replay earlier in processLocked.
		s.log.Error("state application diverged from validation replay", "height", block.Header.Height, "err", err)
		return
	}
	if s.supplyBurned == nil {
		s.supplyBurned = new(uint256.Int)
	}
	s.supplyBurned.Add(s.supplyBurned, rec.BurnedDelta)

	if err := s.writeUndoLocked(rec); err != nil {
		s.log.Warn("undo log write failed", "height", block.Header.Height, "err", err)
	}

	s.mainChain = append(s.mainChain, hash)
	if s.db != nil {
		if buf, err := encodeBlock(block); err == nil {
			_ = s.db.Put(blockStorageKey(block.Header.Height), buf)
		}
	}
	if s.tracker != nil {
		s.tracker.RecordBlock(block.Header.Timestamp)
	}
	if s.pool != nil {
		for _, tx := range block.Transactions {
			s.pool.Remove(tx.Hash())
		}
	}
	s.log.Info("tip advanced", "height", block.Header.Height, "hash", hash, "txs", len(block.Transactions))
}

// placeSideBlockLocked records block as a known-but-not-canonical block and
// triggers a reorg when its branch now strictly outweighs the tip within
// the configured depth bound.
func (s *State) placeSideBlockLocked(block *vtypes.Block, hash common.Hash, work *uint256.Int, sourcePeer string, now time.Time) {
	tipWork := s.work[s.tipHashLocked()]
	if tipWork == nil {
		tipWork = new(uint256.Int)
	}
	if work.Cmp(tipWork) <= 0 {
		s.log.Debug("side block retained, insufficient work to reorg", "height", block.Header.Height, "hash", hash)
		return
	}

	depth, ok := s.reorgDepthLocked(hash)
	if !ok || depth > s.cfg.MaxReorgDepth {
		s.log.Warn("side block outweighs tip but reorg depth exceeds bound", "height", block.Header.Height, "hash", hash, "depth", depth)
		return
	}

	if err := s.reorgToLocked(hash); err != nil {
		s.log.Error("reorg failed, retaining previous tip", "height", block.Header.Height, "hash", hash, "err", err)
		return
	}
	s.drainOrphansLocked(hash, sourcePeer, now)
}
