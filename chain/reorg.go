package chain

import (
	"errors"

	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/mempool"
	"vision-node/vtypes"
)

var errNoCommonAncestor = errors.New("chain: no common ancestor with current main chain")

// directStateView is a lock-free mempool.StateView used only while s.mu is
// already held (reorg's mempool re-insertion happens inside ApplyBlock's
// critical section, where calling back into State.NonceOf would deadlock
// on the non-reentrant chain lock).
type directStateView map[common.Address]uint64

func (v directStateView) NonceOf(addr common.Address) uint64 { return v[addr] }

// fullPathLocked returns the full ascending-height path from genesis
// through hash, genesis included at index 0.
func (s *State) fullPathLocked(hash common.Hash) []common.Hash {
	path := append([]common.Hash{s.genesisHash}, s.ancestorPathLocked(hash)...)
	return path
}

// forkPointLocked finds the highest height at which candidatePath and the
// current main chain agree, the lowest common ancestor a reorg walks back
// to.
func (s *State) forkPointLocked(candidatePath []common.Hash) (uint64, bool) {
	max := len(candidatePath)
	if len(s.mainChain) < max {
		max = len(s.mainChain)
	}
	fork := -1
	for i := 0; i < max; i++ {
		if s.mainChain[i] == candidatePath[i] {
			fork = i
		} else {
			break
		}
	}
	if fork < 0 {
		return 0, false
	}
	return uint64(fork), true
}

// reorgDepthLocked returns how many main-chain blocks a reorg to hash would
// replace: the current tip height minus the fork height.
func (s *State) reorgDepthLocked(hash common.Hash) (uint64, bool) {
	fork, ok := s.forkPointLocked(s.fullPathLocked(hash))
	if !ok {
		return 0, false
	}
	tipHeight := uint64(len(s.mainChain) - 1)
	if fork > tipHeight {
		return 0, true
	}
	return tipHeight - fork, true
}

// reorgToLocked switches the main chain to the branch ending at newTip:
// rolls the live state back to the fork point using undo logs (re-inserting
// each reverted block's transactions into the bulk mempool tier if they're
// still valid against the resulting state), then walks the new branch
// forward applying each block's transactions, matching §4.2's "re-run
// steps 4-8" rule — steps 4-7 already passed when these blocks were first
// validated as side blocks, so only step 8's application is repeated here.
func (s *State) reorgToLocked(newTip common.Hash) error {
	path := s.fullPathLocked(newTip)
	fork, ok := s.forkPointLocked(path)
	if !ok {
		return errNoCommonAncestor
	}

	// Snapshot everything reorgToLocked is about to mutate so any failure
	// on the forward walk can restore the original chain intact instead of
	// leaving mainChain/balances/nonces half-migrated.
	savedMainChain := append([]common.Hash(nil), s.mainChain...)
	savedBalances, savedNonces := s.cloneLiveStateLocked()
	var savedBurned *uint256.Int
	if s.supplyBurned != nil {
		savedBurned = new(uint256.Int).Set(s.supplyBurned)
	}
	restore := func() {
		s.mainChain = savedMainChain
		s.balances = savedBalances
		s.nonces = savedNonces
		s.supplyBurned = savedBurned
	}

	tipHeight := uint64(len(s.mainChain) - 1)
	var reinsert []txSource
	for h := tipHeight; h > fork; h-- {
		rec, err := s.readUndoLocked(h)
		if err != nil {
			restore()
			return err
		}
		txs := s.undoBlockLocked(rec)
		reinsert = append(reinsert, txSource{txs: txs, height: h})
	}
	s.mainChain = s.mainChain[:fork+1]

	for i := fork + 1; i < uint64(len(path)); i++ {
		hash := path[i]
		block, ok := s.blocks[hash]
		if !ok {
			restore()
			return errUnknownParent
		}
		rec := &undoRecord{
			Height:       block.Header.Height,
			BlockHash:    hash,
			Touched:      s.snapshotSendersLocked(block),
			BurnedDelta:  new(uint256.Int),
			Transactions: block.Transactions,
		}
		if err := applyTransactionsTo(s.balances, s.nonces, block, rec.BurnedDelta); err != nil {
			restore()
			return err
		}
		if s.supplyBurned == nil {
			s.supplyBurned = new(uint256.Int)
		}
		s.supplyBurned.Add(s.supplyBurned, rec.BurnedDelta)
		if err := s.writeUndoLocked(rec); err != nil {
			s.log.Warn("undo log write failed during reorg", "height", block.Header.Height, "err", err)
		}
		s.mainChain = append(s.mainChain, hash)
		if s.tracker != nil {
			s.tracker.RecordBlock(block.Header.Timestamp)
		}
		if s.pool != nil {
			for _, tx := range block.Transactions {
				s.pool.Remove(tx.Hash())
			}
		}
	}

	// Persist the new branch under blk: and drop heights past the new tip,
	// so LoadFromStorage replays this chain rather than the old one.
	if s.db != nil {
		for h := fork + 1; h < uint64(len(s.mainChain)); h++ {
			if buf, err := encodeBlock(s.blocks[s.mainChain[h]]); err == nil {
				_ = s.db.Put(blockStorageKey(h), buf)
			}
		}
		for h := uint64(len(s.mainChain)); h <= tipHeight; h++ {
			_ = s.db.Delete(blockStorageKey(h))
		}
	}

	view := make(directStateView, len(s.nonces))
	for a, n := range s.nonces {
		view[a] = n
	}
	now := int64(0)
	if len(s.mainChain) > 0 {
		now = s.blocks[s.mainChain[len(s.mainChain)-1]].Header.Timestamp
	}
	for _, src := range reinsert {
		for _, tx := range src.txs {
			if s.pool == nil {
				continue
			}
			if err := s.pool.Admit(tx, mempool.TierBulk, view, now, uint64(len(s.mainChain)-1)); err != nil {
				s.log.Debug("reverted transaction not re-admitted", "tx", tx.Hash(), "err", err)
			}
		}
	}

	s.log.Info("reorg complete", "newTip", newTip, "forkHeight", fork, "newHeight", len(s.mainChain)-1)
	return nil
}

type txSource struct {
	txs    []*vtypes.Transaction
	height uint64
}
