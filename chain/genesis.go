package chain

import (
	"vision-node/common"
	"vision-node/pow"
	"vision-node/vtypes"
)

// Bootstrap installs genesis as height 0 of an empty chain. It is a no-op if
// a main chain already exists (e.g. restored from storage). genesis is
// trusted by construction — its own PoW/time rules are not re-validated,
// mirroring the way every node's locked genesis is baked in rather than
// received over the wire.
func (s *State) Bootstrap(genesis *vtypes.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.mainChain) != 0 {
		return nil
	}

	if genesis.Header.Height != 0 || !genesis.Header.ParentHash.IsZero() {
		return newAcceptError(KindBadHeader, errBadHeader)
	}
	wantRoot := vtypes.MerkleRoot(genesis.TxHashes())
	if genesis.Header.TxRoot != wantRoot {
		return newAcceptError(KindBadMerkle, errBadMerkle)
	}

	hash := genesis.Hash()
	s.genesisHash = hash
	s.datasets = newDatasetCache(hash, pow.DatasetSize)

	s.blocks[hash] = genesis
	s.mainChain = append(s.mainChain, hash)
	s.work[hash] = vtypes.BlockWork(genesis.Header.Difficulty)
	s.seenBlocks.Add(hash, struct{}{})

	if s.cfg.CheckpointHeight == 0 {
		s.checkpointApplied = true
	}

	if err := s.applyTransactionsLocked(genesis); err != nil {
		return err
	}
	s.genesisBalances = cloneBalanceMap(s.balances)
	s.genesisNonces = cloneNonceMap(s.nonces)

	if s.tracker != nil {
		s.tracker.RecordBlock(genesis.Header.Timestamp)
	}

	s.log.Info("genesis applied", "hash", hash)
	return nil
}

// GenesisHash returns the locked genesis hash, or the zero hash before
// Bootstrap.
func (s *State) GenesisHash() common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genesisHash
}
