package chain

import (
	"vision-node/common"
	"vision-node/vtypes"
)

// SimulateBlock replays parentHash's post-apply state and greedily applies
// candidates in order, dropping any transaction whose nonce or balance no
// longer checks out against the running simulation rather than failing
// outright. It returns the resulting state root and the subset that
// survived, in the order a block built from them should carry them — the
// read-only path a miner uses to assemble a candidate body before sealing
// it. Never mutates live state.
func (s *State) SimulateBlock(parentHash common.Hash, candidates []*vtypes.Transaction) (common.Hash, []*vtypes.Transaction) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances, nonces, err := s.replayStateAtLocked(parentHash)
	if err != nil {
		return common.Hash{}, nil
	}

	included := make([]*vtypes.Transaction, 0, len(candidates))
	probe := &vtypes.Block{Transactions: make([]*vtypes.Transaction, 1)}
	for _, tx := range candidates {
		probe.Transactions[0] = tx
		if err := applyTransactionsTo(balances, nonces, probe, nil); err != nil {
			continue
		}
		included = append(included, tx)
	}
	return computeStateRoot(balances, nonces), included
}
