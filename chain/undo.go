package chain

import (
	"encoding/json"

	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/storage"
	"vision-node/vtypes"
)

// addressDelta is the pre-image of one sender's balance/nonce immediately
// before a block's transactions were applied, the minimal information
// needed to undo that block.
type addressDelta struct {
	Addr        common.Address `json:"addr"`
	PrevBalance *uint256.Int   `json:"prevBalance"`
	PrevNonce   uint64         `json:"prevNonce"`
}

// undoRecord lets a reorg roll the live state back to the block below
// BlockHash, and lets the mempool recover any transactions that blck
// contained so they can be re-admitted if still valid, per §4.2's "re-insert
// reverted txs into bulk mempool" rule.
type undoRecord struct {
	Height       uint64              `json:"height"`
	BlockHash    common.Hash         `json:"blockHash"`
	Touched      []addressDelta      `json:"touched"`
	BurnedDelta  *uint256.Int        `json:"burnedDelta"`
	Transactions []*vtypes.Transaction `json:"transactions"`
}

// snapshotSendersLocked captures the pre-apply balance/nonce for every
// sender appearing in block, against the live maps. Caller holds s.mu.
func (s *State) snapshotSendersLocked(block *vtypes.Block) []addressDelta {
	seen := make(map[common.Address]bool)
	out := make([]addressDelta, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		addr := tx.Sender()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		bal := s.balances[addr]
		if bal == nil {
			bal = new(uint256.Int)
		}
		out = append(out, addressDelta{
			Addr:        addr,
			PrevBalance: new(uint256.Int).Set(bal),
			PrevNonce:   s.nonces[addr],
		})
	}
	return out
}

// writeUndoLocked persists rec under meta:undo:<height>. Caller holds s.mu.
func (s *State) writeUndoLocked(rec *undoRecord) error {
	if s.db == nil {
		return nil
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put(storage.UndoKey(rec.Height), buf)
}

// readUndoLocked loads the undo record written for height. Caller holds
// s.mu.
func (s *State) readUndoLocked(height uint64) (*undoRecord, error) {
	if s.db == nil {
		return nil, storage.ErrNotFound
	}
	buf, err := s.db.Get(storage.UndoKey(height))
	if err != nil {
		return nil, err
	}
	var rec undoRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// undoBlockLocked reverts the live state to rec's pre-apply snapshot and
// returns the transactions that were in the undone block, for mempool
// re-insertion. Caller holds s.mu.
func (s *State) undoBlockLocked(rec *undoRecord) []*vtypes.Transaction {
	for _, d := range rec.Touched {
		s.balances[d.Addr] = d.PrevBalance
		s.nonces[d.Addr] = d.PrevNonce
	}
	if s.supplyBurned != nil && rec.BurnedDelta != nil {
		s.supplyBurned.Sub(s.supplyBurned, rec.BurnedDelta)
	}
	return rec.Transactions
}
