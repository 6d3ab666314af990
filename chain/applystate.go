package chain

import (
	"encoding/binary"
	"sort"

	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/vtypes"
)

// applyTransactionsTo is the generic state-transition function §4.2 step 8
// describes: "apply transfers and fees against a working copy of
// balances/nonces". Module/method/args are opaque to the core (§3), so the
// only state effect a transaction has here is the fee-limit amount debited
// from its sender (burned, in the EIP-1559 style the base-fee feedback
// already implies) and its nonce advancing by one. balances/nonces are
// mutated in place; burned accumulates the total fee debited across the
// block, for the live-apply path's supply counter.
func applyTransactionsTo(balances map[common.Address]*uint256.Int, nonces map[common.Address]uint64, block *vtypes.Block, burned *uint256.Int) error {
	for _, tx := range block.Transactions {
		sender := tx.Sender()
		if tx.Nonce != nonces[sender] {
			return errBadTxNonce
		}

		fee := tx.FeeLimit
		if fee == nil {
			fee = new(uint256.Int)
		}
		bal := balances[sender]
		if bal == nil {
			bal = new(uint256.Int)
		}
		if bal.Lt(fee) {
			return errBadState
		}
		balances[sender] = new(uint256.Int).Sub(bal, fee)
		nonces[sender] = nonces[sender] + 1
		if burned != nil {
			burned.Add(burned, fee)
		}
	}
	return nil
}

// applyTransactionsLocked applies block to the live state (s.balances,
// s.nonces) and the running burned-supply counter. Caller holds s.mu.
func (s *State) applyTransactionsLocked(block *vtypes.Block) *AcceptError {
	burned := new(uint256.Int)
	if err := applyTransactionsTo(s.balances, s.nonces, block, burned); err != nil {
		return newAcceptError(KindBadState, err)
	}
	if s.supplyBurned == nil {
		s.supplyBurned = new(uint256.Int)
	}
	s.supplyBurned.Add(s.supplyBurned, burned)
	return nil
}

func cloneBalanceMap(src map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(src))
	for k, v := range src {
		out[k] = new(uint256.Int).Set(v)
	}
	return out
}

func cloneNonceMap(src map[common.Address]uint64) map[common.Address]uint64 {
	out := make(map[common.Address]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// computeStateRoot is a deterministic commitment to a balances/nonces
// snapshot: blake3 over each address's (balance, nonce) tuple in sorted
// address order, so two nodes replaying the same transactions always reach
// the same root regardless of map iteration order.
func computeStateRoot(balances map[common.Address]*uint256.Int, nonces map[common.Address]uint64) common.Hash {
	addrs := make(map[common.Address]struct{}, len(balances)+len(nonces))
	for a := range balances {
		addrs[a] = struct{}{}
	}
	for a := range nonces {
		addrs[a] = struct{}{}
	}
	sorted := make([]common.Address, 0, len(addrs))
	for a := range addrs {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return string(sorted[i][:]) < string(sorted[j][:])
	})

	buf := make([]byte, 0, len(sorted)*(common.AddressLength+32+8))
	for _, a := range sorted {
		buf = append(buf, a[:]...)
		bal := balances[a]
		if bal == nil {
			bal = new(uint256.Int)
		}
		balBytes := bal.Bytes32()
		buf = append(buf, balBytes[:]...)
		var nb [8]byte
		binary.BigEndian.PutUint64(nb[:], nonces[a])
		buf = append(buf, nb[:]...)
	}
	return vtypes.Blake3Hash(buf)
}
