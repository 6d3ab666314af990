package chain

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/mempool"
	"vision-node/pow"
	"vision-node/storage"
	"vision-node/vtypes"
)

var emptyStateRoot = computeStateRoot(map[common.Address]*uint256.Int{}, map[common.Address]uint64{})

// newGenesis builds an unsigned, tx-free genesis block at height 0 whose
// state root matches the empty balances/nonces maps Bootstrap seeds.
func newGenesis(timestamp int64, difficultyScalar uint64) *vtypes.Block {
	h := &vtypes.BlockHeader{
		ParentHash: common.Hash{},
		Height:     0,
		Timestamp:  timestamp,
		Difficulty: difficultyScalar,
		BaseFee:    uint256.NewInt(1),
		StateRoot:  emptyStateRoot,
	}
	b := &vtypes.Block{Header: h}
	b.RecomputeTxRoot()
	return b
}

// newTestState wires a fresh in-memory State with genesis already bootstrapped.
func newTestState(t *testing.T) (*State, *vtypes.Block) {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := DefaultConfig()
	cfg.CheckpointHash = common.Hash{} // disabled unless a test opts in
	cfg.EpochBlocks = 1024

	tracker := difficulty.NewTracker(difficulty.DefaultConfig(), 1)
	pool := mempool.New(mempool.Config{MaxPerTier: 64, TTLSeconds: 3600, KeepBlocks: 64, BlockTargetTxs: 10}, uint256.NewInt(0))

	s := New(db, cfg, tracker, pool)
	genesis := newGenesis(1_000, 1)
	require.NoError(t, s.Bootstrap(genesis))
	return s, genesis
}

// mineHeader finds a nonce meeting h's target against the epoch dataset the
// state would itself verify against, mutating h's Nonce/PowHash in place.
func mineHeader(t *testing.T, s *State, h *vtypes.BlockHeader) {
	t.Helper()
	epoch := h.Epoch(s.cfg.EpochBlocks)
	dataset := s.datasets.forEpoch(epoch)
	target := vtypes.TargetFromDifficulty(h.Difficulty)
	for nonce := uint64(0); nonce < 100_000; nonce++ {
		digest := pow.Hash(h.PowPreimage(), nonce, dataset)
		if vtypes.MeetsTarget(digest, target) {
			h.Nonce = nonce
			h.PowHash = digest
			return
		}
	}
	t.Fatal("mineHeader: no nonce met target within budget")
}

// buildChild constructs, merkle-roots, and mines a tx-free child of parent
// at the given difficulty and timestamp offset; its state root is the
// stateRoot argument (callers pass emptyStateRoot, the root of a chain that
// has applied no transactions).
func buildChild(t *testing.T, s *State, parent *vtypes.Block, difficultyScalar uint64, tsOffset int64, stateRoot common.Hash) *vtypes.Block {
	t.Helper()
	h := &vtypes.BlockHeader{
		ParentHash: parent.Hash(),
		Height:     parent.Header.Height + 1,
		Timestamp:  parent.Header.Timestamp + tsOffset,
		Difficulty: difficultyScalar,
		BaseFee:    uint256.NewInt(1),
		StateRoot:  stateRoot,
	}
	b := &vtypes.Block{Header: h}
	b.RecomputeTxRoot()
	mineHeader(t, s, h)
	return b
}
