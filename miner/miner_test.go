package miner

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/mempool"
	"vision-node/pow"
	"vision-node/storage"
	"vision-node/vtypes"
)

func newTestRig(t *testing.T) (*chain.State, *mempool.Pool, *difficulty.Tracker) {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := chain.DefaultConfig()
	cfg.CheckpointHash = common.Hash{}
	cfg.EpochBlocks = 1024

	tracker := difficulty.NewTracker(difficulty.DefaultConfig(), 1)
	pool := mempool.New(mempool.Config{MaxPerTier: 64, TTLSeconds: 3600, KeepBlocks: 64, BlockTargetTxs: 10}, uint256.NewInt(0))
	state := chain.New(db, cfg, tracker, pool)

	genesis := &vtypes.Block{Header: &vtypes.BlockHeader{
		ParentHash: common.Hash{},
		Height:     0,
		Timestamp:  1_000,
		Difficulty: 1,
		BaseFee:    uint256.NewInt(0),
	}}
	genesis.RecomputeTxRoot()
	require.NoError(t, state.Bootstrap(genesis))

	return state, pool, tracker
}

func TestMinerMinesAndAdvancesChain(t *testing.T) {
	state, pool, tracker := newTestRig(t)
	engine := pow.NewEngine()
	defer engine.SetThreads(0)

	cfg := DefaultConfig()
	cfg.RecommitInterval = 30 * time.Millisecond
	cfg.EpochBlocks = 1024

	m := New(state, pool, tracker, engine, cfg, common.SystemClock{})
	m.Start()
	defer m.Stop()
	engine.SetThreads(2)

	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for state.Height() == 0 {
		select {
		case <-ticker.C:
		case <-deadline:
			t.Fatal("miner did not advance the chain in time")
		}
	}

	require.GreaterOrEqual(t, state.Height(), uint64(1))
}

func TestMinerIncludesMempoolTransaction(t *testing.T) {
	state, pool, tracker := newTestRig(t)
	engine := pow.NewEngine()
	defer engine.SetThreads(0)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	tx := &vtypes.Transaction{
		SenderPubKey: priv.PubKey().SerializeCompressed(),
		Nonce:        0,
		Module:       "bank",
		Method:       "noop",
		Tip:          uint256.NewInt(0),
		FeeLimit:     uint256.NewInt(0),
	}
	require.NoError(t, tx.Sign(priv))
	require.NoError(t, pool.Admit(tx, mempool.TierBulk, state, time.Now().Unix(), 0))

	cfg := DefaultConfig()
	cfg.RecommitInterval = 30 * time.Millisecond
	cfg.EpochBlocks = 1024

	m := New(state, pool, tracker, engine, cfg, common.SystemClock{})
	m.Start()
	defer m.Stop()
	engine.SetThreads(2)

	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for state.NonceOf(tx.Sender()) == 0 {
		select {
		case <-ticker.C:
		case <-deadline:
			t.Fatal("miner did not include the pending transaction in time")
		}
	}

	require.Equal(t, uint64(1), state.NonceOf(tx.Sender()))
}
