package mempool

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vision-node/common"
)

func TestSweepRemovesExpiredByAge(t *testing.T) {
	cfg := defaultConfig()
	cfg.TTLSeconds = 900
	pool := New(cfg, uint256.NewInt(1))

	tx := newSignedTx(t, 0, 10)
	h := tx.Hash()
	e := &entry{tx: tx, tier: TierBulk, arrivalUnix: 1000, enqueueHeight: 1}
	pool.mu.Lock()
	e.elem = pool.bulk.PushBack(e)
	pool.byHash[h] = e
	pool.mu.Unlock()

	clock := common.NewManualClock(time.Unix(1000+901, 0))
	result := pool.Sweep(clock, 1)

	require.Equal(t, 1, result.Removed)
	require.False(t, pool.Contains(h))
	require.EqualValues(t, 1, pool.RemovedTotal())
}

func TestSweepRemovesExpiredByHeight(t *testing.T) {
	cfg := defaultConfig()
	cfg.KeepBlocks = 10
	cfg.TTLSeconds = 1_000_000
	pool := New(cfg, uint256.NewInt(1))

	tx := newSignedTx(t, 0, 10)
	h := tx.Hash()
	e := &entry{tx: tx, tier: TierBulk, arrivalUnix: 1000, enqueueHeight: 1}
	pool.mu.Lock()
	e.elem = pool.bulk.PushBack(e)
	pool.byHash[h] = e
	pool.mu.Unlock()

	clock := common.NewManualClock(time.Unix(1000, 0))
	result := pool.Sweep(clock, 100)

	require.Equal(t, 1, result.Removed)
	require.False(t, pool.Contains(h))
}

func TestSweepKeepsFreshEntries(t *testing.T) {
	pool := New(defaultConfig(), uint256.NewInt(1))
	tx := newSignedTx(t, 0, 10)
	h := tx.Hash()
	e := &entry{tx: tx, tier: TierBulk, arrivalUnix: 1000, enqueueHeight: 50}
	pool.mu.Lock()
	e.elem = pool.bulk.PushBack(e)
	pool.byHash[h] = e
	pool.mu.Unlock()

	clock := common.NewManualClock(time.Unix(1001, 0))
	result := pool.Sweep(clock, 51)

	require.Equal(t, 0, result.Removed)
	require.True(t, pool.Contains(h))
}
