package chain

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vision-node/common"
	"vision-node/vtypes"
)

func TestBootstrapSeedsGenesisTip(t *testing.T) {
	s, genesis := newTestState(t)
	require.Equal(t, uint64(0), s.Height())
	require.Equal(t, genesis.Hash(), s.TipHash())
}

func TestApplyBlockAdvancesTip(t *testing.T) {
	s, genesis := newTestState(t)
	child := buildChild(t, s, genesis, 1, 10, emptyStateRoot)

	err := s.ApplyBlock(child, "peerA", time.Unix(child.Header.Timestamp, 0))
	require.Nil(t, err)
	require.Equal(t, uint64(1), s.Height())
	require.Equal(t, child.Hash(), s.TipHash())
}

func TestApplyBlockRejectsBadPoW(t *testing.T) {
	s, genesis := newTestState(t)
	child := buildChild(t, s, genesis, 1, 10, emptyStateRoot)
	child.Header.PowHash[0] ^= 0xFF

	err := s.ApplyBlock(child, "peerA", time.Unix(child.Header.Timestamp, 0))
	require.NotNil(t, err)
	require.Equal(t, KindBadPoW, err.Kind)
}

func TestApplyBlockRejectsStaleTimestamp(t *testing.T) {
	s, genesis := newTestState(t)
	child := buildChild(t, s, genesis, 1, 0, emptyStateRoot)
	child.Header.Timestamp = genesis.Header.Timestamp

	err := s.ApplyBlock(child, "peerA", time.Unix(child.Header.Timestamp, 0))
	require.NotNil(t, err)
	require.Equal(t, KindBadTime, err.Kind)
}

func TestApplyBlockRejectsFutureTimestamp(t *testing.T) {
	s, genesis := newTestState(t)
	child := buildChild(t, s, genesis, 1, 10, emptyStateRoot)

	past := time.Unix(child.Header.Timestamp-s.cfg.MaxFutureSecs-10, 0)
	err := s.ApplyBlock(child, "peerA", past)
	require.NotNil(t, err)
	require.Equal(t, KindBadTime, err.Kind)
}

func TestApplyBlockDedupsKnownHash(t *testing.T) {
	s, genesis := newTestState(t)
	child := buildChild(t, s, genesis, 1, 10, emptyStateRoot)
	now := time.Unix(child.Header.Timestamp, 0)

	require.Nil(t, s.ApplyBlock(child, "peerA", now))
	err := s.ApplyBlock(child, "peerA", now)
	require.NotNil(t, err)
	require.Equal(t, KindDuplicateBlock, err.Kind)
}

func TestApplyBlockRejectsCheckpointMismatch(t *testing.T) {
	s, genesis := newTestState(t)
	s.cfg.CheckpointHeight = 1
	s.cfg.CheckpointHash[0] = 0xAB

	child := buildChild(t, s, genesis, 1, 10, emptyStateRoot)
	err := s.ApplyBlock(child, "peerA", time.Unix(child.Header.Timestamp, 0))
	require.NotNil(t, err)
	require.Equal(t, KindCheckpointMismatch, err.Kind)
}

func TestApplyBlockAppliesTransactionStateTransition(t *testing.T) {
	s, genesis := newTestState(t)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()

	tx := &vtypes.Transaction{
		SenderPubKey: pub,
		Nonce:        0,
		Module:       "bank",
		Method:       "noop",
		Tip:          uint256.NewInt(0),
		FeeLimit:     uint256.NewInt(0),
	}
	require.NoError(t, tx.Sign(priv))
	sender := tx.Sender()

	expectedBalances := map[common.Address]*uint256.Int{sender: new(uint256.Int)}
	expectedNonces := map[common.Address]uint64{sender: 1}
	wantRoot := computeStateRoot(expectedBalances, expectedNonces)

	child := &vtypes.Block{
		Header: &vtypes.BlockHeader{
			ParentHash: genesis.Hash(),
			Height:     1,
			Timestamp:  genesis.Header.Timestamp + 10,
			Difficulty: 1,
			BaseFee:    uint256.NewInt(1),
			StateRoot:  wantRoot,
		},
		Transactions: []*vtypes.Transaction{tx},
	}
	child.RecomputeTxRoot()
	mineHeader(t, s, child.Header)

	err = s.ApplyBlock(child, "peerA", time.Unix(child.Header.Timestamp, 0))
	require.Nil(t, err)
	require.Equal(t, uint64(1), s.NonceOf(sender))
	require.True(t, s.BalanceOf(sender).IsZero())
}
