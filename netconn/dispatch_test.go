package netconn

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/mempool"
	"vision-node/peer"
	"vision-node/storage"
	"vision-node/vtypes"

	"github.com/holiman/uint256"
)

func newDispatchRig(t *testing.T) (*chain.State, *mempool.Pool, *peer.Manager, *Dispatcher) {
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

	peers := peer.New(peer.DefaultConfig(), common.SystemClock{})
	return state, pool, peers, NewDispatcher(state, pool, peers)
}

func TestDispatcherHandlesPing(t *testing.T) {
	_, _, _, d := newDispatchRig(t)

	payload, err := json.Marshal(PingPayload{Timestamp: 7})
	require.NoError(t, err)

	reply, err := d.Handle("peerA", Envelope{Type: MsgPing, Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, MsgPong, reply.Type)
	require.Equal(t, PongPayload{Timestamp: 7}, reply.Payload)
}

func TestDispatcherHandlesPongRecordsSuccess(t *testing.T) {
	_, _, peers, d := newDispatchRig(t)

	payload, err := json.Marshal(PongPayload{Timestamp: 1})
	require.NoError(t, err)

	_, err = d.Handle("peerA", Envelope{Type: MsgPong, Payload: payload})
	require.NoError(t, err)

	rec := peers.Get("peerA")
	require.NotNil(t, rec)
	require.NotZero(t, rec.LastSuccess)
}

func TestDispatcherHandlesGetTip(t *testing.T) {
	state, _, _, d := newDispatchRig(t)

	reply, err := d.Handle("peerA", Envelope{Type: MsgGetTip})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, MsgTip, reply.Type)

	tip := reply.Payload.(TipPayload)
	require.Equal(t, state.Height(), tip.Height)
	require.NotEmpty(t, tip.Hash)
}

func TestDispatcherHandlesGetBlocksReturnsGenesis(t *testing.T) {
	_, _, _, d := newDispatchRig(t)

	payload, err := json.Marshal(GetBlocksPayload{StartHeight: 0, EndHeight: 0})
	require.NoError(t, err)

	reply, err := d.Handle("peerA", Envelope{Type: MsgGetBlocks, Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, MsgBlocks, reply.Type)

	blocks := reply.Payload.(BlocksPayload)
	require.Len(t, blocks.Blocks, 1)
	require.Equal(t, uint64(0), blocks.Blocks[0].Header.Height)
}

func TestDispatcherFullBlockWithBadPoWPenalizesSender(t *testing.T) {
	state, _, peers, d := newDispatchRig(t)

	genesis := state.BlockAtHeight(0)
	require.NotNil(t, genesis)

	bad := &vtypes.Block{Header: &vtypes.BlockHeader{
		ParentHash: genesis.Hash(),
		Height:     1,
		Timestamp:  time.Now().Unix(),
		Difficulty: genesis.Header.Difficulty,
		BaseFee:    uint256.NewInt(0),
		Nonce:      0,
	}}
	bad.RecomputeTxRoot()

	payload, err := json.Marshal(FullBlockPayload{Block: bad})
	require.NoError(t, err)

	_, err = d.Handle("peerA", Envelope{Type: MsgFullBlock, Payload: payload})
	require.NoError(t, err)

	rec := peers.Get("peerA")
	require.NotNil(t, rec)
	require.Greater(t, rec.Misbehavior, 0.0)
}

func TestDispatcherUnknownMessageTypeErrors(t *testing.T) {
	_, _, _, d := newDispatchRig(t)
	_, err := d.Handle("peerA", Envelope{Type: MessageType("bogus")})
	require.Error(t, err)
}

// TestDispatcherCheckpointMismatchRepliesDisconnectAndCloses exercises the
// fatal path: a block landing exactly on a configured checkpoint height with
// the wrong hash must score the sender, reply with a typed Disconnect, and
// tell the connection loop to close.
func TestDispatcherCheckpointMismatchRepliesDisconnectAndCloses(t *testing.T) {
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := chain.DefaultConfig()
	cfg.EpochBlocks = 1024
	cfg.CheckpointHeight = 1
	cfg.CheckpointHash[0] = 0xAB

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

	peers := peer.New(peer.DefaultConfig(), common.SystemClock{})
	d := NewDispatcher(state, pool, peers)

	mismatched := &vtypes.Block{Header: &vtypes.BlockHeader{
		ParentHash: genesis.Hash(),
		Height:     1,
		Timestamp:  time.Now().Unix(),
		Difficulty: 1,
		BaseFee:    uint256.NewInt(0),
	}}
	mismatched.RecomputeTxRoot()

	payload, err := json.Marshal(FullBlockPayload{Block: mismatched})
	require.NoError(t, err)

	reply, err := d.Handle("peerA", Envelope{Type: MsgFullBlock, Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, MsgDisconnect, reply.Type)
	require.True(t, reply.Close)

	rec := peers.Get("peerA")
	require.NotNil(t, rec)
	require.Greater(t, rec.Misbehavior, 0.0)
}

// TestDispatcherReceivedDisconnectClosesWithoutReply confirms an incoming
// Disconnect message itself signals the connection loop to close, rather
// than being treated as a no-op.
func TestDispatcherReceivedDisconnectClosesWithoutReply(t *testing.T) {
	_, _, _, d := newDispatchRig(t)

	payload, err := json.Marshal(DisconnectPayload{Reason: "shutting down"})
	require.NoError(t, err)

	reply, err := d.Handle("peerA", Envelope{Type: MsgDisconnect, Payload: payload})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Empty(t, reply.Type)
	require.True(t, reply.Close)
}
