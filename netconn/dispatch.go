package netconn

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vision-node/chain"
	"vision-node/common"
	"vision-node/internal/vlog"
	"vision-node/mempool"
	"vision-node/peer"
	"vision-node/vtypes"
)

// Dispatcher decodes one regular framed message at a time and routes it to
// the chain, mempool, or peer manager, returning zero or one reply envelope
// for the caller's connection loop to write back.
type Dispatcher struct {
	state   *chain.State
	pool    *mempool.Pool
	peers   *peer.Manager
	fetcher *ParentFetchLimiter
	log     *vlog.Logger
}

// NewDispatcher wires a Dispatcher against the node's shared components.
func NewDispatcher(state *chain.State, pool *mempool.Pool, peers *peer.Manager) *Dispatcher {
	return &Dispatcher{
		state:   state,
		pool:    pool,
		peers:   peers,
		fetcher: NewParentFetchLimiter(),
		log:     vlog.NewContext("component", "netconn"),
	}
}

// Reply is an outbound envelope the connection loop should write back to
// the same peer; a nil Reply means nothing to send. Close tells the
// connection loop to terminate after writing it (or immediately, if Type is
// empty) — set on a fatal condition such as a checkpoint mismatch or a
// received Disconnect.
type Reply struct {
	Type    MessageType
	Payload interface{}
	Close   bool
}

// Handle decodes and routes env, reporting the source peer's misbehavior to
// the peer manager when applicable.
func (d *Dispatcher) Handle(sourceNodeID string, env Envelope) (*Reply, error) {
	switch env.Type {
	case MsgPing:
		var p PingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return &Reply{Type: MsgPong, Payload: PongPayload{Timestamp: p.Timestamp}}, nil

	case MsgPong:
		if d.peers != nil {
			d.peers.RecordSuccess(sourceNodeID, 0)
		}
		return nil, nil

	case MsgTransaction:
		var p TransactionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Tx == nil {
			return nil, fmt.Errorf("netconn: transaction payload missing tx")
		}
		height := d.state.Height()
		if err := d.pool.Admit(p.Tx, mempool.TierBulk, d.state, time.Now().Unix(), height); err != nil {
			if d.peers != nil {
				d.peers.RecordMisbehavior(sourceNodeID, peer.MisbehaviorInvalidTx)
			}
		}
		return nil, nil

	case MsgFullBlock:
		var p FullBlockPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return d.handleBlock(sourceNodeID, p.Block)

	case MsgGetBlocks:
		var p GetBlocksPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return &Reply{Type: MsgBlocks, Payload: BlocksPayload{Blocks: d.blocksInRange(p.StartHeight, p.EndHeight)}}, nil

	case MsgGetTip:
		tip, height := d.state.Tip()
		hashStr := ""
		if tip != nil {
			hashStr = tip.Hash().Hex()
		}
		return &Reply{Type: MsgTip, Payload: TipPayload{Height: height, Hash: hashStr}}, nil

	case MsgGetBlock:
		var p GetBlockPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		hash, err := parseHash(p.Hash)
		if err != nil {
			return nil, err
		}
		block := d.state.BlockByHash(hash)
		return &Reply{Type: MsgBlock, Payload: BlockPayload{Block: block}}, nil

	case MsgGetHeaders:
		var p GetHeadersPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return &Reply{Type: MsgHeaders, Payload: HeadersPayload{Headers: d.headersFromLocator(p.LocatorHashes, p.Max)}}, nil

	case MsgPeerExchangeRequest:
		return &Reply{Type: MsgPeerExchangeResponse, Payload: PeerExchangeResponsePayload{Peers: d.samplePeers()}}, nil

	case MsgPeerExchangeResponse:
		var p PeerExchangeResponsePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		for _, pi := range diversityFilter(p.Peers, MaxPeerExchange) {
			d.peers.Upsert(pi.NodeID)
		}
		return nil, nil

	case MsgPeerGossip:
		var p PeerGossipPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Peer.NodeID != "" {
			d.peers.Upsert(p.Peer.NodeID)
		}
		return nil, nil

	case MsgDisconnect:
		var p DisconnectPayload
		_ = json.Unmarshal(env.Payload, &p)
		d.log.Debug("peer requested disconnect", "peer", sourceNodeID, "reason", p.Reason)
		return &Reply{Close: true}, nil

	default:
		return nil, fmt.Errorf("netconn: unknown message type %q", env.Type)
	}
}

// handleBlock applies an incoming block to the chain and penalizes the
// source for anything worse than an orphan or a duplicate. For an orphan it
// only checks the parent hash against the per-peer ParentFetchLimiter and
// logs it; no parent request is sent to the peer. A checkpoint mismatch is
// fatal: it scores the peer, replies with a typed Disconnect, and signals
// the connection loop to close.
func (d *Dispatcher) handleBlock(sourceNodeID string, block *vtypes.Block) (*Reply, error) {
	if block == nil {
		return nil, fmt.Errorf("netconn: full_block payload missing block")
	}
	acceptErr := d.state.ApplyBlock(block, sourceNodeID, time.Now())
	if acceptErr == nil {
		return nil, nil
	}
	if d.peers == nil {
		return nil, nil
	}
	switch acceptErr.Kind {
	case chain.KindUnknownParent:
		if d.fetcher.Allow(sourceNodeID, block.Header.ParentHash) {
			d.log.Debug("requesting missing parent", "peer", sourceNodeID, "parent", block.Header.ParentHash)
		}
	case chain.KindDuplicateBlock:
		// not misbehavior, just redundant relay
	case chain.KindCheckpointMismatch:
		d.peers.RecordMisbehavior(sourceNodeID, peer.MisbehaviorWrongChain)
		return &Reply{
			Type:    MsgDisconnect,
			Payload: DisconnectPayload{Reason: "checkpoint mismatch"},
			Close:   true,
		}, nil
	case chain.KindBadPoW, chain.KindBadMerkle, chain.KindBadSignature, chain.KindBadNonce, chain.KindBadState, chain.KindBadHeader:
		d.peers.RecordMisbehavior(sourceNodeID, peer.MisbehaviorInvalidBlock)
	case chain.KindBadTime:
		d.peers.RecordMisbehavior(sourceNodeID, peer.MisbehaviorSpam)
	}
	return nil, nil
}

func (d *Dispatcher) blocksInRange(start, end uint64) []*vtypes.Block {
	if end < start {
		return nil
	}
	if end-start+1 > MaxBlocksPerResponse {
		end = start + MaxBlocksPerResponse - 1
	}
	blocks := make([]*vtypes.Block, 0, end-start+1)
	for h := start; h <= end; h++ {
		b := d.state.BlockAtHeight(h)
		if b == nil {
			break
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func (d *Dispatcher) headersFromLocator(locator []string, max uint32) []*vtypes.BlockHeader {
	if max == 0 || max > MaxBlocksPerResponse {
		max = MaxBlocksPerResponse
	}
	var start uint64
	for _, h := range locator {
		hash, err := parseHash(h)
		if err != nil {
			continue
		}
		if b := d.state.BlockByHash(hash); b != nil {
			start = b.Header.Height + 1
			break
		}
	}
	headers := make([]*vtypes.BlockHeader, 0, max)
	for h := start; uint32(len(headers)) < max; h++ {
		b := d.state.BlockAtHeight(h)
		if b == nil {
			break
		}
		headers = append(headers, b.Header)
	}
	return headers
}

// samplePeers returns up to MaxPeerExchange known peer records as exchange
// entries.
func (d *Dispatcher) samplePeers() []PeerInfo {
	hot := d.peers.HotPeers()
	out := make([]PeerInfo, 0, len(hot))
	for _, r := range hot {
		if len(out) >= MaxPeerExchange {
			break
		}
		out = append(out, PeerInfo{NodeID: r.NodeID, Address: r.IP, Port: r.Port})
	}
	return out
}

func parseHash(s string) (common.Hash, error) {
	var h common.Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("netconn: hash %q has wrong length", s)
	}
	copy(h[:], b)
	return h, nil
}
