// Package netconn implements wire framing, the handshake, message dispatch,
// and the outbound connection maintainer: the node's only socket-facing
// code. Everything it decodes is handed to chain, mempool, and peer; it
// carries no consensus or scoring logic of its own.
package netconn

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds a regular framed message's JSON payload.
const MaxMessageSize = 100 * 1024 * 1024

// MessageType tags the JSON envelope's payload so the dispatcher can decode
// it into the right concrete type without a type switch over raw bytes.
type MessageType string

const (
	MsgPing                 MessageType = "ping"
	MsgPong                 MessageType = "pong"
	MsgTransaction          MessageType = "transaction"
	MsgFullBlock            MessageType = "full_block"
	MsgCompactBlock         MessageType = "compact_block"
	MsgGetBlocks            MessageType = "get_blocks"
	MsgBlocks               MessageType = "blocks"
	MsgGetBlockHash         MessageType = "get_block_hash"
	MsgBlockHash            MessageType = "block_hash"
	MsgGetTip               MessageType = "get_tip"
	MsgTip                  MessageType = "tip"
	MsgGetHeaders           MessageType = "get_headers"
	MsgHeaders              MessageType = "headers"
	MsgGetBlock             MessageType = "get_block"
	MsgBlock                MessageType = "block"
	MsgPeerExchangeRequest  MessageType = "peer_exchange_request"
	MsgPeerExchangeResponse MessageType = "peer_exchange_response"
	MsgPeerGossip           MessageType = "peer_gossip"
	MsgDisconnect           MessageType = "disconnect"
)

// Envelope is the on-wire shape of every regular (post-handshake) message:
// a type tag plus its raw JSON payload, decoded lazily once the dispatcher
// knows which concrete struct to target.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var errMessageTooLarge = errors.New("netconn: message exceeds the configured size cap")

// WriteMessage frames payload as type/JSON and writes a 4-byte big-endian
// length prefix ahead of it.
func WriteMessage(w io.Writer, typ MessageType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{Type: typ, Payload: body}
	framed, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if len(framed) > MaxMessageSize {
		return errMessageTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(framed)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(framed)
	return err
}

// ReadMessage reads one 4-byte-length-prefixed envelope and returns it
// undecoded; the caller dispatches on Type.
func ReadMessage(r io.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxMessageSize {
		return Envelope{}, fmt.Errorf("netconn: framed message of %d bytes exceeds cap: %w", n, errMessageTooLarge)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// PingPayload/PongPayload carry a keepalive timestamp.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// GetBlocksPayload requests a bounded height range; the responder clamps it
// to MaxBlocksPerResponse.
type GetBlocksPayload struct {
	StartHeight uint64 `json:"startHeight"`
	EndHeight   uint64 `json:"endHeight"`
}

// GetHeadersPayload requests headers from a block-locator list, the way a
// syncing peer walks backward from its own tip to find a common ancestor.
type GetHeadersPayload struct {
	LocatorHashes []string `json:"locatorHashes"`
	Max           uint32   `json:"max"`
}

// GetBlockPayload requests a single block by hash.
type GetBlockPayload struct {
	Hash string `json:"hash"`
}

// TipPayload reports a peer's current chain height and tip hash.
type TipPayload struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// DisconnectPayload carries a human-readable reason for a clean close.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// PeerInfo is one routable endpoint exchanged during peer discovery.
type PeerInfo struct {
	NodeID  string `json:"nodeId"`
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// PeerExchangeResponsePayload carries up to MaxPeerExchange entries.
type PeerExchangeResponsePayload struct {
	Peers []PeerInfo `json:"peers"`
}

// PeerGossipPayload propagates a single freshly learned peer.
type PeerGossipPayload struct {
	Peer PeerInfo `json:"peer"`
}

// MaxBlocksPerResponse and MaxPeerExchange bound bulk response sizes.
const (
	MaxBlocksPerResponse = 100
	MaxPeerExchange      = 100
)
