// Package vtypes holds the wire and storage representation of blocks and
// transactions: header layout, canonical encoding for hashing/signing, the
// blake3 Merkle tree, and the PoW target/work arithmetic built on uint256.
package vtypes

import (
	"encoding/json"

	"github.com/holiman/uint256"

	"vision-node/common"
)

// BlockHeader is the §3 Data Model header: everything that participates in
// the PoW digest plus the roots committing to block contents.
type BlockHeader struct {
	ParentHash    common.Hash `json:"parentHash"`
	Height        uint64      `json:"height"`
	Timestamp     int64       `json:"timestamp"`
	Difficulty    uint64      `json:"difficulty"`
	Nonce         uint64      `json:"nonce"`
	PowHash       common.Hash `json:"powHash"`
	StateRoot     common.Hash `json:"stateRoot"`
	TxRoot        common.Hash `json:"txRoot"`
	ReceiptsRoot  common.Hash `json:"receiptsRoot"`
	DACommitment  *common.Hash `json:"daCommitment,omitempty"`
	BaseFee       *uint256.Int `json:"baseFee"`
}

// Copy returns a deep copy safe to mutate independently of h.
func (h *BlockHeader) Copy() *BlockHeader {
	cp := *h
	if h.DACommitment != nil {
		d := *h.DACommitment
		cp.DACommitment = &d
	}
	if h.BaseFee != nil {
		cp.BaseFee = new(uint256.Int).Set(h.BaseFee)
	}
	return &cp
}

// sealHeader is the JSON shape used for the PoW preimage: BlockHeader
// without its PowHash and Nonce fields, per §4.6 "Block header canonical
// form for PoW".
type sealHeader struct {
	ParentHash   common.Hash  `json:"parentHash"`
	Height       uint64       `json:"height"`
	Timestamp    int64        `json:"timestamp"`
	Difficulty   uint64       `json:"difficulty"`
	StateRoot    common.Hash  `json:"stateRoot"`
	TxRoot       common.Hash  `json:"txRoot"`
	ReceiptsRoot common.Hash  `json:"receiptsRoot"`
	DACommitment *common.Hash `json:"daCommitment,omitempty"`
	BaseFee      *uint256.Int `json:"baseFee"`
}

// PowPreimage returns the canonical bytes hashed by the PoW function: the
// header with its PowHash slot cleared and the nonce excluded (the nonce is
// supplied separately to visionx_hash, per §6).
func (h *BlockHeader) PowPreimage() []byte {
	s := sealHeader{
		ParentHash:   h.ParentHash,
		Height:       h.Height,
		Timestamp:    h.Timestamp,
		Difficulty:   h.Difficulty,
		StateRoot:    h.StateRoot,
		TxRoot:       h.TxRoot,
		ReceiptsRoot: h.ReceiptsRoot,
		DACommitment: h.DACommitment,
		BaseFee:      h.BaseFee,
	}
	b, err := json.Marshal(s)
	if err != nil {
		panic("vtypes: header preimage marshal: " + err.Error())
	}
	return b
}

// Epoch returns the PoW dataset epoch for this header's height.
func (h *BlockHeader) Epoch(epochBlocks uint64) uint64 {
	if epochBlocks == 0 {
		return 0
	}
	return h.Height / epochBlocks
}
