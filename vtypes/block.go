package vtypes

import (
	"encoding/json"

	"vision-node/common"
)

// Block pairs a header with the transaction list it commits to via TxRoot.
type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// Hash is the block's identity: the blake3 hash of its sealed header bytes
// (PowHash and Nonce included, unlike PowPreimage).
func (b *Block) Hash() common.Hash {
	return Blake3Hash(b.canonicalHeaderBytes())
}

func (b *Block) canonicalHeaderBytes() []byte {
	type wire struct {
		ParentHash   common.Hash  `json:"parentHash"`
		Height       uint64       `json:"height"`
		Timestamp    int64        `json:"timestamp"`
		Difficulty   uint64       `json:"difficulty"`
		Nonce        uint64       `json:"nonce"`
		PowHash      common.Hash  `json:"powHash"`
		StateRoot    common.Hash  `json:"stateRoot"`
		TxRoot       common.Hash  `json:"txRoot"`
		ReceiptsRoot common.Hash  `json:"receiptsRoot"`
	}
	h := b.Header
	w := wire{h.ParentHash, h.Height, h.Timestamp, h.Difficulty, h.Nonce, h.PowHash, h.StateRoot, h.TxRoot, h.ReceiptsRoot}
	buf, err := json.Marshal(w)
	if err != nil {
		panic("vtypes: block hash marshal: " + err.Error())
	}
	return buf
}

// TxHashes returns the leaf hashes fed to MerkleRoot, in transaction order.
func (b *Block) TxHashes() []common.Hash {
	out := make([]common.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = tx.Hash()
	}
	return out
}

// RecomputeTxRoot fills Header.TxRoot from the current transaction list.
func (b *Block) RecomputeTxRoot() {
	b.Header.TxRoot = MerkleRoot(b.TxHashes())
}
