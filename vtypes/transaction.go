package vtypes

import (
	"encoding/json"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/holiman/uint256"

	"vision-node/common"
)

// FeeCaps carries the EIP-1559-style optional fee parameters §5 mempool
// base-fee feedback expects a transaction to be able to supply.
type FeeCaps struct {
	MaxFeePerGas         *uint256.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *uint256.Int `json:"maxPriorityFeePerGas,omitempty"`
}

// Transaction is the §3 Data Model transaction: a module/method/args call
// with a tip and a fee limit, signed by the sender's secp256k1 key.
type Transaction struct {
	SenderPubKey []byte       `json:"senderPubKey"`
	Nonce        uint64       `json:"nonce"`
	AccessList   []common.Address `json:"accessList,omitempty"`
	Module       string       `json:"module"`
	Method       string       `json:"method"`
	Args         json.RawMessage `json:"args"`
	Tip          *uint256.Int `json:"tip"`
	FeeLimit     *uint256.Int `json:"feeLimit"`
	FeeCaps      *FeeCaps     `json:"feeCaps,omitempty"`
	Signature    []byte       `json:"signature,omitempty"`
}

// signingBody is Transaction with Signature cleared, the canonical bytes
// that are both signed and hashed for identity.
type signingBody struct {
	SenderPubKey []byte           `json:"senderPubKey"`
	Nonce        uint64           `json:"nonce"`
	AccessList   []common.Address `json:"accessList,omitempty"`
	Module       string           `json:"module"`
	Method       string           `json:"method"`
	Args         json.RawMessage  `json:"args"`
	Tip          *uint256.Int     `json:"tip"`
	FeeLimit     *uint256.Int     `json:"feeLimit"`
	FeeCaps      *FeeCaps         `json:"feeCaps,omitempty"`
}

// SigningBytes returns the canonical serialization signed by Sign and
// checked by Verify: identical to the wire form but with Signature cleared.
func (tx *Transaction) SigningBytes() []byte {
	b, err := json.Marshal(signingBody{
		SenderPubKey: tx.SenderPubKey,
		Nonce:        tx.Nonce,
		AccessList:   tx.AccessList,
		Module:       tx.Module,
		Method:       tx.Method,
		Args:         tx.Args,
		Tip:          tx.Tip,
		FeeLimit:     tx.FeeLimit,
		FeeCaps:      tx.FeeCaps,
	})
	if err != nil {
		panic("vtypes: transaction signing bytes marshal: " + err.Error())
	}
	return b
}

// Hash returns the transaction's identity hash, blake3 over the signed
// (non-signature) canonical bytes plus the signature itself, so two
// otherwise-identical signatures over the same body never collide in the
// mempool's seen set.
func (tx *Transaction) Hash() common.Hash {
	body := tx.SigningBytes()
	buf := make([]byte, 0, len(body)+len(tx.Signature))
	buf = append(buf, body...)
	buf = append(buf, tx.Signature...)
	return Blake3Hash(buf)
}

// Sign fills Signature with a secp256k1 signature over SigningBytes,
// hashed once more with blake3 since btcec signs a fixed-size digest.
func (tx *Transaction) Sign(priv *btcec.PrivateKey) error {
	digest := Blake3Hash(tx.SigningBytes())
	sig := ecdsa.Sign(priv, digest[:])
	tx.Signature = sig.Serialize()
	return nil
}

// VerifySignature checks Signature against SenderPubKey over SigningBytes.
func (tx *Transaction) VerifySignature() error {
	if len(tx.Signature) == 0 {
		return errors.New("vtypes: transaction has no signature")
	}
	pub, err := btcec.ParsePubKey(tx.SenderPubKey)
	if err != nil {
		return err
	}
	sig, err := ecdsa.ParseDERSignature(tx.Signature)
	if err != nil {
		return err
	}
	digest := Blake3Hash(tx.SigningBytes())
	if !sig.Verify(digest[:], pub) {
		return errors.New("vtypes: transaction signature does not verify")
	}
	return nil
}

// Sender derives the address the transaction was signed by, the low 20
// bytes of the blake3 hash of the uncompressed public key.
func (tx *Transaction) Sender() common.Address {
	h := Blake3Hash(tx.SenderPubKey)
	return common.BytesToAddress(h[len(h)-common.AddressLength:])
}

// EffectiveFeePerGas returns the fee a block proposer would realize for
// including tx against the current base fee, clamped by FeeCaps when set.
func (tx *Transaction) EffectiveFeePerGas(baseFee *uint256.Int) *uint256.Int {
	if tx.FeeCaps == nil || tx.FeeCaps.MaxFeePerGas == nil {
		return new(uint256.Int).Add(baseFee, tx.Tip)
	}
	tipCap := tx.Tip
	if tx.FeeCaps.MaxPriorityFeePerGas != nil && tx.FeeCaps.MaxPriorityFeePerGas.Lt(tipCap) {
		tipCap = tx.FeeCaps.MaxPriorityFeePerGas
	}
	want := new(uint256.Int).Add(baseFee, tipCap)
	if want.Gt(tx.FeeCaps.MaxFeePerGas) {
		return tx.FeeCaps.MaxFeePerGas
	}
	return want
}
