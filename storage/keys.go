package storage

import "encoding/binary"

// Key prefixes, exactly as laid out in the storage layout: a byte-oriented
// KV keyed by a short ASCII prefix plus a type-specific suffix.
var (
	prefixBalance    = []byte("bal:")
	prefixNonce      = []byte("nonce:")
	prefixBlock      = []byte("blk:")
	prefixPeer       = []byte("peer:")
	prefixReceipt    = []byte("rcpt:")
	prefixUndo       = []byte("meta:undo:")
	prefixMempoolTx  = []byte("mempool:tx:")
	prefixSupply     = []byte("supply:")
	keyMetaHeight    = []byte("meta:height")
	keyMetaGameMaster = []byte("meta:gm:")
	keyMempoolMeta   = []byte("mempool:meta")
)

func BalanceKey(addr []byte) []byte { return append(append([]byte{}, prefixBalance...), addr...) }
func NonceKey(addr []byte) []byte   { return append(append([]byte{}, prefixNonce...), addr...) }

func BlockKey(height uint64) []byte {
	k := make([]byte, len(prefixBlock)+8)
	copy(k, prefixBlock)
	binary.BigEndian.PutUint64(k[len(prefixBlock):], height)
	return k
}

func PeerKey(endpoint string) []byte {
	return append(append([]byte{}, prefixPeer...), []byte(endpoint)...)
}

func ReceiptKey(txHashHex string) []byte {
	return append(append([]byte{}, prefixReceipt...), []byte(txHashHex)...)
}

func UndoKey(height uint64) []byte {
	k := make([]byte, len(prefixUndo)+8)
	copy(k, prefixUndo)
	binary.BigEndian.PutUint64(k[len(prefixUndo):], height)
	return k
}

func MempoolTxKey(txHash []byte) []byte {
	return append(append([]byte{}, prefixMempoolTx...), txHash...)
}

func SupplyKey(name string) []byte {
	return append(append([]byte{}, prefixSupply...), []byte(name)...)
}

func MetaHeightKey() []byte      { return keyMetaHeight }
func MetaGameMasterKey() []byte  { return keyMetaGameMaster }
func MempoolMetaKey() []byte     { return keyMempoolMeta }

func MempoolTxPrefix() []byte { return prefixMempoolTx }
func BlockPrefix() []byte     { return prefixBlock }

// PutUint64BE / Uint64BE are the canonical big-endian counters used for
// balances' nonce fields and the tip-height marker.
func PutUint64BE(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func Uint64BE(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
