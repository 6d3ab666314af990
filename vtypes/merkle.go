package vtypes

import (
	"lukechampine.com/blake3"

	"vision-node/common"
)

// MerkleRoot computes the transaction root the same way block_builder.rs
// does: a binary tree of blake3 digests over the leaf hashes, duplicating
// the last leaf on an odd level instead of padding with zeroes.
func MerkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func hashPair(left, right common.Hash) common.Hash {
	h := blake3.New(32, nil)
	h.Write(left[:])
	h.Write(right[:])
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Blake3Hash hashes arbitrary bytes with the 32-byte blake3 digest used for
// transaction and block identity and the transaction signing digest.
func Blake3Hash(b []byte) common.Hash {
	sum := blake3.Sum256(b)
	return common.Hash(sum)
}
