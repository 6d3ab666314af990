package pow

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"vision-node/common"
)

// Hash computes visionx_hash(preimage, nonce, dataset): an initial blake3
// digest over the preimage and nonce, then mixRounds of dataset-dependent
// reads folded back into a running blake3 state, each round's read address
// derived from the previous round's output so the result can't be computed
// without touching the dataset.
func Hash(preimage []byte, nonce uint64, dataset *Dataset) common.Hash {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)

	h := blake3.New(32, nil)
	h.Write(preimage)
	h.Write(nonceBytes[:])
	running := h.Sum(nil)

	for i := 0; i < mixRounds; i++ {
		addr := binary.BigEndian.Uint64(running[:8])
		chunk := dataset.read(addr)

		mixer := blake3.New(32, nil)
		mixer.Write(running)
		mixer.Write(chunk)
		running = mixer.Sum(nil)
	}

	return common.BytesToHash(running)
}
