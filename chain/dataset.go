package chain

import (
	"encoding/binary"
	"sync"

	"vision-node/common"
	"vision-node/pow"
	"vision-node/vtypes"
)

// datasetCache recomputes visionx_hash during acceptance against the same
// epoch-indexed dataset the mining engine uses. It is independent of the
// engine's own dataset (acceptance must be able to verify blocks without a
// mining engine running at all) but derives the seed the same
// fork-independent way: blake3(genesis_hash || epoch), so every node
// building or verifying a given epoch's blocks lands on byte-identical
// dataset contents regardless of which fork produced them.
type datasetCache struct {
	mu      sync.Mutex
	genesis common.Hash
	size    uint64
	sets    map[uint64]*pow.Dataset
}

func newDatasetCache(genesis common.Hash, size uint64) *datasetCache {
	return &datasetCache{genesis: genesis, size: size, sets: make(map[uint64]*pow.Dataset)}
}

// forEpoch returns the dataset for epoch, building (and caching) it on
// first use. Epochs more than two behind the requested one are evicted.
func (c *datasetCache) forEpoch(epoch uint64) *pow.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.sets[epoch]; ok {
		return d
	}
	seed := epochSeed(c.genesis, epoch)
	d := pow.NewDataset(epoch, seed, c.size)
	c.sets[epoch] = d
	for e := range c.sets {
		if e+2 < epoch {
			delete(c.sets, e)
		}
	}
	return d
}

// EpochSeed exposes epochSeed for callers outside the package (the miner's
// job assembly needs the exact same seed derivation the acceptance pipeline
// verifies against).
func EpochSeed(genesis common.Hash, epoch uint64) common.Hash {
	return epochSeed(genesis, epoch)
}

// epochSeed derives epoch e's dataset seed from the locked genesis hash, so
// the seed is a pure function of (genesis, epoch) and never depends on
// which fork produced the blocks inside that epoch.
func epochSeed(genesis common.Hash, epoch uint64) common.Hash {
	var eb [8]byte
	binary.BigEndian.PutUint64(eb[:], epoch)
	buf := make([]byte, 0, len(genesis)+8)
	buf = append(buf, genesis[:]...)
	buf = append(buf, eb[:]...)
	return vtypes.Blake3Hash(buf)
}
