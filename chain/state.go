package chain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/difficulty"
	"vision-node/internal/vlog"
	"vision-node/mempool"
	"vision-node/storage"
	"vision-node/vtypes"
)

// State is the §3 Data Model "Chain state": the main-chain sequence, the
// side-block/orphan arena keyed by PoW digest, cumulative work, balances and
// nonces, and the bounded recent-hash caches. All mutation happens under mu,
// the node's single chain lock.
type State struct {
	mu sync.RWMutex

	db  storage.Database
	cfg Config

	mainChain []common.Hash // index i == height i
	blocks    map[common.Hash]*vtypes.Block
	work      map[common.Hash]*uint256.Int // cumulative work, keyed by every known block's hash

	orphans map[common.Hash][]*vtypes.Block // keyed by the missing parent hash

	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64

	genesisBalances map[common.Address]*uint256.Int
	genesisNonces   map[common.Address]uint64
	supplyBurned    *uint256.Int

	seenBlocks *lru.ARCCache // common.Hash -> struct{}, recently-seen block hashes
	seenTxs    *lru.ARCCache // common.Hash -> struct{}, txs included in any accepted block

	tracker *difficulty.Tracker
	pool    *mempool.Pool

	checkpointApplied bool

	genesisHash common.Hash
	datasets    *datasetCache

	log *vlog.Logger
}

// New constructs an empty State; Bootstrap must be called once before any
// block is applied.
func New(db storage.Database, cfg Config, tracker *difficulty.Tracker, pool *mempool.Pool) *State {
	seenBlocks, _ := lru.NewARC(cfg.SeenCacheSize)
	seenTxs, _ := lru.NewARC(cfg.SeenCacheSize)
	return &State{
		db:         db,
		cfg:        cfg,
		blocks:     make(map[common.Hash]*vtypes.Block),
		work:       make(map[common.Hash]*uint256.Int),
		orphans:    make(map[common.Hash][]*vtypes.Block),
		balances:   make(map[common.Address]*uint256.Int),
		nonces:     make(map[common.Address]uint64),
		seenBlocks: seenBlocks,
		seenTxs:    seenTxs,
		tracker:    tracker,
		pool:       pool,
		log:        vlog.NewContext("component", "chain"),
	}
}

// Tip returns the current main-chain head block and its height. Returns nil
// before Bootstrap.
func (s *State) Tip() (*vtypes.Block, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tipLocked()
}

func (s *State) tipLocked() (*vtypes.Block, uint64) {
	if len(s.mainChain) == 0 {
		return nil, 0
	}
	h := s.mainChain[len(s.mainChain)-1]
	return s.blocks[h], uint64(len(s.mainChain) - 1)
}

// TipHash returns the current main-chain head's PoW digest, or the zero
// hash before Bootstrap.
func (s *State) TipHash() common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.mainChain) == 0 {
		return common.Hash{}
	}
	return s.mainChain[len(s.mainChain)-1]
}

// TipWork returns the tip's cumulative work, or zero before Bootstrap.
func (s *State) TipWork() *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.mainChain) == 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(s.work[s.mainChain[len(s.mainChain)-1]])
}

// Height returns the current main-chain height (0 at genesis).
func (s *State) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.mainChain) == 0 {
		return 0
	}
	return uint64(len(s.mainChain) - 1)
}

// NonceOf implements mempool.StateView against the applied (main-chain)
// nonce map, the "current" nonce admission checks against.
func (s *State) NonceOf(addr common.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[addr]
}

// BalanceOf returns addr's applied balance, zero if never credited.
func (s *State) BalanceOf(addr common.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// IsKnown reports whether hash is a block already present in main chain or
// side storage (step 2's "known-hash dedup").
func (s *State) IsKnown(hash common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[hash]
	return ok
}

// BlockByHash returns a known block (main or side), or nil.
func (s *State) BlockByHash(hash common.Hash) *vtypes.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks[hash]
}

// BlockAtHeight returns the main-chain block at height, or nil if height is
// beyond the tip.
func (s *State) BlockAtHeight(height uint64) *vtypes.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if height >= uint64(len(s.mainChain)) {
		return nil
	}
	return s.blocks[s.mainChain[height]]
}

// HashAtHeight returns the main-chain hash at height and whether it exists.
func (s *State) HashAtHeight(height uint64) (common.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if height >= uint64(len(s.mainChain)) {
		return common.Hash{}, false
	}
	return s.mainChain[height], true
}

// CumulativeWorkOf returns the known cumulative work for hash, or nil.
func (s *State) CumulativeWorkOf(hash common.Hash) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.work[hash]
	if !ok {
		return nil
	}
	return new(uint256.Int).Set(w)
}

// recentTimestampsLocked returns up to MedianWindow timestamps ending at
// (and including) the block at height, for the time-rule median check on a
// candidate child at height+1. Caller holds at least a read lock.
func (s *State) recentTimestampsLocked(height uint64) []int64 {
	n := s.cfg.MedianWindow
	if n <= 0 || height+1 < uint64(1) {
		return nil
	}
	start := int64(height) - int64(n) + 1
	if start < 0 {
		start = 0
	}
	out := make([]int64, 0, n)
	for h := uint64(start); h <= height; h++ {
		if h >= uint64(len(s.mainChain)) {
			break
		}
		out = append(out, s.blocks[s.mainChain[h]].Header.Timestamp)
	}
	return out
}

// orphansFor returns and clears the orphan bucket keyed by parentHash.
func (s *State) orphansFor(parentHash common.Hash) []*vtypes.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	kids := s.orphans[parentHash]
	delete(s.orphans, parentHash)
	return kids
}

// tipHashLocked is TipHash without its own locking, for callers already
// holding s.mu.
func (s *State) tipHashLocked() common.Hash {
	if len(s.mainChain) == 0 {
		return common.Hash{}
	}
	return s.mainChain[len(s.mainChain)-1]
}

// cloneLiveStateLocked snapshots the live balances/nonces maps.
func (s *State) cloneLiveStateLocked() (map[common.Address]*uint256.Int, map[common.Address]uint64) {
	return cloneBalanceMap(s.balances), cloneNonceMap(s.nonces)
}

// ancestorPathLocked walks parent pointers from hash back to (but not
// including) genesis, returning the path in ascending height order. Every
// block it names must already be in s.blocks; this implementation never
// evicts a stored block, so the walk always completes (a retention
// simplification).
func (s *State) ancestorPathLocked(hash common.Hash) []common.Hash {
	var rev []common.Hash
	for hash != s.genesisHash && hash != (common.Hash{}) {
		rev = append(rev, hash)
		blk, ok := s.blocks[hash]
		if !ok {
			break
		}
		hash = blk.Header.ParentHash
	}
	path := make([]common.Hash, len(rev))
	for i, h := range rev {
		path[len(rev)-1-i] = h
	}
	return path
}

// orphansForLocked returns and clears the orphan bucket keyed by
// parentHash. Caller holds s.mu.
func (s *State) orphansForLocked(parentHash common.Hash) []*vtypes.Block {
	kids := s.orphans[parentHash]
	delete(s.orphans, parentHash)
	return kids
}

// enqueueOrphanLocked buffers block under its parent hash, bounding how
// many children a single parent may accumulate to resist memory exhaustion
// from a flood of siblings with a bogus shared parent. Caller holds s.mu.
func (s *State) enqueueOrphanLocked(block *vtypes.Block) {
	const maxOrphansPerParent = 32
	parent := block.Header.ParentHash
	kids := s.orphans[parent]
	if len(kids) >= maxOrphansPerParent {
		s.log.Warn("orphan pool full for parent, dropping", "parent", parent, "height", block.Header.Height)
		return
	}
	s.orphans[parent] = append(kids, block)
}
