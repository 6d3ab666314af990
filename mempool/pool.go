// Package mempool implements the two-tier pending-transaction pool: a
// critical deque (system transactions, reorg re-inserts) and a bulk deque
// (everything else), a shared seen-set, a TTL/height sweeper, persistence,
// and EIP-1559-style base-fee feedback.
package mempool

import (
	"container/list"
	"errors"
	"sync"

	"github.com/holiman/bloomfilter/v2"
	"github.com/holiman/uint256"

	"vision-node/common"
	"vision-node/internal/vlog"
	"vision-node/vtypes"
)

// Tier identifies which deque a transaction occupies.
type Tier int

const (
	TierCritical Tier = iota
	TierBulk
)

func (t Tier) String() string {
	if t == TierCritical {
		return "critical"
	}
	return "bulk"
}

var (
	ErrDuplicateTx   = errors.New("mempool: duplicate transaction")
	ErrBadSignature  = errors.New("mempool: bad transaction signature")
	ErrBadNonce      = errors.New("mempool: nonce not plausibly forward of current")
	ErrFeeBelowBase  = errors.New("mempool: fee below current base fee")
	ErrFull          = errors.New("mempool: tier is full")
)

// StateView is the minimal chain-state read surface admission needs: the
// sender's current nonce. Kept as an interface so mempool has
// no import-cycle dependency on the chain package.
type StateView interface {
	NonceOf(addr common.Address) uint64
}

// entry is the bookkeeping record kept alongside each pooled transaction.
type entry struct {
	tx           *vtypes.Transaction
	tier         Tier
	arrivalUnix  int64
	enqueueHeight uint64
	elem         *list.Element
}

// Config bounds pool capacity and the sweeper/fee parameters, matching the
// configuration table's mempool_max / mempool_ttl_secs / keep_blocks knobs.
type Config struct {
	MaxPerTier  int
	TTLSeconds  int64
	KeepBlocks  uint64
	BlockTargetTxs int
}

// Pool is the two-tier transaction pool. All three data structures
// (critical deque, bulk deque, seen-set) mutate under a single lock, per
// the concurrency model's mempool section.
type Pool struct {
	mu sync.Mutex

	cfg Config

	critical *list.List // of *entry
	bulk     *list.List // of *entry
	byHash   map[common.Hash]*entry

	seen *bloomfilter.Filter // fast negative pre-check ahead of byHash

	baseFee *uint256.Int

	removedTotal uint64
	log          *vlog.Logger
}

// New constructs an empty pool with the given capacity/TTL configuration
// and an initial base fee.
func New(cfg Config, initialBaseFee *uint256.Int) *Pool {
	seen, err := bloomfilter.NewOptimal(uint64(cfg.MaxPerTier*4+1024), 0.001)
	if err != nil {
		// NewOptimal only fails on a non-positive element count; cfg is
		// always positive in practice, but fall back to a fixed filter
		// rather than letting admission panic.
		seen, _ = bloomfilter.New(1<<20, 6)
	}
	return &Pool{
		cfg:      cfg,
		critical: list.New(),
		bulk:     list.New(),
		byHash:   make(map[common.Hash]*entry),
		seen:     seen,
		baseFee:  new(uint256.Int).Set(initialBaseFee),
		log:      vlog.NewContext("component", "mempool"),
	}
}

// hash64 adapts a common.Hash into the hash.Hash64 the bloom filter's API
// expects, the same small adapter go-ethereum's sync bloom filter uses
// around this library.
type hash64 uint64

func (h hash64) Write(p []byte) (int, error) { panic("hash64: Write unsupported") }
func (h hash64) Sum(b []byte) []byte         { panic("hash64: Sum unsupported") }
func (h hash64) Reset()                      {}
func (h hash64) Size() int                   { return 8 }
func (h hash64) BlockSize() int              { return 1 }
func (h hash64) Sum64() uint64               { return uint64(h) }

func bloomKey(h common.Hash) hash64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(h[i])
	}
	return hash64(v)
}

// Admit validates and inserts tx into tier, returning the admission error
// (if any) per §4.3 Admission: signature, forward nonce, fee floor, tier
// capacity, and duplicate-hash rejection.
func (p *Pool) Admit(tx *vtypes.Transaction, tier Tier, state StateView, now int64, height uint64) error {
	if err := tx.VerifySignature(); err != nil {
		return ErrBadSignature
	}

	h := tx.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen.Contains(bloomKey(h)) {
		if _, ok := p.byHash[h]; ok {
			return ErrDuplicateTx
		}
	}

	current := state.NonceOf(tx.Sender())
	if tx.Nonce < current {
		return ErrBadNonce
	}

	fee := tx.EffectiveFeePerGas(p.baseFee)
	if fee.Lt(p.baseFee) {
		return ErrFeeBelowBase
	}

	deque := p.deque(tier)
	if deque.Len() >= p.cfg.MaxPerTier {
		if tier == TierBulk {
			p.evictOldestLocked(TierBulk)
		} else {
			return ErrFull
		}
	}

	e := &entry{tx: tx, tier: tier, arrivalUnix: now, enqueueHeight: height}
	e.elem = deque.PushBack(e)
	p.byHash[h] = e
	p.seen.Add(bloomKey(h))
	return nil
}

func (p *Pool) deque(tier Tier) *list.List {
	if tier == TierCritical {
		return p.critical
	}
	return p.bulk
}

// evictOldestLocked drops the oldest bulk entry to make room under pressure.
// Critical never evicts bulk and is never itself auto-evicted; callers
// asking for space in the critical tier get ErrFull instead.
func (p *Pool) evictOldestLocked(tier Tier) {
	deque := p.deque(tier)
	front := deque.Front()
	if front == nil {
		return
	}
	e := front.Value.(*entry)
	deque.Remove(front)
	delete(p.byHash, e.tx.Hash())
}

// Remove drops hash from whichever tier holds it (used after a transaction
// is included in an applied block).
func (p *Pool) Remove(h common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byHash[h]
	if !ok {
		return
	}
	p.deque(e.tier).Remove(e.elem)
	delete(p.byHash, h)
}

// Contains reports whether hash is currently pooled in either tier.
func (p *Pool) Contains(h common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[h]
	return ok
}

// Len returns the combined size of both tiers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.critical.Len() + p.bulk.Len()
}

// SelectForBlock draws up to max transactions in tier order (critical
// first, then bulk), skipping any whose effective fee is below the
// configured floor, matching §4.3 Selection for block building.
func (p *Pool) SelectForBlock(max int, feeFloor *uint256.Int) []*vtypes.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*vtypes.Transaction, 0, max)
	for _, deque := range []*list.List{p.critical, p.bulk} {
		for el := deque.Front(); el != nil && len(out) < max; el = el.Next() {
			e := el.Value.(*entry)
			fee := e.tx.EffectiveFeePerGas(p.baseFee)
			if feeFloor != nil && fee.Lt(feeFloor) {
				continue
			}
			out = append(out, e.tx)
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

// BaseFee returns the pool's current base fee.
func (p *Pool) BaseFee() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.baseFee)
}

// RemovedTotal is the running count of sweeper-evicted transactions, for
// status reporting.
func (p *Pool) RemovedTotal() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removedTotal
}
