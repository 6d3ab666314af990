package mempool

import (
	"container/list"
	"time"

	"vision-node/common"
)

// SweepResult reports what a single sweep pass removed, for logging and the
// vision_mempool_removed_total / vision_mempool_sweep_last_ms style counters
// the original node exposes.
type SweepResult struct {
	Removed  int
	Duration time.Duration
}

// Sweep removes entries whose age exceeds cfg.TTLSeconds or whose
// enqueue-height is more than cfg.KeepBlocks below currentHeight, per
// §4.3 Sweeper. Intended to run on a periodic tick (default 60s).
func (p *Pool) Sweep(clock common.Clock, currentHeight uint64) SweepResult {
	start := clock.Now()
	now := clock.Unix()

	p.mu.Lock()
	removed := p.sweepDequeLocked(p.critical, now, currentHeight)
	removed += p.sweepDequeLocked(p.bulk, now, currentHeight)
	p.removedTotal += uint64(removed)
	p.mu.Unlock()

	res := SweepResult{Removed: removed, Duration: clock.Now().Sub(start)}
	if removed > 0 {
		p.log.Info("mempool sweep", "removed", removed, "durationMs", res.Duration.Milliseconds())
	}
	return res
}

func (p *Pool) sweepDequeLocked(deque *list.List, now int64, currentHeight uint64) int {
	removed := 0
	var next *list.Element
	for el := deque.Front(); el != nil; el = next {
		next = el.Next()
		e := el.Value.(*entry)

		expiredByAge := now-e.arrivalUnix > p.cfg.TTLSeconds
		expiredByHeight := currentHeight > e.enqueueHeight && currentHeight-e.enqueueHeight > p.cfg.KeepBlocks

		if expiredByAge || expiredByHeight {
			deque.Remove(el)
			delete(p.byHash, e.tx.Hash())
			removed++
		}
	}
	return removed
}
