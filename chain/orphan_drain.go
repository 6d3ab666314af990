package chain

import (
	"time"

	"vision-node/common"
)

// drainOrphansLocked re-processes every orphan whose parent is now known,
// cascading through any orphans those unblock in turn, bounded by
// OrphanCascadeCap per call so a long-buffered orphan tree can't stall a
// single tip advance indefinitely. Overflow is logged and left for the next
// triggering block.
func (s *State) drainOrphansLocked(parentHash common.Hash, sourcePeer string, now time.Time) {
	queue := []common.Hash{parentHash}
	processed := 0
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		kids := s.orphansForLocked(next)
		for _, kid := range kids {
			if processed >= s.cfg.OrphanCascadeCap {
				// Put back everything left unprocessed this round.
				s.orphans[next] = append(s.orphans[next], kid)
				continue
			}
			processed++
			kidHash := kid.Hash()
			// Hold kid's own orphans back while it is processed, so the
			// nested drain inside processLocked finds none and this loop
			// reaches them under the same cap.
			held := s.orphansForLocked(kidHash)
			err := s.processLocked(kid, sourcePeer, now)
			if len(held) > 0 {
				s.orphans[kidHash] = append(held, s.orphans[kidHash]...)
			}
			if err != nil {
				s.log.Debug("orphan drain rejected buffered block", "hash", kidHash, "height", kid.Header.Height, "err", err)
				continue
			}
			queue = append(queue, kidHash)
		}
	}
	if processed >= s.cfg.OrphanCascadeCap {
		s.log.Warn("orphan drain hit cascade cap, remaining orphans deferred", "cap", s.cfg.OrphanCascadeCap)
	}
}
