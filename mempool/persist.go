package mempool

import (
	"encoding/json"
	"fmt"

	"vision-node/storage"
	"vision-node/vtypes"
)

// persistedEntry is the on-disk shape for one pooled transaction: enough to
// rehydrate both the deque position's tier/height/arrival bookkeeping and
// the transaction itself.
type persistedEntry struct {
	Tx            *vtypes.Transaction `json:"tx"`
	Tier          Tier                `json:"tier"`
	ArrivalUnix   int64               `json:"arrivalUnix"`
	EnqueueHeight uint64              `json:"enqueueHeight"`
}

// Save persists every pooled transaction under the mempool:tx: prefix and
// writes tier counts / save time under mempool:meta, per the storage
// layout table. Intended to run on a periodic tick and on clean shutdown.
func (p *Pool) Save(db storage.Database, savedAtUnix int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := db.NewBatch()
	for h, e := range p.byHash {
		pe := persistedEntry{Tx: e.tx, Tier: e.tier, ArrivalUnix: e.arrivalUnix, EnqueueHeight: e.enqueueHeight}
		raw, err := json.Marshal(pe)
		if err != nil {
			return fmt.Errorf("mempool: marshal entry %s: %w", h.Hex(), err)
		}
		batch.Put(storage.MempoolTxKey(h.Bytes()), raw)
	}

	meta := struct {
		CriticalCount int   `json:"criticalCount"`
		BulkCount     int   `json:"bulkCount"`
		SavedAtUnix   int64 `json:"savedAtUnix"`
	}{p.critical.Len(), p.bulk.Len(), savedAtUnix}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("mempool: marshal meta: %w", err)
	}
	batch.Put(storage.MempoolMetaKey(), metaRaw)

	return batch.Write()
}

// Load rehydrates persisted transactions through Admit so each one is
// re-validated against current state, per §4.3 Persistence. Entries that no
// longer admit (stale nonce, fee now below base) are silently dropped.
func (p *Pool) Load(db storage.Database, state StateView) (recovered int, err error) {
	it := db.NewIteratorWithPrefix(storage.MempoolTxPrefix())
	defer it.Release()

	for it.Next() {
		var pe persistedEntry
		if jsonErr := json.Unmarshal(it.Value(), &pe); jsonErr != nil {
			continue
		}
		if admitErr := p.Admit(pe.Tx, pe.Tier, state, pe.ArrivalUnix, pe.EnqueueHeight); admitErr == nil {
			recovered++
		}
	}
	return recovered, nil
}
