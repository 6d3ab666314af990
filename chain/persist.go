package chain

import (
	"encoding/json"
	"time"

	"vision-node/storage"
	"vision-node/vtypes"
)

// wallClockAt returns a time no earlier than timestamp, so replaying
// historical blocks from storage never trips the future-timestamp check
// against the real wall clock.
func wallClockAt(timestamp int64) time.Time {
	t := time.Unix(timestamp, 0)
	if now := time.Now(); now.After(t) {
		return now
	}
	return t
}

// encodeBlock/decodeBlock are the blk: prefix's wire format: plain JSON,
// the same encoding vtypes.Block already round-trips for hashing.
func encodeBlock(block *vtypes.Block) ([]byte, error) {
	return json.Marshal(block)
}

func decodeBlock(buf []byte) (*vtypes.Block, error) {
	var b vtypes.Block
	if err := json.Unmarshal(buf, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func blockStorageKey(height uint64) []byte {
	return storage.BlockKey(height)
}

// LoadFromStorage restores the main chain and live state by replaying every
// persisted block in height order, the restart path for a non-empty
// database. genesis must be the same genesis block the database was
// originally bootstrapped with.
func (s *State) LoadFromStorage(genesis *vtypes.Block) error {
	if err := s.Bootstrap(genesis); err != nil {
		return err
	}
	for height := uint64(1); ; height++ {
		buf, err := s.db.Get(blockStorageKey(height))
		if err != nil {
			if storage.IsNotFound(err) {
				break
			}
			return err
		}
		block, err := decodeBlock(buf)
		if err != nil {
			return err
		}
		if aerr := s.ApplyBlock(block, "storage", wallClockAt(block.Header.Timestamp)); aerr != nil {
			return aerr
		}
	}
	return nil
}
