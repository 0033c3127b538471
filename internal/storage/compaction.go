package storage

import (
	"context"
	"errors"
	"time"
)

// The reaper is the compaction-side half of O(1) deletion: DEL, type
// overwrites and expiry only touch the meta record, leaving data
// records version-orphaned. The reaper walks each data engine in the
// background and drops every record whose meta record is gone, expired,
// holds a different type, or carries a different version. No user-visible
// operation depends on it running.

// reapBatchSize caps the number of deletions per committed batch.
const reapBatchSize = 1024

func (e *Engine) reapLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			dropped, err := e.ReapOnce(ctx)
			cancel()
			if err != nil {
				e.logger.Error("reap failed", "error", err)
				continue
			}
			if dropped > 0 {
				e.logger.Debug("reaped stale records", "dropped", dropped)
			}
		case <-e.stopCh:
			return
		}
	}
}

// ReapOnce scans all four data engines and drops stale records. Returns
// the number of records dropped.
func (e *Engine) ReapOnce(ctx context.Context) (int, error) {
	total := 0
	for _, target := range []struct {
		db  KVEngine
		typ DataType
	}{
		{e.hashDB, TypeHash},
		{e.listDB, TypeList},
		{e.setDB, TypeSet},
		{e.zsetDB, TypeZSet},
	} {
		n, err := e.reapEngine(ctx, target.db, target.typ)
		total += n
		if err != nil {
			return total, err
		}
	}
	e.reaped.Add(uint64(total))
	return total, nil
}

// reapEngine applies the stale-record decision table to one data engine.
func (e *Engine) reapEngine(ctx context.Context, db KVEngine, typ DataType) (int, error) {
	// Meta lookups are memoized per user key for the length of one scan, so
	// each user key's meta record is read once; the cache is not pruned.
	type metaState struct {
		meta *Meta
	}
	cache := make(map[string]metaState)
	now := time.Now()

	var stale [][]byte
	err := db.Scan(ctx, nil, func(key, _ []byte) bool {
		userKey, version, _, ok := DecodeDataKeyPrefix(key)
		if !ok {
			// Unrecognized key shape: keep, never guess.
			return true
		}

		state, cached := cache[string(userKey)]
		if !cached {
			raw, err := e.stringDB.Get(ctx, EncodeMetaKey(userKey))
			switch {
			case err == nil:
				if m, derr := DecodeMeta(raw); derr == nil {
					state.meta = m
				}
			case errors.Is(err, ErrKeyNotFound):
			default:
				// Engine trouble: keep the record, retry next cycle.
				return true
			}
			cache[string(userKey)] = state
		}

		m := state.meta
		drop := m == nil || m.Expired(now) || m.Type != typ || m.Version != version
		if drop {
			stale = append(stale, append([]byte(nil), key...))
		}
		return true
	})
	if err != nil {
		return 0, ErrEngine.WithCause(err)
	}

	dropped := 0
	for len(stale) > 0 {
		chunk := stale
		if len(chunk) > reapBatchSize {
			chunk = chunk[:reapBatchSize]
		}
		b := db.NewBatch()
		for _, k := range chunk {
			if err := b.Delete(k); err != nil {
				b.Cancel()
				return dropped, ErrEngine.WithCause(err)
			}
		}
		if err := b.Commit(); err != nil {
			return dropped, ErrEngine.WithCause(err)
		}
		dropped += len(chunk)
		stale = stale[len(chunk):]
	}
	return dropped, nil
}
