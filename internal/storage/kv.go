// Package storage implements the Redis data-type storage layer: five
// isolated ordered KV engines per shard, length-prefixed key codecs, a
// logical version field for O(1) collection deletion, TTL handling, and a
// background reaper that drops version-orphaned records.
package storage

import (
	"context"
	"time"
)

// KVEngine is the embedded ordered key-value engine primitive a shard's
// typed storage is built on.
//
// Implementations must be safe for concurrent use and durable across
// process restarts. Iteration order is byte-lexicographic on keys.
type KVEngine interface {
	// Get retrieves a value. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// SetWithTTL stores a key-value pair that the engine drops after ttl.
	SetWithTTL(ctx context.Context, key, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan iterates keys with the given prefix in ascending byte order.
	// Callback returns false to stop. The key and value slices are only
	// valid for the duration of the callback.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// NewBatch starts a write batch. Batches commit atomically within
	// this engine.
	NewBatch() Batch

	// DropAll removes every record in the engine.
	DropAll(ctx context.Context) error

	// Size returns the LSM tree and value log sizes in bytes.
	Size() (lsm, vlog int64)

	// GC triggers value-log garbage collection.
	GC(ctx context.Context) error

	// Close flushes and shuts down the engine.
	Close() error
}

// Batch is an atomic group of writes against one engine.
type Batch interface {
	Set(key, value []byte) error
	SetWithTTL(key, value []byte, ttl time.Duration) error
	Delete(key []byte) error

	// Commit applies the batch. The batch may not be reused afterwards.
	Commit() error

	// Cancel discards the batch.
	Cancel()
}

// KVConfig configures an embedded KV engine instance.
type KVConfig struct {
	// Dir is the storage directory.
	Dir string

	// SyncWrites enables fsync after each write.
	SyncWrites bool

	// GCInterval is the interval between value-log GC runs.
	// Default: 10m.
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value-log
	// rewrite (0.0-1.0). Default: 0.5.
	GCThreshold float64

	// InMemory runs the engine without touching disk. Used by tests.
	InMemory bool
}

// DefaultKVConfig returns the default engine configuration for dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:         dir,
		SyncWrites:  false,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}
