package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"
)

// versionSentinelKey holds the shard's version high-water mark in the
// string engine. The leading 0xFFFF length prefix followed by a short tail
// cannot be produced by EncodeMetaKey, so no user key collides with it.
var versionSentinelKey = append([]byte{0xff, 0xff}, "nimbis.version"...)

// Config configures one shard's storage engine.
type Config struct {
	// Path is the shard directory; the five engines live in
	// subdirectories string/, hash/, list/, set/, zset/.
	Path string

	// Shard is the shard index, used for logging only.
	Shard int

	// SyncWrites enables fsync-per-write on all five engines.
	SyncWrites bool

	// ReapInterval is the cadence of the stale-record reaper.
	// Default: 10m. Negative disables the background loop.
	ReapInterval time.Duration

	// GCInterval is passed through to the KV engines.
	GCInterval time.Duration

	// InMemory runs all engines off-disk. Used by tests.
	InMemory bool

	Logger *slog.Logger
}

// Engine is one shard's typed storage: five isolated KV engines plus the
// shard's version generator. All methods are safe for use by the owning
// worker goroutine; the engine itself adds no cross-command locking, so
// callers needing read-modify-write atomicity must serialize externally.
type Engine struct {
	shard    int
	stringDB KVEngine
	hashDB   KVEngine
	listDB   KVEngine
	setDB    KVEngine
	zsetDB   KVEngine

	versions *VersionGenerator
	logger   *slog.Logger

	reapInterval time.Duration
	reaped       atomic.Uint64
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// Open opens the five KV engines of a shard, seeds the version generator
// from the persisted high-water mark, and starts the background reaper.
func Open(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("shard", cfg.Shard)

	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = 10 * time.Minute
	}

	e := &Engine{
		shard:        cfg.Shard,
		versions:     NewVersionGenerator(),
		logger:       logger,
		reapInterval: cfg.ReapInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	open := func(name string) (KVEngine, error) {
		kvCfg := DefaultKVConfig(filepath.Join(cfg.Path, name))
		kvCfg.SyncWrites = cfg.SyncWrites
		kvCfg.InMemory = cfg.InMemory
		if cfg.GCInterval > 0 {
			kvCfg.GCInterval = cfg.GCInterval
		}
		return OpenBadger(kvCfg, logger.With("engine", name))
	}

	var err error
	for _, db := range []struct {
		name string
		dst  *KVEngine
	}{
		{"string", &e.stringDB},
		{"hash", &e.hashDB},
		{"list", &e.listDB},
		{"set", &e.setDB},
		{"zset", &e.zsetDB},
	} {
		if *db.dst, err = open(db.name); err != nil {
			e.closeEngines()
			return nil, fmt.Errorf("open %s engine: %w", db.name, err)
		}
	}

	if err := e.seedVersions(context.Background()); err != nil {
		e.closeEngines()
		return nil, err
	}

	if e.reapInterval > 0 {
		go e.reapLoop()
	} else {
		close(e.doneCh)
	}

	logger.Info("storage engine opened", "path", cfg.Path)
	return e, nil
}

// Close stops the reaper and shuts down all five engines.
func (e *Engine) Close() error {
	close(e.stopCh)
	<-e.doneCh
	return e.closeEngines()
}

func (e *Engine) closeEngines() error {
	var firstErr error
	for _, db := range []KVEngine{e.stringDB, e.hashDB, e.listDB, e.setDB, e.zsetDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shard returns the shard index.
func (e *Engine) Shard() int { return e.shard }

// Sizes returns the combined LSM and value-log sizes of all five engines.
func (e *Engine) Sizes() (lsm, vlog int64) {
	for _, db := range []KVEngine{e.stringDB, e.hashDB, e.listDB, e.setDB, e.zsetDB} {
		l, v := db.Size()
		lsm += l
		vlog += v
	}
	return lsm, vlog
}

// ReapedTotal returns the number of stale records dropped by the reaper
// since open.
func (e *Engine) ReapedTotal() uint64 { return e.reaped.Load() }

// seedVersions restores the version floor persisted by allocVersion.
func (e *Engine) seedVersions(ctx context.Context) error {
	raw, err := e.stringDB.Get(ctx, versionSentinelKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read version sentinel: %w", err)
	}
	if len(raw) == 8 {
		e.versions.Seed(binary.BigEndian.Uint64(raw))
	}
	return nil
}

// allocVersion issues a fresh version and persists the high-water mark so
// restarts never reuse one.
func (e *Engine) allocVersion(ctx context.Context) (uint64, error) {
	v := e.versions.Next()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if err := e.stringDB.Set(ctx, versionSentinelKey, buf[:]); err != nil {
		return 0, ErrEngine.WithCause(err)
	}
	return v, nil
}

// getMeta fetches and validates the meta record for userKey, requiring the
// given type. Returns (nil, nil) when the key does not exist or has
// expired, and ErrWrongType when the type code differs.
func (e *Engine) getMeta(ctx context.Context, userKey []byte, want DataType) (*Meta, error) {
	m, err := e.getAnyMeta(ctx, userKey)
	if err != nil || m == nil {
		return m, err
	}
	if m.Type != want {
		return nil, ErrWrongType
	}
	return m, nil
}

// getAnyMeta is the type-agnostic read path used by EXISTS, TTL, EXPIRE
// and DEL.
func (e *Engine) getAnyMeta(ctx context.Context, userKey []byte) (*Meta, error) {
	raw, err := e.stringDB.Get(ctx, EncodeMetaKey(userKey))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, ErrEngine.WithCause(err)
	}
	m, err := DecodeMeta(raw)
	if err != nil {
		return nil, err
	}
	// The engine's native TTL normally filters expired entries; the check
	// covers the window before the engine notices.
	if m.Expired(time.Now()) {
		return nil, nil
	}
	return m, nil
}

// putMeta writes the meta record, applying the engine's native TTL when a
// deadline is set so the whole key vanishes on expiry.
func (e *Engine) putMeta(ctx context.Context, userKey []byte, m *Meta) error {
	key := EncodeMetaKey(userKey)
	if m.ExpireMs != 0 {
		ttl := m.TTL(time.Now())
		if ttl <= 0 {
			return e.stringDB.Delete(ctx, key)
		}
		if err := e.stringDB.SetWithTTL(ctx, key, m.Encode(), ttl); err != nil {
			return ErrEngine.WithCause(err)
		}
		return nil
	}
	if err := e.stringDB.Set(ctx, key, m.Encode()); err != nil {
		return ErrEngine.WithCause(err)
	}
	return nil
}

// ------------------------------------------------------------
// Cross-type operations
// ------------------------------------------------------------

// Del removes the key's meta record. Data records become invisible at once
// (version orphans) and are reclaimed by the reaper: O(1) regardless of
// collection size.
func (e *Engine) Del(ctx context.Context, userKey []byte) (bool, error) {
	m, err := e.getAnyMeta(ctx, userKey)
	if err != nil || m == nil {
		return false, err
	}
	if err := e.stringDB.Delete(ctx, EncodeMetaKey(userKey)); err != nil {
		return false, ErrEngine.WithCause(err)
	}
	return true, nil
}

// Exists reports whether the key currently exists as any type.
func (e *Engine) Exists(ctx context.Context, userKey []byte) (bool, error) {
	m, err := e.getAnyMeta(ctx, userKey)
	return m != nil, err
}

// Expire sets the key's deadline to now + seconds. Returns false when the
// key does not exist.
func (e *Engine) Expire(ctx context.Context, userKey []byte, seconds int64) (bool, error) {
	m, err := e.getAnyMeta(ctx, userKey)
	if err != nil || m == nil {
		return false, err
	}
	m.ExpireMs = uint64(time.Now().UnixMilli() + seconds*1000)
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return false, err
	}
	return true, nil
}

// TTL returns the remaining time to live in seconds: -2 when the key does
// not exist, -1 when it has no deadline.
func (e *Engine) TTL(ctx context.Context, userKey []byte) (int64, error) {
	m, err := e.getAnyMeta(ctx, userKey)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return -2, nil
	}
	if m.ExpireMs == 0 {
		return -1, nil
	}
	remaining := (int64(m.ExpireMs) - time.Now().UnixMilli()) / 1000
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Flush drops every record in all five engines, then restores the version
// sentinel so versions stay monotonic across the wipe.
func (e *Engine) Flush(ctx context.Context) error {
	// Meta first: a crash mid-flush must not leave meta pointing at
	// vanished data.
	for _, db := range []KVEngine{e.stringDB, e.hashDB, e.listDB, e.setDB, e.zsetDB} {
		if err := db.DropAll(ctx); err != nil {
			return ErrEngine.WithCause(err)
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], e.versions.Current())
	if err := e.stringDB.Set(ctx, versionSentinelKey, buf[:]); err != nil {
		return ErrEngine.WithCause(err)
	}
	return nil
}

// DeleteKeysByPrefix eagerly purges every record of userKey from one data
// engine. The reaper makes this unnecessary for correctness; it exists for
// callers that want space back immediately.
func (e *Engine) DeleteKeysByPrefix(ctx context.Context, db KVEngine, userKey []byte) (int, error) {
	prefix := EncodeMetaKey(userKey)
	var keys [][]byte
	err := db.Scan(ctx, prefix, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	if err != nil {
		return 0, ErrEngine.WithCause(err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	b := db.NewBatch()
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
	}
	if err := b.Commit(); err != nil {
		return 0, ErrEngine.WithCause(err)
	}
	return len(keys), nil
}
