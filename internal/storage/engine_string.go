package storage

import (
	"context"
	"math"
	"strconv"
)

// Get returns the string value of userKey. found is false when the key
// does not exist.
func (e *Engine) Get(ctx context.Context, userKey []byte) (value []byte, found bool, err error) {
	m, err := e.getMeta(ctx, userKey, TypeString)
	if err != nil || m == nil {
		return nil, false, err
	}
	return m.Value, true, nil
}

// Set stores a string value under userKey, overwriting any existing key of
// any type. The meta record gets a fresh version, so data records of a
// previous collection incarnation are orphaned without being scanned. Any
// prior deadline is discarded.
func (e *Engine) Set(ctx context.Context, userKey, value []byte) error {
	version, err := e.allocVersion(ctx)
	if err != nil {
		return err
	}
	return e.putMeta(ctx, userKey, &Meta{Type: TypeString, Version: version, Value: value})
}

// Append appends suffix to the string at userKey, creating it when absent,
// and returns the new length. The deadline and version are preserved on
// an existing key.
func (e *Engine) Append(ctx context.Context, userKey, suffix []byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeString)
	if err != nil {
		return 0, err
	}
	if m == nil {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = &Meta{Type: TypeString, Version: version}
	}
	m.Value = append(m.Value, suffix...)
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return 0, err
	}
	return int64(len(m.Value)), nil
}

// IncrBy atomically adds delta to the integer stored at userKey, treating
// a missing key as 0. Values that are not base-10 int64, and additions
// that overflow, return ErrNotInteger. Atomicity holds because the owning
// worker serializes all operations on the shard.
func (e *Engine) IncrBy(ctx context.Context, userKey []byte, delta int64) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeString)
	if err != nil {
		return 0, err
	}

	var current int64
	if m != nil {
		current, err = strconv.ParseInt(string(m.Value), 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
	} else {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = &Meta{Type: TypeString, Version: version}
	}

	if (delta > 0 && current > math.MaxInt64-delta) ||
		(delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrNotInteger
	}
	next := current + delta

	m.Value = strconv.AppendInt(m.Value[:0:0], next, 10)
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return 0, err
	}
	return next, nil
}
