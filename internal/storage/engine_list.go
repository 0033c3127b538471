package storage

import (
	"context"
	"errors"
)

// LPush prepends values to the list, creating it when absent, and returns
// the new length. Values are pushed one by one, so the last argument ends
// up at the head.
func (e *Engine) LPush(ctx context.Context, userKey []byte, values [][]byte) (int64, error) {
	return e.push(ctx, userKey, values, true)
}

// RPush appends values to the list and returns the new length.
func (e *Engine) RPush(ctx context.Context, userKey []byte, values [][]byte) (int64, error) {
	return e.push(ctx, userKey, values, false)
}

func (e *Engine) push(ctx context.Context, userKey []byte, values [][]byte, left bool) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeList)
	if err != nil {
		return 0, err
	}
	if m == nil {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = NewListMeta(version)
	}

	b := e.listDB.NewBatch()
	for _, v := range values {
		var seq uint64
		if left {
			m.Head--
			seq = m.Head
		} else {
			seq = m.Tail
			m.Tail++
		}
		if err := b.Set(EncodeListElementKey(userKey, m.Version, seq), v); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		m.Len++
	}
	if err := b.Commit(); err != nil {
		return 0, ErrEngine.WithCause(err)
	}

	if err := e.putMeta(ctx, userKey, m); err != nil {
		return 0, err
	}
	return int64(m.Len), nil
}

// LPop removes and returns up to count elements from the head. A missing
// key yields an empty result. Popping the last element removes the key.
func (e *Engine) LPop(ctx context.Context, userKey []byte, count int64) ([][]byte, error) {
	return e.pop(ctx, userKey, count, true)
}

// RPop removes and returns up to count elements from the tail.
func (e *Engine) RPop(ctx context.Context, userKey []byte, count int64) ([][]byte, error) {
	return e.pop(ctx, userKey, count, false)
}

func (e *Engine) pop(ctx context.Context, userKey []byte, count int64, left bool) ([][]byte, error) {
	m, err := e.getMeta(ctx, userKey, TypeList)
	if err != nil || m == nil {
		return nil, err
	}
	if count > int64(m.Len) {
		count = int64(m.Len)
	}

	out := make([][]byte, 0, count)
	b := e.listDB.NewBatch()
	for i := int64(0); i < count; i++ {
		var seq uint64
		if left {
			seq = m.Head
			m.Head++
		} else {
			m.Tail--
			seq = m.Tail
		}
		key := EncodeListElementKey(userKey, m.Version, seq)
		v, err := e.listDB.Get(ctx, key)
		if err != nil {
			b.Cancel()
			if errors.Is(err, ErrKeyNotFound) {
				return nil, ErrDecode.WithCause(errors.New("list element missing"))
			}
			return nil, ErrEngine.WithCause(err)
		}
		if err := b.Delete(key); err != nil {
			b.Cancel()
			return nil, ErrEngine.WithCause(err)
		}
		out = append(out, v)
		m.Len--
	}
	if err := b.Commit(); err != nil {
		return nil, ErrEngine.WithCause(err)
	}

	if m.Len == 0 {
		if err := e.stringDB.Delete(ctx, EncodeMetaKey(userKey)); err != nil {
			return nil, ErrEngine.WithCause(err)
		}
		return out, nil
	}
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return nil, err
	}
	return out, nil
}

// LLen returns the list length.
func (e *Engine) LLen(ctx context.Context, userKey []byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeList)
	if err != nil || m == nil {
		return 0, err
	}
	return int64(m.Len), nil
}

// LRange returns the elements between start and stop inclusive, with Redis
// negative-index semantics, clipped to the list bounds. An inverted range
// yields an empty result.
func (e *Engine) LRange(ctx context.Context, userKey []byte, start, stop int64) ([][]byte, error) {
	m, err := e.getMeta(ctx, userKey, TypeList)
	if err != nil || m == nil {
		return nil, err
	}

	start, stop, ok := clipRange(start, stop, int64(m.Len))
	if !ok {
		return nil, nil
	}

	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		v, err := e.listDB.Get(ctx, EncodeListElementKey(userKey, m.Version, m.Head+uint64(i)))
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return nil, ErrDecode.WithCause(errors.New("list element missing"))
			}
			return nil, ErrEngine.WithCause(err)
		}
		out = append(out, v)
	}
	return out, nil
}

// clipRange resolves Redis start/stop indices against a collection of
// length n. ok is false when the resolved range is empty.
func clipRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
