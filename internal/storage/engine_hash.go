package storage

import (
	"context"
	"errors"
)

// FieldValue is one field/value pair of a hash.
type FieldValue struct {
	Field []byte
	Value []byte
}

// HSet writes the given field/value pairs, creating the hash when absent.
// Returns the number of fields that did not exist before; existing fields
// are updated without being counted. A field repeated within one call is
// written last-wins and counted at most once.
func (e *Engine) HSet(ctx context.Context, userKey []byte, pairs []FieldValue) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil {
		return 0, err
	}
	if m == nil {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = &Meta{Type: TypeHash, Version: version}
	}

	var added int64
	seen := make(map[string]bool, len(pairs))
	b := e.hashDB.NewBatch()
	for _, fv := range pairs {
		fieldKey := EncodeHashFieldKey(userKey, m.Version, fv.Field)
		if !seen[string(fv.Field)] {
			seen[string(fv.Field)] = true
			_, err := e.hashDB.Get(ctx, fieldKey)
			switch {
			case errors.Is(err, ErrKeyNotFound):
				added++
			case err != nil:
				b.Cancel()
				return 0, ErrEngine.WithCause(err)
			}
		}
		if err := b.Set(fieldKey, fv.Value); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
	}
	if err := b.Commit(); err != nil {
		return 0, ErrEngine.WithCause(err)
	}

	m.Count += uint64(added)
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return 0, err
	}
	return added, nil
}

// HGet returns the value of one field.
func (e *Engine) HGet(ctx context.Context, userKey, field []byte) (value []byte, found bool, err error) {
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil || m == nil {
		return nil, false, err
	}
	v, err := e.hashDB.Get(ctx, EncodeHashFieldKey(userKey, m.Version, field))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, ErrEngine.WithCause(err)
	}
	return v, true, nil
}

// HMGet returns the values of the given fields; absent fields yield nil.
func (e *Engine) HMGet(ctx context.Context, userKey []byte, fields [][]byte) ([][]byte, error) {
	out := make([][]byte, len(fields))
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return out, nil
	}
	for i, f := range fields {
		v, err := e.hashDB.Get(ctx, EncodeHashFieldKey(userKey, m.Version, f))
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return nil, ErrEngine.WithCause(err)
		}
		out[i] = v
	}
	return out, nil
}

// HGetAll returns every field/value pair, in engine key order.
func (e *Engine) HGetAll(ctx context.Context, userKey []byte) ([]FieldValue, error) {
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil || m == nil {
		return nil, err
	}

	prefix := DataKeyPrefix(userKey, m.Version)
	var out []FieldValue
	err = e.hashDB.Scan(ctx, prefix, func(key, value []byte) bool {
		field, ok := DecodeHashFieldKey(key[len(prefix):])
		if !ok {
			return true
		}
		out = append(out, FieldValue{
			Field: append([]byte(nil), field...),
			Value: append([]byte(nil), value...),
		})
		return true
	})
	if err != nil {
		return nil, ErrEngine.WithCause(err)
	}
	return out, nil
}

// HLen returns the number of fields.
func (e *Engine) HLen(ctx context.Context, userKey []byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil || m == nil {
		return 0, err
	}
	return int64(m.Count), nil
}

// HDel removes the given fields and returns how many existed. Deleting the
// last field removes the key entirely.
func (e *Engine) HDel(ctx context.Context, userKey []byte, fields [][]byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeHash)
	if err != nil || m == nil {
		return 0, err
	}

	var removed int64
	seen := make(map[string]bool, len(fields))
	b := e.hashDB.NewBatch()
	for _, f := range fields {
		if seen[string(f)] {
			continue
		}
		seen[string(f)] = true
		fieldKey := EncodeHashFieldKey(userKey, m.Version, f)
		_, err := e.hashDB.Get(ctx, fieldKey)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		if err := b.Delete(fieldKey); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		removed++
	}
	if err := b.Commit(); err != nil {
		return 0, ErrEngine.WithCause(err)
	}

	m.Count -= uint64(removed)
	if m.Count == 0 {
		if err := e.stringDB.Delete(ctx, EncodeMetaKey(userKey)); err != nil {
			return 0, ErrEngine.WithCause(err)
		}
		return removed, nil
	}
	if err := e.putMeta(ctx, userKey, m); err != nil {
		return 0, err
	}
	return removed, nil
}
