package storage

import (
	"context"
	"errors"
)

// SAdd adds members to the set, creating it when absent. Returns the
// number of members that were not already present.
func (e *Engine) SAdd(ctx context.Context, userKey []byte, members [][]byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeSet)
	if err != nil {
		return 0, err
	}
	if m == nil {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = &Meta{Type: TypeSet, Version: version}
	}

	var added int64
	seen := make(map[string]bool, len(members))
	b := e.setDB.NewBatch()
	for _, member := range members {
		if seen[string(member)] {
			continue
		}
		seen[string(member)] = true
		memberKey := EncodeSetMemberKey(userKey, m.Version, member)
		_, err := e.setDB.Get(ctx, memberKey)
		switch {
		case errors.Is(err, ErrKeyNotFound):
			added++
		case err != nil:
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		default:
			continue
		}
		if err := b.Set(memberKey, nil); err != nil {
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

// SRem removes members from the set and returns how many were present.
// Removing the last member removes the key entirely.
func (e *Engine) SRem(ctx context.Context, userKey []byte, members [][]byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeSet)
	if err != nil || m == nil {
		return 0, err
	}

	var removed int64
	seen := make(map[string]bool, len(members))
	b := e.setDB.NewBatch()
	for _, member := range members {
		if seen[string(member)] {
			continue
		}
		seen[string(member)] = true
		memberKey := EncodeSetMemberKey(userKey, m.Version, member)
		_, err := e.setDB.Get(ctx, memberKey)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		if err := b.Delete(memberKey); err != nil {
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

// SMembers returns every member of the set, in engine key order.
func (e *Engine) SMembers(ctx context.Context, userKey []byte) ([][]byte, error) {
	m, err := e.getMeta(ctx, userKey, TypeSet)
	if err != nil || m == nil {
		return nil, err
	}

	prefix := DataKeyPrefix(userKey, m.Version)
	var out [][]byte
	err = e.setDB.Scan(ctx, prefix, func(key, _ []byte) bool {
		member, ok := DecodeSetMemberKey(key[len(prefix):])
		if !ok {
			return true
		}
		out = append(out, append([]byte(nil), member...))
		return true
	})
	if err != nil {
		return nil, ErrEngine.WithCause(err)
	}
	return out, nil
}

// SIsMember reports whether member is in the set.
func (e *Engine) SIsMember(ctx context.Context, userKey, member []byte) (bool, error) {
	m, err := e.getMeta(ctx, userKey, TypeSet)
	if err != nil || m == nil {
		return false, err
	}
	_, err = e.setDB.Get(ctx, EncodeSetMemberKey(userKey, m.Version, member))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, ErrEngine.WithCause(err)
	}
	return true, nil
}

// SCard returns the number of members.
func (e *Engine) SCard(ctx context.Context, userKey []byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeSet)
	if err != nil || m == nil {
		return 0, err
	}
	return int64(m.Count), nil
}
