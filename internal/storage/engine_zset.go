package storage

import (
	"context"
	"errors"
)

// ScoreMember is one scored member of a sorted set.
type ScoreMember struct {
	Score  float64
	Member []byte
}

// ZAdd adds members with scores, creating the zset when absent. Existing
// members get their score updated without being counted; the return value
// is the number of genuinely new members. NaN scores must be rejected
// before this layer.
func (e *Engine) ZAdd(ctx context.Context, userKey []byte, entries []ScoreMember) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeZSet)
	if err != nil {
		return 0, err
	}
	if m == nil {
		version, err := e.allocVersion(ctx)
		if err != nil {
			return 0, err
		}
		m = &Meta{Type: TypeZSet, Version: version}
	}

	var added int64
	// pending tracks members already written in this call so repeated
	// members resolve last-wins without double counting.
	pending := make(map[string]float64, len(entries))
	b := e.zsetDB.NewBatch()
	for _, entry := range entries {
		memberKey := EncodeZSetMemberKey(userKey, m.Version, entry.Member)

		oldScore, existed := pending[string(entry.Member)]
		if !existed {
			raw, err := e.zsetDB.Get(ctx, memberKey)
			switch {
			case errors.Is(err, ErrKeyNotFound):
			case err != nil:
				b.Cancel()
				return 0, ErrEngine.WithCause(err)
			default:
				if s, ok := DecodeScoreValue(raw); ok {
					oldScore, existed = s, true
				}
			}
			if !existed {
				added++
			}
		}

		if existed && oldScore != entry.Score {
			if err := b.Delete(EncodeZSetScoreKey(userKey, m.Version, oldScore, entry.Member)); err != nil {
				b.Cancel()
				return 0, ErrEngine.WithCause(err)
			}
		}
		if err := b.Set(memberKey, EncodeScoreValue(entry.Score)); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		if err := b.Set(EncodeZSetScoreKey(userKey, m.Version, entry.Score, entry.Member), nil); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		pending[string(entry.Member)] = entry.Score
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

// ZScore returns the score of member.
func (e *Engine) ZScore(ctx context.Context, userKey, member []byte) (score float64, found bool, err error) {
	m, err := e.getMeta(ctx, userKey, TypeZSet)
	if err != nil || m == nil {
		return 0, false, err
	}
	raw, err := e.zsetDB.Get(ctx, EncodeZSetMemberKey(userKey, m.Version, member))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, ErrEngine.WithCause(err)
	}
	s, ok := DecodeScoreValue(raw)
	if !ok {
		return 0, false, ErrDecode
	}
	return s, true, nil
}

// ZRem removes members and returns how many were present. Removing the
// last member removes the key entirely.
func (e *Engine) ZRem(ctx context.Context, userKey []byte, members [][]byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeZSet)
	if err != nil || m == nil {
		return 0, err
	}

	var removed int64
	seen := make(map[string]bool, len(members))
	b := e.zsetDB.NewBatch()
	for _, member := range members {
		if seen[string(member)] {
			continue
		}
		seen[string(member)] = true
		memberKey := EncodeZSetMemberKey(userKey, m.Version, member)
		raw, err := e.zsetDB.Get(ctx, memberKey)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		score, ok := DecodeScoreValue(raw)
		if !ok {
			b.Cancel()
			return 0, ErrDecode
		}
		if err := b.Delete(memberKey); err != nil {
			b.Cancel()
			return 0, ErrEngine.WithCause(err)
		}
		if err := b.Delete(EncodeZSetScoreKey(userKey, m.Version, score, member)); err != nil {
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

// ZCard returns the number of members.
func (e *Engine) ZCard(ctx context.Context, userKey []byte) (int64, error) {
	m, err := e.getMeta(ctx, userKey, TypeZSet)
	if err != nil || m == nil {
		return 0, err
	}
	return int64(m.Count), nil
}

// ZRange returns the members between rank start and stop inclusive, with
// Redis negative-index semantics, ordered by ascending score with members
// breaking ties byte-lexicographically. The score index is walked in byte
// order, which is score order by construction of the sortable encoding.
func (e *Engine) ZRange(ctx context.Context, userKey []byte, start, stop int64) ([]ScoreMember, error) {
	m, err := e.getMeta(ctx, userKey, TypeZSet)
	if err != nil || m == nil {
		return nil, err
	}

	start, stop, ok := clipRange(start, stop, int64(m.Count))
	if !ok {
		return nil, nil
	}

	prefix := ZSetScorePrefix(userKey, m.Version)
	out := make([]ScoreMember, 0, stop-start+1)
	var rank int64
	err = e.zsetDB.Scan(ctx, prefix, func(key, _ []byte) bool {
		if rank > stop {
			return false
		}
		if rank >= start {
			score, member, ok := DecodeZSetScoreKey(key[len(prefix):])
			if ok {
				out = append(out, ScoreMember{Score: score, Member: append([]byte(nil), member...)})
			}
		}
		rank++
		return true
	})
	if err != nil {
		return nil, ErrEngine.WithCause(err)
	}
	return out, nil
}
