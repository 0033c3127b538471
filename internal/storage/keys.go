package storage

import (
	"encoding/binary"
	"math"
)

// Key layouts. All integers are big-endian. Every key starts with a 16-bit
// length prefix on the user key so that distinct user keys can never be
// byte prefixes of one another (`user1` vs `user12`).
//
//	meta/string:  len16 | user_key
//	hash field:   len16 | user_key | version | len32(field) | field
//	set member:   len16 | user_key | version | len32(member) | member
//	list element: len16 | user_key | version | seq64
//	zset member:  len16 | user_key | version | 'M' | len32(member) | member
//	zset score:   len16 | user_key | version | 'S' | sortable_score | member

// listSeqMid is the initial sequence number for list elements; LPUSH grows
// downward from it and RPUSH upward. Visible elements span [head, tail).
const listSeqMid = uint64(1) << 63

// zset index markers. 'M' sorts before 'S', keeping the member index and
// the score index in disjoint contiguous ranges of the zset engine.
const (
	zsetMemberMarker = 'M'
	zsetScoreMarker  = 'S'
)

// EncodeMetaKey builds the string/meta engine key for a user key.
func EncodeMetaKey(userKey []byte) []byte {
	b := make([]byte, 0, 2+len(userKey))
	b = binary.BigEndian.AppendUint16(b, uint16(len(userKey)))
	return append(b, userKey...)
}

// DecodeMetaKey extracts the user key from a meta key.
func DecodeMetaKey(key []byte) ([]byte, bool) {
	if len(key) < 2 {
		return nil, false
	}
	n := int(binary.BigEndian.Uint16(key))
	if len(key) != 2+n {
		return nil, false
	}
	return key[2 : 2+n], true
}

// DataKeyPrefix builds the common `len16 | user_key | version` prefix of
// every data record key.
func DataKeyPrefix(userKey []byte, version uint64) []byte {
	b := make([]byte, 0, 2+len(userKey)+8)
	b = binary.BigEndian.AppendUint16(b, uint16(len(userKey)))
	b = append(b, userKey...)
	return binary.BigEndian.AppendUint64(b, version)
}

// DecodeDataKeyPrefix splits a data record key into its user key, version
// and type-specific remainder.
func DecodeDataKeyPrefix(key []byte) (userKey []byte, version uint64, rest []byte, ok bool) {
	if len(key) < 2 {
		return nil, 0, nil, false
	}
	n := int(binary.BigEndian.Uint16(key))
	if len(key) < 2+n+8 {
		return nil, 0, nil, false
	}
	userKey = key[2 : 2+n]
	version = binary.BigEndian.Uint64(key[2+n:])
	return userKey, version, key[2+n+8:], true
}

// EncodeHashFieldKey builds the hash engine key for one field.
func EncodeHashFieldKey(userKey []byte, version uint64, field []byte) []byte {
	b := DataKeyPrefix(userKey, version)
	b = binary.BigEndian.AppendUint32(b, uint32(len(field)))
	return append(b, field...)
}

// DecodeHashFieldKey extracts the field name from a hash key remainder (the
// bytes after the data key prefix).
func DecodeHashFieldKey(rest []byte) ([]byte, bool) {
	return decodeLen32Tail(rest)
}

// EncodeSetMemberKey builds the set engine key for one member.
func EncodeSetMemberKey(userKey []byte, version uint64, member []byte) []byte {
	b := DataKeyPrefix(userKey, version)
	b = binary.BigEndian.AppendUint32(b, uint32(len(member)))
	return append(b, member...)
}

// DecodeSetMemberKey extracts the member from a set key remainder.
func DecodeSetMemberKey(rest []byte) ([]byte, bool) {
	return decodeLen32Tail(rest)
}

// EncodeListElementKey builds the list engine key for one sequence slot.
func EncodeListElementKey(userKey []byte, version uint64, seq uint64) []byte {
	b := DataKeyPrefix(userKey, version)
	return binary.BigEndian.AppendUint64(b, seq)
}

// EncodeZSetMemberKey builds the member-index key of a sorted set entry.
// Its value is the 8-byte IEEE-754 big-endian score.
func EncodeZSetMemberKey(userKey []byte, version uint64, member []byte) []byte {
	b := DataKeyPrefix(userKey, version)
	b = append(b, zsetMemberMarker)
	b = binary.BigEndian.AppendUint32(b, uint32(len(member)))
	return append(b, member...)
}

// EncodeZSetScoreKey builds the score-index key of a sorted set entry. Its
// value is empty; byte order of these keys is score order, members
// breaking ties byte-lexicographically.
func EncodeZSetScoreKey(userKey []byte, version uint64, score float64, member []byte) []byte {
	b := DataKeyPrefix(userKey, version)
	b = append(b, zsetScoreMarker)
	b = binary.BigEndian.AppendUint64(b, EncodeScore(score))
	return append(b, member...)
}

// ZSetScorePrefix is the scan prefix covering the whole score index of one
// key incarnation.
func ZSetScorePrefix(userKey []byte, version uint64) []byte {
	return append(DataKeyPrefix(userKey, version), zsetScoreMarker)
}

// ZSetMemberPrefix is the scan prefix covering the whole member index.
func ZSetMemberPrefix(userKey []byte, version uint64) []byte {
	return append(DataKeyPrefix(userKey, version), zsetMemberMarker)
}

// DecodeZSetScoreKey extracts score and member from a score-index key
// remainder (the bytes after the data key prefix and the 'S' marker).
func DecodeZSetScoreKey(rest []byte) (score float64, member []byte, ok bool) {
	if len(rest) < 8 {
		return 0, nil, false
	}
	return DecodeScore(binary.BigEndian.Uint64(rest[:8])), rest[8:], true
}

// EncodeScore maps a float64 onto uint64s whose big-endian byte order is
// the numeric order of the floats: positive values get the sign bit set,
// negative values have all bits flipped. Handles ±inf and negative zero;
// NaN is rejected before this layer.
func EncodeScore(score float64) uint64 {
	bits := math.Float64bits(score)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// DecodeScore inverts EncodeScore.
func DecodeScore(encoded uint64) float64 {
	if encoded&(1<<63) != 0 {
		return math.Float64frombits(encoded &^ (1 << 63))
	}
	return math.Float64frombits(^encoded)
}

// EncodeScoreValue renders a score as the member-index record value.
func EncodeScoreValue(score float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(score))
	return b
}

// DecodeScoreValue reads a member-index record value.
func DecodeScoreValue(b []byte) (float64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), true
}

func decodeLen32Tail(rest []byte) ([]byte, bool) {
	if len(rest) < 4 {
		return nil, false
	}
	n := int(binary.BigEndian.Uint32(rest))
	if len(rest) != 4+n {
		return nil, false
	}
	return rest[4:], true
}
