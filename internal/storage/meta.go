package storage

import (
	"encoding/binary"
	"time"
)

// DataType is the one-byte type code stored at the head of every meta
// record.
type DataType byte

const (
	TypeString DataType = 's'
	TypeHash   DataType = 'h'
	TypeList   DataType = 'l'
	TypeSet    DataType = 'S'
	TypeZSet   DataType = 'z'
)

// Valid reports whether b is a known type code.
func (t DataType) Valid() bool {
	switch t {
	case TypeString, TypeHash, TypeList, TypeSet, TypeZSet:
		return true
	}
	return false
}

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeHash:
		return "hash"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	}
	return "none"
}

// Meta is the canonical existence/type record for a user key, stored in
// the string engine. Layout (big-endian):
//
//	string:     's' | version u64 | expire_ms u64 | value…
//	hash/set/z: code | version u64 | count u64 | expire_ms u64
//	list:       'l' | version u64 | len u64 | head u64 | tail u64 | expire_ms u64
//
// ExpireMs == 0 means no expiry. The field sits at offset 9 for strings
// and at a type-dependent fixed offset for collections.
type Meta struct {
	Type     DataType
	Version  uint64
	ExpireMs uint64

	// Value is the payload for TypeString.
	Value []byte

	// Count is the number of visible members for hash, set and zset.
	Count uint64

	// Len, Head and Tail describe a list: visible elements span
	// [Head, Tail) and Tail-Head == Len.
	Len  uint64
	Head uint64
	Tail uint64
}

const (
	stringMetaHeader = 1 + 8 + 8
	collectionMeta   = 1 + 8 + 8 + 8
	listMeta         = 1 + 8 + 8 + 8 + 8 + 8
)

// NewListMeta returns the meta record of a fresh, empty list at version v.
func NewListMeta(v uint64) *Meta {
	return &Meta{Type: TypeList, Version: v, Head: listSeqMid, Tail: listSeqMid}
}

// Encode renders the meta record value.
func (m *Meta) Encode() []byte {
	switch m.Type {
	case TypeString:
		b := make([]byte, 0, stringMetaHeader+len(m.Value))
		b = append(b, byte(m.Type))
		b = binary.BigEndian.AppendUint64(b, m.Version)
		b = binary.BigEndian.AppendUint64(b, m.ExpireMs)
		return append(b, m.Value...)
	case TypeList:
		b := make([]byte, 0, listMeta)
		b = append(b, byte(m.Type))
		b = binary.BigEndian.AppendUint64(b, m.Version)
		b = binary.BigEndian.AppendUint64(b, m.Len)
		b = binary.BigEndian.AppendUint64(b, m.Head)
		b = binary.BigEndian.AppendUint64(b, m.Tail)
		return binary.BigEndian.AppendUint64(b, m.ExpireMs)
	default:
		b := make([]byte, 0, collectionMeta)
		b = append(b, byte(m.Type))
		b = binary.BigEndian.AppendUint64(b, m.Version)
		b = binary.BigEndian.AppendUint64(b, m.Count)
		return binary.BigEndian.AppendUint64(b, m.ExpireMs)
	}
}

// DecodeMeta parses a raw meta record of any type.
func DecodeMeta(raw []byte) (*Meta, error) {
	if len(raw) < 1 {
		return nil, ErrDecode
	}
	t := DataType(raw[0])
	if !t.Valid() {
		return nil, ErrDecode
	}

	m := &Meta{Type: t}
	switch t {
	case TypeString:
		if len(raw) < stringMetaHeader {
			return nil, ErrDecode
		}
		m.Version = binary.BigEndian.Uint64(raw[1:])
		m.ExpireMs = binary.BigEndian.Uint64(raw[9:])
		m.Value = raw[17:]
	case TypeList:
		if len(raw) != listMeta {
			return nil, ErrDecode
		}
		m.Version = binary.BigEndian.Uint64(raw[1:])
		m.Len = binary.BigEndian.Uint64(raw[9:])
		m.Head = binary.BigEndian.Uint64(raw[17:])
		m.Tail = binary.BigEndian.Uint64(raw[25:])
		m.ExpireMs = binary.BigEndian.Uint64(raw[33:])
	default:
		if len(raw) != collectionMeta {
			return nil, ErrDecode
		}
		m.Version = binary.BigEndian.Uint64(raw[1:])
		m.Count = binary.BigEndian.Uint64(raw[9:])
		m.ExpireMs = binary.BigEndian.Uint64(raw[17:])
	}
	return m, nil
}

// Expired reports whether the record's deadline has passed at now.
func (m *Meta) Expired(now time.Time) bool {
	return m.ExpireMs != 0 && uint64(now.UnixMilli()) >= m.ExpireMs
}

// TTL returns the engine-level time to live for the record, or zero when
// no expiry is set.
func (m *Meta) TTL(now time.Time) time.Duration {
	if m.ExpireMs == 0 {
		return 0
	}
	return time.UnixMilli(int64(m.ExpireMs)).Sub(now)
}
