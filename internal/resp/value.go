package resp

import (
	"bytes"
	"strconv"
)

// Type identifies a RESP value variant. The constant values are the wire
// type markers.
type Type byte

const (
	TypeSimpleString   Type = '+'
	TypeError          Type = '-'
	TypeInteger        Type = ':'
	TypeBulkString     Type = '$'
	TypeArray          Type = '*'
	TypeNull           Type = '_'
	TypeBoolean        Type = '#'
	TypeDouble         Type = ','
	TypeBigNumber      Type = '('
	TypeBulkError      Type = '!'
	TypeVerbatimString Type = '='
	TypeMap            Type = '%'
	TypeSet            Type = '~'
	TypePush           Type = '>'
)

// Value is a RESP protocol value. Exactly one of the payload fields is
// meaningful, selected by Typ.
//
// Str holds the payload for SimpleString, Error, BulkString, BigNumber,
// BulkError and VerbatimString; for parsed values it aliases the parser's
// read buffer (zero copy). Elems holds the children of Array, Set and Push;
// for Map it holds the flattened key/value pairs in wire order, so
// len(Elems) is always even.
type Value struct {
	Typ    Type
	Str    []byte
	Format []byte // verbatim string encoding tag, always 3 bytes
	Int    int64
	Float  float64
	Bool   bool
	Elems  []Value
}

// Null is the RESP null value (RESP2 null bulk, RESP2 null array and RESP3
// null all decode to it).
var Null = Value{Typ: TypeNull}

// OK is the canonical +OK reply.
var OK = SimpleString("OK")

func SimpleString(s string) Value { return Value{Typ: TypeSimpleString, Str: []byte(s)} }

func Error(msg string) Value { return Value{Typ: TypeError, Str: []byte(msg)} }

func Integer(n int64) Value { return Value{Typ: TypeInteger, Int: n} }

func BulkString(b []byte) Value {
	if b == nil {
		return Null
	}
	return Value{Typ: TypeBulkString, Str: b}
}

func BulkStringStr(s string) Value { return Value{Typ: TypeBulkString, Str: []byte(s)} }

func Array(elems ...Value) Value { return Value{Typ: TypeArray, Elems: elems} }

func ArraySlice(elems []Value) Value { return Value{Typ: TypeArray, Elems: elems} }

func Boolean(b bool) Value { return Value{Typ: TypeBoolean, Bool: b} }

func Double(f float64) Value { return Value{Typ: TypeDouble, Float: f} }

func BigNumber(digits []byte) Value { return Value{Typ: TypeBigNumber, Str: digits} }

func BulkError(b []byte) Value { return Value{Typ: TypeBulkError, Str: b} }

func VerbatimString(format, data []byte) Value {
	return Value{Typ: TypeVerbatimString, Format: format, Str: data}
}

// Map builds a map value from flattened key/value pairs.
func Map(pairs ...Value) Value { return Value{Typ: TypeMap, Elems: pairs} }

func Set(elems ...Value) Value { return Value{Typ: TypeSet, Elems: elems} }

func Push(elems ...Value) Value { return Value{Typ: TypePush, Elems: elems} }

// IsNull reports whether the value is the RESP null.
func (v Value) IsNull() bool { return v.Typ == TypeNull }

// IsError reports whether the value is a wire error.
func (v Value) IsError() bool { return v.Typ == TypeError || v.Typ == TypeBulkError }

// Bytes returns the byte payload of string-like values, or nil.
func (v Value) Bytes() []byte {
	switch v.Typ {
	case TypeSimpleString, TypeBulkString, TypeBigNumber, TypeBulkError, TypeVerbatimString:
		return v.Str
	}
	return nil
}

// Equal reports deep equality of two values. Float comparison is exact, so
// NaN doubles are never equal.
func (v Value) Equal(o Value) bool {
	if v.Typ != o.Typ {
		return false
	}
	switch v.Typ {
	case TypeNull:
		return true
	case TypeInteger:
		return v.Int == o.Int
	case TypeBoolean:
		return v.Bool == o.Bool
	case TypeDouble:
		return v.Float == o.Float
	case TypeVerbatimString:
		return bytes.Equal(v.Format, o.Format) && bytes.Equal(v.Str, o.Str)
	case TypeArray, TypeMap, TypeSet, TypePush:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(v.Str, o.Str)
	}
}

// String renders a debug representation. Not the wire form.
func (v Value) String() string {
	switch v.Typ {
	case TypeNull:
		return "Null"
	case TypeInteger:
		return "Integer(" + strconv.FormatInt(v.Int, 10) + ")"
	case TypeBoolean:
		return "Boolean(" + strconv.FormatBool(v.Bool) + ")"
	case TypeDouble:
		return "Double(" + formatDouble(v.Float) + ")"
	case TypeArray, TypeMap, TypeSet, TypePush:
		var b bytes.Buffer
		b.WriteString(typeName(v.Typ))
		b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.String())
		}
		b.WriteByte(']')
		return b.String()
	default:
		return typeName(v.Typ) + "(" + string(v.Str) + ")"
	}
}

func typeName(t Type) string {
	switch t {
	case TypeSimpleString:
		return "SimpleString"
	case TypeError:
		return "Error"
	case TypeInteger:
		return "Integer"
	case TypeBulkString:
		return "BulkString"
	case TypeArray:
		return "Array"
	case TypeNull:
		return "Null"
	case TypeBoolean:
		return "Boolean"
	case TypeDouble:
		return "Double"
	case TypeBigNumber:
		return "BigNumber"
	case TypeBulkError:
		return "BulkError"
	case TypeVerbatimString:
		return "VerbatimString"
	case TypeMap:
		return "Map"
	case TypeSet:
		return "Set"
	case TypePush:
		return "Push"
	}
	return "Unknown(" + strconv.Itoa(int(t)) + ")"
}
