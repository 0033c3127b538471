package resp

import (
	"math"
	"strconv"
)

// Encode renders a value in RESP wire form. Null is rendered as the RESP2
// null bulk string so that RESP2 clients can read every reply.
func Encode(v Value) []byte {
	return AppendValue(make([]byte, 0, encodedSize(v)), v)
}

// AppendValue appends the wire form of v to dst and returns the extended
// slice.
func AppendValue(dst []byte, v Value) []byte {
	switch v.Typ {
	case TypeSimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)
	case TypeError:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)
	case TypeInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return appendCRLF(dst)
	case TypeBulkString:
		return appendBulk(dst, '$', v.Str)
	case TypeNull:
		return append(dst, '$', '-', '1', '\r', '\n')
	case TypeBoolean:
		if v.Bool {
			return append(dst, '#', 't', '\r', '\n')
		}
		return append(dst, '#', 'f', '\r', '\n')
	case TypeDouble:
		dst = append(dst, ',')
		dst = append(dst, formatDouble(v.Float)...)
		return appendCRLF(dst)
	case TypeBigNumber:
		dst = append(dst, '(')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)
	case TypeBulkError:
		return appendBulk(dst, '!', v.Str)
	case TypeVerbatimString:
		dst = append(dst, '=')
		dst = strconv.AppendInt(dst, int64(len(v.Format)+1+len(v.Str)), 10)
		dst = appendCRLF(dst)
		dst = append(dst, v.Format...)
		dst = append(dst, ':')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)
	case TypeArray, TypeSet, TypePush:
		dst = append(dst, byte(v.Typ))
		dst = strconv.AppendInt(dst, int64(len(v.Elems)), 10)
		dst = appendCRLF(dst)
		for _, e := range v.Elems {
			dst = AppendValue(dst, e)
		}
		return dst
	case TypeMap:
		dst = append(dst, '%')
		dst = strconv.AppendInt(dst, int64(len(v.Elems)/2), 10)
		dst = appendCRLF(dst)
		for _, e := range v.Elems {
			dst = AppendValue(dst, e)
		}
		return dst
	}
	// Unknown type: render as null rather than corrupt the stream.
	return append(dst, '$', '-', '1', '\r', '\n')
}

func appendBulk(dst []byte, marker byte, payload []byte) []byte {
	dst = append(dst, marker)
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = appendCRLF(dst)
	dst = append(dst, payload...)
	return appendCRLF(dst)
}

func appendCRLF(dst []byte) []byte {
	return append(dst, '\r', '\n')
}

// encodedSize precomputes the output size for frame types where it is
// cheap, so Encode allocates once. Aggregates fall back to a header-sized
// estimate and grow as needed.
func encodedSize(v Value) int {
	switch v.Typ {
	case TypeSimpleString, TypeError, TypeBigNumber:
		return 1 + len(v.Str) + 2
	case TypeInteger:
		return 1 + intDigits(v.Int) + 2
	case TypeBulkString, TypeBulkError:
		return 1 + intDigits(int64(len(v.Str))) + 2 + len(v.Str) + 2
	case TypeNull:
		return 5
	case TypeBoolean:
		return 4
	default:
		return 16
	}
}

func intDigits(n int64) int {
	if n == math.MinInt64 {
		return 20
	}
	digits := 1
	if n < 0 {
		digits++
		n = -n
	}
	for n >= 10 {
		digits++
		n /= 10
	}
	return digits
}

// FormatDouble renders a float the way Redis does: shortest representation
// that round-trips, with inf/-inf/nan spelled out. Used for both the RESP3
// double frame and bulk-string score replies.
func FormatDouble(f float64) string {
	return formatDouble(f)
}

func formatDouble(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
