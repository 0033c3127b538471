package resp

import (
	"errors"
	"math"
	"testing"
)

// ============================================================
// Primitive frames
// ============================================================

func TestParser_Primitives(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"simple string", "+OK\r\n", SimpleString("OK")},
		{"empty simple string", "+\r\n", SimpleString("")},
		{"error", "-ERR unknown command\r\n", Error("ERR unknown command")},
		{"integer", ":1000\r\n", Integer(1000)},
		{"negative integer", ":-42\r\n", Integer(-42)},
		{"bulk string", "$6\r\nfoobar\r\n", BulkStringStr("foobar")},
		{"empty bulk string", "$0\r\n\r\n", BulkStringStr("")},
		{"bulk with CRLF payload", "$8\r\nfoo\r\nbar\r\n", BulkStringStr("foo\r\nbar")},
		{"null bulk", "$-1\r\n", Null},
		{"null array", "*-1\r\n", Null},
		{"resp3 null", "_\r\n", Null},
		{"boolean true", "#t\r\n", Boolean(true)},
		{"boolean false", "#f\r\n", Boolean(false)},
		{"double", ",3.14\r\n", Double(3.14)},
		{"double inf", ",inf\r\n", Double(math.Inf(1))},
		{"double -inf", ",-inf\r\n", Double(math.Inf(-1))},
		{"big number", "(3492890328409238509324850943850943825024385\r\n",
			BigNumber([]byte("3492890328409238509324850943850943825024385"))},
		{"bulk error", "!21\r\nSYNTAX invalid syntax\r\n", BulkError([]byte("SYNTAX invalid syntax"))},
		{"verbatim string", "=15\r\ntxt:Some string\r\n",
			VerbatimString([]byte("txt"), []byte("Some string"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			p.Feed([]byte(tt.input))
			got, ok, err := p.Next()
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if !ok {
				t.Fatal("Next() reported incomplete on full frame")
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
			if p.Buffered() != 0 {
				t.Errorf("Buffered() = %d after full drain", p.Buffered())
			}
		})
	}
}

func TestParser_NaNDouble(t *testing.T) {
	p := NewParser()
	p.Feed([]byte(",nan\r\n"))
	got, ok, err := p.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = ok=%v err=%v", ok, err)
	}
	if got.Typ != TypeDouble || !math.IsNaN(got.Float) {
		t.Errorf("Next() = %v, want NaN double", got)
	}
}

// ============================================================
// Aggregates
// ============================================================

func TestParser_Aggregates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{
			"flat array",
			"*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			Array(BulkStringStr("foo"), BulkStringStr("bar")),
		},
		{
			"empty array",
			"*0\r\n",
			Array(),
		},
		{
			"nested array",
			"*2\r\n*2\r\n:1\r\n:2\r\n*1\r\n+three\r\n",
			Array(Array(Integer(1), Integer(2)), Array(SimpleString("three"))),
		},
		{
			"map of two pairs",
			"%2\r\n+first\r\n:1\r\n+second\r\n:2\r\n",
			Map(SimpleString("first"), Integer(1), SimpleString("second"), Integer(2)),
		},
		{
			"set",
			"~3\r\n+a\r\n+b\r\n+c\r\n",
			Set(SimpleString("a"), SimpleString("b"), SimpleString("c")),
		},
		{
			"push",
			">2\r\n+pubsub\r\n+message\r\n",
			Push(SimpleString("pubsub"), SimpleString("message")),
		},
		{
			"mixed null inside array",
			"*3\r\n$-1\r\n_\r\n:7\r\n",
			Array(Null, Null, Integer(7)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			p.Feed([]byte(tt.input))
			got, ok, err := p.Next()
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if !ok {
				t.Fatal("Next() reported incomplete on full frame")
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================
// Resumability: any split of the input yields the same values
// ============================================================

func TestParser_ResumableAcrossSplits(t *testing.T) {
	input := []byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n" +
		"%1\r\n+k\r\n,1.5\r\n" +
		"+PONG\r\n")
	want := []Value{
		Array(BulkStringStr("SET"), BulkStringStr("key"), BulkStringStr("value")),
		Map(SimpleString("k"), Double(1.5)),
		SimpleString("PONG"),
	}

	for split := 0; split <= len(input); split++ {
		p := NewParser()
		var got []Value

		drain := func() {
			for {
				v, ok, err := p.Next()
				if err != nil {
					t.Fatalf("split %d: Next() error = %v", split, err)
				}
				if !ok {
					return
				}
				got = append(got, v)
			}
		}

		p.Feed(input[:split])
		drain()
		p.Feed(input[split:])
		drain()

		if len(got) != len(want) {
			t.Fatalf("split %d: got %d values, want %d", split, len(got), len(want))
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("split %d: value %d = %v, want %v", split, i, got[i], want[i])
			}
		}
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	input := []byte("*2\r\n$4\r\nHGET\r\n$10\r\nmyhash_key\r\n")
	p := NewParser()
	for i, b := range input {
		p.Feed([]byte{b})
		v, ok, err := p.Next()
		if err != nil {
			t.Fatalf("byte %d: Next() error = %v", i, err)
		}
		if i < len(input)-1 {
			if ok {
				t.Fatalf("byte %d: premature complete %v", i, v)
			}
			continue
		}
		if !ok {
			t.Fatal("final byte: still incomplete")
		}
		want := Array(BulkStringStr("HGET"), BulkStringStr("myhash_key"))
		if !v.Equal(want) {
			t.Errorf("Next() = %v, want %v", v, want)
		}
	}
}

// ============================================================
// Pipelining
// ============================================================

func TestParser_PipelinedFrames(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("+OK\r\n:1\r\n$2\r\nhi\r\n"))

	want := []Value{SimpleString("OK"), Integer(1), BulkStringStr("hi")}
	for i, w := range want {
		v, ok, err := p.Next()
		if err != nil || !ok {
			t.Fatalf("frame %d: ok=%v err=%v", i, ok, err)
		}
		if !v.Equal(w) {
			t.Errorf("frame %d = %v, want %v", i, v, w)
		}
	}
	if _, ok, _ := p.Next(); ok {
		t.Error("Next() produced a frame from an empty buffer")
	}
}

// ============================================================
// Inline commands
// ============================================================

func TestParser_InlineCommands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
	}{
		{"ping", "PING\r\n", Array(BulkStringStr("PING"))},
		{"with args", "SET key val\r\n",
			Array(BulkStringStr("SET"), BulkStringStr("key"), BulkStringStr("val"))},
		{"extra spaces", "  GET    key  \r\n",
			Array(BulkStringStr("GET"), BulkStringStr("key"))},
		{"tabs", "DEL\ta\tb\r\n",
			Array(BulkStringStr("DEL"), BulkStringStr("a"), BulkStringStr("b"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			p.Feed([]byte(tt.input))
			got, ok, err := p.Next()
			if err != nil || !ok {
				t.Fatalf("Next() ok=%v err=%v", ok, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParser_InlineBlankLinesSkipped(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("\r\n\r\n \r\nPING\r\n"))

	v, ok, err := p.Next()
	if err != nil || !ok {
		t.Fatalf("Next() ok=%v err=%v", ok, err)
	}
	if !v.Equal(Array(BulkStringStr("PING"))) {
		t.Errorf("Next() = %v, want [PING]", v)
	}
	if _, ok, _ := p.Next(); ok {
		t.Error("blank lines produced spurious frames")
	}
}

func TestParser_InlineControlByteIsError(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("\x01PING\r\n"))
	_, _, err := p.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Next() error = %v, want ErrProtocol", err)
	}
}

func TestParser_InlineTooLong(t *testing.T) {
	p := NewParser()
	long := make([]byte, MaxInlineLen+1)
	for i := range long {
		long[i] = 'a'
	}
	p.Feed(long)
	_, _, err := p.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Next() error = %v, want ErrProtocol", err)
	}
}

func TestParser_InlineNonUTF8Token(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("GET \xff\xfe\r\n"))
	_, _, err := p.Next()
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Next() error = %v, want ErrProtocol", err)
	}
}

// ============================================================
// Framing errors
// ============================================================

func TestParser_FramingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed array header", "*abc\r\n"},
		{"malformed bulk header", "$abc\r\n"},
		{"bulk length below -1", "$-2\r\n"},
		{"bulk missing terminator", "$3\r\nfooXX"},
		{"aggregate length overflow", "*2147483648\r\n"},
		{"boolean junk", "#x\r\n"},
		{"bad double", ",abc\r\n"},
		{"big number junk", "(12a3\r\n"},
		{"null with payload", "_x\r\n"},
		{"control marker", "\x05PING\r\n"},
		{"negative map length", "%-1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			p.Feed([]byte(tt.input))
			_, _, err := p.Next()
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("Next() error = %v, want ErrProtocol", err)
			}
		})
	}
}

// ============================================================
// Zero-copy: payloads alias the feed buffer until drained
// ============================================================

func TestParser_FreshBackingAfterDrain(t *testing.T) {
	p := NewParser()
	p.Feed([]byte("$3\r\nfoo\r\n"))
	v1, ok, err := p.Next()
	if err != nil || !ok {
		t.Fatalf("Next() ok=%v err=%v", ok, err)
	}

	// The buffer fully drained; feeding more must not clobber v1's bytes.
	p.Feed([]byte("$3\r\nbar\r\n"))
	v2, ok, err := p.Next()
	if err != nil || !ok {
		t.Fatalf("Next() ok=%v err=%v", ok, err)
	}

	if string(v1.Str) != "foo" {
		t.Errorf("first value corrupted: %q", v1.Str)
	}
	if string(v2.Str) != "bar" {
		t.Errorf("second value = %q, want bar", v2.Str)
	}
}
