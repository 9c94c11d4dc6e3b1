package resp

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cases := []Value{
		NewSimpleString("OK"),
		NewError("ERR boom"),
		NewInteger(-42),
		NewInteger(0),
		NewBulkString("hello"),
		NewBulkString(""),
		NewBulkString("\x00\x01\x02"),
		NewNullBulkString(),
		NewArray([]Value{NewBulkString("SET"), NewBulkString("k"), NewBulkString("v")}),
		NewNullArray(),
		NewArray(nil),
	}

	for _, want := range cases {
		encoded := Encode(want)
		got, n, err := Parse(encoded)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", encoded, err)
		}
		if n != len(encoded) {
			t.Errorf("Parse(%q) consumed %d, want %d", encoded, n, len(encoded))
		}
		if !valuesEqual(got, want) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind || a.IsNull != b.IsNull {
		return false
	}
	if a.IsNull {
		return true
	}
	switch a.Kind {
	case Integer:
		return a.Int == b.Int
	case Array:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !valuesEqual(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return a.Str == b.Str
	}
}

func TestPartialInputNeedsMoreBytes(t *testing.T) {
	full := Encode(NewArray([]Value{NewBulkString("SET"), NewBulkString("k"), NewBulkString("v")}))

	for i := 0; i < len(full); i++ {
		_, _, err := Parse(full[:i])
		if err != ErrIncomplete {
			t.Fatalf("Parse(full[:%d]) = %v, want ErrIncomplete", i, err)
		}
	}

	v, n, err := Parse(full)
	if err != nil {
		t.Fatalf("Parse(full) error: %v", err)
	}
	if n != len(full) {
		t.Errorf("consumed %d, want %d", n, len(full))
	}
	if len(v.Elems) != 3 {
		t.Errorf("expected 3 elements, got %d", len(v.Elems))
	}
}

func TestBasicCommandEncoding(t *testing.T) {
	got := EncodeCommand("SET", "k", "v")
	want := []byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeCommand(SET, k, v) = %q, want %q", got, want)
	}
}

func TestUnknownLeadingByteIsParseError(t *testing.T) {
	_, _, err := Parse([]byte("@nope\r\n"))
	var pe *ParseError
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestMalformedBulkLengthIsParseError(t *testing.T) {
	_, _, err := Parse([]byte("$abc\r\n"))
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestPipelinedArraysParseSeparately(t *testing.T) {
	first := EncodeCommand("SET", "k", "v")
	second := EncodeCommand("GET", "k")
	combined := append(append([]byte{}, first...), second...)

	v1, n1, err := Parse(combined)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	v2, n2, err := Parse(combined[n1:])
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if n1+n2 != len(combined) {
		t.Errorf("consumed %d+%d, want %d", n1, n2, len(combined))
	}
	if v1.Elems[0].Str != "SET" || v2.Elems[0].Str != "GET" {
		t.Errorf("unexpected verbs: %q, %q", v1.Elems[0].Str, v2.Elems[0].Str)
	}
}
