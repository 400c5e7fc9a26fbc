package codec

import (
	"math/big"
	"testing"

	"github.com/coreward/relkv/rowtype"
)

func encodeOne(t *testing.T, c Codec, v any) []byte {
	t.Helper()
	size := c.MinSize() + c.EncodeSize(v, 0)
	buf := make([]byte, size+8) // headroom for LAST/over-estimate codecs
	end := c.Encode(v, buf, 0)
	return buf[:end]
}

func TestFixedCodecRoundTrip(t *testing.T) {
	col := rowtype.Column{Name: "n", Type: rowtype.TypeInt32}
	c := New(col, false, false)

	buf := encodeOne(t, c, int32(-42))
	got, _, err := c.Decode(buf, 0, len(buf))
	if err != nil {
		t.Fatal(err)
	}
	if got.(int32) != -42 {
		t.Fatalf("got %v, want -42", got)
	}
}

func TestFixedCodecSignedOrdering(t *testing.T) {
	col := rowtype.Column{Name: "n", Type: rowtype.TypeInt32}
	c := New(col, false, true)

	a := encodeOne(t, c, int32(-5))
	b := encodeOne(t, c, int32(3))
	if !bytesLess(a, b) {
		t.Fatal("expected encode(-5) < encode(3) under big-endian byte order")
	}
}

func TestFixedCodecNullable(t *testing.T) {
	col := rowtype.Column{Name: "n", Type: rowtype.TypeInt32, Nullable: true, NullOrder: rowtype.NullLow}
	c := New(col, false, true)

	nullBuf := encodeOne(t, c, nil)
	valBuf := encodeOne(t, c, int32(10))
	if !bytesLess(nullBuf, valBuf) {
		t.Fatal("NULL should sort low for NullLow column")
	}

	got, _, err := c.Decode(nullBuf, 0, len(nullBuf))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil decode, got %v", got)
	}
}

func TestStringCodecLexTermination(t *testing.T) {
	col := rowtype.Column{Name: "s", Type: rowtype.TypeString}
	c := New(col, false, true)

	short := encodeOne(t, c, "abc")
	long := encodeOne(t, c, "abcd")
	if !bytesLess(short, long) {
		t.Fatal("expected \"abc\" to sort before \"abcd\" in LEX string encoding")
	}

	got, n, err := c.Decode(long, 0, len(long))
	if err != nil {
		t.Fatal(err)
	}
	if got.(string) != "abcd" || n != len(long) {
		t.Fatalf("decode = (%v, %d), want (abcd, %d)", got, n, len(long))
	}
}

func TestStringCodecZeroByteEscape(t *testing.T) {
	col := rowtype.Column{Name: "s", Type: rowtype.TypeString}
	c := New(col, false, true)

	buf := encodeOne(t, c, "a\x00b")
	got, n, err := c.Decode(buf, 0, len(buf))
	if err != nil {
		t.Fatal(err)
	}
	if got.(string) != "a\x00b" || n != len(buf) {
		t.Fatalf("decode = (%q, %d), want (%q, %d)", got, n, "a\x00b", len(buf))
	}
}

func TestStringCodecLastNoPrefix(t *testing.T) {
	col := rowtype.Column{Name: "s", Type: rowtype.TypeString}
	c := New(col, true, false)

	buf := encodeOne(t, c, "tail value")
	got, n, err := c.Decode(buf, 0, len(buf))
	if err != nil {
		t.Fatal(err)
	}
	if got.(string) != "tail value" || n != len(buf) {
		t.Fatalf("decode = (%q, %d)", got, n)
	}
}

func TestBigIntegerCodecOrderingAcrossMagnitudes(t *testing.T) {
	col := rowtype.Column{Name: "b", Type: rowtype.TypeBigInteger}
	c := New(col, false, true)

	small := encodeOne(t, c, big.NewInt(9))
	big1 := encodeOne(t, c, big.NewInt(10))
	neg := encodeOne(t, c, big.NewInt(-1000))

	if !bytesLess(neg, small) {
		t.Fatal("expected negative to sort before positive")
	}
	if !bytesLess(small, big1) {
		t.Fatal("expected 9 < 10 under encoding")
	}
}

func TestBigIntegerCodecRoundTrip(t *testing.T) {
	col := rowtype.Column{Name: "b", Type: rowtype.TypeBigInteger}
	c := New(col, false, true)

	for _, v := range []int64{0, 1, -1, 123456789, -987654321} {
		buf := encodeOne(t, c, big.NewInt(v))
		got, _, err := c.Decode(buf, 0, len(buf))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got.(*big.Int).Int64() != v {
			t.Fatalf("decode(%d) = %v", v, got)
		}
	}
}

func TestBigDecimalFuzzyEquality(t *testing.T) {
	col := rowtype.Column{Name: "d", Type: rowtype.TypeBigDecimal}
	c := New(col, false, true)

	a := BigDecimal{Unscaled: big.NewInt(150), Scale: 2} // 1.50
	b := BigDecimal{Unscaled: big.NewInt(15), Scale: 1}  // 1.5

	bufA := encodeOne(t, c, a)
	bufB := encodeOne(t, c, b)
	if string(bufA) != string(bufB) {
		t.Fatalf("expected 1.50 and 1.5 to encode identically, got %x vs %x", bufA, bufB)
	}
}

func TestBigDecimalRoundTrip(t *testing.T) {
	col := rowtype.Column{Name: "d", Type: rowtype.TypeBigDecimal}
	c := New(col, false, true)

	v := BigDecimal{Unscaled: big.NewInt(-31400), Scale: 4} // -3.1400 -> normalizes to -314/100
	buf := encodeOne(t, c, v)
	got, _, err := c.Decode(buf, 0, len(buf))
	if err != nil {
		t.Fatal(err)
	}
	bd := got.(BigDecimal)
	if bd.Unscaled.Int64() != -314 || bd.Scale != 2 {
		t.Fatalf("got unscaled=%v scale=%d, want -314 scale=2", bd.Unscaled, bd.Scale)
	}
}

func TestVersionPrefixBoundary(t *testing.T) {
	buf := make([]byte, 4)

	n := EncodeVersion(127, buf, 0)
	if n != 1 {
		t.Fatalf("version 127 should encode in 1 byte, used %d", n)
	}
	v, next := DecodeVersion(buf, 0)
	if v != 127 || next != 1 {
		t.Fatalf("decode(127) = (%d, %d)", v, next)
	}

	n = EncodeVersion(128, buf, 0)
	if n != 4 {
		t.Fatalf("version 128 should encode in 4 bytes, used %d", n)
	}
	v, next = DecodeVersion(buf, 0)
	if v != 128 || next != 4 {
		t.Fatalf("decode(128) = (%d, %d)", v, next)
	}
}

func TestReferenceCodecEncodePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Encode on a reference column to panic")
		}
	}()
	col := rowtype.Column{Name: "r", Type: rowtype.TypeReference}
	c := New(col, false, false)
	c.Encode("anything", make([]byte, 8), 0)
}

func bytesLess(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
