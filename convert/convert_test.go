package convert

import (
	"math/big"
	"testing"

	"github.com/coreward/relkv/rowtype"
)

func TestConvertExactOverflowFails(t *testing.T) {
	_, err := Convert("n", int32(300), rowtype.TypeInt32, rowtype.TypeInt8, false)
	if err == nil {
		t.Fatal("expected exact conversion of 300 to int8 to fail")
	}
}

func TestConvertLossyClampsHigh(t *testing.T) {
	got, err := Convert("n", int32(300), rowtype.TypeInt32, rowtype.TypeInt8, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int8) != 127 {
		t.Fatalf("got %v, want clamp to 127", got)
	}
}

func TestConvertLossyClampsLow(t *testing.T) {
	got, err := Convert("n", int32(-300), rowtype.TypeInt32, rowtype.TypeInt8, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int8) != -128 {
		t.Fatalf("got %v, want clamp to -128", got)
	}
}

func TestConvertSignedToUnsignedNegativeClampsZero(t *testing.T) {
	got, err := Convert("n", int32(-5), rowtype.TypeInt32, rowtype.TypeUint8, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.(uint8) != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestConvertSignedToUnsignedExactNegativeFails(t *testing.T) {
	_, err := Convert("n", int32(-5), rowtype.TypeInt32, rowtype.TypeUint8, false)
	if err == nil {
		t.Fatal("expected exact conversion of -5 to uint8 to fail")
	}
}

func TestConvertFloatTruncatesTowardZero(t *testing.T) {
	got, err := Convert("n", float64(3.9), rowtype.TypeFloat64, rowtype.TypeInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int32) != 3 {
		t.Fatalf("got %v, want 3 (truncated)", got)
	}

	got, err = Convert("n", float64(-3.9), rowtype.TypeFloat64, rowtype.TypeInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int32) != -3 {
		t.Fatalf("got %v, want -3 (truncated toward zero)", got)
	}
}

func TestConvertBigIntegerRoundTrip(t *testing.T) {
	got, err := Convert("n", int64(42), rowtype.TypeInt64, rowtype.TypeBigInteger, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.(*big.Int).Int64() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestConvertBoolFromInt(t *testing.T) {
	got, err := Convert("n", int32(7), rowtype.TypeInt32, rowtype.TypeBool, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.(bool) != true {
		t.Fatal("expected non-zero int to convert to true")
	}
}

func TestConvertNilPassesThrough(t *testing.T) {
	got, err := Convert("n", nil, rowtype.TypeInt32, rowtype.TypeInt8, false)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}
