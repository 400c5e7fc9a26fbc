// Package codec implements the column codec family: stateless, per-column
// binary encoders/decoders supporting order-preserving keys, nullability,
// schema evolution, partial (skip-only) decoding, and the filter-quick
// hooks that let a scan evaluator compare raw encoded bytes to a
// pre-decoded argument without materializing the column.
//
// Rather than one global serial-type switch, every column gets its own
// Codec instance bound to its rowtype.Column (nullability, direction,
// LAST/LEX applicability).
package codec

import "github.com/coreward/relkv/rowtype"

// Codec is the contract every column codec implements. It is stateless:
// all behavior is a pure function of the bytes and the bound column.
type Codec interface {
	// MinSize is the fixed component of the encoded length (0 for purely
	// variable-length codecs).
	MinSize() int

	// EncodeSize accumulates the additional variable-length bytes needed
	// to encode src, added to acc.
	EncodeSize(src any, acc int) int

	// Encode writes src into dst starting at offset, returning the
	// advanced offset.
	Encode(src any, dst []byte, offset int) int

	// Decode reads a value from src starting at offset, returning the
	// decoded value and the advanced offset. end is the exclusive end of
	// the buffer region available to read; a negative end means "to the
	// end of src".
	Decode(src []byte, offset, end int) (any, int, error)

	// DecodeSkip advances offset past the column without materializing
	// its value.
	DecodeSkip(src []byte, offset, end int) (int, error)

	// IsLast reports whether this codec instance may omit a length
	// prefix because it is always the last variable-length column in its
	// key or value.
	IsLast() bool

	// IsLex reports whether this codec instance uses an order-preserving
	// (lexicographic) encoding.
	IsLex() bool

	// Equal compares encoding strategy plus null/descending ordering,
	// ignoring the bound column's name.
	Equal(other Codec) bool
}

// QuickFilter is an optional capability: codecs that support comparing
// raw encoded bytes directly against a pre-decoded filter argument,
// without allocating a decoded column value.
type QuickFilter interface {
	// CanFilterQuick reports whether quick filtering is available for a
	// comparison against targetColumn's type.
	CanFilterQuick(target rowtype.Column) bool

	// FilterQuickDecode pre-decodes a filter argument (typically a
	// literal or bound argument) into the representation
	// FilterQuickCompare expects.
	FilterQuickDecode(arg any) any

	// FilterQuickCompare compares the raw encoded bytes at src[offset:]
	// against a value produced by FilterQuickDecode, returning
	// -1/0/+1 without materializing the column.
	FilterQuickCompare(decodedArg any, src []byte, offset int) int
}

// base holds the fields shared by every codec family: the bound column and
// the two encoding flags.
type base struct {
	column rowtype.Column
	last   bool
	lex    bool
}

func (b base) IsLast() bool { return b.last }
func (b base) IsLex() bool  { return b.lex }

func (b base) equalBase(o base) bool {
	return b.last == o.last &&
		b.lex == o.lex &&
		b.column.Nullable == o.column.Nullable &&
		b.column.Direction == o.column.Direction &&
		b.column.NullOrder == o.column.NullOrder
}

// Null header bytes: which pair is used depends on
// (descending XOR nullLow), so that NULL always sorts to the configured
// end regardless of column direction.
const (
	notNullLo byte = 0x01
	notNullHi byte = 0x02
	nullLo    byte = 0x00
	nullHi    byte = 0x03
)

// nullHeader returns the (notNull, null) header byte pair to use for a
// column with the given direction/nullOrder combination.
func nullHeader(descending bool, nullLow bool) (notNull, isNull byte) {
	if descending != nullLow {
		return notNullLo, nullLo
	}
	return notNullHi, nullHi
}

// complement flips every bit in dst[offset:offset+n], used to encode
// descending LEX columns (SQLite/Tupl-style "invert the bytes").
func complement(dst []byte, offset, n int) {
	for i := 0; i < n; i++ {
		dst[offset+i] = ^dst[offset+i]
	}
}

// New builds the appropriate Codec for a column, selecting a family by
// type and the last/lex flags requested by the caller (callers are
// responsible for knowing IS_LAST/IS_LEX applicability from context: LEX is
// requested for key columns, LAST for the trailing variable-length column
// of a key or value).
func New(column rowtype.Column, last, lex bool) Codec {
	b := base{column: column, last: last, lex: lex}

	switch column.Type {
	case rowtype.TypeInt8, rowtype.TypeInt16, rowtype.TypeInt32, rowtype.TypeInt64,
		rowtype.TypeUint8, rowtype.TypeUint16, rowtype.TypeUint32, rowtype.TypeUint64,
		rowtype.TypeFloat32, rowtype.TypeFloat64, rowtype.TypeBool, rowtype.TypeChar:
		return newFixedCodec(b)

	case rowtype.TypeString:
		return newStringCodec(b)

	case rowtype.TypeArray:
		return newArrayCodec(b)

	case rowtype.TypeBigInteger:
		return newBigIntegerCodec(b)

	case rowtype.TypeBigDecimal:
		return newBigDecimalCodec(b)

	case rowtype.TypeReference:
		return referenceCodec{b}

	default:
		panic("codec: unknown column type " + column.Type.String())
	}
}
