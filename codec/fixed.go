package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/coreward/relkv/rowtype"
)

// fixedCodec handles every fixed-width primitive: 1/2/4/8-byte integers
// (signed and unsigned), float32/64, bool, and char (one byte). A nullable
// fixed column gets one extra leading header byte instead of a sentinel
// value, so that a leading header byte rather than a sentinel marks NULL
// and 0 remains a valid, distinguishable non-null value.
type fixedCodec struct {
	base
	width int
}

func newFixedCodec(b base) Codec {
	return fixedCodec{base: b, width: fixedWidth(b.column.Type)}
}

func fixedWidth(t rowtype.Type) int {
	switch t {
	case rowtype.TypeInt8, rowtype.TypeUint8, rowtype.TypeBool, rowtype.TypeChar:
		return 1
	case rowtype.TypeInt16, rowtype.TypeUint16:
		return 2
	case rowtype.TypeInt32, rowtype.TypeUint32, rowtype.TypeFloat32:
		return 4
	case rowtype.TypeInt64, rowtype.TypeUint64, rowtype.TypeFloat64:
		return 8
	default:
		panic("codec: not a fixed-width type")
	}
}

func (c fixedCodec) MinSize() int {
	n := c.width
	if c.column.Nullable {
		n++
	}
	return n
}

func (c fixedCodec) EncodeSize(src any, acc int) int { return acc } // fully fixed

func (c fixedCodec) Encode(src any, dst []byte, offset int) int {
	if c.column.Nullable {
		notNull, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		if src == nil {
			dst[offset] = isNull
			offset++
			// Still emit width zero bytes so downstream fixed-offset
			// readers relying on MinSize stay aligned.
			for i := 0; i < c.width; i++ {
				dst[offset+i] = 0
			}
			if c.lex && c.column.Descending() {
				complement(dst, offset, c.width)
			}
			return offset + c.width
		}
		dst[offset] = notNull
		offset++
	}

	start := offset
	switch c.column.Type {
	case rowtype.TypeInt8:
		dst[offset] = encodeSigned1(src.(int8))
	case rowtype.TypeUint8:
		dst[offset] = src.(uint8)
	case rowtype.TypeBool:
		if src.(bool) {
			dst[offset] = 1
		} else {
			dst[offset] = 0
		}
	case rowtype.TypeChar:
		dst[offset] = src.(byte)
	case rowtype.TypeInt16:
		binary.BigEndian.PutUint16(dst[offset:], encodeSigned16(src.(int16)))
	case rowtype.TypeUint16:
		binary.BigEndian.PutUint16(dst[offset:], src.(uint16))
	case rowtype.TypeInt32:
		binary.BigEndian.PutUint32(dst[offset:], encodeSigned32(src.(int32)))
	case rowtype.TypeUint32:
		binary.BigEndian.PutUint32(dst[offset:], src.(uint32))
	case rowtype.TypeFloat32:
		binary.BigEndian.PutUint32(dst[offset:], math.Float32bits(src.(float32)))
	case rowtype.TypeInt64:
		binary.BigEndian.PutUint64(dst[offset:], encodeSigned64(src.(int64)))
	case rowtype.TypeUint64:
		binary.BigEndian.PutUint64(dst[offset:], src.(uint64))
	case rowtype.TypeFloat64:
		binary.BigEndian.PutUint64(dst[offset:], math.Float64bits(src.(float64)))
	}
	offset += c.width

	if c.lex && c.column.Descending() {
		complement(dst, start, c.width)
	}
	return offset
}

// encodeSignedN flips the sign bit so that two's-complement signed
// integers compare correctly as unsigned big-endian bytes, the classic
// order-preserving trick for sortable binary integer keys.
func encodeSigned1(v int8) byte   { return byte(v) ^ 0x80 }
func encodeSigned16(v int16) uint16 { return uint16(v) ^ 0x8000 }
func encodeSigned32(v int32) uint32 { return uint32(v) ^ 0x80000000 }
func encodeSigned64(v int64) uint64 { return uint64(v) ^ 0x8000000000000000 }

func decodeSigned1(b byte) int8     { return int8(b ^ 0x80) }
func decodeSigned16(v uint16) int16 { return int16(v ^ 0x8000) }
func decodeSigned32(v uint32) int32 { return int32(v ^ 0x80000000) }
func decodeSigned64(v uint64) int64 { return int64(v ^ 0x8000000000000000) }

func (c fixedCodec) Decode(src []byte, offset, end int) (any, int, error) {
	if c.column.Nullable {
		if offset >= len(src) {
			return nil, offset, fmt.Errorf("codec: truncated null header for %q", c.column.Name)
		}
		_, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		header := src[offset]
		offset++
		if header == isNull {
			return nil, offset + c.width, nil
		}
	}

	if offset+c.width > len(src) {
		return nil, offset, fmt.Errorf("codec: truncated fixed column %q", c.column.Name)
	}

	buf := src[offset : offset+c.width]
	if c.lex && c.column.Descending() {
		tmp := make([]byte, c.width)
		for i, bb := range buf {
			tmp[i] = ^bb
		}
		buf = tmp
	}

	var v any
	switch c.column.Type {
	case rowtype.TypeInt8:
		v = decodeSigned1(buf[0])
	case rowtype.TypeUint8:
		v = buf[0]
	case rowtype.TypeBool:
		v = buf[0] != 0
	case rowtype.TypeChar:
		v = buf[0]
	case rowtype.TypeInt16:
		v = decodeSigned16(binary.BigEndian.Uint16(buf))
	case rowtype.TypeUint16:
		v = binary.BigEndian.Uint16(buf)
	case rowtype.TypeInt32:
		v = decodeSigned32(binary.BigEndian.Uint32(buf))
	case rowtype.TypeUint32:
		v = binary.BigEndian.Uint32(buf)
	case rowtype.TypeFloat32:
		v = math.Float32frombits(binary.BigEndian.Uint32(buf))
	case rowtype.TypeInt64:
		v = decodeSigned64(binary.BigEndian.Uint64(buf))
	case rowtype.TypeUint64:
		v = binary.BigEndian.Uint64(buf)
	case rowtype.TypeFloat64:
		v = math.Float64frombits(binary.BigEndian.Uint64(buf))
	}

	return v, offset + c.width, nil
}

func (c fixedCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	n := c.width
	if c.column.Nullable {
		n++
	}
	if offset+n > len(src) {
		return offset, fmt.Errorf("codec: truncated fixed column %q", c.column.Name)
	}
	return offset + n, nil
}

func (c fixedCodec) Equal(other Codec) bool {
	o, ok := other.(fixedCodec)
	return ok && c.width == o.width && c.equalBase(o.base)
}

var _ QuickFilter = fixedCodec{}

func (c fixedCodec) CanFilterQuick(target rowtype.Column) bool {
	return target.Type == c.column.Type && !c.column.Nullable
}

func (c fixedCodec) FilterQuickDecode(arg any) any { return arg }

func (c fixedCodec) FilterQuickCompare(decodedArg any, src []byte, offset int) int {
	v, _, err := c.Decode(src, offset, -1)
	if err != nil {
		return 0
	}
	return compareOrdered(v, decodedArg)
}
