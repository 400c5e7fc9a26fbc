package codec

import (
	"fmt"

	"github.com/coreward/relkv/rowtype"
)

// arrayCodec handles TypeArray columns: a fixed-length sequence of a
// primitive element type, encoded element-by-element with an inner fixed
// codec built for ElementType. Only fixed-width element types are
// supported; a variable-width element type is an array of a different
// shape than the key-column model this family targets.
type arrayCodec struct {
	base
	elem   Codec
	length int
}

func newArrayCodec(b base) Codec {
	elemColumn := rowtype.Column{
		Name:      b.column.Name + "[]",
		Type:      b.column.ElementType,
		Direction: b.column.Direction,
		NullOrder: b.column.NullOrder,
	}
	return arrayCodec{
		base:   b,
		elem:   newFixedCodec(base{column: elemColumn, last: false, lex: b.lex}),
		length: b.column.ArrayLen,
	}
}

func (c arrayCodec) MinSize() int {
	n := c.elem.MinSize() * c.length
	if c.column.Nullable {
		n++
	}
	return n
}

func (c arrayCodec) EncodeSize(src any, acc int) int { return acc }

func (c arrayCodec) Encode(src any, dst []byte, offset int) int {
	if c.column.Nullable {
		notNull, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		if src == nil {
			dst[offset] = isNull
			offset++
			for i := 0; i < c.length; i++ {
				offset = c.elem.Encode(zeroValue(c.column.ElementType), dst, offset)
			}
			return offset
		}
		dst[offset] = notNull
		offset++
	}

	elems := toAnySlice(src)
	for i := 0; i < c.length; i++ {
		offset = c.elem.Encode(elems[i], dst, offset)
	}
	return offset
}

func (c arrayCodec) Decode(src []byte, offset, end int) (any, int, error) {
	if c.column.Nullable {
		if offset >= len(src) {
			return nil, offset, fmt.Errorf("codec: truncated null header for %q", c.column.Name)
		}
		_, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		header := src[offset]
		if header == isNull {
			skip, err := c.DecodeSkip(src, offset, end)
			return nil, skip, err
		}
		offset++
	}

	out := make([]any, c.length)
	for i := 0; i < c.length; i++ {
		v, next, err := c.elem.Decode(src, offset, end)
		if err != nil {
			return nil, offset, err
		}
		out[i] = v
		offset = next
	}
	return out, offset, nil
}

func (c arrayCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	if c.column.Nullable {
		offset++
	}
	for i := 0; i < c.length; i++ {
		next, err := c.elem.DecodeSkip(src, offset, end)
		if err != nil {
			return offset, err
		}
		offset = next
	}
	return offset, nil
}

func (c arrayCodec) Equal(other Codec) bool {
	o, ok := other.(arrayCodec)
	return ok && c.length == o.length && c.elem.Equal(o.elem) && c.equalBase(o.base)
}

func zeroValue(t rowtype.Type) any {
	switch t {
	case rowtype.TypeInt8:
		return int8(0)
	case rowtype.TypeInt16:
		return int16(0)
	case rowtype.TypeInt32:
		return int32(0)
	case rowtype.TypeInt64:
		return int64(0)
	case rowtype.TypeUint8:
		return uint8(0)
	case rowtype.TypeUint16:
		return uint16(0)
	case rowtype.TypeUint32:
		return uint32(0)
	case rowtype.TypeUint64:
		return uint64(0)
	case rowtype.TypeFloat32:
		return float32(0)
	case rowtype.TypeFloat64:
		return float64(0)
	case rowtype.TypeBool:
		return false
	default:
		return byte(0)
	}
}

func toAnySlice(src any) []any {
	if s, ok := src.([]any); ok {
		return s
	}
	panic("codec: array column value must be []any")
}
