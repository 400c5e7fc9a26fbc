package codec

import (
	"bytes"
	"fmt"

	"github.com/coreward/relkv/rowtype"
)

// stringCodec handles UTF8 TypeString columns in three shapes depending on
// the base flags: plain length-prefixed (varint, not order-preserving),
// LAST (no prefix at all — relies on being the final variable-length
// column so the remaining buffer IS the value), and LEX (order-preserving,
// zero-byte escaped and terminated so that prefix strings compare less
// than their extensions).
type stringCodec struct {
	base
}

func newStringCodec(b base) Codec { return stringCodec{b} }

func (c stringCodec) MinSize() int {
	if c.column.Nullable {
		return 1
	}
	return 0
}

func (c stringCodec) EncodeSize(src any, acc int) int {
	if src == nil {
		return acc
	}
	s := src.(string)
	switch {
	case c.lex:
		return acc + lexStringSize(s)
	case c.last:
		return acc + len(s)
	default:
		return acc + varintLen(uint64(len(s))) + len(s)
	}
}

// lexStringSize returns the size of the zero-escaped, terminated LEX
// encoding: every 0x00 byte in s becomes 0x00 0x01, and the whole value is
// terminated by a 0x00 0x00 pair so that "abc" sorts before "abcd".
func lexStringSize(s string) int {
	n := len(s) + 2 // +2 terminator
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			n++
		}
	}
	return n
}

func (c stringCodec) Encode(src any, dst []byte, offset int) int {
	if c.column.Nullable {
		notNull, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		if src == nil {
			dst[offset] = isNull
			return offset + 1
		}
		dst[offset] = notNull
		offset++
	}
	if src == nil {
		return offset
	}

	s := src.(string)
	start := offset

	switch {
	case c.lex:
		for i := 0; i < len(s); i++ {
			ch := s[i]
			dst[offset] = ch
			offset++
			if ch == 0x00 {
				dst[offset] = 0x01
				offset++
			}
		}
		dst[offset] = 0x00
		dst[offset+1] = 0x00
		offset += 2
		if c.column.Descending() {
			complement(dst, start, offset-start)
		}
	case c.last:
		offset += copy(dst[offset:], s)
	default:
		offset += putVarint(dst[offset:], uint64(len(s)))
		offset += copy(dst[offset:], s)
	}
	return offset
}

func (c stringCodec) Decode(src []byte, offset, end int) (any, int, error) {
	if end < 0 || end > len(src) {
		end = len(src)
	}
	if c.column.Nullable {
		if offset >= len(src) {
			return nil, offset, fmt.Errorf("codec: truncated null header for %q", c.column.Name)
		}
		_, isNull := nullHeader(c.column.Descending(), c.column.NullLow())
		header := src[offset]
		if header == isNull {
			return nil, offset + 1, nil
		}
		offset++
	}

	switch {
	case c.lex:
		raw := src[offset:end]
		if c.column.Descending() {
			raw = append([]byte(nil), raw...)
			for i := range raw {
				raw[i] = ^raw[i]
			}
		}
		var buf bytes.Buffer
		i := 0
		for i < len(raw) {
			if raw[i] == 0x00 {
				if i+1 < len(raw) && raw[i+1] == 0x01 {
					buf.WriteByte(0x00)
					i += 2
					continue
				}
				// 0x00 0x00 terminator.
				i += 2
				return buf.String(), offset + i, nil
			}
			buf.WriteByte(raw[i])
			i++
		}
		return nil, offset, fmt.Errorf("codec: unterminated LEX string for %q", c.column.Name)

	case c.last:
		return string(src[offset:end]), end, nil

	default:
		n, sz := getVarint(src, offset)
		if sz == 0 {
			return nil, offset, fmt.Errorf("codec: bad length prefix for %q", c.column.Name)
		}
		offset += sz
		strEnd := offset + int(n)
		if strEnd > end {
			return nil, offset, fmt.Errorf("codec: truncated string %q", c.column.Name)
		}
		return string(src[offset:strEnd]), strEnd, nil
	}
}

func (c stringCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	_, next, err := c.Decode(src, offset, end)
	if err != nil {
		return offset, err
	}
	return next, nil
}

func (c stringCodec) Equal(other Codec) bool {
	o, ok := other.(stringCodec)
	return ok && c.equalBase(o.base)
}

var _ QuickFilter = stringCodec{}

func (c stringCodec) CanFilterQuick(target rowtype.Column) bool {
	return target.Type == rowtype.TypeString && c.lex && !c.column.Nullable
}

func (c stringCodec) FilterQuickDecode(arg any) any { return arg }

func (c stringCodec) FilterQuickCompare(decodedArg any, src []byte, offset int) int {
	v, _, err := c.Decode(src, offset, -1)
	if err != nil {
		return 0
	}
	return compareOrdered(v, decodedArg)
}
