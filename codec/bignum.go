package codec

import (
	"fmt"
	"math/big"

	"github.com/coreward/relkv/rowtype"
)

// bigIntegerCodec encodes math/big.Int values as a sign byte followed by
// the absolute value's decimal digits, prefixed by a varint digit count so
// magnitudes of different length compare correctly before falling back to
// digit-by-digit comparison. Negative values additionally get their digit
// count and digits complemented so that more-negative sorts before
// less-negative.
type bigIntegerCodec struct {
	base
}

func newBigIntegerCodec(b base) Codec { return bigIntegerCodec{b} }

func (c bigIntegerCodec) MinSize() int {
	if c.column.Nullable {
		return 1
	}
	return 0
}

func (c bigIntegerCodec) EncodeSize(src any, acc int) int {
	if src == nil {
		return acc
	}
	v := src.(*big.Int)
	digits := v.Abs(new(big.Int).Set(v)).String()
	return acc + 1 + varintLen(uint64(len(digits))) + len(digits)
}

func (c bigIntegerCodec) Encode(src any, dst []byte, offset int) int {
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

	v := src.(*big.Int)
	start := offset
	negative := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()

	// Sign byte: order so negative < zero < positive regardless of
	// descending (descending is handled by the blanket complement below).
	switch {
	case negative:
		dst[offset] = 0x00
	case v.Sign() == 0:
		dst[offset] = 0x01
	default:
		dst[offset] = 0x02
	}
	offset++

	offset += putVarint(dst[offset:], uint64(len(digits)))
	offset += copy(dst[offset:], digits)

	if negative {
		// Flip digit ordering for negative magnitudes: larger magnitude
		// (more negative) must sort first.
		complement(dst, start+1, offset-start-1)
	}
	if c.column.Descending() {
		complement(dst, start, offset-start)
	}
	return offset
}

func (c bigIntegerCodec) Decode(src []byte, offset, end int) (any, int, error) {
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

	raw := append([]byte(nil), src[offset:end]...)
	if c.column.Descending() {
		for i := range raw {
			raw[i] = ^raw[i]
		}
	}

	if len(raw) == 0 {
		return nil, offset, fmt.Errorf("codec: truncated bigint %q", c.column.Name)
	}
	signByte := raw[0]
	negative := signByte == 0x00

	body := raw[1:]
	if negative {
		for i := range body {
			body[i] = ^body[i]
		}
	}

	n, sz := getVarint(body, 0)
	if sz == 0 {
		return nil, offset, fmt.Errorf("codec: bad bigint length prefix %q", c.column.Name)
	}
	digits := string(body[sz : sz+int(n)])

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, offset, fmt.Errorf("codec: corrupt bigint digits %q", c.column.Name)
	}
	if negative {
		v.Neg(v)
	}
	return v, offset + 1 + sz + int(n), nil
}

func (c bigIntegerCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	_, next, err := c.Decode(src, offset, end)
	if err != nil {
		return offset, err
	}
	return next, nil
}

func (c bigIntegerCodec) Equal(other Codec) bool {
	o, ok := other.(bigIntegerCodec)
	return ok && c.equalBase(o.base)
}

// bigDecimalCodec encodes BigDecimal values (unscaled
// big.Int plus an int32 scale) using a "fuzzy" scale-independent
// normalization: trailing zeros are divided out of the unscaled value
// while the scale is decremented in step, so that 1.50 and 1.5 — equal in
// value but carrying different original scales — normalize to the same
// canonical (unscaled, scale) pair and therefore encode identically. This
// mirrors the numeric (not textual) equality semantics decimal types need
// for filter and index comparisons.
type bigDecimalCodec struct {
	base
}

func newBigDecimalCodec(b base) Codec { return bigDecimalCodec{b} }

// BigDecimal is the value type bigDecimalCodec encodes: unscaled * 10^-scale.
type BigDecimal struct {
	Unscaled *big.Int
	Scale    int32
}

// Normalize divides out trailing zeros from Unscaled, decrementing Scale
// in step, so that arithmetically equal decimals with different original
// scales compare and hash identically.
func (d BigDecimal) Normalize() BigDecimal {
	if d.Unscaled.Sign() == 0 {
		return BigDecimal{Unscaled: big.NewInt(0), Scale: 0}
	}
	u := new(big.Int).Set(d.Unscaled)
	scale := d.Scale
	ten := big.NewInt(10)
	rem := new(big.Int)
	q := new(big.Int)
	for {
		q.QuoRem(u, ten, rem)
		if rem.Sign() != 0 {
			break
		}
		u.Set(q)
		scale--
	}
	return BigDecimal{Unscaled: u, Scale: scale}
}

func (c bigDecimalCodec) MinSize() int {
	if c.column.Nullable {
		return 1
	}
	return 0
}

func (c bigDecimalCodec) EncodeSize(src any, acc int) int {
	if src == nil {
		return acc
	}
	d := src.(BigDecimal).Normalize()
	digits := new(big.Int).Abs(d.Unscaled).String()
	// sign(1) + biased-exponent varint + digit-count varint + digits
	return acc + 1 + 5 + varintLen(uint64(len(digits))) + len(digits)
}

// exponentBias keeps the biased scale non-negative across the plausible
// range of decimal scales this codec is expected to carry.
const exponentBias = 1 << 20

func (c bigDecimalCodec) Encode(src any, dst []byte, offset int) int {
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

	d := src.(BigDecimal).Normalize()
	start := offset
	negative := d.Unscaled.Sign() < 0
	digits := new(big.Int).Abs(d.Unscaled).String()

	switch {
	case negative:
		dst[offset] = 0x00
	case d.Unscaled.Sign() == 0:
		dst[offset] = 0x01
	default:
		dst[offset] = 0x02
	}
	offset++

	// Encode -scale (i.e. decimal exponent of the most significant digit
	// grouping) so that larger magnitudes sort after smaller ones; bias
	// keeps it a non-negative varint. Sign reversal for negative values is
	// handled uniformly by the complement step below, same as the digit
	// string.
	biased := uint64(int64(-d.Scale) + exponentBias)
	expOff := offset
	offset += putVarint(dst[offset:], biased)
	if negative {
		complement(dst, expOff, offset-expOff)
	}

	offset += putVarint(dst[offset:], uint64(len(digits)))
	digitsOff := offset
	offset += copy(dst[offset:], digits)
	if negative {
		complement(dst, digitsOff, offset-digitsOff)
	}

	if c.column.Descending() {
		complement(dst, start, offset-start)
	}
	return offset
}

func (c bigDecimalCodec) Decode(src []byte, offset, end int) (any, int, error) {
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

	raw := append([]byte(nil), src[offset:end]...)
	if c.column.Descending() {
		for i := range raw {
			raw[i] = ^raw[i]
		}
	}
	if len(raw) == 0 {
		return nil, offset, fmt.Errorf("codec: truncated bigdecimal %q", c.column.Name)
	}
	negative := raw[0] == 0x00
	pos := 1

	expBytes := append([]byte(nil), raw[pos:]...)
	if negative {
		for i := range expBytes {
			expBytes[i] = ^expBytes[i]
		}
	}
	biased, sz := getVarint(expBytes, 0)
	if sz == 0 {
		return nil, offset, fmt.Errorf("codec: bad bigdecimal exponent %q", c.column.Name)
	}
	pos += sz

	scale := int32(-(int64(biased) - exponentBias))

	digitsRaw := append([]byte(nil), raw[pos:]...)
	if negative {
		for i := range digitsRaw {
			digitsRaw[i] = ^digitsRaw[i]
		}
	}
	n, dsz := getVarint(digitsRaw, 0)
	if dsz == 0 {
		return nil, offset, fmt.Errorf("codec: bad bigdecimal digit count %q", c.column.Name)
	}
	digits := string(digitsRaw[dsz : dsz+int(n)])

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, offset, fmt.Errorf("codec: corrupt bigdecimal digits %q", c.column.Name)
	}
	if negative {
		v.Neg(v)
	}
	consumed := 1 + sz + dsz + int(n)
	return BigDecimal{Unscaled: v, Scale: scale}, offset + consumed, nil
}

func (c bigDecimalCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	_, next, err := c.Decode(src, offset, end)
	if err != nil {
		return offset, err
	}
	return next, nil
}

func (c bigDecimalCodec) Equal(other Codec) bool {
	o, ok := other.(bigDecimalCodec)
	return ok && c.equalBase(o.base)
}

var _ = rowtype.TypeBigDecimal // keep rowtype import honest if unused elsewhere
