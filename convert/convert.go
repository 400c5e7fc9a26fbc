// Package convert implements the value conversion matrix between
// rowtype's closed type enumeration: lossy conversions that clamp or
// truncate out-of-range values, and exact conversions that fail with a
// typed error rather than silently lose information.
//
// Rather than coercing a dynamic value to one storage affinity, this
// package enumerates the full (srcType, dstType) matrix explicitly, with
// the same integer-promotion clamp logic a single-affinity coercion would
// use for each pair.
package convert

import (
	"fmt"
	"math"
	"math/big"

	"github.com/coreward/relkv/codec"
	"github.com/coreward/relkv/errs"
	"github.com/coreward/relkv/rowtype"
)

// Convert converts v (assumed to already be a Go value matching srcType)
// to dstType. When lossy is true, out-of-range numeric conversions clamp
// to the destination type's min/max instead of failing; truncation of a
// fractional component (float -> integer) is always lossy regardless of
// this flag's setting: floats always truncate toward zero.
func Convert(column string, v any, srcType, dstType rowtype.Type, lossy bool) (any, error) {
	if v == nil {
		return nil, nil
	}
	if srcType == dstType {
		return v, nil
	}

	switch {
	case dstType.IsSigned():
		return convertToSigned(column, v, srcType, dstType, lossy)
	case dstType.IsUnsigned():
		return convertToUnsigned(column, v, srcType, dstType, lossy)
	case dstType == rowtype.TypeFloat32:
		f, err := toFloat64(column, v, srcType)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case dstType == rowtype.TypeFloat64:
		return toFloat64(column, v, srcType)
	case dstType == rowtype.TypeBigInteger:
		return toBigInteger(column, v, srcType, lossy)
	case dstType == rowtype.TypeBigDecimal:
		return toBigDecimal(column, v, srcType)
	case dstType == rowtype.TypeString:
		return toString(v, srcType)
	case dstType == rowtype.TypeBool:
		return toBool(column, v, srcType)
	default:
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
	}
}

func bounds(t rowtype.Type) (minV, maxV int64, unsigned bool, uMax uint64) {
	switch t {
	case rowtype.TypeInt8:
		return math.MinInt8, math.MaxInt8, false, 0
	case rowtype.TypeInt16:
		return math.MinInt16, math.MaxInt16, false, 0
	case rowtype.TypeInt32:
		return math.MinInt32, math.MaxInt32, false, 0
	case rowtype.TypeInt64:
		return math.MinInt64, math.MaxInt64, false, 0
	case rowtype.TypeUint8:
		return 0, 0, true, math.MaxUint8
	case rowtype.TypeUint16:
		return 0, 0, true, math.MaxUint16
	case rowtype.TypeUint32:
		return 0, 0, true, math.MaxUint32
	case rowtype.TypeUint64:
		return 0, 0, true, math.MaxUint64
	default:
		panic("convert: not an integer type")
	}
}

// asSigned extracts an int64-representable magnitude from v, which must be
// one of the signed/unsigned fixed integer Go types or bool.
func asSigned(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asUnsigned(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}

// clampSS clamps a signed source magnitude into a signed destination's
// range.
func clampSS(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampSU clamps a signed source magnitude into an unsigned
// destination's range (negative clamps to 0).
func clampSU(v int64, uMax uint64) uint64 {
	if v < 0 {
		return 0
	}
	if uint64(v) > uMax {
		return uMax
	}
	return uint64(v)
}

// clampUS clamps an unsigned source magnitude into a signed
// destination's range.
func clampUS(v uint64, hi int64) int64 {
	if v > uint64(hi) {
		return hi
	}
	return int64(v)
}

// clampUU clamps an unsigned source magnitude into an unsigned
// destination's range.
func clampUU(v, uMax uint64) uint64 {
	if v > uMax {
		return uMax
	}
	return v
}

func convertToSigned(column string, v any, srcType, dstType rowtype.Type, lossy bool) (any, error) {
	lo, hi, _, _ := bounds(dstType)

	var raw int64
	switch {
	case srcType.IsSigned() || srcType == rowtype.TypeBool:
		var ok bool
		raw, ok = asSigned(v)
		if !ok {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
	case srcType.IsUnsigned():
		u, ok := asUnsigned(v)
		if !ok {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		if !lossy && u > uint64(hi) {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		raw = clampUS(u, hi)
		return narrowSigned(dstType, raw), nil
	case srcType == rowtype.TypeFloat32 || srcType == rowtype.TypeFloat64:
		f, err := toFloat64(column, v, srcType)
		if err != nil {
			return nil, err
		}
		trunc := math.Trunc(f)
		if !lossy && (trunc < float64(lo) || trunc > float64(hi)) {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		clamped := clampFloatToInt64(trunc, lo, hi)
		return narrowSigned(dstType, clamped), nil
	case srcType == rowtype.TypeBigInteger:
		bi := v.(*big.Int)
		if !lossy && (!bi.IsInt64() || bi.Int64() < lo || bi.Int64() > hi) {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		raw = clampBigIntToInt64(bi, lo, hi)
		return narrowSigned(dstType, raw), nil
	default:
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
	}

	if !lossy && (raw < lo || raw > hi) {
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
	}
	return narrowSigned(dstType, clampSS(raw, lo, hi)), nil
}

func convertToUnsigned(column string, v any, srcType, dstType rowtype.Type, lossy bool) (any, error) {
	_, _, _, uMax := bounds(dstType)

	switch {
	case srcType.IsUnsigned():
		u, _ := asUnsigned(v)
		if !lossy && u > uMax {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		return narrowUnsigned(dstType, clampUU(u, uMax)), nil
	case srcType.IsSigned() || srcType == rowtype.TypeBool:
		s, _ := asSigned(v)
		if !lossy && (s < 0 || uint64(s) > uMax) {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		return narrowUnsigned(dstType, clampSU(s, uMax)), nil
	case srcType == rowtype.TypeFloat32 || srcType == rowtype.TypeFloat64:
		f, err := toFloat64(column, v, srcType)
		if err != nil {
			return nil, err
		}
		trunc := math.Trunc(f)
		if !lossy && (trunc < 0 || trunc > float64(uMax)) {
			return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
		}
		if trunc < 0 {
			return narrowUnsigned(dstType, 0), nil
		}
		if trunc > float64(uMax) {
			return narrowUnsigned(dstType, uMax), nil
		}
		return narrowUnsigned(dstType, uint64(trunc)), nil
	default:
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: dstType.String()}
	}
}

func narrowSigned(t rowtype.Type, v int64) any {
	switch t {
	case rowtype.TypeInt8:
		return int8(v)
	case rowtype.TypeInt16:
		return int16(v)
	case rowtype.TypeInt32:
		return int32(v)
	default:
		return v
	}
}

func narrowUnsigned(t rowtype.Type, v uint64) any {
	switch t {
	case rowtype.TypeUint8:
		return uint8(v)
	case rowtype.TypeUint16:
		return uint16(v)
	case rowtype.TypeUint32:
		return uint32(v)
	default:
		return v
	}
}

func clampFloatToInt64(f float64, lo, hi int64) int64 {
	if f <= float64(lo) {
		return lo
	}
	if f >= float64(hi) {
		return hi
	}
	return int64(f)
}

func clampBigIntToInt64(bi *big.Int, lo, hi int64) int64 {
	loBig := big.NewInt(lo)
	hiBig := big.NewInt(hi)
	if bi.Cmp(loBig) < 0 {
		return lo
	}
	if bi.Cmp(hiBig) > 0 {
		return hi
	}
	return bi.Int64()
}

func toFloat64(column string, v any, srcType rowtype.Type) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case *big.Int:
		f := new(big.Float).SetInt(x)
		r, _ := f.Float64()
		return r, nil
	case codec.BigDecimal:
		return bigDecimalToFloat(x), nil
	default:
		return 0, &errs.ConversionError{Column: column, From: srcType.String(), To: "float64"}
	}
}

func bigDecimalToFloat(d codec.BigDecimal) float64 {
	f := new(big.Float).SetInt(d.Unscaled)
	scaleFactor := new(big.Float).SetFloat64(math.Pow10(int(d.Scale)))
	f.Quo(f, scaleFactor)
	r, _ := f.Float64()
	return r
}

func toBigInteger(column string, v any, srcType rowtype.Type, lossy bool) (any, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case codec.BigDecimal:
		nz := x.Normalize()
		if nz.Scale > 0 {
			if !lossy {
				return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: "bigint"}
			}
			ten := big.NewInt(10)
			div := new(big.Int).Exp(ten, big.NewInt(int64(nz.Scale)), nil)
			return new(big.Int).Quo(nz.Unscaled, div), nil
		}
		if nz.Scale < 0 {
			ten := big.NewInt(10)
			mul := new(big.Int).Exp(ten, big.NewInt(int64(-nz.Scale)), nil)
			return new(big.Int).Mul(nz.Unscaled, mul), nil
		}
		return nz.Unscaled, nil
	default:
		if s, ok := asSigned(v); ok {
			return big.NewInt(s), nil
		}
		if u, ok := asUnsigned(v); ok {
			return new(big.Int).SetUint64(u), nil
		}
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: "bigint"}
	}
}

func toBigDecimal(column string, v any, srcType rowtype.Type) (any, error) {
	switch x := v.(type) {
	case codec.BigDecimal:
		return x, nil
	case *big.Int:
		return codec.BigDecimal{Unscaled: new(big.Int).Set(x), Scale: 0}, nil
	default:
		if s, ok := asSigned(v); ok {
			return codec.BigDecimal{Unscaled: big.NewInt(s), Scale: 0}, nil
		}
		if u, ok := asUnsigned(v); ok {
			return codec.BigDecimal{Unscaled: new(big.Int).SetUint64(u), Scale: 0}, nil
		}
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: "bigdecimal"}
	}
}

func toString(v any, srcType rowtype.Type) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case *big.Int:
		return x.String(), nil
	case codec.BigDecimal:
		return fmt.Sprintf("%sE%d", x.Unscaled.String(), -x.Scale), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func toBool(column string, v any, srcType rowtype.Type) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	default:
		if s, ok := asSigned(v); ok {
			return s != 0, nil
		}
		if u, ok := asUnsigned(v); ok {
			return u != 0, nil
		}
		return nil, &errs.ConversionError{Column: column, From: srcType.String(), To: "bool"}
	}
}
