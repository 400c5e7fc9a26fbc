package table

import (
	"fmt"
	"reflect"

	"github.com/coreward/relkv/codec"
	"github.com/coreward/relkv/convert"
	"github.com/coreward/relkv/filter"
	"github.com/coreward/relkv/rowtype"
)

// Evaluate walks e against a decoded row (column name to Go value) and a
// query's bound positional arguments, returning whether the row matches.
// This is the exact row-level counterpart to the symbolic filter package:
// filter.Expr only ever gets reasoned about structurally up through
// planning, but a scanner still needs to apply the leftover remainder (and
// re-check a coarse byte-range bound exactly) against a materialized row.
func Evaluate(e filter.Expr, info *rowtype.RowInfo, row map[string]any, args []any) (bool, error) {
	switch v := e.(type) {
	case filter.True:
		return true, nil
	case filter.False:
		return false, nil
	case filter.AndGroup:
		for _, t := range v.Terms {
			ok, err := Evaluate(t, info, row, args)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case filter.OrGroup:
		for _, t := range v.Terms {
			ok, err := Evaluate(t, info, row, args)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case filter.ColumnToConstant:
		return evalCompare(info, row, v.Column, v.Op, v.Constant)
	case filter.ColumnToArg:
		arg, err := argAt(args, v.ArgNum)
		if err != nil {
			return false, err
		}
		return evalCompare(info, row, v.Column, v.Op, arg)
	case filter.ColumnToColumn:
		return evalColumnToColumn(info, row, v.A, v.Op, v.B)
	case filter.In:
		return evalIn(info, row, v.Column, v.Op, args, v.ArgNum)
	default:
		return false, fmt.Errorf("table: evaluate: unhandled filter node %T", e)
	}
}

func argAt(args []any, argNum int) (any, error) {
	if argNum < 1 || argNum > len(args) {
		return nil, fmt.Errorf("table: argument ?%d out of range (got %d args)", argNum, len(args))
	}
	return args[argNum-1], nil
}

func evalCompare(info *rowtype.RowInfo, row map[string]any, column string, op filter.Op, operand any) (bool, error) {
	col, ok := info.Column(column)
	if !ok {
		return false, fmt.Errorf("table: unknown column %q", column)
	}
	rowVal := row[column]
	coerced, err := coerceTo(column, operand, col.Type)
	if err != nil {
		return false, err
	}
	return compareValues(op, rowVal, coerced), nil
}

func evalColumnToColumn(info *rowtype.RowInfo, row map[string]any, a string, op filter.Op, b string) (bool, error) {
	colA, ok := info.Column(a)
	if !ok {
		return false, fmt.Errorf("table: unknown column %q", a)
	}
	bVal := row[b]
	coerced, err := coerceTo(b, bVal, colA.Type)
	if err != nil {
		return false, err
	}
	return compareValues(op, row[a], coerced), nil
}

func evalIn(info *rowtype.RowInfo, row map[string]any, column string, op filter.Op, args []any, argNum int) (bool, error) {
	col, ok := info.Column(column)
	if !ok {
		return false, fmt.Errorf("table: unknown column %q", column)
	}
	arg, err := argAt(args, argNum)
	if err != nil {
		return false, err
	}
	members := reflect.ValueOf(arg)
	if members.Kind() != reflect.Slice && members.Kind() != reflect.Array {
		return false, fmt.Errorf("table: argument ?%d for IN must be a slice, got %T", argNum, arg)
	}

	rowVal := row[column]
	found := false
	for i := 0; i < members.Len(); i++ {
		coerced, err := coerceTo(column, members.Index(i).Interface(), col.Type)
		if err != nil {
			return false, err
		}
		if compareValues(filter.OpEq, rowVal, coerced) {
			found = true
			break
		}
	}
	if op == filter.OpNotIn {
		return !found, nil
	}
	return found, nil
}

func coerceTo(column string, v any, dstType rowtype.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	srcType, ok := dynamicType(v)
	if !ok || srcType == dstType {
		return v, nil
	}
	return convert.Convert(column, v, srcType, dstType, true)
}

// dynamicType maps a plain Go value (as produced by querylang literals or
// passed directly by a caller) to the rowtype.Type it most naturally
// represents, so it can be run through convert.Convert against a
// column's declared type.
func dynamicType(v any) (rowtype.Type, bool) {
	switch v.(type) {
	case int:
		return rowtype.TypeInt64, true
	case int8:
		return rowtype.TypeInt8, true
	case int16:
		return rowtype.TypeInt16, true
	case int32:
		return rowtype.TypeInt32, true
	case int64:
		return rowtype.TypeInt64, true
	case uint8:
		return rowtype.TypeUint8, true
	case uint16:
		return rowtype.TypeUint16, true
	case uint32:
		return rowtype.TypeUint32, true
	case uint64:
		return rowtype.TypeUint64, true
	case float32:
		return rowtype.TypeFloat32, true
	case float64:
		return rowtype.TypeFloat64, true
	case bool:
		return rowtype.TypeBool, true
	case string:
		return rowtype.TypeString, true
	default:
		return 0, false
	}
}

// compareValues compares two already-coerced-to-the-same-type values
// under op, treating either side being nil (SQL NULL) as comparing equal
// only to another nil and unequal/unordered otherwise.
func compareValues(op filter.Op, a, b any) bool {
	if a == nil || b == nil {
		eq := a == nil && b == nil
		switch op {
		case filter.OpEq:
			return eq
		case filter.OpNe:
			return !eq
		default:
			return false
		}
	}
	cmp := codec.Compare(a, b)
	switch op {
	case filter.OpEq:
		return cmp == 0
	case filter.OpNe:
		return cmp != 0
	case filter.OpGe:
		return cmp >= 0
	case filter.OpLe:
		return cmp <= 0
	case filter.OpGt:
		return cmp > 0
	case filter.OpLt:
		return cmp < 0
	default:
		return false
	}
}

// BoundValues resolves a rangex.Range Low/High conjunction (built only of
// ColumnToArg/ColumnToConstant equality/range terms) into a concrete
// column-name-to-value map suitable for RowCodec.EncodeBoundPrefix.
func BoundValues(e filter.Expr, args []any) (map[string]any, error) {
	values := make(map[string]any)
	if e == nil {
		return values, nil
	}
	terms := []filter.Expr{e}
	if ag, ok := e.(filter.AndGroup); ok {
		terms = ag.Terms
	}
	for _, t := range terms {
		switch v := t.(type) {
		case filter.ColumnToConstant:
			values[v.Column] = v.Constant
		case filter.ColumnToArg:
			arg, err := argAt(args, v.ArgNum)
			if err != nil {
				return nil, err
			}
			values[v.Column] = arg
		default:
			return nil, fmt.Errorf("table: bound term %s is not a column-to-value comparison", t)
		}
	}
	return values, nil
}
