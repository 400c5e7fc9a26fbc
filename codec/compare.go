package codec

// Compare compares two decoded Go values of the same underlying type,
// returning -1/0/+1. Exported for callers outside this package (the
// table package's row-level filter evaluator) that need the same
// ordering rules a column codec's quick-filter comparison uses, without
// re-deriving per-type comparison logic of their own.
func Compare(a, b any) int { return compareOrdered(a, b) }

// compareOrdered compares two decoded Go values of the same underlying
// fixed-width type, returning -1/0/+1. Used by FilterQuickCompare
// implementations across the codec family so quick-filter comparisons
// don't need to re-derive ordering per type.
func compareOrdered(a, b any) int {
	switch av := a.(type) {
	case int8:
		return cmpInt64(int64(av), int64(b.(int8)))
	case int16:
		return cmpInt64(int64(av), int64(b.(int16)))
	case int32:
		return cmpInt64(int64(av), int64(b.(int32)))
	case int64:
		return cmpInt64(av, b.(int64))
	case uint8:
		return cmpUint64(uint64(av), uint64(b.(uint8)))
	case uint16:
		return cmpUint64(uint64(av), uint64(b.(uint16)))
	case uint32:
		return cmpUint64(uint64(av), uint64(b.(uint32)))
	case uint64:
		return cmpUint64(av, b.(uint64))
	case float32:
		return cmpFloat64(float64(av), float64(b.(float32)))
	case float64:
		return cmpFloat64(av, b.(float64))
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av && bv {
			return -1
		}
		return 1
	case byte:
		return cmpUint64(uint64(av), uint64(b.(byte)))
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
