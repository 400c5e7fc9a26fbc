package filter

// mergeResult is the outcome of merging two relational operators bound to
// the same (column, rhs): either a single surviving operator, or a
// collapse to a boolean identity.
type mergeResult uint8

const (
	mergeNone mergeResult = iota
	mergeTrue
	mergeFalse
	mergeEq
	mergeNe
	mergeGe
	mergeLt
	mergeLe
	mergeGt
)

func (r mergeResult) toOp() (Op, bool) {
	switch r {
	case mergeEq:
		return OpEq, true
	case mergeNe:
		return OpNe, true
	case mergeGe:
		return OpGe, true
	case mergeLt:
		return OpLt, true
	case mergeLe:
		return OpLe, true
	case mergeGt:
		return OpGt, true
	}
	return 0, false
}

// andTable[a][b] is the result of merging two relational conditions on
// the same (column, rhs) under conjunction: x a rhs && x b rhs.
var andTable = [6][6]mergeResult{
	// EQ      NE        GE        LT        LE        GT
	{mergeEq, mergeFalse, mergeEq, mergeFalse, mergeEq, mergeFalse}, // EQ
	{mergeFalse, mergeNe, mergeGt, mergeLt, mergeLt, mergeGt},       // NE
	{mergeEq, mergeGt, mergeGe, mergeFalse, mergeEq, mergeGt},       // GE
	{mergeFalse, mergeLt, mergeFalse, mergeLt, mergeLt, mergeFalse}, // LT
	{mergeEq, mergeLt, mergeEq, mergeLt, mergeLe, mergeFalse},       // LE
	{mergeFalse, mergeGt, mergeGt, mergeFalse, mergeFalse, mergeGt}, // GT
}

// orTable[a][b] is the dual: x a rhs || x b rhs.
var orTable = [6][6]mergeResult{
	// EQ      NE        GE        LT        LE        GT
	{mergeEq, mergeTrue, mergeGe, mergeLe, mergeLe, mergeGe}, // EQ
	{mergeTrue, mergeNe, mergeTrue, mergeNe, mergeTrue, mergeNe}, // NE
	{mergeGe, mergeTrue, mergeGe, mergeTrue, mergeTrue, mergeGe}, // GE
	{mergeLe, mergeNe, mergeTrue, mergeLt, mergeLe, mergeNe},     // LT
	{mergeLe, mergeTrue, mergeTrue, mergeLe, mergeLe, mergeTrue}, // LE
	{mergeGe, mergeNe, mergeGe, mergeNe, mergeTrue, mergeGt},     // GT
}

// rhsKey identifies a comparable right-hand side: the column, the
// variant, and enough of the operand to know whether two terms share the
// same (column, rhs) pair.
type rhsKey struct {
	column string
	kind   int // 0 = arg, 1 = constant
	arg    int
	constV any
}

func keyOf(e Expr) (rhsKey, Op, bool) {
	switch v := e.(type) {
	case ColumnToArg:
		if !v.Op.isRange() && v.Op != OpEq && v.Op != OpNe {
			return rhsKey{}, 0, false
		}
		return rhsKey{column: v.Column, kind: 0, arg: v.ArgNum}, v.Op, true
	case ColumnToConstant:
		if !v.Op.isRange() && v.Op != OpEq && v.Op != OpNe {
			return rhsKey{}, 0, false
		}
		return rhsKey{column: v.Column, kind: 1, constV: v.Constant}, v.Op, true
	default:
		return rhsKey{}, 0, false
	}
}

func withOp(e Expr, op Op) Expr {
	switch v := e.(type) {
	case ColumnToArg:
		v.Op = op
		return v
	case ColumnToConstant:
		v.Op = op
		return v
	}
	return e
}

// mergeOperators scans terms for pairs sharing a (column, rhs) key and
// merges their relational operators via andTable/orTable, repeating until
// no further merge applies. isAnd selects which table to use.
func mergeOperators(terms []Expr, isAnd bool) []Expr {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(terms) && !changed; i++ {
			ki, oi, oki := keyOf(terms[i])
			if !oki {
				continue
			}
			for j := i + 1; j < len(terms); j++ {
				kj, oj, okj := keyOf(terms[j])
				if !okj || ki != kj {
					continue
				}
				table := andTable
				if !isAnd {
					table = orTable
				}
				result := table[oi][oj]
				switch result {
				case mergeNone:
					continue
				case mergeTrue:
					terms = replaceAt(removeAt(terms, j), i, True{})
				case mergeFalse:
					terms = replaceAt(removeAt(terms, j), i, False{})
				default:
					op, _ := result.toOp()
					terms = replaceAt(removeAt(terms, j), i, withOp(terms[i], op))
				}
				changed = true
				break
			}
		}
	}
	return terms
}
