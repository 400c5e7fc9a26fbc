package filter

// RetainDecision is the three-way outcome of testing whether a column is
// retained, letting Retain handle columns a caller can't yet classify
// (e.g. pending inverse-mapper discovery) without guessing.
type RetainDecision int

const (
	RetainDrop RetainDecision = iota
	RetainKeep
	RetainUndecided
)

// Retain drops any term referencing a column for which pred returns
// RetainDrop, keeps terms where pred returns RetainKeep, and for
// RetainUndecided substitutes the literal value undecided (typically
// True{} to keep scanning safe, or False{} to exclude defensively). For
// ColumnToColumn terms, strict requires both columns to be retained
// (RetainKeep); otherwise either side being kept is enough.
func Retain(e Expr, pred func(column string) RetainDecision, strict bool, undecided Expr) Expr {
	switch v := e.(type) {
	case True, False:
		return e
	case ColumnToArg:
		return retainDecide(pred(v.Column), e, undecided)
	case ColumnToConstant:
		return retainDecide(pred(v.Column), e, undecided)
	case In:
		return retainDecide(pred(v.Column), e, undecided)
	case ColumnToColumn:
		da, db := pred(v.A), pred(v.B)
		if da == RetainUndecided || db == RetainUndecided {
			return undecided
		}
		if strict {
			if da == RetainKeep && db == RetainKeep {
				return e
			}
			return True{}
		}
		if da == RetainKeep || db == RetainKeep {
			return e
		}
		return True{}
	case AndGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Retain(t, pred, strict, undecided)
		}
		return And(terms...)
	case OrGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Retain(t, pred, strict, undecided)
		}
		return Or(terms...)
	default:
		return e
	}
}

func retainDecide(d RetainDecision, e, undecided Expr) Expr {
	switch d {
	case RetainKeep:
		return e
	case RetainDrop:
		return True{}
	default:
		return undecided
	}
}

// ReplaceArguments renumbers every bound-argument reference (ColumnToArg
// and In) via remap, leaving ColumnToColumn/ColumnToConstant untouched.
func ReplaceArguments(e Expr, remap func(argNum int) int) Expr {
	switch v := e.(type) {
	case ColumnToArg:
		v.ArgNum = remap(v.ArgNum)
		return v
	case In:
		v.ArgNum = remap(v.ArgNum)
		return v
	case AndGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = ReplaceArguments(t, remap)
		}
		return And(terms...)
	case OrGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = ReplaceArguments(t, remap)
		}
		return Or(terms...)
	default:
		return e
	}
}

// ConstantsToArguments converts every ColumnToConstant term into a
// ColumnToArg by calling assign(term), which returns the argument number
// to bind the constant to, or 0 to leave the term as an embedded
// constant (0 is never a valid positional argument number, which start
// at 1, matching the convention ColumnToArg/In already use).
func ConstantsToArguments(e Expr, assign func(c ColumnToConstant) int) Expr {
	switch v := e.(type) {
	case ColumnToConstant:
		if n := assign(v); n != 0 {
			return ColumnToArg{Column: v.Column, Op: v.Op, ArgNum: n}
		}
		return v
	case AndGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = ConstantsToArguments(t, assign)
		}
		return And(terms...)
	case OrGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = ConstantsToArguments(t, assign)
		}
		return Or(terms...)
	default:
		return e
	}
}

// ReferencedColumns returns the set of distinct column names appearing
// anywhere in e.
func ReferencedColumns(e Expr) []string {
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case ColumnToArg:
			seen[v.Column] = true
		case ColumnToConstant:
			seen[v.Column] = true
		case In:
			seen[v.Column] = true
		case ColumnToColumn:
			seen[v.A] = true
			seen[v.B] = true
		case AndGroup:
			for _, t := range v.Terms {
				walk(t)
			}
		case OrGroup:
			for _, t := range v.Terms {
				walk(t)
			}
		}
	}
	walk(e)
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}
