// Package rangex turns a filter over a prefix of key columns into
// (low, high, remainder) range triples, and expands a disjunctive filter
// into a set of such triples via multi-range extraction — merging
// mergeable disjuncts and, on request, making successive ranges disjoint
// so a union scan never revisits a row twice.
//
// This is a lower-level primitive than full access-path selection: it
// just extracts the range itself, column-by-column against a leading key
// prefix. relkv's planner (package plan) layers index selection and cost
// comparison on top of what this package produces.
package rangex

import "github.com/coreward/relkv/filter"

// Range is a single key-column-prefix range: low and high are each a
// conjunction of equality terms on a leading key-column prefix followed
// by at most one range-closing term (nil meaning "open" on that side).
// Filter is the remainder that must still be applied to a row produced by
// scanning [low, high]; JoinFilter is the remainder that can only be
// evaluated after a join back to the primary row (set by the planner, not
// by this package — rangex always leaves it nil).
type Range struct {
	Low        filter.Expr // nil = unbounded low
	High       filter.Expr // nil = unbounded high
	Filter     filter.Expr
	JoinFilter filter.Expr
}

// RangeExtract walks a CNF filter's conjuncts against the ordered key
// column list, tracking a "bound position" that starts at keys[0]:
// equality terms on the column at the current bound position advance it;
// the first range-closing term (</<=/>/>=) encountered at the current
// bound position closes that side and stops advancing it further;
// everything else falls into the remainder. A BigDecimal equality term
// never closes a range (its "fuzzy" scale-independent equality must be
// re-checked per row) — callers identify such terms via isFuzzyEq.
func RangeExtract(f filter.Expr, keys []string, isFuzzyEq func(filter.Expr) bool) Range {
	terms := conjuncts(f)

	var lowTerms, highTerms, remainder []filter.Expr
	boundPos := 0
	lowClosed := false
	highClosed := false

	for _, t := range terms {
		col, op, isRangeTerm := termColumnOp(t)
		if col == "" {
			remainder = append(remainder, t)
			continue
		}

		if isFuzzyEq != nil && isFuzzyEq(t) {
			remainder = append(remainder, t)
			continue
		}

		keyIdx := indexOf(keys, col)
		if keyIdx < 0 || keyIdx != boundPos {
			remainder = append(remainder, t)
			continue
		}

		switch {
		case op == filter.OpEq:
			if lowClosed || highClosed {
				// Can't extend an equality prefix once a side has
				// closed on this column; treat as remainder.
				remainder = append(remainder, t)
				continue
			}
			lowTerms = append(lowTerms, t)
			highTerms = append(highTerms, t)
			boundPos++

		case op == filter.OpGe || op == filter.OpGt:
			if lowClosed {
				remainder = append(remainder, t)
				continue
			}
			lowTerms = append(lowTerms, t)
			lowClosed = true

		case op == filter.OpLe || op == filter.OpLt:
			if highClosed {
				remainder = append(remainder, t)
				continue
			}
			highTerms = append(highTerms, t)
			highClosed = true

		default:
			_ = isRangeTerm
			remainder = append(remainder, t)
		}
	}

	var low, high filter.Expr
	if len(lowTerms) > 0 {
		low = filter.And(lowTerms...)
	}
	if len(highTerms) > 0 {
		high = filter.And(highTerms...)
	}

	return Range{
		Low:    low,
		High:   high,
		Filter: filter.And(remainder...),
	}
}

// conjuncts flattens a (possibly already-reduced) CNF/AND filter into its
// top-level list of conjuncts.
func conjuncts(f filter.Expr) []filter.Expr {
	if ag, ok := f.(filter.AndGroup); ok {
		return ag.Terms
	}
	if _, ok := f.(filter.True); ok {
		return nil
	}
	return []filter.Expr{f}
}

// termColumnOp extracts the (column, op) pair from a single-column
// comparison term, or ("", 0, false) if t isn't such a term.
func termColumnOp(t filter.Expr) (string, filter.Op, bool) {
	switch v := t.(type) {
	case filter.ColumnToArg:
		return v.Column, v.Op, true
	case filter.ColumnToConstant:
		return v.Column, v.Op, true
	default:
		return "", 0, false
	}
}

func indexOf(keys []string, col string) int {
	for i, k := range keys {
		if k == col {
			return i
		}
	}
	return -1
}
