package filter

import "sort"

// Sort canonicalizes the order of AndGroup/OrGroup terms (recursively) so
// that two filters built in different term order compare equal.
// Comparison key is each term's own canonical string form.
func Sort(e Expr) Expr {
	switch v := e.(type) {
	case AndGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Sort(t)
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i].String() < terms[j].String() })
		return AndGroup{Terms: terms}
	case OrGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Sort(t)
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i].String() < terms[j].String() })
		return OrGroup{Terms: terms}
	default:
		return e
	}
}

// exprEqualShape reports structural equality modulo sub-term order.
func exprEqualShape(a, b Expr) bool {
	return Sort(a).String() == Sort(b).String()
}

// IsMatch compares two filters, returning +1 if they are equivalent, -1
// if they are exact complements of one another, or 0 if neither holds.
func IsMatch(a, b Expr) int {
	if exprEqualShape(a, b) {
		return 1
	}
	if exprEqualShape(a, Not(b)) {
		return -1
	}
	return 0
}

// IsSubMatch reports whether sub appears verbatim (modulo sort) as a
// top-level conjunct/disjunct of whole, or equals whole outright. It is
// used by multi-range merging to recognize when two ranges' low/high
// bounds differ only by an extra term that can be OR-combined.
func IsSubMatch(whole, sub Expr) bool {
	if exprEqualShape(whole, sub) {
		return true
	}
	switch v := whole.(type) {
	case AndGroup:
		return containsShape(v.Terms, sub)
	case OrGroup:
		return containsShape(v.Terms, sub)
	}
	return false
}
