package filter

// Reduce applies the absorption/idempotence/complementation/elimination
// rules below until no further simplification is possible, or until the
// complexity budget (a step count summed across every reduction pass) is
// exhausted, in which case it returns the best-effort partial
// result — callers that need to know whether the budget was exhausted
// should use ReduceBudgeted.
func Reduce(e Expr) Expr {
	out, _ := ReduceBudgeted(e, DefaultComplexityBudget)
	return out
}

// DefaultComplexityBudget bounds filter-reduction work (~10^7 steps)
// before callers should fall back to an unreduced filter.
const DefaultComplexityBudget = 10_000_000

// ReduceBudgeted reduces e to a fixpoint, consuming steps from budget.
// ok is false if the budget was exhausted before reaching a fixpoint; the
// returned expression is still usable (just not fully reduced).
func ReduceBudgeted(e Expr, budget int64) (Expr, bool) {
	steps := int64(0)
	for {
		next, used := reduceOnce(e, budget-steps)
		steps += used
		if steps >= budget {
			return next, false
		}
		if exprEqualShape(next, e) {
			return next, true
		}
		e = next
	}
}

// reduceOnce applies one reduction pass, returning the new expression and
// the number of budget steps consumed.
func reduceOnce(e Expr, remaining int64) (Expr, int64) {
	var steps int64
	switch v := e.(type) {
	case AndGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			if steps >= remaining {
				copy(terms[i:], v.Terms[i:])
				break
			}
			reduced, used := reduceOnce(t, remaining-steps)
			terms[i] = reduced
			steps += used + 1
		}
		return reduceAndTerms(terms), steps
	case OrGroup:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			if steps >= remaining {
				copy(terms[i:], v.Terms[i:])
				break
			}
			reduced, used := reduceOnce(t, remaining-steps)
			terms[i] = reduced
			steps += used + 1
		}
		return reduceOrTerms(terms), steps
	default:
		return e, 1
	}
}

// reduceAndTerms applies the conjunction-level rules: idempotence
// (A && A => A), complementation (A && !A => False), operator merging on
// matching (column, rhs) pairs, and negative absorption
// (A && (!A || B) => A && B).
func reduceAndTerms(terms []Expr) Expr {
	terms = dedupeTerms(terms)

	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if exprEqualShape(terms[i], Not(terms[j])) {
				return False{}
			}
		}
	}

	terms = mergeOperators(terms, true)

	// Absorption against an Or child: A && (A || B) => A.
	for i, t := range terms {
		for j, o := range terms {
			if i == j {
				continue
			}
			if og, ok := o.(OrGroup); ok {
				if containsShape(og.Terms, t) {
					terms = removeAt(terms, j)
					return reduceAndTerms(terms)
				}
			}
		}
	}

	// Negative absorption: A && (!A || B) => A && B.
	for i, t := range terms {
		for j, o := range terms {
			if i == j {
				continue
			}
			if og, ok := o.(OrGroup); ok {
				notT := Not(t)
				if idx := indexOfShape(og.Terms, notT); idx >= 0 {
					remaining := removeAt(append([]Expr(nil), og.Terms...), idx)
					terms[j] = Or(remaining...)
					return reduceAndTerms(terms)
				}
			}
		}
	}

	return And(terms...)
}

// reduceOrTerms is the dual of reduceAndTerms.
func reduceOrTerms(terms []Expr) Expr {
	terms = dedupeTerms(terms)

	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if exprEqualShape(terms[i], Not(terms[j])) {
				return True{}
			}
		}
	}

	terms = mergeOperators(terms, false)

	// Absorption against an And child: A || (A && B) => A.
	for i, t := range terms {
		for j, a := range terms {
			if i == j {
				continue
			}
			if ag, ok := a.(AndGroup); ok {
				if containsShape(ag.Terms, t) {
					terms = removeAt(terms, j)
					return reduceOrTerms(terms)
				}
			}
		}
	}

	// Consensus: (A && B) || (A && !B) => A.
	for i, a := range terms {
		ag, ok := a.(AndGroup)
		if !ok || len(ag.Terms) != 2 {
			continue
		}
		for j, b := range terms {
			if i == j {
				continue
			}
			bg, ok := b.(AndGroup)
			if !ok || len(bg.Terms) != 2 {
				continue
			}
			if common, ok := consensusPair(ag.Terms, bg.Terms); ok {
				terms = removeAt(terms, j)
				terms = replaceAt(terms, i, common)
				return reduceOrTerms(terms)
			}
		}
	}

	// Negative absorption (dual): A || (!A && B) => A || B.
	for i, t := range terms {
		for j, a := range terms {
			if i == j {
				continue
			}
			if ag, ok := a.(AndGroup); ok {
				notT := Not(t)
				if idx := indexOfShape(ag.Terms, notT); idx >= 0 {
					remaining := removeAt(append([]Expr(nil), ag.Terms...), idx)
					terms[j] = And(remaining...)
					return reduceOrTerms(terms)
				}
			}
		}
	}

	return Or(terms...)
}

// consensusPair checks whether two 2-term conjunctions share one term and
// carry complementary second terms, e.g. (A && B), (A && !B) => A.
func consensusPair(a, b []Expr) (Expr, bool) {
	for _, shared := range a {
		for _, bOther := range b {
			if !exprEqualShape(shared, bOther) {
				continue
			}
			var aOther Expr
			for _, x := range a {
				if !exprEqualShape(x, shared) {
					aOther = x
				}
			}
			var bOther2 Expr
			for _, x := range b {
				if !exprEqualShape(x, bOther) {
					bOther2 = x
				}
			}
			if aOther != nil && bOther2 != nil && exprEqualShape(aOther, Not(bOther2)) {
				return shared, true
			}
		}
	}
	return nil, false
}

func dedupeTerms(terms []Expr) []Expr {
	out := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if !containsShape(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func containsShape(terms []Expr, t Expr) bool {
	return indexOfShape(terms, t) >= 0
}

func indexOfShape(terms []Expr, t Expr) int {
	for i, x := range terms {
		if exprEqualShape(x, t) {
			return i
		}
	}
	return -1
}

func removeAt(terms []Expr, i int) []Expr {
	out := make([]Expr, 0, len(terms)-1)
	out = append(out, terms[:i]...)
	out = append(out, terms[i+1:]...)
	return out
}

func replaceAt(terms []Expr, i int, v Expr) []Expr {
	out := append([]Expr(nil), terms...)
	out[i] = v
	return out
}
