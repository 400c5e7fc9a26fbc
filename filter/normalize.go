package filter

import "github.com/coreward/relkv/errs"

// productCeiling bounds the number of terms a single distribution step
// may produce before normalize.go splits the group in half and recurses,
// rather than materializing the full cross product in one pass.
const productCeiling = 256

// DNF converts e to disjunctive normal form (an OrGroup of AndGroups of
// literals), then reducing the result, within the default complexity
// budget. If the budget is exceeded it returns *errs.ComplexFilterError;
// callers may fall back to the unreduced filter.
func DNF(e Expr) (Expr, error) {
	steps := int64(0)
	out, err := distribute(e, false, &steps, DefaultComplexityBudget)
	if err != nil {
		return e, err
	}
	return Reduce(out), nil
}

// CNF converts e to conjunctive normal form (an AndGroup of OrGroups of
// literals), dual to DNF.
func CNF(e Expr) (Expr, error) {
	steps := int64(0)
	out, err := distribute(e, true, &steps, DefaultComplexityBudget)
	if err != nil {
		return e, err
	}
	return Reduce(out), nil
}

// distribute pushes Or below And (cnf=false, producing DNF) or And below
// Or (cnf=true, producing CNF) via the distributive law, splitting
// oversized groups in half when the product would exceed productCeiling.
func distribute(e Expr, cnf bool, steps *int64, budget int64) (Expr, error) {
	if *steps >= budget {
		return e, &errs.ComplexFilterError{Steps: *steps, Budget: budget}
	}
	*steps++

	switch v := e.(type) {
	case AndGroup:
		children := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			c, err := distribute(t, cnf, steps, budget)
			if err != nil {
				return e, err
			}
			children[i] = c
		}
		if cnf {
			return And(children...), nil
		}
		return distributeAndOverOr(children, steps, budget)

	case OrGroup:
		children := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			c, err := distribute(t, cnf, steps, budget)
			if err != nil {
				return e, err
			}
			children[i] = c
		}
		if !cnf {
			return Or(children...), nil
		}
		return distributeOrOverAnd(children, steps, budget)

	default:
		return e, nil
	}
}

// distributeAndOverOr computes the DNF cross product of And(children...)
// where each child may itself be an OrGroup: (A|B) && (C|D) => (A&&C) ||
// (A&&D) || (B&&C) || (B&&D). Splits in half and recurses if the product
// size would exceed productCeiling.
func distributeAndOverOr(children []Expr, steps *int64, budget int64) (Expr, error) {
	if len(children) > 1 {
		size := 1
		for _, c := range children {
			if og, ok := c.(OrGroup); ok {
				size *= len(og.Terms)
			}
			if size > productCeiling {
				mid := len(children) / 2
				left, err := distributeAndOverOr(children[:mid], steps, budget)
				if err != nil {
					return nil, err
				}
				right, err := distributeAndOverOr(children[mid:], steps, budget)
				if err != nil {
					return nil, err
				}
				return distributeAndOverOr([]Expr{left, right}, steps, budget)
			}
		}
	}

	disjuncts := [][]Expr{{}}
	for _, c := range children {
		if *steps >= budget {
			return nil, &errs.ComplexFilterError{Steps: *steps, Budget: budget}
		}
		og, ok := c.(OrGroup)
		if !ok {
			for i := range disjuncts {
				disjuncts[i] = append(disjuncts[i], c)
			}
			continue
		}
		next := make([][]Expr, 0, len(disjuncts)*len(og.Terms))
		for _, base := range disjuncts {
			for _, t := range og.Terms {
				*steps++
				if *steps >= budget {
					return nil, &errs.ComplexFilterError{Steps: *steps, Budget: budget}
				}
				row := append(append([]Expr(nil), base...), t)
				next = append(next, row)
			}
		}
		disjuncts = next
	}

	orTerms := make([]Expr, len(disjuncts))
	for i, row := range disjuncts {
		orTerms[i] = And(row...)
	}
	return Or(orTerms...), nil
}

// distributeOrOverAnd is the CNF dual of distributeAndOverOr.
func distributeOrOverAnd(children []Expr, steps *int64, budget int64) (Expr, error) {
	if len(children) > 1 {
		size := 1
		for _, c := range children {
			if ag, ok := c.(AndGroup); ok {
				size *= len(ag.Terms)
			}
			if size > productCeiling {
				mid := len(children) / 2
				left, err := distributeOrOverAnd(children[:mid], steps, budget)
				if err != nil {
					return nil, err
				}
				right, err := distributeOrOverAnd(children[mid:], steps, budget)
				if err != nil {
					return nil, err
				}
				return distributeOrOverAnd([]Expr{left, right}, steps, budget)
			}
		}
	}

	conjuncts := [][]Expr{{}}
	for _, c := range children {
		if *steps >= budget {
			return nil, &errs.ComplexFilterError{Steps: *steps, Budget: budget}
		}
		ag, ok := c.(AndGroup)
		if !ok {
			for i := range conjuncts {
				conjuncts[i] = append(conjuncts[i], c)
			}
			continue
		}
		next := make([][]Expr, 0, len(conjuncts)*len(ag.Terms))
		for _, base := range conjuncts {
			for _, t := range ag.Terms {
				*steps++
				if *steps >= budget {
					return nil, &errs.ComplexFilterError{Steps: *steps, Budget: budget}
				}
				row := append(append([]Expr(nil), base...), t)
				next = append(next, row)
			}
		}
		conjuncts = next
	}

	andTerms := make([]Expr, len(conjuncts))
	for i, row := range conjuncts {
		andTerms[i] = Or(row...)
	}
	return And(andTerms...), nil
}
