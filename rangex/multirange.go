package rangex

import "github.com/coreward/relkv/filter"

// MultiRangeExtract expands a DNF filter into one Range per disjunct,
// then merges ranges whose low bounds (or high bounds, when reverse is
// set) are isSubMatch-comparable by OR-combining their filters and
// re-extracting — collapsing cases like
// (a==1 && b>2) || (a==1 && b<5) that share a low/high shape but differ
// in the closing term. When disjoint is set, each range after the first
// is additionally conjoined with the negation of every prior range so a
// union scan never visits the same row twice.
func MultiRangeExtract(dnf filter.Expr, keys []string, isFuzzyEq func(filter.Expr) bool, disjoint, reverse bool) []Range {
	disjuncts := disjunctsOf(dnf)

	ranges := make([]Range, 0, len(disjuncts))
	for _, d := range disjuncts {
		ranges = append(ranges, RangeExtract(d, keys, isFuzzyEq))
	}

	ranges = mergeRanges(ranges, keys, isFuzzyEq, reverse)

	if disjoint {
		ranges = makeDisjoint(ranges, keys, isFuzzyEq)
	}

	return ranges
}

func disjunctsOf(f filter.Expr) []filter.Expr {
	if og, ok := f.(filter.OrGroup); ok {
		return og.Terms
	}
	if _, ok := f.(filter.False); ok {
		return nil
	}
	return []filter.Expr{f}
}

// mergeRanges repeatedly merges the first pair of ranges whose bound-side
// (low, or high under reverse) is isSubMatch-comparable, OR-combining
// their filters and re-extracting, until no more merges apply.
func mergeRanges(ranges []Range, keys []string, isFuzzyEq func(filter.Expr) bool, reverse bool) []Range {
	merged := true
	for merged {
		merged = false
		for i := 0; i < len(ranges) && !merged; i++ {
			for j := i + 1; j < len(ranges); j++ {
				if !boundsComparable(ranges[i], ranges[j], reverse) {
					continue
				}
				combinedFilter := filter.Or(rangeWhole(ranges[i]), rangeWhole(ranges[j]))
				newRange := RangeExtract(filter.Reduce(combinedFilter), keys, isFuzzyEq)

				next := make([]Range, 0, len(ranges)-1)
				next = append(next, ranges[:i]...)
				next = append(next, newRange)
				next = append(next, ranges[i+1:j]...)
				next = append(next, ranges[j+1:]...)
				ranges = next
				merged = true
				break
			}
		}
	}
	return ranges
}

// boundsComparable reports whether two ranges share an isSubMatch
// relationship on their governing bound (low normally, high when
// reverse), making them candidates for OR-merging.
func boundsComparable(a, b Range, reverse bool) bool {
	boundA, boundB := a.Low, b.Low
	if reverse {
		boundA, boundB = a.High, b.High
	}
	if boundA == nil || boundB == nil {
		return boundA == nil && boundB == nil
	}
	return filter.IsSubMatch(boundA, boundB) || filter.IsSubMatch(boundB, boundA)
}

// rangeWhole reconstructs the full filter a range represents: its bound
// conjunction together with its remainder.
func rangeWhole(r Range) filter.Expr {
	parts := make([]filter.Expr, 0, 3)
	if r.Low != nil {
		parts = append(parts, r.Low)
	}
	if r.High != nil && !filter.IsSubMatch(r.Low, r.High) {
		parts = append(parts, r.High)
	}
	if r.Filter != nil {
		parts = append(parts, r.Filter)
	}
	return filter.And(parts...)
}

// makeDisjoint rewrites ranges[1:] so that each excludes every row
// already covered by an earlier range: range[i] gains
// ∧ ¬(range[0] ∨ ... ∨ range[i-1]) before being re-extracted.
func makeDisjoint(ranges []Range, keys []string, isFuzzyEq func(filter.Expr) bool) []Range {
	if len(ranges) < 2 {
		return ranges
	}
	out := make([]Range, len(ranges))
	out[0] = ranges[0]

	priorWhole := rangeWhole(ranges[0])
	for i := 1; i < len(ranges); i++ {
		excluded := filter.And(rangeWhole(ranges[i]), filter.Not(priorWhole))
		out[i] = RangeExtract(filter.Reduce(excluded), keys, isFuzzyEq)
		priorWhole = filter.Or(priorWhole, rangeWhole(ranges[i]))
	}
	return out
}

// SplitRemainders partitions a range's remainder filter into a
// source-only part (referencing only columns in sourceColumns) and a
// join-only part (referencing at least one column outside that set),
// so a scanner can apply the source-only part before an (expensive)
// primary-row join and defer the rest until after.
func SplitRemainders(r Range, sourceColumns map[string]bool) (sourceOnly, joinOnly filter.Expr) {
	if r.Filter == nil {
		return nil, nil
	}
	terms := conjuncts(r.Filter)

	var srcTerms, joinTerms []filter.Expr
	for _, t := range terms {
		if allColumnsIn(t, sourceColumns) {
			srcTerms = append(srcTerms, t)
		} else {
			joinTerms = append(joinTerms, t)
		}
	}
	return filter.And(srcTerms...), filter.And(joinTerms...)
}

func allColumnsIn(t filter.Expr, set map[string]bool) bool {
	for _, c := range filter.ReferencedColumns(t) {
		if !set[c] {
			return false
		}
	}
	return true
}
