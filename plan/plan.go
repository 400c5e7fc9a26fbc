// Package plan compiles a parsed query (QuerySpec) against a table's
// indexes into a pipeline description: which index to scan, the
// extracted range(s), how the remainder filter splits across a join back
// to the primary row, whether a "double check" remainder guards the
// join window, and whether the result needs an added sort or projection
// mask.
//
// This is a structural match rather than a cost-based search: relkv has
// no query-cost model of its own, so index choice comes down to leading-
// key-column match against equality and range terms, tie-broken by
// order satisfaction and then by preferring the primary index, rather
// than a cardinality estimate. The requested projection plays no part in
// index choice.
package plan

import (
	"sort"

	"github.com/coreward/relkv/filter"
	"github.com/coreward/relkv/kv"
	"github.com/coreward/relkv/rangex"
	"github.com/coreward/relkv/rowtype"
)

// OrderTerm names one column of a requested sort order.
type OrderTerm struct {
	Column     string
	Descending bool
}

// QuerySpec is the planner's input: an optional projection (nil means
// "all columns", insertion order otherwise), an optional requested sort
// order, and a filter expression.
type QuerySpec struct {
	Projection []string // nil means all columns; order is preserved
	OrderBy    []OrderTerm
	Filter     filter.Expr
}

// IndexDescriptor names one index available on a table: its row type
// (key columns define the scan order), its backing kv.Index, and whether
// it is the table's primary index.
type IndexDescriptor struct {
	Info      *rowtype.RowInfo
	Store     kv.Index
	IsPrimary bool
}

// Table is the minimal view of a table the planner needs: its primary
// row type plus zero or more secondary indexes.
type Table struct {
	Primary    IndexDescriptor
	Secondary  []IndexDescriptor
	IsFuzzyEq  func(filter.Expr) bool
}

// Pipeline is the compiled result: enough information for the caller
// (package table) to build and run a scan.Scanner/scan.Updater chain.
type Pipeline struct {
	Index             IndexDescriptor
	Reverse           bool
	Range             rangex.Range
	SourceRemainder   filter.Expr // applied against the chosen index's own columns
	JoinRemainder     filter.Expr // applied only after joining back to primary
	DoubleCheck       filter.Expr // re-applied against primary columns post-join, guards the race window
	NeedsJoin         bool
	NeedsSort         bool
	SortBy            []OrderTerm
	Projection        []string
	NeedsProjection   bool
	TakePredicateLock bool
}

// Compile selects an index, extracts a range, splits the remainder, and
// decides on sort/projection wrapping for spec against tbl.
func Compile(spec QuerySpec, tbl Table) (*Pipeline, error) {
	candidates := append([]IndexDescriptor{tbl.Primary}, tbl.Secondary...)

	dnf, err := filter.DNF(filter.Reduce(spec.Filter))
	if err != nil {
		// A filter too complex to normalize degrades to a less-optimal
		// plan rather than failing the query — fall back to a full scan
		// of the primary with the whole filter kept as remainder.
		return fullScanFallback(spec, tbl), nil
	}

	best := pickIndex(candidates, dnf, spec.OrderBy, tbl.IsFuzzyEq)
	rng := rangex.RangeExtract(dnf, best.Info.KeyColumnNames(), tbl.IsFuzzyEq)

	sourceCols := columnSet(best.Info)
	sourceRem, joinRem := rangex.SplitRemainders(rng, sourceCols)

	needsJoin := !best.IsPrimary && hasValueColumnRefs(joinRem, best.Info)
	var doubleCheck filter.Expr
	if needsJoin && joinRem != nil {
		doubleCheck = filter.Retain(joinRem, func(col string) filter.RetainDecision {
			if _, ok := tbl.Primary.Info.Column(col); ok {
				return filter.RetainKeep
			}
			return filter.RetainDrop
		}, true, filter.True{})
	}

	reverse, needsSort := resolveOrder(best.Info, spec.OrderBy)

	projection := spec.Projection
	needsProjection := projection != nil && !isFullProjection(projection, tbl.Primary.Info)

	return &Pipeline{
		Index:             best,
		Reverse:           reverse,
		Range:             rng,
		SourceRemainder:   sourceRem,
		JoinRemainder:     joinRem,
		DoubleCheck:       doubleCheck,
		NeedsJoin:         needsJoin,
		NeedsSort:         needsSort,
		SortBy:            spec.OrderBy,
		Projection:        projection,
		NeedsProjection:   needsProjection,
		TakePredicateLock: needsJoin,
	}, nil
}

func fullScanFallback(spec QuerySpec, tbl Table) *Pipeline {
	return &Pipeline{
		Index:           tbl.Primary,
		SourceRemainder: spec.Filter,
		NeedsSort:       len(spec.OrderBy) > 0,
		SortBy:          spec.OrderBy,
		Projection:      spec.Projection,
		NeedsProjection: spec.Projection != nil,
	}
}

// pickIndex scores each candidate by the number of bounds (low, high)
// that dnf's first disjunct yields on its key columns, adds 100 when its
// key order already satisfies orderBy and 1 when it is the primary, and
// returns the highest score, keeping candidate order among equal scores.
// Whether an index covers the requested projection is not considered.
func pickIndex(candidates []IndexDescriptor, dnf filter.Expr, orderBy []OrderTerm, isFuzzyEq func(filter.Expr) bool) IndexDescriptor {
	type scored struct {
		idx   IndexDescriptor
		score int
	}
	scoredList := make([]scored, len(candidates))
	for i, c := range candidates {
		r := rangex.RangeExtract(firstDisjunct(dnf), c.Info.KeyColumnNames(), isFuzzyEq)
		score := rangeBoundScore(r)
		if satisfiesOrder(c.Info, orderBy) {
			score += 100
		}
		if c.IsPrimary {
			score += 1 // tie-break toward primary, avoiding a gratuitous join
		}
		scoredList[i] = scored{idx: c, score: score}
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].score > scoredList[j].score
	})
	return scoredList[0].idx
}

func firstDisjunct(dnf filter.Expr) filter.Expr {
	if or, ok := dnf.(filter.OrGroup); ok && len(or.Terms) > 0 {
		return or.Terms[0]
	}
	return dnf
}

func rangeBoundScore(r rangex.Range) int {
	score := 0
	if r.Low != nil {
		score++
	}
	if r.High != nil {
		score++
	}
	return score
}

func satisfiesOrder(info *rowtype.RowInfo, orderBy []OrderTerm) bool {
	keys := info.KeyColumnNames()
	if len(orderBy) > len(keys) {
		return false
	}
	for i, t := range orderBy {
		col, ok := info.Column(keys[i])
		if !ok || col.Name != t.Column {
			return false
		}
		if col.Descending() != t.Descending {
			return false
		}
	}
	return true
}

func resolveOrder(info *rowtype.RowInfo, orderBy []OrderTerm) (reverse, needsSort bool) {
	if len(orderBy) == 0 {
		return false, false
	}
	keys := info.KeyColumnNames()
	if len(orderBy) > len(keys) {
		return false, true
	}
	wantReverse := orderBy[0].Descending
	for i, t := range orderBy {
		col, ok := info.Column(keys[i])
		if !ok || col.Name != t.Column {
			return false, true
		}
		effectiveDesc := col.Descending() != wantReverse
		if effectiveDesc != t.Descending {
			return false, true
		}
	}
	return wantReverse, false
}

func columnSet(info *rowtype.RowInfo) map[string]bool {
	set := make(map[string]bool)
	for _, c := range info.AllColumns() {
		set[c.Name] = true
	}
	return set
}

func hasValueColumnRefs(e filter.Expr, idxInfo *rowtype.RowInfo) bool {
	if e == nil {
		return false
	}
	for _, col := range filter.ReferencedColumns(e) {
		if !idxInfo.IsKeyColumn(col) {
			return true
		}
	}
	return false
}

func isFullProjection(projection []string, primary *rowtype.RowInfo) bool {
	all := primary.AllColumns()
	if len(projection) != len(all) {
		return false
	}
	for i, c := range all {
		if projection[i] != c.Name {
			return false
		}
	}
	return true
}
