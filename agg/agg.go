// Package agg implements grouped aggregation and distinct over a
// contiguous-rows-by-key source stream: AggregatedScanner groups
// adjacent source rows sharing the same target-key projection and
// invokes a caller-supplied aggregator factory once per group, and
// DeriveGroupOrder, NeedsSyntheticKey and SyntheticFullKey work out the
// source ordering and target row type an aggregated or distinct table
// needs.
//
// Rather than a bytecode-emitting GROUP BY compiler, this is a plain Go
// iterator: relkv has no opcode engine to emit into, so grouping and
// accumulation happen directly as the scanner is driven, in the same
// new-group-detection-then-accumulate-then-finalize shape a compiled
// GROUP BY would follow.
package agg

import (
	"github.com/coreward/relkv/rowtype"
)

// Row is an opaque source row handed to an Aggregator: the agg package
// never interprets row contents itself, leaving codec/row-type concerns
// to the caller (package table).
type Row any

// GroupKey is the projected target-key value for one source row, used to
// detect group boundaries via Equal.
type GroupKey interface {
	Equal(other GroupKey) bool
}

// Aggregator accumulates the rows of a single group and produces the
// group's target row once Finish is called. A new Aggregator is created
// per group via the AggregatorFactory.
type Aggregator interface {
	Accumulate(row Row) error
	Finish() (Row, error)
}

// AggregatorFactory creates a fresh Aggregator for the group whose key
// is key.
type AggregatorFactory func(key GroupKey) Aggregator

// Source yields contiguous source rows along with each row's computed
// group key; AggregatedScanner assumes rows sharing a key are already
// adjacent (the source must be ordered by the group key — see
// DeriveGroupOrder).
type Source interface {
	// Next returns the next row and its group key, or ok=false when
	// exhausted.
	Next() (row Row, key GroupKey, ok bool, err error)
}

// AggregatedScanner groups contiguous rows from src by GroupKey.Equal
// and invokes newAgg once per group boundary, emitting each finished
// group's target row via Next.
type AggregatedScanner struct {
	src    Source
	newAgg AggregatorFactory

	pending    Row
	pendingKey GroupKey
	havePend   bool
	done       bool
}

// NewAggregatedScanner wraps src, grouping by key equality and building
// each group's result via newAgg.
func NewAggregatedScanner(src Source, newAgg AggregatorFactory) *AggregatedScanner {
	return &AggregatedScanner{src: src, newAgg: newAgg}
}

// Next produces the next grouped target row, or ok=false once the
// source and any trailing group are exhausted.
func (s *AggregatedScanner) Next() (Row, bool, error) {
	if s.done {
		return nil, false, nil
	}

	var key GroupKey
	var agg Aggregator
	started := false

	if s.havePend {
		key = s.pendingKey
		agg = s.newAgg(key)
		if err := agg.Accumulate(s.pending); err != nil {
			return nil, false, err
		}
		s.havePend = false
		started = true
	}

	for {
		row, rowKey, ok, err := s.src.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			s.done = true
			if !started {
				return nil, false, nil
			}
			result, err := agg.Finish()
			if err != nil {
				return nil, false, err
			}
			return result, true, nil
		}
		if !started {
			key = rowKey
			agg = s.newAgg(key)
			if err := agg.Accumulate(row); err != nil {
				return nil, false, err
			}
			started = true
			continue
		}
		if key.Equal(rowKey) {
			if err := agg.Accumulate(row); err != nil {
				return nil, false, err
			}
			continue
		}
		// Group boundary: stash the row that belongs to the next group
		// and finish the current one.
		s.pending = row
		s.pendingKey = rowKey
		s.havePend = true
		result, err := agg.Finish()
		if err != nil {
			return nil, false, err
		}
		return result, true, nil
	}
}

// DeriveGroupOrder computes the source orderBy an aggregated table needs:
// the target primary-key columns (which define the group boundary),
// followed by any orderBy columns the caller requested on the target
// that aren't already part of the target key, provided those columns
// also exist on the source.
func DeriveGroupOrder(targetKey []string, requestedOrderBy []string, source *rowtype.RowInfo) []string {
	order := append([]string(nil), targetKey...)
	seen := make(map[string]bool, len(order))
	for _, c := range order {
		seen[c] = true
	}
	for _, c := range requestedOrderBy {
		if seen[c] {
			continue
		}
		if _, ok := source.Column(c); !ok {
			continue
		}
		order = append(order, c)
		seen[c] = true
	}
	return order
}

// IsAggregationTrivial reports whether the target row type has no
// primary key at all, meaning the aggregation produces exactly one row
// with no grouping or sort required.
func IsAggregationTrivial(target *rowtype.RowInfo) bool {
	return len(target.KeyColumns) == 0
}

// IdentityAggregator implements Aggregator for distinct: the target row
// equals the first (and only, once deduplicated) row seen per group.
type IdentityAggregator struct {
	first Row
	seen  bool
}

// NewIdentityAggregatorFactory returns an AggregatorFactory producing
// IdentityAggregators, used to model `distinct` as aggregation with an
// identity per-group aggregator.
func NewIdentityAggregatorFactory() AggregatorFactory {
	return func(key GroupKey) Aggregator { return &IdentityAggregator{} }
}

func (a *IdentityAggregator) Accumulate(row Row) error {
	if !a.seen {
		a.first = row
		a.seen = true
	}
	return nil
}

func (a *IdentityAggregator) Finish() (Row, error) {
	return a.first, nil
}

// NeedsSyntheticKey reports whether a distinct transformation over
// source needs a synthesized full-primary-key row type because source
// itself has no primary key.
func NeedsSyntheticKey(source *rowtype.RowInfo) bool {
	return len(source.KeyColumns) == 0
}

// SyntheticFullKey builds the key-column list for a synthesized
// full-primary-key row type over every column of source, used when
// NeedsSyntheticKey reports true.
func SyntheticFullKey(source *rowtype.RowInfo) []rowtype.Column {
	return source.AllColumns()
}
