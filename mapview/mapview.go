// Package mapview implements mapped-table support: applying a
// user-defined row-to-row Mapper on read, and discovering the
// "inverse" functions needed to push filters, sorts, and writes back
// down to the source row type.
//
// Uses reflection-driven dispatch, the same way a function-lookup-by-name
// registry would, generalized to relkv's inverse-method-discovery rule: a
// Mapper's exported methods named target_to_sourceColumn are found via
// reflection once per Mapper type and cached, rather than requiring the
// caller to wire them by hand.
package mapview

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/coreward/relkv/filter"
)

// Mapper transforms a source row into a target row. Map must be a pure
// function of its input (no side effects), since the planner may call it
// speculatively during filter pushdown analysis.
type Mapper interface {
	Map(source any) (target any, err error)
}

// Inverse is one discovered target_to_sourceColumn method: given a
// target column's value, it returns the corresponding source column's
// value.
type Inverse struct {
	TargetColumn string
	SourceColumn string
	Untransformed bool // true when the inverse is provably identity
	Call          func(targetValue any) (sourceValue any, err error)
}

const methodPrefix = "_to_"

// DiscoverInverses reflects over mapper's method set, finding every
// exported method named "<target>_to_<source>" with signature
// func(any) (any, error) and returning one Inverse per match. Results
// should be cached per concrete Mapper type by the caller (three
// distinct cached shapes: PK-only, full, update).
func DiscoverInverses(mapper Mapper) ([]Inverse, error) {
	v := reflect.ValueOf(mapper)
	t := v.Type()

	var inverses []Inverse
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		target, source, ok := parseInverseMethodName(m.Name)
		if !ok {
			continue
		}
		mt := m.Func.Type()
		// Method value's func type: (receiver, arg) -> (any, error)
		if mt.NumIn() != 2 || mt.NumOut() != 2 {
			continue
		}
		if !mt.Out(1).Implements(errorType) {
			continue
		}
		methodValue := v.Method(i)
		inverses = append(inverses, Inverse{
			TargetColumn: target,
			SourceColumn: source,
			Call: func(targetValue any) (any, error) {
				results := methodValue.Call([]reflect.Value{reflect.ValueOf(targetValue)})
				var err error
				if e, ok := results[1].Interface().(error); ok {
					err = e
				}
				return results[0].Interface(), err
			},
		})
	}
	return inverses, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func parseInverseMethodName(name string) (target, source string, ok bool) {
	i := strings.Index(name, methodPrefix)
	if i < 0 {
		return "", "", false
	}
	target = name[:i]
	source = name[i+len(methodPrefix):]
	if target == "" || source == "" {
		return "", "", false
	}
	return target, source, true
}

// InverseSet is one of the three cached inverse-mapper shapes: a
// name-indexed lookup of discovered Inverse entries. Whether a column is
// "untransformed" (identity) is recorded per entry, on
// Inverse.Untransformed.
type InverseSet struct {
	byTarget map[string]Inverse
}

// NewInverseSet indexes inverses by target column name.
func NewInverseSet(inverses []Inverse) *InverseSet {
	m := make(map[string]Inverse, len(inverses))
	for _, inv := range inverses {
		m[inv.TargetColumn] = inv
	}
	return &InverseSet{byTarget: m}
}

// Lookup returns the Inverse for a target column, if discovered.
func (s *InverseSet) Lookup(targetColumn string) (Inverse, bool) {
	inv, ok := s.byTarget[targetColumn]
	return inv, ok
}

// Kind names which of the three cached inverse-mapper shapes a cache
// entry holds.
type Kind int

const (
	KindPKOnly Kind = iota
	KindFull
	KindUpdate
)

// Cache caches the three InverseSet shapes per concrete Mapper type, so
// reflection only runs once per Mapper implementation.
type Cache struct {
	mu  sync.Mutex
	sets map[reflect.Type]map[Kind]*InverseSet
}

// NewCache creates an empty inverse-mapper cache.
func NewCache() *Cache {
	return &Cache{sets: make(map[reflect.Type]map[Kind]*InverseSet)}
}

// Get returns the cached InverseSet of the given kind for mapper's
// concrete type, building it via build (typically filtering
// DiscoverInverses's full result down to the columns relevant to kind)
// on first use.
func (c *Cache) Get(mapper Mapper, kind Kind, build func([]Inverse) []Inverse) (*InverseSet, error) {
	t := reflect.TypeOf(mapper)

	c.mu.Lock()
	if byKind, ok := c.sets[t]; ok {
		if set, ok := byKind[kind]; ok {
			c.mu.Unlock()
			return set, nil
		}
	} else {
		c.sets[t] = make(map[Kind]*InverseSet)
	}
	c.mu.Unlock()

	all, err := DiscoverInverses(mapper)
	if err != nil {
		return nil, err
	}
	set := NewInverseSet(build(all))

	c.mu.Lock()
	c.sets[t][kind] = set
	c.mu.Unlock()
	return set, nil
}

// PushFilter pushes f down to the source row type when every column it
// references has an untransformed inverse in set, or (for
// ColumnToColumn terms) both sides do. Returns (pushed, ok); ok is false
// when the filter can't be pushed and must instead be evaluated against
// the mapped target rows.
func PushFilter(f filter.Expr, set *InverseSet) (filter.Expr, bool) {
	for _, col := range filter.ReferencedColumns(f) {
		inv, found := set.Lookup(col)
		if !found || !inv.Untransformed {
			return nil, false
		}
	}
	remapped := filter.Retain(f, func(col string) filter.RetainDecision {
		if inv, ok := set.Lookup(col); ok && inv.Untransformed {
			return filter.RetainKeep
		}
		return filter.RetainDrop
	}, true, filter.True{})
	renamed := renameColumns(remapped, set)
	return renamed, true
}

// renameColumns rewrites a filter's column references from target names
// to their source-column equivalents via set.
func renameColumns(e filter.Expr, set *InverseSet) filter.Expr {
	switch v := e.(type) {
	case filter.ColumnToConstant:
		if inv, ok := set.Lookup(v.Column); ok {
			v.Column = inv.SourceColumn
		}
		return v
	case filter.ColumnToArg:
		if inv, ok := set.Lookup(v.Column); ok {
			v.Column = inv.SourceColumn
		}
		return v
	case filter.In:
		if inv, ok := set.Lookup(v.Column); ok {
			v.Column = inv.SourceColumn
		}
		return v
	case filter.ColumnToColumn:
		if inv, ok := set.Lookup(v.A); ok {
			v.A = inv.SourceColumn
		}
		if inv, ok := set.Lookup(v.B); ok {
			v.B = inv.SourceColumn
		}
		return v
	case filter.AndGroup:
		terms := make([]filter.Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = renameColumns(t, set)
		}
		return filter.And(terms...)
	case filter.OrGroup:
		terms := make([]filter.Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = renameColumns(t, set)
		}
		return filter.Or(terms...)
	default:
		return e
	}
}

// PushOrder pushes every column of orderBy down to its source-column
// equivalent when each has an untransformed inverse and the mapper
// performs no filtering of its own (mapperFilters); otherwise the caller
// must sort on the target rows instead.
func PushOrder(orderBy []string, set *InverseSet, mapperFilters bool) ([]string, bool) {
	if mapperFilters {
		return nil, false
	}
	pushed := make([]string, len(orderBy))
	for i, col := range orderBy {
		inv, ok := set.Lookup(col)
		if !ok || !inv.Untransformed {
			return nil, false
		}
		pushed[i] = inv.SourceColumn
	}
	return pushed, true
}

// PrepareArgs synthesizes new source-side positional arguments by
// invoking each referenced inverse function on the caller-supplied
// target argument value. Position i of the result holds the inverse of
// targetArgs[i] for columns[i], or targetArgs[i] unchanged when no
// inverse is known for that column; argument positions are not remapped.
func PrepareArgs(targetArgs []any, columns []string, set *InverseSet) (sourceArgs []any, err error) {
	sourceArgs = make([]any, len(targetArgs))
	for i, col := range columns {
		if i >= len(targetArgs) {
			break
		}
		inv, ok := set.Lookup(col)
		if !ok {
			sourceArgs[i] = targetArgs[i]
			continue
		}
		v, err := inv.Call(targetArgs[i])
		if err != nil {
			return nil, fmt.Errorf("mapview: inverse %s_to_%s: %w", inv.TargetColumn, inv.SourceColumn, err)
		}
		sourceArgs[i] = v
	}
	return sourceArgs, nil
}

// UntransformedInverse builds an Inverse that is the identity function,
// used when a Mapper is flagged "untransformed" for a column rather than
// discovered via reflection.
func UntransformedInverse(column string) Inverse {
	return Inverse{
		TargetColumn:  column,
		SourceColumn:  column,
		Untransformed: true,
		Call:          func(v any) (any, error) { return v, nil },
	}
}
