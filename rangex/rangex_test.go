package rangex

import (
	"testing"

	"github.com/coreward/relkv/filter"
)

func TestRangeExtractEqualityPrefixPlusRange(t *testing.T) {
	a := filter.ColumnToArg{Column: "a", Op: filter.OpEq, ArgNum: 1}
	b := filter.ColumnToArg{Column: "b", Op: filter.OpGt, ArgNum: 2}

	r := RangeExtract(filter.And(a, b), []string{"a", "b"}, nil)

	if r.Low == nil {
		t.Fatal("expected a non-nil low bound")
	}
	if r.High == nil || r.High.String() != a.String() {
		t.Fatal("expected high bound to be the equality prefix a == ?1")
	}
	if r.Filter != nil {
		if _, ok := r.Filter.(filter.True); !ok {
			t.Fatalf("expected empty remainder, got %v", r.Filter)
		}
	}
}

func TestRangeExtractNonPrefixColumnIsRemainder(t *testing.T) {
	b := filter.ColumnToArg{Column: "b", Op: filter.OpEq, ArgNum: 1}

	r := RangeExtract(b, []string{"a", "b"}, nil)

	if r.Low != nil || r.High != nil {
		t.Fatal("expected no range bounds: b is not at the bound position")
	}
	if r.Filter == nil {
		t.Fatal("expected b's term to land in the remainder")
	}
}

func TestRangeExtractFuzzyEqualityNeverCloses(t *testing.T) {
	d := filter.ColumnToArg{Column: "d", Op: filter.OpEq, ArgNum: 1}

	r := RangeExtract(d, []string{"d"}, func(e filter.Expr) bool { return true })

	if r.Low != nil {
		t.Fatal("fuzzy equality should never close the low side")
	}
	if r.Filter == nil {
		t.Fatal("fuzzy equality term should land in the remainder")
	}
}

func TestMultiRangeExtractOneRangePerDisjunct(t *testing.T) {
	a := filter.ColumnToArg{Column: "a", Op: filter.OpEq, ArgNum: 1}
	b := filter.ColumnToArg{Column: "b", Op: filter.OpGt, ArgNum: 2}
	c := filter.ColumnToArg{Column: "b", Op: filter.OpLt, ArgNum: 3}

	dnf := filter.Or(filter.And(a, b), filter.And(a, c))
	ranges := MultiRangeExtract(dnf, []string{"a", "b"}, nil, false, false)

	if len(ranges) == 0 {
		t.Fatal("expected at least one range")
	}
}

func TestSplitRemaindersPartitionsByColumnSet(t *testing.T) {
	srcOnly := filter.ColumnToArg{Column: "a", Op: filter.OpEq, ArgNum: 1}
	joinOnly := filter.ColumnToColumn{A: "a", Op: filter.OpEq, B: "other.x"}

	r := Range{Filter: filter.And(srcOnly, joinOnly)}
	src, join := SplitRemainders(r, map[string]bool{"a": true})

	if src == nil || join == nil {
		t.Fatal("expected both partitions to be non-nil")
	}
	if len(filter.ReferencedColumns(join)) == 0 {
		t.Fatal("join partition should still reference its columns")
	}
}
