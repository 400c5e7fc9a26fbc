package plan

import (
	"testing"

	"github.com/coreward/relkv/filter"
	"github.com/coreward/relkv/rowtype"
)

func widgetsTable() Table {
	primary := rowtype.NewRowInfo("widgets",
		[]rowtype.Column{{Name: "id", Type: rowtype.TypeInt64}},
		[]rowtype.Column{
			{Name: "sku", Type: rowtype.TypeString},
			{Name: "price", Type: rowtype.TypeInt64},
			{Name: "description", Type: rowtype.TypeString},
		},
	)
	// bySku is not a covering index for description: a filter referencing
	// description can only be checked after joining back to primary.
	bySku := rowtype.NewRowInfo("widgets_by_sku",
		[]rowtype.Column{{Name: "sku", Type: rowtype.TypeString}, {Name: "id", Type: rowtype.TypeInt64}},
		[]rowtype.Column{{Name: "price", Type: rowtype.TypeInt64}},
	)
	return Table{
		Primary:   IndexDescriptor{Info: primary, IsPrimary: true},
		Secondary: []IndexDescriptor{{Info: bySku}},
	}
}

func TestCompilePicksPrimaryWhenFilterMatchesPK(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.ColumnToConstant{Column: "id", Op: filter.OpEq, Constant: int64(7)}}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Index.IsPrimary {
		t.Fatalf("expected primary index chosen, got %q", p.Index.Info.Name)
	}
	if p.Range.Low == nil {
		t.Fatal("expected a low bound extracted from id = 7")
	}
}

func TestCompilePicksSecondaryWhenFilterMatchesItsKey(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.And(
		filter.ColumnToConstant{Column: "sku", Op: filter.OpEq, Constant: "ABC"},
		filter.ColumnToConstant{Column: "description", Op: filter.OpEq, Constant: "x"},
	)}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if p.Index.IsPrimary {
		t.Fatal("expected secondary index chosen for a sku equality filter")
	}
	if !p.NeedsJoin {
		t.Fatal("expected join back to primary: description isn't covered by the secondary index")
	}
	if p.DoubleCheck == nil {
		t.Fatal("expected a double-check remainder re-applying the description term against primary")
	}
}

func TestCompileNoFilterFullScan(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.True{}}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Index.IsPrimary {
		t.Fatal("expected primary chosen as default full scan")
	}
	if p.Range.Low != nil || p.Range.High != nil {
		t.Fatal("expected unbounded range for a trivially-true filter")
	}
}

func TestCompileProjectionMaskedWhenSubset(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.True{}, Projection: []string{"id", "sku"}}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !p.NeedsProjection {
		t.Fatal("expected a projection mask for a strict column subset")
	}
}

func TestCompileOrderBySatisfiedByPrimaryNeedsNoSort(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.True{}, OrderBy: []OrderTerm{{Column: "id"}}}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if p.NeedsSort {
		t.Fatal("expected no extra sort: primary key order already satisfies orderBy id")
	}
}

func TestCompileOrderByUnsatisfiedNeedsSort(t *testing.T) {
	tbl := widgetsTable()
	spec := QuerySpec{Filter: filter.True{}, OrderBy: []OrderTerm{{Column: "price"}}}

	p, err := Compile(spec, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if !p.NeedsSort {
		t.Fatal("expected a sort: price isn't a leading key column of any index")
	}
}
