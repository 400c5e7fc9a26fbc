package table

import (
	"context"
	"testing"

	"github.com/coreward/relkv/kv/memkv"
	"github.com/coreward/relkv/plan"
	"github.com/coreward/relkv/querylang"
	"github.com/coreward/relkv/rowtype"
)

func mustParseSpec(t *testing.T, query string) plan.QuerySpec {
	t.Helper()
	spec, err := querylang.Parse(query)
	if err != nil {
		t.Fatalf("querylang.Parse(%q): %v", query, err)
	}
	return spec
}

func widgetRowInfo() *rowtype.RowInfo {
	return rowtype.NewRowInfo("widget",
		[]rowtype.Column{
			{Name: "id", Type: rowtype.TypeInt64},
		},
		[]rowtype.Column{
			{Name: "sku", Type: rowtype.TypeString},
			{Name: "qty", Type: rowtype.TypeInt64},
		},
	)
}

func newWidgetTable(t *testing.T) (*Database, *Table) {
	t.Helper()
	db := NewDatabase()
	tbl, err := db.CreateTable("widgets", widgetRowInfo(), memkv.New("widgets"), 1)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return db, tbl
}

func TestInsertLoadDelete(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	row := map[string]any{"id": int64(1), "sku": "widget-a", "qty": int64(10)}
	if err := tbl.Insert(ctx, nil, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := tbl.Load(ctx, nil, map[string]any{"id": int64(1)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected row to be present")
	}
	if got["sku"] != "widget-a" || got["qty"] != int64(10) {
		t.Fatalf("unexpected row: %+v", got)
	}

	deleted, err := tbl.Delete(ctx, nil, map[string]any{"id": int64(1)})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected Delete to report a row was removed")
	}

	_, ok, err = tbl.Load(ctx, nil, map[string]any{"id": int64(1)})
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if ok {
		t.Fatal("expected row to be gone after delete")
	}
}

func TestLoadMissingKeyColumnErrors(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	if _, _, err := tbl.Load(ctx, nil, map[string]any{}); err == nil {
		t.Fatal("expected an error for a load with no key columns bound")
	}
}

func TestQueryEqualityFilter(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	rows := []map[string]any{
		{"id": int64(1), "sku": "widget-a", "qty": int64(10)},
		{"id": int64(2), "sku": "widget-b", "qty": int64(20)},
		{"id": int64(3), "sku": "widget-a", "qty": int64(5)},
	}
	for _, r := range rows {
		if err := tbl.Insert(ctx, nil, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.Query(ctx, nil, "sku == ?1", "widget-a")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(got), got)
	}
	for _, r := range got {
		if r["sku"] != "widget-a" {
			t.Fatalf("unexpected row in result: %+v", r)
		}
	}
}

func TestQueryRangeOverPrimaryKey(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	for i := int64(1); i <= 5; i++ {
		row := map[string]any{"id": i, "sku": "s", "qty": i * 10}
		if err := tbl.Insert(ctx, nil, row); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.Query(ctx, nil, "id >= ?1 && id <= ?2", int64(2), int64(4))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3: %+v", len(got), got)
	}
	for _, r := range got {
		id := r["id"].(int64)
		if id < 2 || id > 4 {
			t.Fatalf("row outside requested range: %+v", r)
		}
	}
}

func TestQueryOrderByDescending(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	for i := int64(1); i <= 3; i++ {
		row := map[string]any{"id": i, "sku": "s", "qty": i}
		if err := tbl.Insert(ctx, nil, row); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.Query(ctx, nil, "id >= ?1 orderBy qty desc", int64(0))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	for i := 0; i < len(got)-1; i++ {
		if got[i]["qty"].(int64) < got[i+1]["qty"].(int64) {
			t.Fatalf("results not sorted descending: %+v", got)
		}
	}
}

func TestInsertGeneratesAutomaticKey(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	info := rowtype.NewRowInfo("counters",
		[]rowtype.Column{
			{Name: "id", Type: rowtype.TypeInt64, Automatic: true, AutoRange: rowtype.AutoRange{Min: 1, Max: 1000}},
		},
		[]rowtype.Column{
			{Name: "label", Type: rowtype.TypeString},
		},
	)
	tbl, err := db.CreateTable("counters", info, memkv.New("counters"), 1)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if err := tbl.Insert(ctx, nil, map[string]any{"label": "first"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := tbl.Query(ctx, nil, "label == ?1", "first")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	id, ok := got[0]["id"].(int64)
	if !ok || id < 1 || id > 1000 {
		t.Fatalf("expected a generated id within range, got %+v", got[0]["id"])
	}
}

func TestSecondaryIndexJoinsBackToPrimary(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	desc := rowtype.SecondaryDescriptor{
		Name:           "widgets_by_sku",
		IndexColumns:   []rowtype.Column{{Name: "sku", Type: rowtype.TypeString}},
		BorrowedFromPK: []string{"id"},
	}
	secStore := memkv.New("widgets_by_sku")
	if err := tbl.AddSecondaryIndex(desc, secStore); err != nil {
		t.Fatalf("AddSecondaryIndex: %v", err)
	}

	rows := []map[string]any{
		{"id": int64(1), "sku": "widget-a", "qty": int64(10)},
		{"id": int64(2), "sku": "widget-b", "qty": int64(20)},
	}
	for _, r := range rows {
		if err := tbl.Insert(ctx, nil, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.Query(ctx, nil, "sku == ?1 && qty == ?2", "widget-a", int64(10))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != int64(1) {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestQueryProjection(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	if err := tbl.Insert(ctx, nil, map[string]any{"id": int64(1), "sku": "widget-a", "qty": int64(10)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := tbl.Query(ctx, nil, "{id,sku} id == ?1", int64(1))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if _, ok := got[0]["qty"]; ok {
		t.Fatalf("expected qty to be excluded from a projected result, got %+v", got[0])
	}
	if got[0]["sku"] != "widget-a" {
		t.Fatalf("unexpected projected row: %+v", got[0])
	}
}

func TestSchemaFingerprintStableAndDistinguishesLayout(t *testing.T) {
	_, tbl := newWidgetTable(t)
	first := tbl.SchemaFingerprint()
	second := tbl.SchemaFingerprint()
	if first != second {
		t.Fatal("expected SchemaFingerprint to be stable across calls")
	}

	db := NewDatabase()
	other, err := db.CreateTable("other_widgets", widgetRowInfo(), memkv.New("other_widgets"), 1)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if other.SchemaFingerprint() != first {
		t.Fatal("expected identical column layouts to fingerprint identically")
	}

	if tbl.Name() != "widgets" {
		t.Fatalf("Name() = %q, want widgets", tbl.Name())
	}
	if tbl.Info().Name != "widget" {
		t.Fatalf("Info().Name = %q, want widget", tbl.Info().Name)
	}
}

func TestQueryCachePerSchemaFingerprint(t *testing.T) {
	ctx := context.Background()
	_, tbl := newWidgetTable(t)

	if err := tbl.Insert(ctx, nil, map[string]any{"id": int64(1), "sku": "widget-a", "qty": int64(10)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	p1, err := tbl.compile(mustParseSpec(t, "sku == ?1"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p2, err := tbl.compile(mustParseSpec(t, "sku == ?1"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p1 != p2 {
		t.Fatal("expected a repeated compile of the same query to hit the cache")
	}
}
