package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

const widgetSchema = `{
	"table": "widgets",
	"version": 1,
	"key": [{"name": "id", "type": "int64"}],
	"value": [
		{"name": "sku", "type": "string"},
		{"name": "qty", "type": "int64"}
	]
}`

func TestLoadSchemaBuildsRowInfo(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "schema.json", widgetSchema)

	info, schemaVersion, err := loadSchema(path)
	if err != nil {
		t.Fatalf("loadSchema: %v", err)
	}
	if info.Name != "widgets" {
		t.Fatalf("Name = %q, want widgets", info.Name)
	}
	if schemaVersion != 1 {
		t.Fatalf("version = %d, want 1", schemaVersion)
	}
	if len(info.KeyColumns) != 1 || info.KeyColumns[0].Name != "id" {
		t.Fatalf("unexpected key columns: %+v", info.KeyColumns)
	}
	if len(info.ValueColumns) != 2 {
		t.Fatalf("unexpected value columns: %+v", info.ValueColumns)
	}
}

func TestLoadSchemaRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "schema.json", `{
		"table": "bad",
		"key": [{"name": "id", "type": "not-a-real-type"}]
	}`)

	if _, _, err := loadSchema(path); err == nil {
		t.Fatal("expected an error for an unknown column type")
	}
}

func TestOpenTableSeedsRowsWithCoercedTypes(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeTestFile(t, dir, "schema.json", widgetSchema)
	seedPath := writeTestFile(t, dir, "seed.json", `[
		{"id": 1, "sku": "widget-a", "qty": 10},
		{"id": 2, "sku": "widget-b", "qty": 20}
	]`)

	_, tbl, err := openTable(schemaPath, seedPath)
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}

	got, found, err := tbl.Load(context.Background(), nil, map[string]any{"id": int64(1)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected seeded row to be present")
	}
	if got["sku"] != "widget-a" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if qty, ok := got["qty"].(int64); !ok || qty != 10 {
		t.Fatalf("expected qty to be coerced to int64(10), got %#v", got["qty"])
	}
}

func TestRunAndPrintParsesTrailingJSONArgs(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeTestFile(t, dir, "schema.json", widgetSchema)
	seedPath := writeTestFile(t, dir, "seed.json", `[{"id": 1, "sku": "widget-a", "qty": 10}]`)

	_, tbl, err := openTable(schemaPath, seedPath)
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}

	if err := runAndPrint(context.Background(), tbl, `sku == ?1 | ["widget-a"]`); err != nil {
		t.Fatalf("runAndPrint: %v", err)
	}
}
