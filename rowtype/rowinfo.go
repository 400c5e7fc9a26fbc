package rowtype

import "fmt"

// RowInfo is the column catalog for an entire row type: a name-to-Column
// map that partitions into ordered key columns (the primary key, in
// concatenation order) and value columns.
//
// Invariants:
//   - the union of KeyColumns and ValueColumns is the full column set;
//   - KeyColumns order is stable and defines key byte concatenation order;
//   - a secondary RowInfo is derived from a primary RowInfo plus a
//     descriptor naming additional key columns borrowed from the primary
//     (see DeriveSecondary).
type RowInfo struct {
	Name         string
	byName       map[string]Column
	KeyColumns   []Column
	ValueColumns []Column
}

// NewRowInfo builds a RowInfo from an ordered key-column list and an
// ordered value-column list. It panics on duplicate column names, which is
// a programmer error (row types are defined once, at startup).
func NewRowInfo(name string, keyColumns, valueColumns []Column) *RowInfo {
	ri := &RowInfo{
		Name:         name,
		byName:       make(map[string]Column, len(keyColumns)+len(valueColumns)),
		KeyColumns:   append([]Column(nil), keyColumns...),
		ValueColumns: append([]Column(nil), valueColumns...),
	}
	for _, c := range ri.KeyColumns {
		if _, dup := ri.byName[c.Name]; dup {
			panic(fmt.Sprintf("rowtype: duplicate column %q in row type %q", c.Name, name))
		}
		ri.byName[c.Name] = c
	}
	for _, c := range ri.ValueColumns {
		if _, dup := ri.byName[c.Name]; dup {
			panic(fmt.Sprintf("rowtype: duplicate column %q in row type %q", c.Name, name))
		}
		ri.byName[c.Name] = c
	}
	return ri
}

// Column looks up a column by name.
func (ri *RowInfo) Column(name string) (Column, bool) {
	c, ok := ri.byName[name]
	return c, ok
}

// AllColumns returns key columns followed by value columns.
func (ri *RowInfo) AllColumns() []Column {
	all := make([]Column, 0, len(ri.KeyColumns)+len(ri.ValueColumns))
	all = append(all, ri.KeyColumns...)
	all = append(all, ri.ValueColumns...)
	return all
}

// IsKeyColumn reports whether name is one of the primary key columns.
func (ri *RowInfo) IsKeyColumn(name string) bool {
	for _, c := range ri.KeyColumns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// KeyColumnNames returns the primary key column names in concatenation order.
func (ri *RowInfo) KeyColumnNames() []string {
	names := make([]string, len(ri.KeyColumns))
	for i, c := range ri.KeyColumns {
		names[i] = c.Name
	}
	return names
}

// SecondaryDescriptor names the extra primary-key columns a secondary index
// borrows in order to make every secondary entry unique and joinable back
// to its primary row.
type SecondaryDescriptor struct {
	Name           string
	IndexColumns   []Column // the secondary index's own leading key columns
	BorrowedFromPK []string // additional primary-key column names, appended
}

// DeriveSecondary builds a secondary RowInfo from a primary RowInfo: the
// secondary's key is its own IndexColumns followed by any primary-key
// columns not already present, and its value columns are whatever primary
// columns remain (available for covering-index projection).
func DeriveSecondary(primary *RowInfo, desc SecondaryDescriptor) *RowInfo {
	seen := make(map[string]bool)
	keyCols := make([]Column, 0, len(desc.IndexColumns)+len(desc.BorrowedFromPK))
	for _, c := range desc.IndexColumns {
		keyCols = append(keyCols, c)
		seen[c.Name] = true
	}
	for _, name := range desc.BorrowedFromPK {
		if seen[name] {
			continue
		}
		c, ok := primary.Column(name)
		if !ok {
			panic(fmt.Sprintf("rowtype: secondary %q borrows unknown primary column %q", desc.Name, name))
		}
		keyCols = append(keyCols, c)
		seen[name] = true
	}

	valCols := make([]Column, 0)
	for _, c := range primary.AllColumns() {
		if !seen[c.Name] {
			valCols = append(valCols, c)
		}
	}

	return NewRowInfo(desc.Name, keyCols, valCols)
}
