package table

import (
	"context"
	"fmt"
	"sort"

	"github.com/coreward/relkv/codec"
	"github.com/coreward/relkv/errs"
	"github.com/coreward/relkv/filter"
	"github.com/coreward/relkv/kv"
	"github.com/coreward/relkv/logging"
	"github.com/coreward/relkv/plan"
	"github.com/coreward/relkv/querycache"
	"github.com/coreward/relkv/querylang"
	"github.com/coreward/relkv/rangex"
	"github.com/coreward/relkv/rowtype"
	"github.com/coreward/relkv/scan"
	"github.com/coreward/relkv/scan/txscope"
	"github.com/coreward/relkv/trigger"
	"github.com/coreward/relkv/trigger/keygen"
)

// Database is a named registry of Tables sharing one compiled-query
// cache; in a production deployment it would also own the RowStore that
// supplies kv.Index implementations and durability, but that lives
// outside this module.
type Database struct {
	tables map[string]*Table
	cache  *querycache.Cache
}

// NewDatabase creates an empty Database with a default-sized query cache.
func NewDatabase() *Database {
	return &Database{
		tables: make(map[string]*Table),
		cache:  querycache.New(0),
	}
}

// Table looks up a previously created table by name.
func (d *Database) Table(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// secondaryIndex is one maintained secondary index on a Table.
type secondaryIndex struct {
	desc     rowtype.SecondaryDescriptor
	info     *rowtype.RowInfo
	store    kv.Index
	rowCodec *RowCodec
}

// Table is the public handle for one row type's primary storage plus any
// secondary indexes, wired to a trigger.Slot that keeps them in sync on
// write.
type Table struct {
	db         *Database
	name       string
	info       *rowtype.RowInfo
	primary    kv.Index
	rowCodec   *RowCodec
	secondary  []*secondaryIndex
	trig       *trigger.Slot
	keygens    map[string]*keygen.Generator
	isFuzzyEq  func(filter.Expr) bool
	fingerprint [32]byte
}

// SchemaFingerprint returns the blake3 fingerprint of the table's current
// column layout, stable across processes and changing only when a column
// is added, removed, reordered, or retyped.
func (t *Table) SchemaFingerprint() [32]byte {
	return t.fingerprint
}

// Name returns the table's registered name.
func (t *Table) Name() string {
	return t.name
}

// Info returns the table's column catalog.
func (t *Table) Info() *rowtype.RowInfo {
	return t.info
}

// CreateTable registers a new table backed by primary, whose rows follow
// info's column catalog. version seeds the schema-version prefix stamped
// on encoded values.
func (d *Database) CreateTable(name string, info *rowtype.RowInfo, primary kv.Index, version uint32) (*Table, error) {
	if _, exists := d.tables[name]; exists {
		return nil, fmt.Errorf("table: %q already exists", name)
	}
	t := &Table{
		db:          d,
		name:        name,
		info:        info,
		primary:     primary,
		rowCodec:    NewRowCodec(info, version),
		trig:        trigger.NewSlot(),
		keygens:     make(map[string]*keygen.Generator),
		fingerprint: codec.FingerprintSchema(info),
	}
	for _, c := range info.KeyColumns {
		if c.Automatic {
			rng := keygen.Range{Min: c.AutoRange.Min, Max: c.AutoRange.Max, Signed: c.Type.IsSigned(), Width: autoWidth(c)}
			t.keygens[c.Name] = keygen.New(rng, defaultSeed(name, c.Name))
		}
	}
	logging.TableRegistered(name, codec.FingerprintString(t.fingerprint))
	d.tables[name] = t
	return t, nil
}

func autoWidth(c rowtype.Column) keygen.Width {
	switch c.Type {
	case rowtype.TypeInt32, rowtype.TypeUint32:
		return keygen.Width32
	default:
		return keygen.Width64
	}
}

// defaultSeed derives a fixed-but-distinct seed per (table, column) pair
// so key generation is deterministic across process restarts without
// needing a wall-clock source.
func defaultSeed(table, column string) int64 {
	var h int64 = 1469598103934665603
	for _, r := range table + "\x00" + column {
		h ^= int64(r)
		h *= 1099511628211
	}
	return h
}

// AddSecondaryIndex registers store as a secondary index derived via
// desc, and installs (or replaces) the table's trigger so future writes
// keep it in sync. Existing rows already in the primary index are not
// backfilled by this call; callers populate a fresh index via Export/
// Import or a one-time scan before bringing it online.
func (t *Table) AddSecondaryIndex(desc rowtype.SecondaryDescriptor, store kv.Index) error {
	secInfo := rowtype.DeriveSecondary(t.info, desc)
	sec := &secondaryIndex{
		desc:     desc,
		info:     secInfo,
		store:    store,
		rowCodec: NewRowCodec(secInfo, 0),
	}
	t.secondary = append(t.secondary, sec)
	t.trig.SetTrigger(&secondaryMaintainer{table: t})
	return nil
}

// secondaryMaintainer is the trigger.Trigger that keeps every secondary
// index of a table in sync with writes to its primary row.
type secondaryMaintainer struct {
	table *Table
}

func (m *secondaryMaintainer) OnWrite(ctx context.Context, key, oldValue, newValue []byte) error {
	for _, sec := range m.table.secondary {
		if err := m.table.updateSecondary(ctx, sec, key, oldValue, newValue); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) updateSecondary(ctx context.Context, sec *secondaryIndex, key, oldValue, newValue []byte) error {
	if oldValue != nil {
		oldRow, err := t.rowCodec.DecodeRow(key, oldValue)
		if err != nil {
			return err
		}
		oldSecKey, err := sec.rowCodec.EncodeKey(oldRow)
		if err != nil {
			return err
		}
		if err := sec.store.Store(ctx, nil, oldSecKey, nil); err != nil {
			return err
		}
	}
	if newValue != nil {
		newRow, err := t.rowCodec.DecodeRow(key, newValue)
		if err != nil {
			return err
		}
		secKey, err := sec.rowCodec.EncodeKey(newRow)
		if err != nil {
			return err
		}
		secVal, err := sec.rowCodec.EncodeValue(newRow)
		if err != nil {
			return err
		}
		if err := sec.store.Store(ctx, nil, secKey, secVal); err != nil {
			return err
		}
	}
	return nil
}

// Insert writes row as a new entry, generating any Automatic primary-key
// columns left unset via this table's keygen.Generator before encoding.
func (t *Table) Insert(ctx context.Context, txn kv.Transaction, row map[string]any) error {
	row, err := t.assignAutoKeys(ctx, txn, row)
	if err != nil {
		return err
	}
	key, err := t.rowCodec.EncodeKey(row)
	if err != nil {
		return err
	}
	value, err := t.rowCodec.EncodeValue(row)
	if err != nil {
		return err
	}
	if txn != nil {
		if err := txn.LockExclusive(ctx, t.primary, key); err != nil {
			return err
		}
	}
	if err := t.primary.Store(ctx, txn, key, value); err != nil {
		return err
	}
	return t.trig.Dispatch(ctx, key, nil, value)
}

func (t *Table) assignAutoKeys(ctx context.Context, txn kv.Transaction, row map[string]any) (map[string]any, error) {
	if len(t.keygens) == 0 {
		return row, nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for col, gen := range t.keygens {
		if out[col] != nil {
			continue
		}
		tryAcquire := func(ctx context.Context, candidate int64) (bool, error) {
			candidateRow := make(map[string]any, len(out)+1)
			for k, v := range out {
				candidateRow[k] = v
			}
			candidateRow[col] = castAutoKey(candidate, t.columnType(col))
			key, err := t.rowCodec.EncodeKey(candidateRow)
			if err != nil {
				return false, err
			}
			_, err = t.primary.Load(ctx, txn, key)
			if err == kv.ErrNotFound {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return false, nil
		}
		picked, err := gen.Next(ctx, tryAcquire)
		if err != nil {
			return nil, fmt.Errorf("table: generate key for column %q: %w", col, err)
		}
		out[col] = castAutoKey(picked, t.columnType(col))
	}
	return out, nil
}

func (t *Table) columnType(column string) rowtype.Type {
	c, _ := t.info.Column(column)
	return c.Type
}

func castAutoKey(v int64, typ rowtype.Type) any {
	switch typ {
	case rowtype.TypeInt8:
		return int8(v)
	case rowtype.TypeInt16:
		return int16(v)
	case rowtype.TypeInt32:
		return int32(v)
	case rowtype.TypeInt64:
		return v
	case rowtype.TypeUint8:
		return uint8(v)
	case rowtype.TypeUint16:
		return uint16(v)
	case rowtype.TypeUint32:
		return uint32(v)
	case rowtype.TypeUint64:
		return uint64(v)
	default:
		return v
	}
}

// Load reads a single row by its full primary key.
func (t *Table) Load(ctx context.Context, txn kv.Transaction, keyValues map[string]any) (map[string]any, bool, error) {
	if err := t.requireFullKey(keyValues); err != nil {
		return nil, false, err
	}
	key, err := t.rowCodec.EncodeKey(keyValues)
	if err != nil {
		return nil, false, err
	}
	if txn != nil {
		if err := txn.LockShared(ctx, t.primary, key); err != nil {
			return nil, false, err
		}
	}
	value, err := t.primary.Load(ctx, txn, key)
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	row, err := t.rowCodec.DecodeRow(key, value)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Delete removes the row named by its full primary key, returning
// whether a row was actually present.
func (t *Table) Delete(ctx context.Context, txn kv.Transaction, keyValues map[string]any) (bool, error) {
	if err := t.requireFullKey(keyValues); err != nil {
		return false, err
	}
	key, err := t.rowCodec.EncodeKey(keyValues)
	if err != nil {
		return false, err
	}
	if txn != nil {
		if err := txn.LockExclusive(ctx, t.primary, key); err != nil {
			return false, err
		}
	}
	oldValue, err := t.primary.Load(ctx, txn, key)
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := t.primary.Store(ctx, txn, key, nil); err != nil {
		return false, err
	}
	if err := t.trig.Dispatch(ctx, key, oldValue, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Table) requireFullKey(keyValues map[string]any) error {
	var missing []string
	for _, c := range t.info.KeyColumns {
		if _, ok := keyValues[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return &errs.IllegalStateError{Op: "load/delete", Columns: missing}
	}
	return nil
}

// planTable builds the plan.Table view of this table's primary plus
// secondary indexes, as package plan needs for Compile.
func (t *Table) planTable() plan.Table {
	descs := make([]plan.IndexDescriptor, len(t.secondary))
	for i, sec := range t.secondary {
		descs[i] = plan.IndexDescriptor{Info: sec.info, Store: sec.store}
	}
	return plan.Table{
		Primary:   plan.IndexDescriptor{Info: t.info, Store: t.primary, IsPrimary: true},
		Secondary: descs,
		IsFuzzyEq: t.isFuzzyEq,
	}
}

// Query parses queryString, compiles (or reuses a cached compilation of)
// a scan pipeline against this table's indexes, runs it within txn, and
// returns the matched rows.
func (t *Table) Query(ctx context.Context, txn kv.Transaction, queryString string, args ...any) ([]map[string]any, error) {
	spec, err := querylang.Parse(queryString)
	if err != nil {
		return nil, err
	}
	pipeline, err := t.compile(spec)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, txn, pipeline, args)
}

func (t *Table) compile(spec plan.QuerySpec) (*plan.Pipeline, error) {
	schemaFP := codec.FingerprintString(t.fingerprint)
	queryKey := fmt.Sprintf("%v|%s|%v", spec.Projection, spec.Filter, spec.OrderBy)
	for _, dc := range []bool{false, true} {
		key := querycache.ScanFactoryKey{Query: queryKey, Schema: schemaFP, DoubleCheck: dc}
		if cached, ok := t.db.cache.ScanFactory(key); ok {
			if p, ok := cached.(*plan.Pipeline); ok {
				return p, nil
			}
		}
	}
	pipeline, err := plan.Compile(spec, t.planTable())
	if err != nil {
		return nil, err
	}
	t.db.cache.PutScanFactory(querycache.ScanFactoryKey{Query: queryKey, Schema: schemaFP, DoubleCheck: pipeline.DoubleCheck != nil}, pipeline)
	return pipeline, nil
}

func (t *Table) run(ctx context.Context, txn kv.Transaction, p *plan.Pipeline, args []any) ([]map[string]any, error) {
	rowInfo := p.Index.Info
	rc := t.rowCodecFor(p.Index)

	lowBound, highBound, err := t.encodeBounds(rc, p.Range, args)
	if err != nil {
		return nil, err
	}

	base, err := scan.NewBasicScanner(ctx, p.Index.Store, txn, p.Range, lowBound, highBound, p.Reverse)
	if err != nil {
		return nil, err
	}
	defer base.Close()

	var predLock *txscope.Acquired
	if p.TakePredicateLock && txn != nil {
		predLock, err = txscope.OpenAcquireBytes(ctx, txn, p.Index.Store, lowBound, highBound)
		if err != nil {
			return nil, err
		}
		logging.PredicateLockAcquired(ctx, rowInfo.Name, p.Index.Info.Name, predLock.ScopeID)
		defer predLock.Release()
	}

	var results []map[string]any
	decode := func(key, value []byte) (bool, error) {
		row, err := rc.DecodeRow(key, value)
		if err != nil {
			return false, err
		}
		ok, err := evalRange(rowInfo, row, p.Range, args)
		if err != nil || !ok {
			return false, err
		}
		ok, err = Evaluate(p.SourceRemainder, rowInfo, row, args)
		if err != nil || !ok {
			return false, err
		}

		if p.NeedsJoin {
			row, ok, err = t.joinToPrimary(ctx, txn, row)
			if err != nil || !ok {
				return false, err
			}
			ok, err = Evaluate(p.JoinRemainder, t.info, row, args)
			if err != nil || !ok {
				return false, err
			}
			ok, err = Evaluate(p.DoubleCheck, t.info, row, args)
			if err != nil || !ok {
				return false, err
			}
		}

		results = append(results, project(row, p.Projection))
		return true, nil
	}

	for {
		ok, err := base.Next(ctx, decode)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}

	if p.NeedsSort {
		sortRows(results, p.SortBy)
	}
	return results, nil
}

func (t *Table) rowCodecFor(idx plan.IndexDescriptor) *RowCodec {
	if idx.IsPrimary {
		return t.rowCodec
	}
	for _, sec := range t.secondary {
		if sec.info == idx.Info {
			return sec.rowCodec
		}
	}
	return NewRowCodec(idx.Info, 0)
}

func (t *Table) encodeBounds(rc *RowCodec, rng rangex.Range, args []any) (low, high []byte, err error) {
	if rng.Low != nil {
		values, err := BoundValues(rng.Low, args)
		if err != nil {
			return nil, nil, err
		}
		low, err = rc.EncodeBoundPrefix(values)
		if err != nil {
			return nil, nil, err
		}
	}
	if rng.High != nil {
		values, err := BoundValues(rng.High, args)
		if err != nil {
			return nil, nil, err
		}
		high, err = rc.EncodeBoundPrefix(values)
		if err != nil {
			return nil, nil, err
		}
	}
	return low, high, nil
}

// evalRange re-checks a range's Low/High bound terms exactly against a
// decoded row, since the byte prefix built for cursor positioning treats
// an exclusive closing term as inclusive (see RowCodec.EncodeBoundPrefix).
func evalRange(info *rowtype.RowInfo, row map[string]any, rng rangex.Range, args []any) (bool, error) {
	if rng.Low != nil {
		ok, err := Evaluate(rng.Low, info, row, args)
		if err != nil || !ok {
			return false, err
		}
	}
	if rng.High != nil {
		ok, err := Evaluate(rng.High, info, row, args)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// joinToPrimary looks up the primary row sharing row's key columns and
// merges its value columns in, used when the driving scan was over a
// secondary index.
func (t *Table) joinToPrimary(ctx context.Context, txn kv.Transaction, row map[string]any) (map[string]any, bool, error) {
	key, err := t.rowCodec.EncodeKey(row)
	if err != nil {
		return nil, false, err
	}
	value, err := t.primary.Load(ctx, txn, key)
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	full, err := t.rowCodec.DecodeRow(key, value)
	if err != nil {
		return nil, false, err
	}
	return full, true, nil
}

func project(row map[string]any, projection []string) map[string]any {
	if projection == nil {
		return row
	}
	out := make(map[string]any, len(projection))
	for _, c := range projection {
		out[c] = row[c]
	}
	return out
}

func sortRows(rows []map[string]any, orderBy []plan.OrderTerm) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range orderBy {
			cmp := compareAny(rows[i][term.Column], rows[j][term.Column])
			if cmp == 0 {
				continue
			}
			if term.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareAny(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	return codec.Compare(a, b)
}
