// Command relkvsh is an interactive shell for issuing queries against an
// in-process table: load a column schema and an optional set of seed
// rows from JSON, then either run one query and exit or drop into a
// read-query-print loop over stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/coreward/relkv/convert"
	"github.com/coreward/relkv/kv/memkv"
	"github.com/coreward/relkv/rowtype"
	"github.com/coreward/relkv/table"
)

const version = "0.1.0"

// CLI defines relkvsh's command-line interface.
var CLI struct {
	Shell   ShellCmd   `cmd:"" help:"Load a schema and drop into an interactive query loop"`
	Query   QueryCmd   `cmd:"" help:"Load a schema and run a single query"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ShellCmd loads a table and reads query-language lines from stdin until
// EOF or a ".quit" line, printing each query's matched rows.
type ShellCmd struct {
	Schema string `arg:"" help:"Path to a table schema JSON file" type:"existingfile"`
	Seed   string `help:"Path to a JSON array of seed rows to insert before the loop starts" type:"existingfile"`
}

func (c *ShellCmd) Run() error {
	_, tbl, err := openTable(c.Schema, c.Seed)
	if err != nil {
		return err
	}

	fmt.Printf("relkvsh %s -- table %q loaded (%s columns, schema %x)\n",
		version, tbl.Name(), humanize.Comma(int64(len(tbl.Info().AllColumns()))), tbl.SchemaFingerprint())
	fmt.Println(`enter a query ("col == ?1 orderBy col", optionally followed by "| [arg1, arg2]"), or ".quit"`)

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print("relkv> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ".quit" {
			break
		}
		if err := runAndPrint(ctx, tbl, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// QueryCmd loads a table and runs one query non-interactively.
type QueryCmd struct {
	Schema string `arg:"" help:"Path to a table schema JSON file" type:"existingfile"`
	Query  string `arg:"" help:"Query-language expression, e.g. \"qty >= ?1 orderBy qty desc\""`
	Args   string `help:"JSON array of bound argument values" default:"[]"`
	Seed   string `help:"Path to a JSON array of seed rows to insert before querying" type:"existingfile"`
}

func (c *QueryCmd) Run() error {
	_, tbl, err := openTable(c.Schema, c.Seed)
	if err != nil {
		return err
	}
	line := c.Query
	if strings.TrimSpace(c.Args) != "[]" {
		line = line + " | " + c.Args
	}
	return runAndPrint(context.Background(), tbl, line)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("relkvsh version %s\n", version)
	return nil
}

// runAndPrint splits line into a query string and an optional "| [json,
// args]" suffix, runs it against tbl, and prints the matched rows.
func runAndPrint(ctx context.Context, tbl *table.Table, line string) error {
	queryString, rawArgs := line, ""
	if i := strings.LastIndex(line, "|"); i >= 0 && strings.HasPrefix(strings.TrimSpace(line[i+1:]), "[") {
		queryString, rawArgs = line[:i], line[i+1:]
	}
	queryString = strings.TrimSpace(queryString)
	rawArgs = strings.TrimSpace(rawArgs)
	if rawArgs == "" {
		rawArgs = "[]"
	}

	var jsonArgs []any
	if err := json.Unmarshal([]byte(rawArgs), &jsonArgs); err != nil {
		return fmt.Errorf("parsing arguments: %w", err)
	}
	args := make([]any, len(jsonArgs))
	for i, a := range jsonArgs {
		args[i] = a
	}

	rows, err := tbl.Query(ctx, nil, queryString, args...)
	if err != nil {
		return err
	}
	printRows(rows)
	fmt.Printf("(%s row%s)\n", humanize.Comma(int64(len(rows))), plural(len(rows)))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// printRows renders rows as a column-aligned table, columns in sorted
// name order so output is stable across runs with the same row shape.
func printRows(rows []map[string]any) {
	if len(rows) == 0 {
		return
	}
	columns := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	fmt.Println(strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, name := range columns {
			cells[i] = fmt.Sprintf("%v", row[name])
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
}

// schemaFile is the on-disk JSON shape loaded from the schema file argument: a
// table name, a schema version, and its key/value column lists.
type schemaFile struct {
	Table   string         `json:"table"`
	Version uint32         `json:"version"`
	Key     []schemaColumn `json:"key"`
	Value   []schemaColumn `json:"value"`
}

type schemaColumn struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Automatic bool   `json:"automatic"`
	Min       int64  `json:"min"`
	Max       int64  `json:"max"`
}

func loadSchema(path string) (*rowtype.RowInfo, uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading schema %s: %w", path, err)
	}
	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, 0, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	if sf.Table == "" {
		return nil, 0, fmt.Errorf("schema %s: missing table name", path)
	}

	keyCols, err := buildColumns(sf.Key)
	if err != nil {
		return nil, 0, err
	}
	valCols, err := buildColumns(sf.Value)
	if err != nil {
		return nil, 0, err
	}
	return rowtype.NewRowInfo(sf.Table, keyCols, valCols), sf.Version, nil
}

func buildColumns(cols []schemaColumn) ([]rowtype.Column, error) {
	out := make([]rowtype.Column, len(cols))
	for i, c := range cols {
		t, err := rowtype.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		out[i] = rowtype.Column{
			Name:      c.Name,
			Type:      t,
			Nullable:  c.Nullable,
			Automatic: c.Automatic,
			AutoRange: rowtype.AutoRange{Min: c.Min, Max: c.Max},
		}
	}
	return out, nil
}

// openTable loads a schema, builds an in-memory-backed table for it, and
// inserts any rows named in seedPath (coercing each value to its column's
// declared type via the conversion matrix, since JSON has no int64/float64
// distinction of its own).
func openTable(schemaPath, seedPath string) (*table.Database, *table.Table, error) {
	info, schemaVersion, err := loadSchema(schemaPath)
	if err != nil {
		return nil, nil, err
	}

	db := table.NewDatabase()
	tbl, err := db.CreateTable(info.Name, info, memkv.New(info.Name), schemaVersion)
	if err != nil {
		return nil, nil, err
	}

	if seedPath != "" {
		if err := seedRows(tbl, info, seedPath); err != nil {
			return nil, nil, err
		}
	}
	return db, tbl, nil
}

func seedRows(tbl *table.Table, info *rowtype.RowInfo, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed rows %s: %w", path, err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing seed rows %s: %w", path, err)
	}

	ctx := context.Background()
	for i, r := range raw {
		row, err := coerceRow(info, r)
		if err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}
		if err := tbl.Insert(ctx, nil, row); err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}
	}
	return nil
}

// coerceRow converts each JSON-decoded value in row to its column's
// declared storage type, since encoding/json only ever produces
// string/float64/bool/nil/[]any/map[string]any values.
func coerceRow(info *rowtype.RowInfo, row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for name, v := range row {
		col, ok := info.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if v == nil {
			out[name] = nil
			continue
		}
		cv, srcType, err := jsonNative(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		converted, err := convert.Convert(name, cv, srcType, col.Type, true)
		if err != nil {
			return nil, err
		}
		out[name] = converted
	}
	return out, nil
}

// jsonNative maps a value produced by encoding/json's default decoding
// (string, float64, bool) to a Go value (an integral float64 becomes
// int64, anything else is returned unchanged) plus the rowtype.Type that best
// describes it, the srcType Convert needs to pick its conversion path.
func jsonNative(v any) (any, rowtype.Type, error) {
	switch x := v.(type) {
	case string:
		return x, rowtype.TypeString, nil
	case bool:
		return x, rowtype.TypeBool, nil
	case float64:
		if x == float64(int64(x)) {
			return int64(x), rowtype.TypeInt64, nil
		}
		return x, rowtype.TypeFloat64, nil
	default:
		return nil, 0, fmt.Errorf("unsupported JSON value %T", v)
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("relkvsh"),
		kong.Description("Interactive shell and one-shot runner for relkv tables"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
