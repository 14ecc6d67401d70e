package partition

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/pkg/types"
)

const (
	sqliteDataTable    = "part"
	sqliteColumnsTable = "_columns"
)

// SQLiteCodec stores each partition as a standalone SQLite database with one
// data table and a table recording the declared column types.
//
// SQLite has no NaN: float columns are nullable and NULL stands for NaN.
type SQLiteCodec struct{}

// NewSQLiteCodec creates a SQLite codec.
func NewSQLiteCodec() *SQLiteCodec {
	return &SQLiteCodec{}
}

func (c *SQLiteCodec) Name() string      { return "sqlite" }
func (c *SQLiteCodec) Extension() string { return ".sqlite" }

// Encode writes chunk into a fresh database file at path.
func (c *SQLiteCodec) Encode(ctx context.Context, chunk *frame.Frame, path string, statsColumns []string) (*Info, error) {
	if chunk.Index != nil {
		return nil, fmt.Errorf("partition: sqlite: chunk must not carry an index")
	}
	if len(chunk.Columns) == 0 {
		return nil, fmt.Errorf("partition: sqlite: cannot encode a chunk without columns")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("partition: sqlite: failed to remove existing file: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to create database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createColumns := fmt.Sprintf(
		"CREATE TABLE %s (position INTEGER PRIMARY KEY, name TEXT NOT NULL, type TEXT NOT NULL)",
		sqliteColumnsTable)
	if _, err := tx.ExecContext(ctx, createColumns); err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to create columns table: %w", err)
	}

	defs := make([]string, len(chunk.Columns))
	for i, col := range chunk.Columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col.Name), sqliteAffinity(col.Type))
		if col.Type != types.TypeFloat64 {
			defs[i] += " NOT NULL"
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (position, name, type) VALUES (?, ?, ?)", sqliteColumnsTable),
			i, col.Name, string(col.Type)); err != nil {
			return nil, fmt.Errorf("partition: sqlite: failed to record column %q: %w", col.Name, err)
		}
	}
	createData := fmt.Sprintf("CREATE TABLE %s (%s)", sqliteDataTable, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createData); err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to create data table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", sqliteDataTable, placeholders))
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(chunk.Columns))
	for r := 0; r < chunk.NumRows(); r++ {
		for i, col := range chunk.Columns {
			args[i] = toSQLite(col.Values[r])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("partition: sqlite: failed to insert row %d: %w", r, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to commit: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to close database: %w", err)
	}

	stats, err := ComputeStats(chunk, statsColumns)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to stat file: %w", err)
	}
	return &Info{
		Path:        path,
		RowCount:    int64(chunk.NumRows()),
		SizeBytes:   fi.Size(),
		MinMaxStats: stats,
	}, nil
}

// Decode selects only the requested columns, preserving insertion order.
func (c *SQLiteCodec) Decode(ctx context.Context, path string, columns []string) (*frame.Frame, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("partition: sqlite: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to open %s: %w", path, err)
	}
	defer db.Close()

	schema, err := c.readSchema(ctx, db)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		columns = schema.Names()
	}
	if len(columns) == 0 {
		var n int64
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", sqliteDataTable)).Scan(&n); err != nil {
			return nil, fmt.Errorf("partition: sqlite: failed to count rows: %w", err)
		}
		return frame.Empty(int(n)), nil
	}

	defs := make([]types.ColumnDef, len(columns))
	quoted := make([]string, len(columns))
	for i, name := range columns {
		def, _, ok := schema.Lookup(name)
		if !ok {
			return nil, dserr.NewColumnNotFound(name, schema.Names())
		}
		defs[i] = def
		quoted[i] = quoteIdent(name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(quoted, ", "), sqliteDataTable)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to query: %w", err)
	}
	defer rows.Close()

	values := make([][]any, len(columns))
	dest := make([]any, len(columns))
	for i, def := range defs {
		dest[i] = scanTarget(def.Type)
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("partition: sqlite: failed to scan row: %w", err)
		}
		for i, def := range defs {
			values[i] = append(values[i], fromScan(def.Type, dest[i]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("partition: sqlite: failed to read rows: %w", err)
	}

	cols := make([]*frame.Column, len(columns))
	for i, def := range defs {
		cols[i] = &frame.Column{Name: def.Name, Type: def.Type, Values: values[i]}
		if cols[i].Values == nil {
			cols[i].Values = []any{}
		}
	}
	return frame.New(cols...)
}

// Stats recomputes statistics from the file contents.
func (c *SQLiteCodec) Stats(ctx context.Context, path string) (map[string]MinMax, error) {
	return statsOf(ctx, c, path)
}

func (c *SQLiteCodec) readSchema(ctx context.Context, db *sql.DB) (types.Schema, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT name, type FROM %s ORDER BY position", sqliteColumnsTable))
	if err != nil {
		return types.Schema{}, fmt.Errorf("partition: sqlite: failed to read column table: %w", err)
	}
	defer rows.Close()

	var defs []types.ColumnDef
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return types.Schema{}, fmt.Errorf("partition: sqlite: failed to scan column: %w", err)
		}
		defs = append(defs, types.ColumnDef{Name: name, Type: types.DataType(typ)})
	}
	if err := rows.Err(); err != nil {
		return types.Schema{}, fmt.Errorf("partition: sqlite: failed to read columns: %w", err)
	}
	return types.NewSchema(defs...), nil
}

func sqliteAffinity(t types.DataType) string {
	switch t {
	case types.TypeFloat64:
		return "REAL"
	case types.TypeString:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

func toSQLite(v any) any {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}
	return v
}

func scanTarget(t types.DataType) any {
	switch t {
	case types.TypeFloat64:
		return new(sql.NullFloat64)
	case types.TypeString:
		return new(string)
	default:
		return new(int64)
	}
}

func fromScan(t types.DataType, dest any) any {
	switch t {
	case types.TypeInt32:
		return int32(*dest.(*int64))
	case types.TypeInt64:
		return *dest.(*int64)
	case types.TypeBool:
		return *dest.(*int64) != 0
	case types.TypeFloat64:
		if v := dest.(*sql.NullFloat64); v.Valid {
			return v.Float64
		}
		return math.NaN()
	default:
		return *dest.(*string)
	}
}

// quoteIdent quotes a column name for use as a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
