// Package duckdb adapts a DuckDB connection to the engine.Engine contract.
// Virtual databases map onto attached catalogs, bracket-quoted identifiers
// are rewritten to DuckDB's double-quote form, and metadata comes from the
// duckdb_columns() and duckdb_tables() system functions.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/engine"
)

const systemDatabase = "system"

// Engine drives a single DuckDB connection. Access is serialized by the
// caller, per the engine.Engine contract.
type Engine struct {
	db *sql.DB
}

// Open connects to DuckDB. An empty dsn opens an in-memory instance.
func Open(dsn string) (*Engine, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) SystemDatabase() string { return systemDatabase }

func (e *Engine) Close() error { return e.db.Close() }

var (
	bracketIdentRe = regexp.MustCompile(`\[([A-Za-z0-9_]+)\]`)
	createDBRe     = regexp.MustCompile(`(?i)^CREATE\s+DATABASE\s+(?:IF\s+NOT\s+EXISTS\s+)?(\S+?)\s*;?$`)
	dropDBRe       = regexp.MustCompile(`(?i)^DROP\s+DATABASE\s+(?:IF\s+EXISTS\s+)?(\S+?)\s*;?$`)
	bulkInsRe      = regexp.MustCompile(`(?i)^INSERT\s+INTO\s+(.+?)\s+SELECT\s+\*\s+FROM\s+\?\s*;?$`)
)

// translate rewrites bracket-quoted identifiers to DuckDB's double-quote
// form and maps database DDL onto ATTACH/DETACH.
func translate(statement string) string {
	statement = strings.TrimSpace(statement)
	if m := createDBRe.FindStringSubmatch(statement); m != nil {
		name := trimQuotes(m[1])
		return fmt.Sprintf("ATTACH IF NOT EXISTS ':memory:' AS %q", name)
	}
	if m := dropDBRe.FindStringSubmatch(statement); m != nil {
		name := trimQuotes(m[1])
		return fmt.Sprintf("DETACH %q", name)
	}
	return bracketIdentRe.ReplaceAllString(statement, `"$1"`)
}

func trimQuotes(s string) string {
	s = strings.Trim(s, "`\"")
	s = strings.TrimPrefix(s, "[")
	return strings.TrimSuffix(s, "]")
}

func (e *Engine) Exec(ctx context.Context, statement string, params ...any) ([]core.Row, error) {
	if m := bulkInsRe.FindStringSubmatch(strings.TrimSpace(statement)); m != nil && len(params) == 1 {
		if rows, ok := params[0].([]core.Row); ok {
			return nil, e.bulkInsert(ctx, bracketIdentRe.ReplaceAllString(m[1], `"$1"`), rows)
		}
	}

	translated := translate(statement)
	upper := strings.ToUpper(strings.TrimSpace(translated))

	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") ||
		strings.HasPrefix(upper, "SHOW") || strings.HasPrefix(upper, "DESCRIBE") ||
		strings.HasPrefix(upper, "EXPLAIN") || strings.HasPrefix(upper, "PRAGMA") {
		rows, err := e.db.QueryContext(ctx, translated, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanRows(rows)
	}

	if _, err := e.db.ExecContext(ctx, translated, params...); err != nil {
		return nil, err
	}
	return nil, nil
}

// bulkInsert loads a row slice column by column, resolving the column order
// from the first row's sorted keys so every tuple binds identically.
func (e *Engine) bulkInsert(ctx context.Context, target string, rows []core.Row) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	holes := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		holes[i] = "?"
	}

	stmt, err := e.db.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		target, strings.Join(quoted, ", "), strings.Join(holes, ", ")))
	if err != nil {
		return fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("bulk insert row: %w", err)
		}
	}
	return nil
}

func (e *Engine) DatabaseNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT database_name FROM duckdb_databases() WHERE NOT internal ORDER BY database_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (e *Engine) HasDatabase(ctx context.Context, name string) (bool, error) {
	var count int
	err := e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM duckdb_databases() WHERE database_name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *Engine) Tables(ctx context.Context, database string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT table_name FROM duckdb_tables() WHERE database_name = ? ORDER BY table_name`, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (e *Engine) TableMeta(ctx context.Context, database, table string) (core.TableMeta, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT column_name, data_type, NOT is_nullable
		FROM duckdb_columns()
		WHERE database_name = ? AND table_name = ?
		ORDER BY column_index`, database, table)
	if err != nil {
		return core.TableMeta{}, err
	}
	defer rows.Close()

	meta := core.TableMeta{Name: table}
	for rows.Next() {
		var col core.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.NotNull); err != nil {
			return core.TableMeta{}, err
		}
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return core.TableMeta{}, err
	}
	if len(meta.Columns) == 0 {
		return core.TableMeta{}, fmt.Errorf("%w: %s.%s", engine.ErrUnknownTable, database, table)
	}
	return meta, nil
}

func (e *Engine) TableRows(ctx context.Context, database, table string, limit int) ([]core.Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %q.%q`, database, table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// scanRows converts a sql.Rows cursor into generic row maps.
func scanRows(rows *sql.Rows) ([]core.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []core.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(core.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
