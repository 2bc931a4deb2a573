// Package enginetest provides an in-memory Engine implementation that
// understands the statement shapes the execution pipeline and persistence
// manager produce. It exists so the rest of the module can be tested
// without a real SQL engine attached.
package enginetest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/engine"
)

const systemDatabase = "system"

// ExecHook lets a test intercept statements before the built-in
// interpreter sees them. Returning handled=false passes the statement on.
type ExecHook func(ctx context.Context, statement string, params []any) (handled bool, rows []core.Row, err error)

// Engine is a toy statement interpreter backed by plain maps. The zero
// value is not usable; call New.
type Engine struct {
	mu  sync.Mutex
	dbs map[string]*database

	// OnExec, when set, runs before the interpreter for every statement.
	OnExec ExecHook

	// Log records every statement passed to Exec, in order.
	Log []string
}

type database struct {
	tables map[string]*table
	order  []string
}

type table struct {
	meta core.TableMeta
	rows []core.Row
}

// New returns an engine holding only the system database and, when
// seedDefault is true, an empty default database.
func New(seedDefault bool) *Engine {
	e := &Engine{dbs: map[string]*database{
		systemDatabase: {tables: map[string]*table{}},
	}}
	if seedDefault {
		e.dbs[core.DefaultDatabase] = &database{tables: map[string]*table{}}
	}
	return e
}

func (e *Engine) SystemDatabase() string { return systemDatabase }

func (e *Engine) Close() error { return nil }

var (
	createDBRe  = regexp.MustCompile(`(?i)^CREATE\s+DATABASE\s+(?:IF\s+NOT\s+EXISTS\s+)?(\S+)\s*;?$`)
	dropDBRe    = regexp.MustCompile(`(?i)^DROP\s+DATABASE\s+(?:IF\s+EXISTS\s+)?(\S+)\s*;?$`)
	useRe       = regexp.MustCompile(`(?i)^USE\s+(\S+)\s*;?$`)
	createTblRe = regexp.MustCompile(`(?i)^CREATE\s+TABLE\s+(IF\s+NOT\s+EXISTS\s+)?(.+?)\s*\((.*)\)\s*;?$`)
	dropTblRe   = regexp.MustCompile(`(?i)^DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?(.+?)\s*;?$`)
	truncateRe  = regexp.MustCompile(`(?i)^(?:TRUNCATE\s+TABLE|TRUNCATE)\s+(.+?)\s*;?$`)
	deleteAllRe = regexp.MustCompile(`(?i)^DELETE\s+FROM\s+(.+?)\s*;?$`)
	bulkInsRe   = regexp.MustCompile(`(?i)^INSERT\s+INTO\s+(.+?)\s+SELECT\s+\*\s+FROM\s+\?\s*;?$`)
	insertRe    = regexp.MustCompile(`(?i)^INSERT\s+INTO\s+(.+?)\s*\(([^)]*)\)\s*VALUES\s*\((.*)\)\s*;?$`)
	selectRe    = regexp.MustCompile(`(?i)^SELECT\s+\*\s+FROM\s+(.+?)(?:\s+LIMIT\s+(\d+))?\s*;?$`)
	scalarRe    = regexp.MustCompile(`(?i)^SELECT\s+([\d.]+)(?:\s+LIMIT\s+\d+)?\s*;?$`)
	showDBsRe   = regexp.MustCompile(`(?i)^SHOW\s+DATABASES\s*;?$`)
	showTblsRe  = regexp.MustCompile(`(?i)^SHOW\s+TABLES(?:\s+FROM\s+(\S+))?\s*;?$`)
)

func (e *Engine) Exec(ctx context.Context, statement string, params ...any) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.Log = append(e.Log, statement)
	hook := e.OnExec
	e.mu.Unlock()

	if hook != nil {
		handled, rows, err := hook(ctx, statement, params)
		if handled {
			return rows, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stmt := strings.TrimSpace(statement)

	switch {
	case createDBRe.MatchString(stmt):
		name := unquote(createDBRe.FindStringSubmatch(stmt)[1])
		if _, ok := e.dbs[name]; !ok {
			e.dbs[name] = &database{tables: map[string]*table{}}
		}
		return nil, nil

	case dropDBRe.MatchString(stmt):
		name := unquote(dropDBRe.FindStringSubmatch(stmt)[1])
		if name == systemDatabase {
			return nil, fmt.Errorf("cannot drop database %s", name)
		}
		if _, ok := e.dbs[name]; !ok {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, name)
		}
		delete(e.dbs, name)
		return nil, nil

	case useRe.MatchString(stmt):
		name := unquote(useRe.FindStringSubmatch(stmt)[1])
		if _, ok := e.dbs[name]; !ok {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, name)
		}
		return nil, nil

	case createTblRe.MatchString(stmt):
		m := createTblRe.FindStringSubmatch(stmt)
		db, tbl, err := e.resolve(m[2])
		if err != nil {
			return nil, err
		}
		if _, ok := db.tables[tbl]; ok {
			if m[1] != "" {
				return nil, nil
			}
			return nil, fmt.Errorf("table %s already exists", tbl)
		}
		db.tables[tbl] = &table{meta: parseColumnDefs(tbl, m[3])}
		db.order = append(db.order, tbl)
		return nil, nil

	case dropTblRe.MatchString(stmt):
		ref := dropTblRe.FindStringSubmatch(stmt)[1]
		db, tbl, err := e.resolve(ref)
		if err != nil {
			return nil, err
		}
		if _, ok := db.tables[tbl]; !ok {
			if regexp.MustCompile(`(?i)IF\s+EXISTS`).MatchString(stmt) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTable, tbl)
		}
		delete(db.tables, tbl)
		for i, n := range db.order {
			if n == tbl {
				db.order = append(db.order[:i], db.order[i+1:]...)
				break
			}
		}
		return nil, nil

	case truncateRe.MatchString(stmt), deleteAllRe.MatchString(stmt):
		var ref string
		if m := truncateRe.FindStringSubmatch(stmt); m != nil {
			ref = m[1]
		} else {
			ref = deleteAllRe.FindStringSubmatch(stmt)[1]
		}
		t, err := e.table(ref)
		if err != nil {
			return nil, err
		}
		t.rows = nil
		return nil, nil

	case bulkInsRe.MatchString(stmt):
		t, err := e.table(bulkInsRe.FindStringSubmatch(stmt)[1])
		if err != nil {
			return nil, err
		}
		if len(params) != 1 {
			return nil, fmt.Errorf("bulk insert expects one row-slice param, got %d", len(params))
		}
		rows, ok := params[0].([]core.Row)
		if !ok {
			return nil, fmt.Errorf("bulk insert param must be []core.Row, got %T", params[0])
		}
		t.rows = append(t.rows, rows...)
		return nil, nil

	case insertRe.MatchString(stmt):
		m := insertRe.FindStringSubmatch(stmt)
		t, err := e.table(m[1])
		if err != nil {
			return nil, err
		}
		cols := splitTopLevel(m[2])
		vals := splitTopLevel(m[3])
		if len(cols) != len(vals) {
			return nil, fmt.Errorf("column count %d does not match value count %d", len(cols), len(vals))
		}
		row := core.Row{}
		for i, c := range cols {
			row[unquote(strings.TrimSpace(c))] = parseLiteral(strings.TrimSpace(vals[i]))
		}
		t.rows = append(t.rows, row)
		return nil, nil

	case selectRe.MatchString(stmt):
		m := selectRe.FindStringSubmatch(stmt)
		t, err := e.table(m[1])
		if err != nil {
			return nil, err
		}
		rows := t.rows
		if m[2] != "" {
			limit, _ := strconv.Atoi(m[2])
			if limit < len(rows) {
				rows = rows[:limit]
			}
		}
		out := make([]core.Row, len(rows))
		copy(out, rows)
		return out, nil

	case scalarRe.MatchString(stmt):
		return []core.Row{{"result": parseLiteral(scalarRe.FindStringSubmatch(stmt)[1])}}, nil

	case showDBsRe.MatchString(stmt):
		names := e.databaseNamesLocked()
		rows := make([]core.Row, len(names))
		for i, n := range names {
			rows[i] = core.Row{"name": n}
		}
		return rows, nil

	case showTblsRe.MatchString(stmt):
		name := systemDatabase
		if m := showTblsRe.FindStringSubmatch(stmt); m[1] != "" {
			name = unquote(m[1])
		}
		db, ok := e.dbs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, name)
		}
		rows := make([]core.Row, len(db.order))
		for i, n := range db.order {
			rows[i] = core.Row{"name": n}
		}
		return rows, nil
	}

	return nil, fmt.Errorf("parse error at %q", firstWord(stmt))
}

func (e *Engine) DatabaseNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.databaseNamesLocked(), nil
}

func (e *Engine) databaseNamesLocked() []string {
	names := make([]string, 0, len(e.dbs))
	for n := range e.dbs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) HasDatabase(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.dbs[name]
	return ok, nil
}

func (e *Engine) Tables(ctx context.Context, database string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	db, ok := e.dbs[database]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, database)
	}
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out, nil
}

func (e *Engine) TableMeta(ctx context.Context, database, tableName string) (core.TableMeta, error) {
	if err := ctx.Err(); err != nil {
		return core.TableMeta{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	db, ok := e.dbs[database]
	if !ok {
		return core.TableMeta{}, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, database)
	}
	t, ok := db.tables[tableName]
	if !ok {
		return core.TableMeta{}, fmt.Errorf("%w: %s.%s", engine.ErrUnknownTable, database, tableName)
	}
	return t.meta, nil
}

func (e *Engine) TableRows(ctx context.Context, database, tableName string, limit int) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	db, ok := e.dbs[database]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, database)
	}
	t, ok := db.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", engine.ErrUnknownTable, database, tableName)
	}
	rows := t.rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]core.Row, len(rows))
	copy(out, rows)
	return out, nil
}

// RowCount reports the stored row count of a table, for test assertions.
func (e *Engine) RowCount(database, tableName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	db, ok := e.dbs[database]
	if !ok {
		return 0
	}
	t, ok := db.tables[tableName]
	if !ok {
		return 0
	}
	return len(t.rows)
}

// resolve splits a table reference like [db].[t], `db`.`t` or db.t into its
// database and table. A bare name resolves against the default database.
func (e *Engine) resolve(ref string) (*database, string, error) {
	dbName, tbl := splitRef(ref)
	db, ok := e.dbs[dbName]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", engine.ErrUnknownDatabase, dbName)
	}
	return db, tbl, nil
}

func (e *Engine) table(ref string) (*table, error) {
	db, tbl, err := e.resolve(ref)
	if err != nil {
		return nil, err
	}
	t, ok := db.tables[tbl]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTable, tbl)
	}
	return t, nil
}

func splitRef(ref string) (dbName, tbl string) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "."); i >= 0 {
		return unquote(ref[:i]), unquote(ref[i+1:])
	}
	return core.DefaultDatabase, unquote(ref)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"")
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return s
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseColumnDefs turns a column definition list into table metadata. It
// understands the subset of clauses the schema reconstructor emits.
func parseColumnDefs(tableName, defs string) core.TableMeta {
	meta := core.TableMeta{Name: tableName, Identities: map[string]bool{}}
	for _, def := range splitTopLevel(defs) {
		fields := strings.Fields(strings.TrimSpace(def))
		if len(fields) == 0 {
			continue
		}
		col := core.Column{Name: unquote(fields[0])}
		if len(fields) > 1 {
			col.Type = strings.ToUpper(fields[1])
		}
		upper := strings.ToUpper(def)
		if strings.Contains(upper, "NOT NULL") {
			col.NotNull = true
		}
		if strings.Contains(upper, "PRIMARY KEY") {
			col.PrimaryKey = true
			meta.PKColumns = append(meta.PKColumns, col.Name)
		}
		if strings.Contains(upper, "AUTO_INCREMENT") {
			col.AutoIncrement = true
			meta.Identities[col.Name] = true
		}
		meta.Columns = append(meta.Columns, col)
	}
	return meta
}

// splitTopLevel splits on commas that are outside quotes and parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
			}
		case ',':
			if !inString && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		parts = append(parts, s[start:])
	}
	return parts
}

func parseLiteral(s string) any {
	switch {
	case s == "" || strings.EqualFold(s, "NULL"):
		return nil
	case strings.EqualFold(s, "TRUE"):
		return true
	case strings.EqualFold(s, "FALSE"):
		return false
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
