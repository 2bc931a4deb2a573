package ps

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/sql"
)

var txMarkerRe = regexp.MustCompile(`(?i)^(BEGIN|START\s+TRANSACTION|COMMIT|ROLLBACK)\b`)

// ExportDatabase writes a portable SQL dump of one database to target,
// which may be a local path, file://, or s3:// URL. The dump recreates the
// database from nothing: CREATE DATABASE, per-table CREATE TABLE, then
// batched INSERTs with manually escaped literals.
func (m *Manager) ExportDatabase(ctx context.Context, name, target string, cfg *S3Config) error {
	name, err := m.normalizeName(name)
	if err != nil {
		return err
	}
	if ok, err := m.x.HasDatabase(ctx, name); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	w, err := openDumpWriter(target, cfg)
	if err != nil {
		return fmt.Errorf("open dump target: %w", err)
	}

	if err := m.writeDump(ctx, w, name); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (m *Manager) writeDump(ctx context.Context, w io.Writer, name string) error {
	fmt.Fprintf(w, "CREATE DATABASE IF NOT EXISTS %s;\n", name)
	fmt.Fprintf(w, "USE %s;\n\n", name)

	tables, err := m.x.Tables(ctx, name)
	if err != nil {
		return err
	}

	batch := m.opts.batchSize()
	for _, table := range tables {
		rows, err := m.x.TableRows(ctx, name, table, 0)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s;\n", m.reconstructSchema(ctx, name, table, rows))

		columns := m.dumpColumns(ctx, name, table, rows)
		if len(columns) == 0 || len(rows) == 0 {
			fmt.Fprintln(w)
			continue
		}

		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = "`" + c + "`"
		}
		prefix := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES", table, strings.Join(quoted, ", "))

		for start := 0; start < len(rows); start += batch {
			end := start + batch
			if end > len(rows) {
				end = len(rows)
			}

			tuples := make([]string, 0, end-start)
			for _, row := range rows[start:end] {
				values := make([]string, len(columns))
				for i, c := range columns {
					values[i] = sql.EscapeValue(row[c])
				}
				tuples = append(tuples, "("+strings.Join(values, ", ")+")")
			}
			fmt.Fprintf(w, "%s\n%s;\n", prefix, strings.Join(tuples, ",\n"))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// dumpColumns resolves the column order for a table dump: metadata order
// when available, sorted first-row keys otherwise.
func (m *Manager) dumpColumns(ctx context.Context, database, table string, rows []core.Row) []string {
	if meta, err := m.x.TableMeta(ctx, database, table); err == nil && meta.HasColumns() {
		columns := make([]string, len(meta.Columns))
		for i, col := range meta.Columns {
			columns[i] = col.Name
		}
		return columns
	}

	if len(rows) == 0 {
		return nil
	}
	columns := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// ImportDump replays a SQL dump from source (local path, file://, http(s)://
// or s3:// URL) statement by statement. Transaction markers are skipped; a
// USE inside the dump switches the context the rest of the dump sees, and
// the manager adopts whatever database the dump ends in.
func (m *Manager) ImportDump(ctx context.Context, source string, cfg *S3Config) error {
	r, err := openDumpReader(source, cfg)
	if err != nil {
		return fmt.Errorf("open dump source: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}

	active := m.ActiveDatabase()
	statements := sql.SplitStatements(sql.Clean(string(data)))

	for i, stmt := range statements {
		if txMarkerRe.MatchString(stmt) {
			continue
		}
		res := m.x.Execute(ctx, stmt, core.ExecOptions{ActiveDatabase: active})
		if !res.Success {
			return fmt.Errorf("import statement %d: %w", i+1, res.Err)
		}
		active = res.ActiveDatabase
	}

	m.mu.Lock()
	m.active = active
	m.mu.Unlock()

	return m.Save(ctx)
}
