// Package schema derives portable CREATE TABLE statements from the engine's
// live table metadata, so snapshots can replay structure that the engine's
// own dump facilities report incompletely.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nestdb/nestdb/core"
)

// defaultFnMarkers map known default-function markers inside the engine's
// opaque descriptor string to their canonical zero-arg call syntax.
var defaultFnMarkers = []struct {
	marker string
	call   string
}{
	{"NOW", "NOW()"},
	{"CURRENT_TIMESTAMP", "NOW()"},
	{"UUID", "UUID()"},
	{"RANDOM_UUID", "UUID()"},
}

// Reconstruct builds a CREATE TABLE IF NOT EXISTS statement from live table
// metadata. A table with zero columns gets a single placeholder integer
// column so it still survives a round trip.
func Reconstruct(tableName string, meta core.TableMeta) (string, error) {
	if tableName == "" {
		return "", fmt.Errorf("empty table name")
	}
	if !meta.HasColumns() {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (id INT)", tableName), nil
	}

	defs := make([]string, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		if col.Name == "" {
			return "", fmt.Errorf("table %s: column with empty name", tableName)
		}

		parts := []string{"`" + col.Name + "`"}

		colType := col.Type
		if colType == "" {
			colType = "VARCHAR"
		}
		parts = append(parts, colType)

		if col.NotNull {
			parts = append(parts, "NOT NULL")
		}
		if meta.IsIdentity(col.Name) {
			parts = append(parts, "AUTO_INCREMENT")
		}
		if meta.IsPrimaryKey(col.Name) {
			parts = append(parts, "PRIMARY KEY")
		}
		if def := defaultClause(col, meta); def != "" {
			parts = append(parts, "DEFAULT "+def)
		}

		defs = append(defs, strings.Join(parts, " "))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (%s)", tableName, strings.Join(defs, ", ")), nil
}

// defaultClause resolves a column's DEFAULT expression: an explicit literal
// wins, then a heuristic scan of the opaque default-functions descriptor,
// else nothing.
func defaultClause(col core.Column, meta core.TableMeta) string {
	if col.Default != nil {
		switch v := col.Default.(type) {
		case string:
			return "'" + strings.ReplaceAll(v, "'", "''") + "'"
		default:
			return fmt.Sprintf("%v", v)
		}
	}

	if meta.DefaultFns != "" {
		needle := `"` + col.Name + `"`
		if idx := strings.Index(meta.DefaultFns, needle); idx >= 0 {
			rest := meta.DefaultFns[idx:]
			for _, fn := range defaultFnMarkers {
				if strings.Contains(rest, fn.marker) {
					return fn.call
				}
			}
		}
	}

	return ""
}

// InferFromRow derives a generic schema from the first data row of a table,
// used when reconstruction from metadata fails. Columns are emitted in sorted
// name order so the output is deterministic.
func InferFromRow(tableName string, row core.Row) string {
	if len(row) == 0 {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (id INT)", tableName)
	}

	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]string, 0, len(names))
	for _, name := range names {
		defs = append(defs, fmt.Sprintf("`%s` %s", name, inferType(row[name])))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (%s)", tableName, strings.Join(defs, ", "))
}

func inferType(value any) string {
	switch value.(type) {
	case nil:
		return "VARCHAR"
	case bool:
		return "BOOLEAN"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INT"
	case float32, float64:
		return "FLOAT"
	case time.Time:
		return "DATE"
	default:
		return "VARCHAR"
	}
}
