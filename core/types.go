package core

// Row is a single record: a mapping from column name to value. Values are
// nil, numbers, strings, booleans, time.Time or nested JSON structures.
type Row map[string]any

type Column struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	NotNull       bool   `json:"notNull,omitempty"`
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	Default       any    `json:"default,omitempty"`
}

// TableMeta is the engine's live view of a table: the ordered column
// definitions plus the separately tracked primary-key and identity maps and
// the opaque per-table default-functions descriptor some engines keep.
type TableMeta struct {
	Name       string          `json:"name"`
	Columns    []Column        `json:"columns"`
	PKColumns  []string        `json:"pkColumns,omitempty"`
	Identities map[string]bool `json:"identities,omitempty"`
	DefaultFns string          `json:"defaultFns,omitempty"`
}

// HasColumns reports whether the table declares at least one column.
func (m TableMeta) HasColumns() bool {
	return len(m.Columns) > 0
}

// IsIdentity reports whether a column auto-increments, either via its own
// flag or the table's identity map.
func (m TableMeta) IsIdentity(column string) bool {
	if m.Identities[column] {
		return true
	}
	for _, c := range m.Columns {
		if c.Name == column {
			return c.AutoIncrement
		}
	}
	return false
}

// IsPrimaryKey reports whether a column is part of the primary key, either
// via its own flag or the table's primary-key column set.
func (m TableMeta) IsPrimaryKey(column string) bool {
	for _, pk := range m.PKColumns {
		if pk == column {
			return true
		}
	}
	for _, c := range m.Columns {
		if c.Name == column {
			return c.PrimaryKey
		}
	}
	return false
}
