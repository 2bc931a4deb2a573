package ps

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/schema"
	"github.com/nestdb/nestdb/sql"
)

// Options tunes snapshot building and restore.
type Options struct {
	// RowLimit caps the rows persisted per table. Zero means the default.
	RowLimit int

	// BatchSize is the bulk-insert chunk size during restore. Zero means
	// the default.
	BatchSize int
}

const (
	DefaultRowLimit  = 10000
	DefaultBatchSize = 1000
)

func (o Options) rowLimit() int {
	if o.RowLimit > 0 {
		return o.RowLimit
	}
	return DefaultRowLimit
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// document is the persisted snapshot shape: the current state merged with
// caller-level settings, plus the previous databases section kept as a
// one-level backup.
type document struct {
	core.Snapshot
	Settings map[string]any                  `json:"settings,omitempty"`
	Backup   map[string]core.DatabaseContent `json:"backup,omitempty"`
}

// Manager owns durable state: it builds snapshots from the engine, writes
// them through a Store, and restores them back. It also carries the active
// database and the database-level management operations.
type Manager struct {
	x     *db.Executor
	store Store
	opts  Options

	mu       sync.Mutex
	active   string
	settings map[string]any
	saving   bool
	pending  bool
}

// NewManager wires a manager to the executor that owns the engine and to a
// snapshot store.
func NewManager(x *db.Executor, store Store, opts Options) *Manager {
	return &Manager{x: x, store: store, opts: opts, active: core.DefaultDatabase}
}

// ActiveDatabase reports the current database context.
func (m *Manager) ActiveDatabase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive switches the active database after verifying it exists.
func (m *Manager) SetActive(ctx context.Context, name string) error {
	ok, err := m.x.HasDatabase(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}
	m.mu.Lock()
	m.active = name
	m.mu.Unlock()
	return nil
}

// Adopt records the database context a finished batch left behind, so USE
// statements survive across calls.
func (m *Manager) Adopt(res db.Result) {
	if !res.Success || res.ActiveDatabase == "" {
		return
	}
	m.mu.Lock()
	m.active = res.ActiveDatabase
	m.mu.Unlock()
}

// SetSetting stores one caller-level setting; settings ride along inside
// the persisted snapshot document.
func (m *Manager) SetSetting(key string, value any) {
	m.mu.Lock()
	if m.settings == nil {
		m.settings = map[string]any{}
	}
	m.settings[key] = value
	m.mu.Unlock()
}

// Setting reads one caller-level setting.
func (m *Manager) Setting(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok
}

func (m *Manager) copySettings() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.settings) == 0 {
		return nil
	}
	out := make(map[string]any, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out
}

// HasDatabase reports whether the engine knows the database.
func (m *Manager) HasDatabase(ctx context.Context, name string) (bool, error) {
	return m.x.HasDatabase(ctx, name)
}

// DatabaseNames lists every database, including the system database.
func (m *Manager) DatabaseNames(ctx context.Context) ([]string, error) {
	return m.x.DatabaseNames(ctx)
}

// Tables lists a database's tables.
func (m *Manager) Tables(ctx context.Context, database string) ([]string, error) {
	return m.x.Tables(ctx, database)
}

// TableMeta reads one table's metadata.
func (m *Manager) TableMeta(ctx context.Context, database, table string) (core.TableMeta, error) {
	return m.x.TableMeta(ctx, database, table)
}

// TableRows reads up to limit rows of a table; zero means all rows.
func (m *Manager) TableRows(ctx context.Context, database, table string, limit int) ([]core.Row, error) {
	return m.x.TableRows(ctx, database, table, limit)
}

// Snapshot builds the complete serialized state of every non-system
// database. Tables above the row cap are truncated, which is reported as a
// warning rather than an error.
func (m *Manager) Snapshot(ctx context.Context) (core.Snapshot, []string, error) {
	names, err := m.x.DatabaseNames(ctx)
	if err != nil {
		return core.Snapshot{}, nil, fmt.Errorf("list databases: %w", err)
	}

	snap := core.Snapshot{
		Version:        core.SnapshotVersion,
		CreatedAt:      time.Now(),
		ActiveDatabase: m.ActiveDatabase(),
		Databases:      map[string]core.DatabaseContent{},
	}
	var warnings []string
	limit := m.opts.rowLimit()

	for _, name := range names {
		if name == m.x.SystemDatabase() {
			continue
		}

		tables, err := m.x.Tables(ctx, name)
		if err != nil {
			return core.Snapshot{}, nil, fmt.Errorf("list tables of %s: %w", name, err)
		}

		content := core.DatabaseContent{
			Tables:      map[string][]core.Row{},
			Schema:      map[string]string{},
			LastUpdated: time.Now(),
		}

		for _, table := range tables {
			rows, err := m.x.TableRows(ctx, name, table, limit+1)
			if err != nil {
				return core.Snapshot{}, nil, fmt.Errorf("read %s.%s: %w", name, table, err)
			}
			if len(rows) > limit {
				rows = rows[:limit]
				warnings = append(warnings, fmt.Sprintf("table %s.%s truncated to %d rows", name, table, limit))
			}
			content.Tables[table] = rows
			content.Schema[table] = m.reconstructSchema(ctx, name, table, rows)
		}

		snap.Databases[name] = content
	}

	// the active database must survive a round trip
	if _, ok := snap.Databases[snap.ActiveDatabase]; !ok {
		snap.ActiveDatabase = core.DefaultDatabase
	}

	return snap, warnings, nil
}

// reconstructSchema derives CREATE TABLE text from live metadata, falling
// back to data-inferred typing when metadata is unavailable.
func (m *Manager) reconstructSchema(ctx context.Context, database, table string, rows []core.Row) string {
	meta, err := m.x.TableMeta(ctx, database, table)
	if err == nil {
		if stmt, rErr := schema.Reconstruct(table, meta); rErr == nil {
			return stmt
		}
	}

	log.Printf("ps: reconstructing %s.%s from data, metadata unavailable", database, table)
	if len(rows) > 0 {
		return schema.InferFromRow(table, rows[0])
	}
	return schema.InferFromRow(table, nil)
}

// Save persists the current snapshot. Saves requested while one is in
// flight coalesce into a single follow-up save.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	if m.saving {
		m.pending = true
		m.mu.Unlock()
		return nil
	}
	m.saving = true
	m.mu.Unlock()

	for {
		err := m.saveOnce(ctx)

		m.mu.Lock()
		again := m.pending && err == nil
		m.pending = false
		if !again {
			m.saving = false
		}
		m.mu.Unlock()

		if !again {
			return err
		}
	}
}

func (m *Manager) saveOnce(ctx context.Context) error {
	snap, warnings, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("ps: %s", w)
	}

	doc := document{Snapshot: snap, Settings: m.copySettings()}

	// keep the previous databases section as a backup slot
	if prev, err := m.store.Read(); err == nil {
		var old document
		if json.Unmarshal(prev, &old) == nil && len(old.Databases) > 0 {
			doc.Backup = old.Databases
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := m.store.Write(data); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Load restores the stored snapshot into the engine. A missing snapshot
// just guarantees the default database. Each table restores inside its own
// failure boundary: a bad table is logged and skipped, everything else
// still loads.
func (m *Manager) Load(ctx context.Context) error {
	data, err := m.store.Read()
	if err == ErrNoSnapshot {
		return m.ensureDefault(ctx)
	}
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	for name, content := range doc.Databases {
		if !sql.ValidateIdentifier(name) {
			log.Printf("ps: skipping database %q: invalid identifier", name)
			continue
		}
		if _, err := m.x.ExecEngine(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", name)); err != nil {
			return fmt.Errorf("restore database %s: %w", name, err)
		}

		for table, rows := range content.Tables {
			if err := m.restoreTable(ctx, name, table, content.Schema[table], rows); err != nil {
				log.Printf("ps: table %s.%s not restored: %v", name, table, err)
			}
		}
	}

	if err := m.ensureDefault(ctx); err != nil {
		return err
	}

	active := doc.ActiveDatabase
	if active == "" {
		active = core.DefaultDatabase
	}
	if ok, _ := m.x.HasDatabase(ctx, active); !ok {
		active = core.DefaultDatabase
	}
	m.mu.Lock()
	m.active = active
	m.settings = doc.Settings
	m.mu.Unlock()
	return nil
}

// restoreTable recreates one table and bulk-loads its rows in batches. When
// the stored schema is rejected by the engine, a generic data-inferred
// table stands in so the rows are not lost.
func (m *Manager) restoreTable(ctx context.Context, database, table, createStmt string, rows []core.Row) error {
	if !sql.ValidateIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	if createStmt == "" {
		if len(rows) > 0 {
			createStmt = schema.InferFromRow(table, rows[0])
		} else {
			createStmt = schema.InferFromRow(table, nil)
		}
	}

	qualified := sql.Qualify(createStmt, database)
	if _, err := m.x.ExecEngine(ctx, qualified); err != nil {
		// fall back to a generic table inferred from the data
		var fallback string
		if len(rows) > 0 {
			fallback = schema.InferFromRow(table, rows[0])
		} else {
			fallback = schema.InferFromRow(table, nil)
		}
		log.Printf("ps: stored schema for %s.%s rejected (%v), using inferred schema", database, table, err)
		if _, err := m.x.ExecEngine(ctx, sql.Qualify(fallback, database)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	batch := m.opts.batchSize()
	target := fmt.Sprintf("[%s].[%s]", database, table)
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		stmt := fmt.Sprintf("INSERT INTO %s SELECT * FROM ?", target)
		if _, err := m.x.ExecEngine(ctx, stmt, rows[start:end]); err != nil {
			return fmt.Errorf("load rows %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// ensureDefault guarantees the default database exists.
func (m *Manager) ensureDefault(ctx context.Context) error {
	ok, err := m.x.HasDatabase(ctx, core.DefaultDatabase)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := m.x.ExecEngine(ctx, "CREATE DATABASE IF NOT EXISTS "+core.DefaultDatabase); err != nil {
			return fmt.Errorf("create default database: %w", err)
		}
	}
	return nil
}

// Reset drops every non-system database, recreates an empty default,
// persists the clean state and announces the structural change.
func (m *Manager) Reset(ctx context.Context) error {
	names, err := m.x.DatabaseNames(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == m.x.SystemDatabase() {
			continue
		}
		if _, err := m.x.ExecEngine(ctx, "DROP DATABASE "+name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}

	if err := m.ensureDefault(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.active = core.DefaultDatabase
	m.mu.Unlock()

	if err := m.Save(ctx); err != nil {
		return err
	}

	m.publishStructural(core.DefaultDatabase)
	return nil
}

func (m *Manager) publishStructural(database string) {
	if b := m.x.Bus(); b != nil {
		b.Publish(core.ChangeEvent{
			Database:  database,
			Timestamp: time.Now(),
		})
	}
}

// normalizeName validates and canonicalizes a user-supplied database name.
func (m *Manager) normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !sql.ValidateIdentifier(name) {
		return "", fmt.Errorf("invalid database name %q", name)
	}
	if strings.EqualFold(name, m.x.SystemDatabase()) {
		return "", fmt.Errorf("%q is reserved", name)
	}
	return name, nil
}
