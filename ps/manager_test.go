package ps

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nestdb/nestdb/bus"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/engine/enginetest"
)

func newTestManager(opts Options) (*Manager, *db.Executor, *enginetest.Engine, *MemoryStore) {
	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	store := NewMemoryStore()
	return NewManager(x, store, opts), x, eng, store
}

func seedItems(t *testing.T, x *db.Executor, rows int) {
	t.Helper()
	res := x.Execute(context.Background(),
		"CREATE TABLE items (id INT, name VARCHAR)", core.ExecOptions{})
	if !res.Success {
		t.Fatalf("create table: %v", res.Err)
	}
	for i := 0; i < rows; i++ {
		res = x.Execute(context.Background(),
			"INSERT INTO items (id, name) VALUES (1, 'a')", core.ExecOptions{})
		if !res.Success {
			t.Fatalf("insert: %v", res.Err)
		}
	}
}

func TestSnapshotSkipsSystemDatabase(t *testing.T) {
	m, x, _, _ := newTestManager(Options{})
	seedItems(t, x, 2)

	snap, warnings, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if _, ok := snap.Databases["system"]; ok {
		t.Error("system database must not be persisted")
	}
	content, ok := snap.Databases["dbo"]
	if !ok {
		t.Fatal("dbo missing from snapshot")
	}
	if len(content.Tables["items"]) != 2 {
		t.Errorf("got %d rows, want 2", len(content.Tables["items"]))
	}
	if !strings.Contains(content.Schema["items"], "CREATE TABLE") {
		t.Errorf("schema not reconstructed: %q", content.Schema["items"])
	}
	if snap.Version != core.SnapshotVersion {
		t.Errorf("version = %d", snap.Version)
	}
}

func TestSnapshotTruncatesAtRowLimit(t *testing.T) {
	m, x, _, _ := newTestManager(Options{RowLimit: 2})
	seedItems(t, x, 3)

	snap, warnings, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := len(snap.Databases["dbo"].Tables["items"]); got != 2 {
		t.Errorf("got %d rows, want the cap of 2", got)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "truncated") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestSnapshotActiveDatabaseFallsBack(t *testing.T) {
	m, _, _, _ := newTestManager(Options{})

	// the system database exists but is never persisted, so it cannot be
	// recorded as the active database either
	if err := m.SetActive(context.Background(), "system"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	snap, _, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ActiveDatabase != core.DefaultDatabase {
		t.Errorf("active = %q, want %q", snap.ActiveDatabase, core.DefaultDatabase)
	}
}

func TestSaveKeepsPreviousStateAsBackup(t *testing.T) {
	m, x, _, store := newTestManager(Options{})
	seedItems(t, x, 1)

	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	res := x.Execute(context.Background(),
		"INSERT INTO items (id, name) VALUES (2, 'b')", core.ExecOptions{})
	if !res.Success {
		t.Fatalf("insert: %v", res.Err)
	}
	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}

	data, err := store.Read()
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if got := len(doc.Databases["dbo"].Tables["items"]); got != 2 {
		t.Errorf("current rows = %d, want 2", got)
	}
	if got := len(doc.Backup["dbo"].Tables["items"]); got != 1 {
		t.Errorf("backup rows = %d, want 1", got)
	}
}

// funcStore lets a test observe and intercept store traffic.
type funcStore struct {
	read  func() ([]byte, error)
	write func([]byte) error
}

func (s *funcStore) Read() ([]byte, error)   { return s.read() }
func (s *funcStore) Write(data []byte) error { return s.write(data) }

func TestSaveCoalescesReentrantRequests(t *testing.T) {
	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())

	var m *Manager
	writes := 0
	store := &funcStore{
		read: func() ([]byte, error) { return nil, ErrNoSnapshot },
		write: func([]byte) error {
			writes++
			if writes == 1 {
				// a save requested mid-save must coalesce, not nest
				if err := m.Save(context.Background()); err != nil {
					t.Errorf("reentrant save: %v", err)
				}
			}
			return nil
		},
	}
	m = NewManager(x, store, Options{})

	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if writes != 2 {
		t.Errorf("writes = %d, want 2 (original plus one coalesced follow-up)", writes)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	m, x, _, store := newTestManager(Options{})
	seedItems(t, x, 3)
	if err := m.CreateDatabase(context.Background(), "shop"); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if err := m.SetActive(context.Background(), "shop"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// a fresh engine restores from the same store
	eng2 := enginetest.New(false)
	x2 := db.NewExecutor(eng2, bus.New())
	m2 := NewManager(x2, store, Options{})
	if err := m2.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := eng2.RowCount("dbo", "items"); got != 3 {
		t.Errorf("restored rows = %d, want 3", got)
	}
	if ok, _ := x2.HasDatabase(context.Background(), "shop"); !ok {
		t.Error("shop not restored")
	}
	if m2.ActiveDatabase() != "shop" {
		t.Errorf("active = %q, want shop", m2.ActiveDatabase())
	}
}

func TestLoadWithoutSnapshotEnsuresDefault(t *testing.T) {
	eng := enginetest.New(false)
	x := db.NewExecutor(eng, bus.New())
	m := NewManager(x, NewMemoryStore(), Options{})

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok, _ := x.HasDatabase(context.Background(), core.DefaultDatabase); !ok {
		t.Error("default database missing after empty load")
	}
	if m.ActiveDatabase() != core.DefaultDatabase {
		t.Errorf("active = %q", m.ActiveDatabase())
	}
}

func TestLoadSkipsBrokenTables(t *testing.T) {
	doc := document{Snapshot: core.Snapshot{
		Version:        core.SnapshotVersion,
		ActiveDatabase: "dbo",
		Databases: map[string]core.DatabaseContent{
			"dbo": {
				Tables: map[string][]core.Row{
					"good":     {{"id": 1}},
					"bad name": {{"id": 2}},
				},
				Schema: map[string]string{},
			},
			"bad db": {Tables: map[string][]core.Row{"t": {{"id": 3}}}},
		},
	}}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	eng := enginetest.New(false)
	x := db.NewExecutor(eng, bus.New())
	store := NewMemoryStore()
	if err := store.Write(data); err != nil {
		t.Fatal(err)
	}
	m := NewManager(x, store, Options{})

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := eng.RowCount("dbo", "good"); got != 1 {
		t.Errorf("good table rows = %d, want 1", got)
	}
	if ok, _ := x.HasDatabase(context.Background(), "bad db"); ok {
		t.Error("invalid database name must be skipped")
	}
}

func TestLoadUnknownActiveFallsBack(t *testing.T) {
	doc := document{Snapshot: core.Snapshot{
		Version:        core.SnapshotVersion,
		ActiveDatabase: "ghost",
		Databases:      map[string]core.DatabaseContent{},
	}}
	data, _ := json.Marshal(doc)

	eng := enginetest.New(false)
	x := db.NewExecutor(eng, bus.New())
	store := NewMemoryStore()
	store.Write(data)
	m := NewManager(x, store, Options{})

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.ActiveDatabase() != core.DefaultDatabase {
		t.Errorf("active = %q, want %q", m.ActiveDatabase(), core.DefaultDatabase)
	}
}

func TestResetDropsEverythingButDefault(t *testing.T) {
	m, x, eng, store := newTestManager(Options{})
	seedItems(t, x, 2)
	if err := m.CreateDatabase(context.Background(), "shop"); err != nil {
		t.Fatalf("create shop: %v", err)
	}

	var events []core.ChangeEvent
	x.Bus().Subscribe(func(ev core.ChangeEvent) { events = append(events, ev) })

	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if ok, _ := x.HasDatabase(context.Background(), "shop"); ok {
		t.Error("shop survived reset")
	}
	if ok, _ := x.HasDatabase(context.Background(), core.DefaultDatabase); !ok {
		t.Error("default database missing after reset")
	}
	if got := eng.RowCount("dbo", "items"); got != 0 {
		t.Errorf("items survived reset with %d rows", got)
	}
	if m.ActiveDatabase() != core.DefaultDatabase {
		t.Errorf("active = %q", m.ActiveDatabase())
	}

	data, err := store.Read()
	if err != nil {
		t.Fatalf("reset state not persisted: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Databases["shop"]; ok {
		t.Error("shop still in persisted snapshot")
	}

	if len(events) == 0 || !events[len(events)-1].Structural() {
		t.Errorf("expected a structural change event, got %v", events)
	}
}

func TestAdoptRecordsBatchDatabase(t *testing.T) {
	m, x, _, _ := newTestManager(Options{})
	if err := m.CreateDatabase(context.Background(), "shop"); err != nil {
		t.Fatalf("create shop: %v", err)
	}

	res := x.Execute(context.Background(), "USE shop", core.ExecOptions{ActiveDatabase: m.ActiveDatabase()})
	if !res.Success {
		t.Fatalf("USE failed: %v", res.Err)
	}
	m.Adopt(res)
	if m.ActiveDatabase() != "shop" {
		t.Errorf("active = %q, want shop", m.ActiveDatabase())
	}

	// failed batches leave the context alone
	m.Adopt(db.Result{Success: false, ActiveDatabase: "dbo"})
	if m.ActiveDatabase() != "shop" {
		t.Errorf("failed batch switched context to %q", m.ActiveDatabase())
	}
}

func TestSettingsPersistInsideDocument(t *testing.T) {
	m, x, _, store := newTestManager(Options{})
	seedItems(t, x, 1)
	ctx := context.Background()

	m.SetSetting("theme", "dark")
	m.SetSetting("pageSize", 50)
	if err := m.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Settings["theme"] != "dark" {
		t.Errorf("persisted theme = %v, want dark", doc.Settings["theme"])
	}

	fresh := enginetest.New(false)
	m2 := NewManager(db.NewExecutor(fresh, bus.New()), store, Options{})
	if err := m2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := m2.Setting("theme"); !ok || v != "dark" {
		t.Errorf("restored theme = %v (%v), want dark", v, ok)
	}
}
