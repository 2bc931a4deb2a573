package tests

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nestdb/nestdb/bus"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/engine/enginetest"
	"github.com/nestdb/nestdb/ps"
	"github.com/nestdb/nestdb/sql"
)

// seedLargeTable loads rows through the bulk path so the scale tests do not
// spend their time in literal parsing.
func seedLargeTable(t *testing.T, x *db.Executor, database, table string, rows int) {
	t.Helper()
	ctx := context.Background()
	stmt := fmt.Sprintf("CREATE TABLE [%s].[%s] (id INT, name VARCHAR)", database, table)
	if _, err := x.ExecEngine(ctx, stmt); err != nil {
		t.Fatalf("create table: %v", err)
	}
	batch := make([]core.Row, 0, rows)
	for i := 0; i < rows; i++ {
		batch = append(batch, core.Row{"id": i, "name": fmt.Sprintf("row-%d", i)})
	}
	bulk := fmt.Sprintf("INSERT INTO [%s].[%s] SELECT * FROM ?", database, table)
	if _, err := x.ExecEngine(ctx, bulk, batch); err != nil {
		t.Fatalf("seed rows: %v", err)
	}
}

func TestSnapshotAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}

	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	m := ps.NewManager(x, ps.NewMemoryStore(), ps.Options{})
	ctx := context.Background()

	const rows = 20000
	seedLargeTable(t, x, "dbo", "events", rows)

	snap, warnings, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got := len(snap.Databases["dbo"].Tables["events"])
	if got != ps.DefaultRowLimit {
		t.Errorf("snapshot rows = %d, want cap %d", got, ps.DefaultRowLimit)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "truncated") {
		t.Errorf("warnings = %v, want one truncation warning", warnings)
	}
}

func TestSaveLoadRoundTripAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}

	store := ps.NewFileStore(filepath.Join(t.TempDir(), "scale.json"))

	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	m := ps.NewManager(x, store, ps.Options{})
	ctx := context.Background()

	const rows = 10000
	seedLargeTable(t, x, "dbo", "events", rows)
	if err := m.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := enginetest.New(false)
	x2 := db.NewExecutor(fresh, bus.New())
	m2 := ps.NewManager(x2, store, ps.Options{})
	if err := m2.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := fresh.RowCount("dbo", "events"); got != rows {
		t.Errorf("restored rows = %d, want %d", got, rows)
	}
}

func TestSplitLargeScript(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}

	const statements = 5000
	var sb strings.Builder
	for i := 0; i < statements; i++ {
		fmt.Fprintf(&sb, "INSERT INTO items (id, note) VALUES (%d, 'semi;colon %d');\n", i, i)
	}

	parts := sql.SplitStatements(sb.String())
	if len(parts) != statements {
		t.Fatalf("split produced %d statements, want %d", len(parts), statements)
	}
	for i, p := range parts {
		if !strings.HasPrefix(p, "INSERT INTO items") {
			t.Fatalf("statement %d mangled: %q", i, p)
		}
	}
}

func TestConcurrentExecutesSerialize(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}

	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	ctx := context.Background()
	if _, err := x.ExecEngine(ctx, "CREATE TABLE [dbo].[counters] (id INT, worker VARCHAR)"); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				stmt := fmt.Sprintf("INSERT INTO counters (id, worker) VALUES (%d, 'w%d')", i, w)
				res := x.Execute(ctx, stmt, core.ExecOptions{})
				if !res.Success {
					errs <- res.Err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent execute: %v", err)
	}

	if got := eng.RowCount("dbo", "counters"); got != workers*perWorker {
		t.Errorf("rows = %d, want %d", got, workers*perWorker)
	}
}

func TestAutoSaveUnderWriteBurst(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}

	store := ps.NewMemoryStore()
	instance, _ := openTestInstance(t, store)

	mustExecute(t, instance, "CREATE TABLE items (id INT, name VARCHAR)")
	for i := 0; i < 100; i++ {
		mustExecute(t, instance, fmt.Sprintf("INSERT INTO items (id, name) VALUES (%d, 'n%d')", i, i))
	}
	if err := instance.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, fresh := openTestInstance(t, store)
	defer reopened.Close()
	if got := fresh.RowCount("dbo", "items"); got != 100 {
		t.Errorf("restored rows = %d, want 100", got)
	}
}
