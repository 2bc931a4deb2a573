package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/nestdb/nestdb/bus"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/engine/enginetest"
	"github.com/nestdb/nestdb/ps"
	"github.com/nestdb/nestdb/schema"
	"github.com/nestdb/nestdb/sql"
)

// setupBenchmarkExecutor builds an executor over the in-memory engine with a
// seeded users table.
func setupBenchmarkExecutor(b *testing.B, rows int) (*db.Executor, *enginetest.Engine) {
	b.Helper()
	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	ctx := context.Background()

	if _, err := x.ExecEngine(ctx, "CREATE TABLE [dbo].[users] (id INT PRIMARY KEY, name VARCHAR, age INT, city VARCHAR)"); err != nil {
		b.Fatalf("create table: %v", err)
	}

	batch := make([]core.Row, 0, rows)
	for i := 1; i <= rows; i++ {
		batch = append(batch, core.Row{
			"id":   i,
			"name": fmt.Sprintf("User%d", i),
			"age":  20 + i%50,
			"city": fmt.Sprintf("City%d", i%10),
		})
	}
	if _, err := x.ExecEngine(ctx, "INSERT INTO [dbo].[users] SELECT * FROM ?", batch); err != nil {
		b.Fatalf("seed rows: %v", err)
	}
	return x, eng
}

func BenchmarkSplitStatements(b *testing.B) {
	scripts := []struct {
		name   string
		script string
	}{
		{"Single", "SELECT * FROM users"},
		{"Batch", "CREATE TABLE t (id INT); INSERT INTO t (id) VALUES (1); SELECT * FROM t"},
		{"Literals", "INSERT INTO t (name) VALUES ('semi;colon'); UPDATE t SET note = 'it''s fine; really'"},
	}

	for _, s := range scripts {
		b.Run(s.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sql.SplitStatements(s.script)
			}
		})
	}
}

func BenchmarkQualify(b *testing.B) {
	statements := []struct {
		name string
		stmt string
	}{
		{"BareTable", "SELECT * FROM users WHERE age > 30"},
		{"Qualified", "SELECT * FROM [shop].[users] WHERE age > 30"},
		{"Join", "SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id"},
		{"Insert", "INSERT INTO users (id, name) VALUES (1, 'a')"},
	}

	for _, s := range statements {
		b.Run(s.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sql.Qualify(s.stmt, "dbo")
			}
		})
	}
}

func BenchmarkEscapeValue(b *testing.B) {
	values := []struct {
		name  string
		value any
	}{
		{"Int", 42},
		{"String", "O'Hare International"},
		{"Float", 3.14159},
		{"Nil", nil},
	}

	for _, v := range values {
		b.Run(v.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sql.EscapeValue(v.value)
			}
		})
	}
}

func BenchmarkExecuteSelect(b *testing.B) {
	x, _ := setupBenchmarkExecutor(b, 1000)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		res := x.Execute(ctx, "SELECT * FROM users", core.ExecOptions{})
		if !res.Success {
			b.Fatalf("execute: %v", res.Err)
		}
	}
}

func BenchmarkExecuteInsert(b *testing.B) {
	x, _ := setupBenchmarkExecutor(b, 0)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		stmt := fmt.Sprintf("INSERT INTO users (id, name, age, city) VALUES (%d, 'User%d', %d, 'City%d')", i, i, 20+i%50, i%10)
		res := x.Execute(ctx, stmt, core.ExecOptions{})
		if !res.Success {
			b.Fatalf("insert: %v", res.Err)
		}
	}
}

func BenchmarkExecuteBatch(b *testing.B) {
	x, _ := setupBenchmarkExecutor(b, 100)
	ctx := context.Background()
	script := "SELECT * FROM users; SELECT * FROM users LIMIT 10; SELECT * FROM users LIMIT 1"
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		res := x.Execute(ctx, script, core.ExecOptions{})
		if !res.Success {
			b.Fatalf("batch: %v", res.Err)
		}
	}
}

func BenchmarkSnapshot(b *testing.B) {
	sizes := []int{100, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Rows%d", size), func(b *testing.B) {
			eng := enginetest.New(true)
			x := db.NewExecutor(eng, bus.New())
			m := ps.NewManager(x, ps.NewMemoryStore(), ps.Options{})
			ctx := context.Background()
			if _, err := x.ExecEngine(ctx, "CREATE TABLE [dbo].[users] (id INT, name VARCHAR)"); err != nil {
				b.Fatalf("create: %v", err)
			}
			batch := make([]core.Row, 0, size)
			for i := 0; i < size; i++ {
				batch = append(batch, core.Row{"id": i, "name": fmt.Sprintf("User%d", i)})
			}
			if _, err := x.ExecEngine(ctx, "INSERT INTO [dbo].[users] SELECT * FROM ?", batch); err != nil {
				b.Fatalf("seed: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := m.Snapshot(ctx); err != nil {
					b.Fatalf("snapshot: %v", err)
				}
			}
		})
	}
}

func BenchmarkSaveToMemoryStore(b *testing.B) {
	eng := enginetest.New(true)
	x := db.NewExecutor(eng, bus.New())
	m := ps.NewManager(x, ps.NewMemoryStore(), ps.Options{})
	ctx := context.Background()
	if _, err := x.ExecEngine(ctx, "CREATE TABLE [dbo].[users] (id INT, name VARCHAR)"); err != nil {
		b.Fatalf("create: %v", err)
	}
	batch := make([]core.Row, 0, 500)
	for i := 0; i < 500; i++ {
		batch = append(batch, core.Row{"id": i, "name": fmt.Sprintf("User%d", i)})
	}
	if _, err := x.ExecEngine(ctx, "INSERT INTO [dbo].[users] SELECT * FROM ?", batch); err != nil {
		b.Fatalf("seed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Save(ctx); err != nil {
			b.Fatalf("save: %v", err)
		}
	}
}

func BenchmarkSchemaReconstruct(b *testing.B) {
	meta := core.TableMeta{
		Columns: []core.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, NotNull: true},
			{Name: "name", Type: "VARCHAR"},
			{Name: "age", Type: "INTEGER"},
			{Name: "city", Type: "VARCHAR"},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := schema.Reconstruct("users", meta); err != nil {
			b.Fatalf("reconstruct: %v", err)
		}
	}
}

func BenchmarkChangeEventFanout(b *testing.B) {
	counts := []int{1, 10, 100}

	for _, n := range counts {
		b.Run(fmt.Sprintf("Subscribers%d", n), func(b *testing.B) {
			bs := bus.New()
			for i := 0; i < n; i++ {
				bs.Subscribe(func(core.ChangeEvent) {})
			}
			ev := core.ChangeEvent{Database: "dbo", Tables: []string{"users"}}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bs.Publish(ev)
			}
		})
	}
}
