package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nestdb/nestdb/core"
)

func TestLiveQueryReexecutesOnRelevantWrite(t *testing.T) {
	x, eng, _ := newTestExecutor()
	ctx := context.Background()
	if _, err := eng.Exec(ctx, "CREATE TABLE [dbo].[items] (`id` INT, `name` VARCHAR)"); err != nil {
		t.Fatal(err)
	}

	results := make(chan Result, 4)
	lq, err := x.NewLiveQuery("SELECT * FROM items", "dbo", func(r Result) { results <- r })
	if err != nil {
		t.Fatalf("NewLiveQuery: %v", err)
	}
	defer lq.Close()
	lq.SetDebounce(10 * time.Millisecond)

	res := x.Execute(ctx, "INSERT INTO items (id, name) VALUES (1, 'widget')", core.ExecOptions{OriginID: "writer"})
	if !res.Success {
		t.Fatalf("insert failed: %v", res.Err)
	}

	select {
	case r := <-results:
		if !r.Success {
			t.Fatalf("live re-run failed: %v", r.Err)
		}
		if len(r.Data) != 1 || len(r.Data[0].Rows) != 1 {
			t.Errorf("re-run data = %+v", r.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live query never re-executed")
	}
}

func TestLiveQueryIgnoresOwnOrigin(t *testing.T) {
	x, _, b := newTestExecutor()

	results := make(chan Result, 4)
	lq, err := x.NewLiveQuery("SELECT 1", "dbo", func(r Result) { results <- r })
	if err != nil {
		t.Fatalf("NewLiveQuery: %v", err)
	}
	defer lq.Close()
	lq.SetDebounce(5 * time.Millisecond)

	b.Publish(core.ChangeEvent{Database: "dbo", OriginID: lq.OriginID()})

	select {
	case <-results:
		t.Error("live query re-ran on its own event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLiveQueryIgnoresOtherDatabases(t *testing.T) {
	x, _, b := newTestExecutor()

	results := make(chan Result, 4)
	lq, err := x.NewLiveQuery("SELECT * FROM items", "dbo", func(r Result) { results <- r })
	if err != nil {
		t.Fatalf("NewLiveQuery: %v", err)
	}
	defer lq.Close()
	lq.SetDebounce(5 * time.Millisecond)

	b.Publish(core.ChangeEvent{Database: "other", Tables: []string{"items"}})

	select {
	case <-results:
		t.Error("live query re-ran for a foreign database")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLiveQueryStructuralEventAlwaysTriggers(t *testing.T) {
	x, eng, b := newTestExecutor()
	ctx := context.Background()
	if _, err := eng.Exec(ctx, "CREATE TABLE [dbo].[items] (`id` INT)"); err != nil {
		t.Fatal(err)
	}

	results := make(chan Result, 4)
	lq, err := x.NewLiveQuery("SELECT * FROM items", "dbo", func(r Result) { results <- r })
	if err != nil {
		t.Fatalf("NewLiveQuery: %v", err)
	}
	defer lq.Close()
	lq.SetDebounce(5 * time.Millisecond)

	b.Publish(core.ChangeEvent{Database: "dbo"})

	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("structural event did not trigger a re-run")
	}
}

func TestLiveQueryRejectsWrites(t *testing.T) {
	x, _, _ := newTestExecutor()

	if _, err := x.NewLiveQuery("DELETE FROM items", "dbo", nil); !errors.Is(err, ErrLiveModeViolation) {
		t.Fatalf("got %v, want ErrLiveModeViolation", err)
	}
}

func TestLiveQueryCloseStopsReruns(t *testing.T) {
	x, _, b := newTestExecutor()

	results := make(chan Result, 4)
	lq, err := x.NewLiveQuery("SELECT 1", "dbo", func(r Result) { results <- r })
	if err != nil {
		t.Fatalf("NewLiveQuery: %v", err)
	}
	lq.SetDebounce(5 * time.Millisecond)
	lq.Close()

	b.Publish(core.ChangeEvent{Database: "dbo"})

	select {
	case <-results:
		t.Error("closed live query re-ran")
	case <-time.After(100 * time.Millisecond):
	}
}
