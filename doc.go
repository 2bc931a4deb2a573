// Package nestdb multiplexes many virtual databases over one embeddable
// SQL engine with a flat namespace.
//
// Bare table references are rewritten to [database].[table] before they
// reach the engine, a change bus fans out write notifications to live
// queries, and the full state round-trips through a JSON snapshot that
// can live in memory, in a plain file or in a git repository.
//
// # Quick Start
//
// Open an in-memory instance:
//
//	eng := enginetest.New(true)
//	inst, _ := nestdb.Open(ctx, eng, ps.NewMemoryStore(), ps.Options{})
//	defer inst.Close()
//
//	inst.Execute(ctx, "CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR)", core.ExecOptions{})
//	inst.Execute(ctx, "INSERT INTO users (id, name) VALUES (1, 'Alice')", core.ExecOptions{})
//
//	res := inst.Execute(ctx, "SELECT * FROM users", core.ExecOptions{})
//	res.Display()
//
// Against a real engine, swap the first line for engine/duckdb:
//
//	eng, _ := duckdb.Open("")
//
// # Layering
//
//	Query Orchestrator (db/)
//	     |
//	Engine boundary (engine/)     enginetest fake or duckdb adapter
//	     |
//	Persistence (ps/)             snapshot in Memory/File/Git stores
//
// Every statement batch runs through the executor pipeline: cleaning,
// security and safe-mode gates, USE interception, table qualification
// and result normalization. Successful writes publish one ChangeEvent
// per batch, which also drives the instance's auto-save.
package nestdb
