// Package ps makes the engine's in-memory state durable. A Manager builds
// a snapshot document from every non-system database, writes it through a
// Store, and restores it on startup; it also owns the active-database
// context and the database management operations (create, delete, rename,
// duplicate, clear, reset) plus SQL dump export and import.
//
// Stores trade durability for setup cost: MemoryStore for tests, FileStore
// for a single atomically-replaced JSON file, GitStore for a full version
// history where every save is a commit.
//
//	store, _ := ps.NewGitStore("/var/lib/nestdb")
//	m := ps.NewManager(x, store, ps.Options{})
//	if err := m.Load(ctx); err != nil {
//		...
//	}
//	res := x.Execute(ctx, "INSERT INTO items (id) VALUES (1)", core.ExecOptions{
//		ActiveDatabase: m.ActiveDatabase(),
//	})
//	m.Adopt(res)
//	_ = m.Save(ctx)
//
// Saves coalesce: requests made while a save is running fold into a single
// follow-up save, so bursts of writes cost two snapshots at most.
package ps
