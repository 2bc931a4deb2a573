package nestdb

import (
	"context"
	"log"
	"sync"

	"github.com/nestdb/nestdb/bus"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/db"
	"github.com/nestdb/nestdb/engine"
	"github.com/nestdb/nestdb/ps"
)

// Instance bundles one engine, its executor, the change bus and the
// persistence manager into a ready-to-use database.
type Instance struct {
	Executor *db.Executor
	Manager  *ps.Manager

	eng   engine.Engine
	bus   *bus.Bus
	token int
	saves sync.WaitGroup
}

// Open wires an instance around eng, restores the stored snapshot and
// arms auto-save: every change event triggers a background save, with
// bursts coalescing inside the manager.
func Open(ctx context.Context, eng engine.Engine, store ps.Store, opts ps.Options) (*Instance, error) {
	b := bus.New()
	x := db.NewExecutor(eng, b)
	m := ps.NewManager(x, store, opts)

	if err := m.Load(ctx); err != nil {
		return nil, err
	}

	in := &Instance{Executor: x, Manager: m, eng: eng, bus: b}
	in.token = b.Subscribe(func(core.ChangeEvent) {
		in.saves.Add(1)
		go func() {
			defer in.saves.Done()
			if err := m.Save(context.Background()); err != nil {
				log.Printf("nestdb: auto-save failed: %v", err)
			}
		}()
	})
	return in, nil
}

// Bus returns the instance's change bus.
func (in *Instance) Bus() *bus.Bus { return in.bus }

// Execute runs a query batch in the instance's current database context
// and adopts whatever context the batch leaves behind.
func (in *Instance) Execute(ctx context.Context, query string, opts core.ExecOptions) db.Result {
	if opts.ActiveDatabase == "" {
		opts.ActiveDatabase = in.Manager.ActiveDatabase()
	}
	res := in.Executor.Execute(ctx, query, opts)
	in.Manager.Adopt(res)
	return res
}

// Live subscribes a read-only query for reactive re-execution against the
// instance's current database.
func (in *Instance) Live(query string, onResult func(db.Result)) (*db.LiveQuery, error) {
	return in.Executor.NewLiveQuery(query, in.Manager.ActiveDatabase(), onResult)
}

// Close waits for in-flight auto-saves, persists a final snapshot and
// closes the engine.
func (in *Instance) Close() error {
	in.bus.Unsubscribe(in.token)
	in.saves.Wait()

	if err := in.Manager.Save(context.Background()); err != nil {
		log.Printf("nestdb: final save failed: %v", err)
	}
	return in.eng.Close()
}
