// Package db runs SQL batches against an engine on behalf of many virtual
// databases sharing its flat namespace.
//
// A batch moves through a fixed pipeline: comments and dialect noise are
// stripped, live batches are checked read-only, the text is split into
// statements, and each statement is security-gated, qualified against the
// active database, raced against its deadline and normalized into a
// ResultSet. USE and FORM never reach the engine; USE rewires the batch's
// context and FORM builds an input form from table metadata. Writes in a
// batch surface as a single change event on the bus.
//
//	x := db.NewExecutor(eng, bus.New())
//	res := x.Execute(ctx, "USE shop; SELECT * FROM items", core.ExecOptions{})
//	if res.Success {
//		for _, rs := range res.Data {
//			rs.Display(os.Stdout)
//		}
//	}
//
// Live queries subscribe a read-only batch to the bus and re-execute it,
// debounced, when a table they observe changes:
//
//	lq, _ := x.NewLiveQuery("SELECT * FROM items", "shop", onResult)
//	defer lq.Close()
//	lq.Run(ctx)
package db
