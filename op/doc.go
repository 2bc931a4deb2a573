// Package op provides high-level handles for databases and tables.
//
// The op package sits on top of the persistence manager (ps/), wrapping
// its name-based operations in small handle types so callers can work
// with a database or table object instead of repeating names.
//
// # DatabaseOp
//
//	dbOp, err := op.GetDatabase(ctx, "shop", manager)
//	tables, _ := dbOp.TableNames(ctx)
//	stats, _ := dbOp.Stats(ctx)
//	dbOp.Rename(ctx, "store")
//	dbOp.Export(ctx, "s3://bucket/shop.sql", nil)
//
// # TableOp
//
//	tableOp, err := op.GetTable(ctx, "shop", "items", manager)
//	meta, _ := tableOp.Meta(ctx)
//	pk, _ := tableOp.PrimaryKey(ctx)
//	rows, _ := tableOp.Rows(ctx, 100)
//	create, _ := tableOp.Schema(ctx)
//
// Handles hold no state beyond the names; every call reads the live
// engine through the manager, so a handle never goes stale.
package op
