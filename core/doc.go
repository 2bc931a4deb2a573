// Package core provides the shared types used throughout NestDB.
//
// The package defines the snapshot document format, table metadata, change
// events and per-call execution options.
//
// # Rows and Metadata
//
// A Row is a mapping from column name to value. TableMeta mirrors what the
// engine knows about a table at runtime:
//
//	meta := core.TableMeta{
//	    Name: "users",
//	    Columns: []core.Column{
//	        {Name: "id", Type: "INT", PrimaryKey: true, AutoIncrement: true},
//	        {Name: "name", Type: "VARCHAR"},
//	    },
//	}
//
// # Snapshots
//
// A Snapshot captures every virtual database (row data plus reconstructed
// CREATE TABLE text per table) and the caller's active database. It is the
// sole unit of durable state.
//
// # Change Events
//
// A ChangeEvent names the database and the lower-cased tables a batch
// modified. An empty table set is a structural change and invalidates the
// whole database for live subscribers.
package core
