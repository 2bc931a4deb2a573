// Package engine defines the contract between the execution pipeline and
// the SQL engine that actually evaluates statements. The pipeline hands the
// engine fully qualified statement text and reads table metadata back for
// snapshotting; everything dialect-specific stays behind this interface.
package engine

import (
	"context"
	"errors"

	"github.com/nestdb/nestdb/core"
)

var (
	// ErrUnknownDatabase is returned for operations that name a database
	// the engine does not hold.
	ErrUnknownDatabase = errors.New("unknown database")

	// ErrUnknownTable is returned for metadata lookups on a missing table.
	ErrUnknownTable = errors.New("unknown table")
)

// Engine evaluates SQL statements against a set of named databases. An
// Engine is not required to be safe for concurrent use; the execution
// pipeline serializes access to it.
type Engine interface {
	// Exec runs a single statement and returns its result rows, if any.
	// Statements with no result set return a nil slice. Params are bound
	// positionally; a []core.Row param is treated as a bulk row source
	// for INSERT ... SELECT * FROM ? statements.
	Exec(ctx context.Context, statement string, params ...any) ([]core.Row, error)

	// DatabaseNames lists every database the engine holds, including the
	// system database.
	DatabaseNames(ctx context.Context) ([]string, error)

	// HasDatabase reports whether the named database exists.
	HasDatabase(ctx context.Context, name string) (bool, error)

	// Tables lists the table names of a database.
	Tables(ctx context.Context, database string) ([]string, error)

	// TableMeta reports column-level metadata for a table.
	TableMeta(ctx context.Context, database, table string) (core.TableMeta, error)

	// TableRows reads up to limit rows from a table. A non-positive limit
	// reads every row.
	TableRows(ctx context.Context, database, table string, limit int) ([]core.Row, error)

	// SystemDatabase names the engine's built-in database. It is excluded
	// from snapshots and protected from destructive operations.
	SystemDatabase() string

	// Close releases engine resources.
	Close() error
}
