package op

import (
	"context"
	"errors"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/ps"
	"github.com/nestdb/nestdb/schema"
)

// TableOp wraps read-side operations for one table.
type TableOp struct {
	Database string
	Name     string
	Manager  *ps.Manager
}

// GetTable resolves a table inside a database.
func GetTable(ctx context.Context, database, name string, manager *ps.Manager) (*TableOp, error) {
	tables, err := manager.Tables(ctx, database)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t == name {
			return &TableOp{Database: database, Name: name, Manager: manager}, nil
		}
	}
	return nil, errors.New("table " + database + "." + name + " not found")
}

// Meta reads the table's live metadata.
func (op *TableOp) Meta(ctx context.Context) (core.TableMeta, error) {
	return op.Manager.TableMeta(ctx, op.Database, op.Name)
}

// PrimaryKey returns the first primary-key column name.
func (op *TableOp) PrimaryKey(ctx context.Context) (string, error) {
	meta, err := op.Meta(ctx)
	if err != nil {
		return "", err
	}
	if len(meta.PKColumns) > 0 {
		return meta.PKColumns[0], nil
	}
	for _, col := range meta.Columns {
		if col.PrimaryKey {
			return col.Name, nil
		}
	}
	return "", errors.New("no primary key found")
}

// Rows reads up to limit rows; zero means all rows.
func (op *TableOp) Rows(ctx context.Context, limit int) ([]core.Row, error) {
	return op.Manager.TableRows(ctx, op.Database, op.Name, limit)
}

// Count reports the table's row count.
func (op *TableOp) Count(ctx context.Context) (int, error) {
	rows, err := op.Rows(ctx, 0)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Schema reconstructs the table's CREATE TABLE text from metadata, falling
// back to data-inferred typing.
func (op *TableOp) Schema(ctx context.Context) (string, error) {
	meta, err := op.Meta(ctx)
	if err == nil {
		if stmt, rErr := schema.Reconstruct(op.Name, meta); rErr == nil {
			return stmt, nil
		}
	}
	rows, err := op.Rows(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(rows) > 0 {
		return schema.InferFromRow(op.Name, rows[0]), nil
	}
	return schema.InferFromRow(op.Name, nil), nil
}
