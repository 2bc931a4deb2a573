package op

import (
	"context"
	"fmt"

	"github.com/nestdb/nestdb/ps"
)

// DatabaseOp wraps management operations for one virtual database.
type DatabaseOp struct {
	Name    string
	Manager *ps.Manager
}

// GetDatabase resolves a database by name.
func GetDatabase(ctx context.Context, name string, manager *ps.Manager) (*DatabaseOp, error) {
	ok, err := manager.HasDatabase(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown database %q", name)
	}
	return &DatabaseOp{Name: name, Manager: manager}, nil
}

// CreateDatabase creates a new empty database and returns its handle.
func CreateDatabase(ctx context.Context, name string, manager *ps.Manager) (*DatabaseOp, error) {
	if err := manager.CreateDatabase(ctx, name); err != nil {
		return nil, err
	}
	return &DatabaseOp{Name: name, Manager: manager}, nil
}

// TableNames lists the database's tables.
func (op *DatabaseOp) TableNames(ctx context.Context) ([]string, error) {
	return op.Manager.Tables(ctx, op.Name)
}

// Drop deletes the database. The default and active databases refuse.
func (op *DatabaseOp) Drop(ctx context.Context) error {
	return op.Manager.DeleteDatabase(ctx, op.Name)
}

// Rename moves the database to a new name and updates the handle.
func (op *DatabaseOp) Rename(ctx context.Context, newName string) error {
	if err := op.Manager.RenameDatabase(ctx, op.Name, newName); err != nil {
		return err
	}
	op.Name = newName
	return nil
}

// Duplicate copies the database into a fresh one and returns its handle.
func (op *DatabaseOp) Duplicate(ctx context.Context, target string) (*DatabaseOp, error) {
	if err := op.Manager.DuplicateDatabase(ctx, op.Name, target); err != nil {
		return nil, err
	}
	return &DatabaseOp{Name: target, Manager: op.Manager}, nil
}

// Clear drops every table but keeps the database.
func (op *DatabaseOp) Clear(ctx context.Context) error {
	return op.Manager.ClearDatabase(ctx, op.Name)
}

// Stats reports table count, row count and approximate size.
func (op *DatabaseOp) Stats(ctx context.Context) (ps.DatabaseStats, error) {
	return op.Manager.Stats(ctx, op.Name)
}

// Export writes a SQL dump of the database to target (local path, file://
// or s3:// URL).
func (op *DatabaseOp) Export(ctx context.Context, target string, cfg *ps.S3Config) error {
	return op.Manager.ExportDatabase(ctx, op.Name, target, cfg)
}
