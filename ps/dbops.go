package ps

import (
	"context"
	"fmt"
	"log"

	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/schema"
	"github.com/nestdb/nestdb/sql"
)

// DatabaseStats summarizes one virtual database.
type DatabaseStats struct {
	Name     string
	Tables   int
	Rows     int
	ByteSize int
}

// CreateDatabase adds a new empty database and persists the change.
func (m *Manager) CreateDatabase(ctx context.Context, name string) error {
	name, err := m.normalizeName(name)
	if err != nil {
		return err
	}

	ok, err := m.x.HasDatabase(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("database %q already exists", name)
	}

	if _, err := m.x.ExecEngine(ctx, "CREATE DATABASE "+name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	if err := m.Save(ctx); err != nil {
		return err
	}
	m.publishStructural(name)
	return nil
}

// DeleteDatabase removes a database. The default database, the system
// database and the currently active database are protected.
func (m *Manager) DeleteDatabase(ctx context.Context, name string) error {
	name, err := m.normalizeName(name)
	if err != nil {
		return err
	}
	if name == core.DefaultDatabase {
		return fmt.Errorf("the default database cannot be deleted")
	}
	if name == m.ActiveDatabase() {
		return fmt.Errorf("database %q is active; switch away before deleting it", name)
	}

	ok, err := m.x.HasDatabase(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	if _, err := m.x.ExecEngine(ctx, "DROP DATABASE "+name); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}

	if err := m.Save(ctx); err != nil {
		return err
	}
	m.publishStructural(name)
	return nil
}

// RenameDatabase moves every table of old into a fresh database named new,
// then drops old. The default and active databases cannot be renamed. A
// failure mid-copy drops the half-created target so no orphan is left.
func (m *Manager) RenameDatabase(ctx context.Context, oldName, newName string) error {
	oldName, err := m.normalizeName(oldName)
	if err != nil {
		return err
	}
	newName, err = m.normalizeName(newName)
	if err != nil {
		return err
	}
	if oldName == core.DefaultDatabase {
		return fmt.Errorf("the default database cannot be renamed")
	}
	if oldName == m.ActiveDatabase() {
		return fmt.Errorf("database %q is active; switch away before renaming it", oldName)
	}

	if ok, err := m.x.HasDatabase(ctx, oldName); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("unknown database %q", oldName)
	}
	if ok, err := m.x.HasDatabase(ctx, newName); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("database %q already exists", newName)
	}

	if _, err := m.x.ExecEngine(ctx, "CREATE DATABASE "+newName); err != nil {
		return fmt.Errorf("create target database: %w", err)
	}

	if err := m.copyTables(ctx, oldName, newName); err != nil {
		// compensate: remove the half-created target
		if _, dropErr := m.x.ExecEngine(ctx, "DROP DATABASE "+newName); dropErr != nil {
			log.Printf("ps: leftover database %q could not be removed: %v", newName, dropErr)
		}
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}

	if _, err := m.x.ExecEngine(ctx, "DROP DATABASE "+oldName); err != nil {
		return fmt.Errorf("drop source database: %w", err)
	}

	if err := m.Save(ctx); err != nil {
		return err
	}
	m.publishStructural(newName)
	return nil
}

// DuplicateDatabase copies src into a fresh database named dst.
func (m *Manager) DuplicateDatabase(ctx context.Context, src, dst string) error {
	src, err := m.normalizeName(src)
	if err != nil {
		return err
	}
	dst, err = m.normalizeName(dst)
	if err != nil {
		return err
	}

	if ok, err := m.x.HasDatabase(ctx, src); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("unknown database %q", src)
	}
	if ok, err := m.x.HasDatabase(ctx, dst); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("database %q already exists", dst)
	}

	if _, err := m.x.ExecEngine(ctx, "CREATE DATABASE "+dst); err != nil {
		return fmt.Errorf("create target database: %w", err)
	}

	if err := m.copyTables(ctx, src, dst); err != nil {
		if _, dropErr := m.x.ExecEngine(ctx, "DROP DATABASE "+dst); dropErr != nil {
			log.Printf("ps: leftover database %q could not be removed: %v", dst, dropErr)
		}
		return fmt.Errorf("duplicate %s into %s: %w", src, dst, err)
	}

	if err := m.Save(ctx); err != nil {
		return err
	}
	m.publishStructural(dst)
	return nil
}

// ClearDatabase drops every table of a database but keeps the database.
func (m *Manager) ClearDatabase(ctx context.Context, name string) error {
	name, err := m.normalizeName(name)
	if err != nil {
		return err
	}

	tables, err := m.x.Tables(ctx, name)
	if err != nil {
		return err
	}
	for _, table := range tables {
		stmt := fmt.Sprintf("DROP TABLE [%s].[%s]", name, table)
		if _, err := m.x.ExecEngine(ctx, stmt); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}

	if err := m.Save(ctx); err != nil {
		return err
	}
	m.publishStructural(name)
	return nil
}

// Stats reports table count, row count and an approximate serialized size.
func (m *Manager) Stats(ctx context.Context, name string) (DatabaseStats, error) {
	name, err := m.normalizeName(name)
	if err != nil {
		return DatabaseStats{}, err
	}

	tables, err := m.x.Tables(ctx, name)
	if err != nil {
		return DatabaseStats{}, err
	}

	stats := DatabaseStats{Name: name, Tables: len(tables)}
	for _, table := range tables {
		rows, err := m.x.TableRows(ctx, name, table, 0)
		if err != nil {
			return DatabaseStats{}, err
		}
		stats.Rows += len(rows)
		for _, row := range rows {
			for col, val := range row {
				stats.ByteSize += len(col) + len(fmt.Sprintf("%v", val))
			}
		}
	}
	return stats, nil
}

// copyTables recreates every table of src inside dst and copies the rows
// over in batches.
func (m *Manager) copyTables(ctx context.Context, src, dst string) error {
	tables, err := m.x.Tables(ctx, src)
	if err != nil {
		return err
	}

	batch := m.opts.batchSize()
	for _, table := range tables {
		rows, err := m.x.TableRows(ctx, src, table, 0)
		if err != nil {
			return err
		}

		var createStmt string
		meta, err := m.x.TableMeta(ctx, src, table)
		if err == nil {
			createStmt, err = schema.Reconstruct(table, meta)
		}
		if createStmt == "" || err != nil {
			if len(rows) > 0 {
				createStmt = schema.InferFromRow(table, rows[0])
			} else {
				createStmt = schema.InferFromRow(table, nil)
			}
		}

		if _, err := m.x.ExecEngine(ctx, sql.Qualify(createStmt, dst)); err != nil {
			return fmt.Errorf("create %s.%s: %w", dst, table, err)
		}

		target := fmt.Sprintf("[%s].[%s]", dst, table)
		for start := 0; start < len(rows); start += batch {
			end := start + batch
			if end > len(rows) {
				end = len(rows)
			}
			stmt := fmt.Sprintf("INSERT INTO %s SELECT * FROM ?", target)
			if _, err := m.x.ExecEngine(ctx, stmt, rows[start:end]); err != nil {
				return fmt.Errorf("copy rows into %s.%s: %w", dst, table, err)
			}
		}
	}
	return nil
}
