// Package repository implements metastore persistence over raw SQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"querydesk/internal/domain"
)

// Compile-time check.
var _ domain.TableRepository = (*TableRepo)(nil)

// TableRepo persists registry metadata so the schema registry can be
// rebuilt on restart. All calls go through the write pool: upserts and
// deletes mutate, and List only runs at startup.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo creates a TableRepo on the given pool.
func NewTableRepo(metaDB *sql.DB) *TableRepo {
	return &TableRepo{db: metaDB}
}

// Upsert stores the table entry and its columns, replacing any previous
// entry with the same name in one transaction.
func (r *TableRepo) Upsert(ctx context.Context, t *domain.Table) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key := strings.ToLower(t.Name)
	if _, err := tx.ExecContext(ctx, `DELETE FROM tables WHERE name = ?`, key); err != nil {
		return fmt.Errorf("clear previous entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tables (name, source_file_name, row_count, created_at) VALUES (?, ?, ?, ?)`,
		key, t.SourceFileName, t.RowCount, t.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert table: %w", err)
	}
	for i, c := range t.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO table_columns (table_name, position, name, type) VALUES (?, ?, ?, ?)`,
			key, i, c.Name, string(c.Type),
		); err != nil {
			return fmt.Errorf("insert column %q: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

// Delete removes the table entry; the column rows cascade.
func (r *TableRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tables WHERE name = ?`, strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("delete table: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("table %q not found", name)
	}
	return nil
}

// List loads all persisted table entries with their columns in order.
func (r *TableRepo) List(ctx context.Context) ([]*domain.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, source_file_name, row_count, created_at FROM tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []*domain.Table
	for rows.Next() {
		var t domain.Table
		var createdAt string
		if err := rows.Scan(&t.Name, &t.SourceFileName, &t.RowCount, &createdAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			t.CreatedAt = ts
		}
		tables = append(tables, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range tables {
		cols, err := r.listColumns(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		t.Columns = cols
	}
	return tables, nil
}

func (r *TableRepo) listColumns(ctx context.Context, name string) ([]domain.Column, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, type FROM table_columns WHERE table_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("list columns for %q: %w", name, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.Column
	for rows.Next() {
		var c domain.Column
		var typ string
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = domain.ColumnType(typ)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
