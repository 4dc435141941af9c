package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"querydesk/internal/domain"
)

// insertBatchRows bounds how many rows go into one multi-row INSERT.
const insertBatchRows = 500

// Loader writes parsed datasets into DuckDB. Data is loaded into a staging
// table first and swapped in under the final name inside one transaction,
// so readers either see the old table or the new one, never a partial load.
type Loader struct {
	db *sql.DB
}

func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load materializes the dataset under name, replacing any existing table.
func (l *Loader) Load(ctx context.Context, name string, ds *Dataset) error {
	staging := "__staging_" + name

	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(staging))); err != nil {
		return fmt.Errorf("drop stale staging table: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, createTableSQL(staging, ds.Columns)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	if err := l.insertRows(ctx, staging, ds); err != nil {
		_, _ = l.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(staging)))
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(name))); err != nil {
		return fmt.Errorf("drop previous table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, quoteIdent(staging), quoteIdent(name))); err != nil {
		return fmt.Errorf("swap in table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

func (l *Loader) insertRows(ctx context.Context, table string, ds *Dataset) error {
	if len(ds.Rows) == 0 {
		return nil
	}

	placeholderRow := "(" + strings.TrimSuffix(strings.Repeat("?,", len(ds.Columns)), ",") + ")"

	for start := 0; start < len(ds.Rows); start += insertBatchRows {
		end := start + insertBatchRows
		if end > len(ds.Rows) {
			end = len(ds.Rows)
		}
		batch := ds.Rows[start:end]

		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(quoteIdent(table))
		sb.WriteString(" VALUES ")
		args := make([]any, 0, len(batch)*len(ds.Columns))
		for i, row := range batch {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(placeholderRow)
			args = append(args, row...)
		}

		if _, err := l.db.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert rows %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// Drop removes a table from the store. Dropping a missing table is not an
// error here; the registry owns existence checks.
func (l *Loader) Drop(ctx context.Context, name string) error {
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(name))); err != nil {
		return fmt.Errorf("drop table %q: %w", name, err)
	}
	return nil
}

// Exists reports whether a table is present in the store.
func (l *Loader) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE lower(table_name) = lower(?)`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %q: %w", name, err)
	}
	return n > 0, nil
}

func createTableSQL(name string, columns []domain.Column) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quoteIdent(name))
	sb.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.Type.DuckDBType())
	}
	sb.WriteByte(')')
	return sb.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
