// Package engine runs validated SELECT statements against the embedded
// store and shapes the rows for the API and the exporters.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"querydesk/internal/domain"
)

// Executor runs statements with a per-statement timeout and a hard row cap.
// The store connection has external access disabled, and the executor
// re-checks that a statement is a read before running it, so even a
// statement that slipped past validation cannot write.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	rowCap  int
	logger  *slog.Logger
}

func New(db *sql.DB, timeout time.Duration, rowCap int, logger *slog.Logger) *Executor {
	return &Executor{
		db:      db,
		timeout: timeout,
		rowCap:  rowCap,
		logger:  logger.With("component", "executor"),
	}
}

// Execute runs one statement and scans up to rowCap rows. When a rowCap+1th
// row exists the result is marked truncated and the extra row is dropped.
// Failures are never retried; the same statement fails the same way.
func (e *Executor) Execute(ctx context.Context, query string) (*domain.QueryResult, error) {
	if !isReadStatement(query) {
		return nil, domain.ErrExecution(domain.ReasonRuntimeError, "refusing to run a non-read statement")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.classify(ctx, err)
	}

	result := &domain.QueryResult{Columns: cols, Rows: []map[string]any{}}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) == e.rowCap {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, e.classify(ctx, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(ctx, err)
	}
	result.RowCount = len(result.Rows)

	e.logger.Debug("statement executed",
		"rows", result.RowCount, "truncated", result.Truncated, "duration", time.Since(start))
	return result, nil
}

// TableExists reports whether name is a table in the store.
func (e *Executor) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE lower(table_name) = lower(?)`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies the store answers queries.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Executor) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrExecution(domain.ReasonTimeout, "statement exceeded the %s execution budget", e.timeout)
	}
	return domain.ErrExecution(domain.ReasonRuntimeError, "statement failed: %v", err)
}

// isReadStatement is a coarse final check; the validator has already done
// the structural work. Leading parentheses are skipped so a parenthesized
// union counts as a read.
func isReadStatement(query string) bool {
	s := strings.TrimLeft(strings.ToLower(query), " \t\r\n(")
	return strings.HasPrefix(s, "select") || strings.HasPrefix(s, "with")
}

// normalizeValue maps driver values to JSON-friendly Go values.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}
