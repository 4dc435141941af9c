package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"querydesk/internal/domain"
)

// Compile-time check.
var _ domain.HistoryRepository = (*HistoryRepo)(nil)

// HistoryRepo records query requests in the metastore. Inserts use the
// write pool; List can be given the read pool.
type HistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewHistoryRepo creates a HistoryRepo over the write/read pool pair.
func NewHistoryRepo(writeDB, readDB *sql.DB) *HistoryRepo {
	return &HistoryRepo{writeDB: writeDB, readDB: readDB}
}

// Insert appends a history entry.
func (r *HistoryRepo) Insert(ctx context.Context, e *domain.HistoryEntry) error {
	var generatedSQL, stage, msg interface{}
	if e.GeneratedSQL != "" {
		generatedSQL = e.GeneratedSQL
	}
	if e.FailureStage != "" {
		stage = e.FailureStage
	}
	if e.FailureMsg != "" {
		msg = e.FailureMsg
	}

	_, err := r.writeDB.ExecContext(ctx,
		`INSERT INTO query_history (question, generated_sql, status, failure_stage, failure_message, row_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Question, generatedSQL, string(e.Status), stage, msg,
		e.RowCount, e.DurationMs, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *HistoryRepo) List(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, question, COALESCE(generated_sql, ''), status,
		        COALESCE(failure_stage, ''), COALESCE(failure_message, ''),
		        row_count, duration_ms, created_at
		 FROM query_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var status, createdAt string
		if err := rows.Scan(&e.ID, &e.Question, &e.GeneratedSQL, &status,
			&e.FailureStage, &e.FailureMsg, &e.RowCount, &e.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		e.Status = domain.QueryStatus(status)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan prunes entries older than the given number of days and
// returns how many were removed.
func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	res, err := r.writeDB.ExecContext(ctx,
		`DELETE FROM query_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
