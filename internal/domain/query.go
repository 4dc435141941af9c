package domain

import "time"

// QueryStatus tracks a request through the translation pipeline.
type QueryStatus string

const (
	StatusReceived   QueryStatus = "received"
	StatusTranslated QueryStatus = "translated"
	StatusValidated  QueryStatus = "validated"
	StatusExecuted   QueryStatus = "executed"
	StatusFailed     QueryStatus = "failed"
)

// Query is the ephemeral state of one natural-language request. It lives for
// the duration of the request and is persisted only as a history entry.
type Query struct {
	RawText      string
	GeneratedSQL string
	Status       QueryStatus
	CreatedAt    time.Time
}

// QueryResult holds the structured output of an executed statement.
// Rows map column name to value; Columns preserves the result order.
// Immutable once produced.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}

// ExportArtifact is a rendered CSV payload with its download metadata.
// Artifacts are derived deterministically and never stored server-side.
type ExportArtifact struct {
	ContentType string
	Filename    string
	Data        []byte
}

// HistoryEntry records one completed (or failed) query request.
type HistoryEntry struct {
	ID           int64       `json:"id"`
	Question     string      `json:"question"`
	GeneratedSQL string      `json:"generated_sql,omitempty"`
	Status       QueryStatus `json:"status"`
	FailureStage string      `json:"failure_stage,omitempty"`
	FailureMsg   string      `json:"failure_message,omitempty"`
	RowCount     int64       `json:"row_count"`
	DurationMs   int64       `json:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at"`
}
