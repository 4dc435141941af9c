package domain

import "context"

// LanguageModel is the capability boundary for the external model provider.
// The core owns the prompt contract, retry policy, and output parsing; the
// provider only turns a prompt into text.
type LanguageModel interface {
	// Complete sends one system/user prompt pair and returns the raw model
	// output. Implementations must honor ctx cancellation and deadlines.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// TableRepository persists registry metadata in the metastore so the
// registry can be rebuilt after a restart.
type TableRepository interface {
	Upsert(ctx context.Context, t *Table) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*Table, error)
}

// HistoryRepository records completed query requests.
type HistoryRepository interface {
	Insert(ctx context.Context, e *HistoryEntry) error
	List(ctx context.Context, limit int) ([]HistoryEntry, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}
