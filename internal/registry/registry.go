package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"querydesk/internal/domain"
)

// Registry is the in-memory schema catalog. It is the single source of
// truth for which tables exist and what columns they carry; the SQL
// validator and the prompt builder both read from it. All mutations are
// mirrored to the metastore through the TableRepository so the catalog
// survives restarts.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*domain.Table

	repo   domain.TableRepository
	logger *slog.Logger
}

func New(repo domain.TableRepository, logger *slog.Logger) *Registry {
	return &Registry{
		tables: make(map[string]*domain.Table),
		repo:   repo,
		logger: logger.With("component", "registry"),
	}
}

// Restore loads the persisted catalog into memory. The verify callback is
// asked whether the backing relation still exists in the data store;
// entries whose relation is gone are dropped from the metastore rather
// than resurrected.
func (r *Registry) Restore(ctx context.Context, verify func(ctx context.Context, name string) (bool, error)) error {
	tables, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tables {
		ok, err := verify(ctx, t.Name)
		if err != nil {
			return fmt.Errorf("verify table %q: %w", t.Name, err)
		}
		if !ok {
			r.logger.Warn("dropping stale catalog entry", "table", t.Name)
			if err := r.repo.Delete(ctx, t.Name); err != nil {
				r.logger.Error("delete stale catalog entry", "table", t.Name, "error", err)
			}
			continue
		}
		r.tables[strings.ToLower(t.Name)] = t
	}
	r.logger.Info("catalog restored", "tables", len(r.tables))
	return nil
}

// Register adds or replaces a table definition. Re-registering an existing
// name is how re-uploads work; the previous definition is replaced whole.
func (r *Registry) Register(ctx context.Context, t *domain.Table) error {
	if err := r.repo.Upsert(ctx, t); err != nil {
		return fmt.Errorf("persist table %q: %w", t.Name, err)
	}

	r.mu.Lock()
	r.tables[strings.ToLower(t.Name)] = t.Clone()
	r.mu.Unlock()

	r.logger.Info("table registered", "table", t.Name, "columns", len(t.Columns), "rows", t.RowCount)
	return nil
}

// Remove deletes a table from the catalog.
func (r *Registry) Remove(ctx context.Context, name string) error {
	key := strings.ToLower(name)

	r.mu.Lock()
	_, ok := r.tables[key]
	if ok {
		delete(r.tables, key)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrNotFound("table %q not found", name)
	}
	if err := r.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("remove table %q: %w", name, err)
	}
	r.logger.Info("table removed", "table", name)
	return nil
}

// Lookup returns the table registered under name, case-insensitively.
func (r *Registry) Lookup(name string) (*domain.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Snapshot returns a deep copy of the current catalog. Callers may hold it
// across a whole request without blocking writers.
func (r *Registry) Snapshot() *domain.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &domain.Schema{Tables: make(map[string]*domain.Table, len(r.tables))}
	for k, t := range r.tables {
		s.Tables[k] = t.Clone()
	}
	return s
}
