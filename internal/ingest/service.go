package ingest

import (
	"context"
	"io"
	"log/slog"
	"time"

	"querydesk/internal/domain"
	"querydesk/internal/registry"
)

// Service handles the whole upload flow: parse, load into the store, and
// register in the catalog. Re-uploading a name replaces the previous table.
type Service struct {
	loader   *Loader
	registry *registry.Registry
	logger   *slog.Logger
}

func NewService(loader *Loader, reg *registry.Registry, logger *slog.Logger) *Service {
	return &Service{
		loader:   loader,
		registry: reg,
		logger:   logger.With("component", "ingest"),
	}
}

// Upload parses the CSV stream and makes it queryable. It returns the
// registered table and whether an existing table was replaced.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*domain.Table, bool, error) {
	name, err := TableNameFromFilename(filename)
	if err != nil {
		return nil, false, err
	}

	ds, err := Parse(r)
	if err != nil {
		return nil, false, err
	}

	_, replaced := s.registry.Lookup(name)

	if err := s.loader.Load(ctx, name, ds); err != nil {
		return nil, false, err
	}

	table := &domain.Table{
		Name:           name,
		Columns:        ds.Columns,
		RowCount:       ds.RowCount(),
		SourceFileName: filename,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.registry.Register(ctx, table); err != nil {
		// Keep store and catalog consistent: a table the catalog does not
		// know about must not stay queryable.
		if dropErr := s.loader.Drop(ctx, name); dropErr != nil {
			s.logger.Error("rollback after register failure", "table", name, "error", dropErr)
		}
		return nil, false, err
	}

	s.logger.Info("upload complete",
		"table", name, "rows", table.RowCount, "columns", len(table.Columns), "replaced", replaced)
	return table, replaced, nil
}

// Remove drops a table from both the catalog and the store.
func (s *Service) Remove(ctx context.Context, name string) error {
	if err := s.registry.Remove(ctx, name); err != nil {
		return err
	}
	if err := s.loader.Drop(ctx, name); err != nil {
		return err
	}
	s.logger.Info("table dropped", "table", name)
	return nil
}
