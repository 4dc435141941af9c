package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
)

// OpenDuckDB opens the embedded DuckDB data store. An empty path opens an
// in-memory database (data lives only for the process lifetime).
//
// External filesystem access is disabled on the handle so a statement that
// slips past validation cannot read or write files through read_csv, COPY,
// or ATTACH. Uploads insert rows through bound parameters and are unaffected.
func OpenDuckDB(path string) (*sql.DB, error) {
	duckDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := duckDB.PingContext(ctx); err != nil {
		_ = duckDB.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	if _, err := duckDB.ExecContext(ctx, "SET enable_external_access = false"); err != nil {
		_ = duckDB.Close()
		return nil, fmt.Errorf("harden duckdb: %w", err)
	}

	return duckDB, nil
}
