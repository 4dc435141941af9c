// Package export renders query results and whole tables as RFC 4180 CSV
// and produces the schema descriptor consumed by the UI.
package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"querydesk/internal/domain"
)

const csvContentType = "text/csv; charset=utf-8"

// ResultFilename is the download name used when the caller supplies none.
const ResultFilename = "query_results.csv"

// Service renders CSV exports. Table exports stream straight from the
// store in storage order; result exports render the rows the caller saw,
// in the order the caller saw them.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ExportResult renders an in-memory query result. The header is always
// emitted, even for zero rows.
func (s *Service) ExportResult(res *domain.QueryResult, filename string) (*domain.ExportArtifact, error) {
	if res == nil || len(res.Columns) == 0 {
		return nil, domain.ErrExport("no data to export")
	}
	if filename == "" {
		filename = ResultFilename
	} else if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(res.Columns); err != nil {
		return nil, domain.ErrExport("write header: %v", err)
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, col := range res.Columns {
			record[i] = formatValue(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, domain.ErrExport("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, domain.ErrExport("flush csv: %v", err)
	}

	return &domain.ExportArtifact{
		ContentType: csvContentType,
		Filename:    filename,
		Data:        buf.Bytes(),
	}, nil
}

// ExportTable renders an entire registered table, all rows, in storage
// order, with columns in registered order.
func (s *Service) ExportTable(ctx context.Context, table *domain.Table) (*domain.ExportArtifact, error) {
	cols := make([]string, len(table.Columns))
	quoted := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = c.Name
		quoted[i] = quoteIdent(c.Name)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(quoted, ", "), quoteIdent(table.Name)))
	if err != nil {
		return nil, domain.ErrExport("read table %q: %v", table.Name, err)
	}
	defer rows.Close() //nolint:errcheck

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(cols); err != nil {
		return nil, domain.ErrExport("write header: %v", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.ErrExport("read table %q: %v", table.Name, err)
		}
		for i := range values {
			record[i] = formatValue(values[i])
		}
		if err := w.Write(record); err != nil {
			return nil, domain.ErrExport("write row: %v", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrExport("read table %q: %v", table.Name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, domain.ErrExport("flush csv: %v", err)
	}

	return &domain.ExportArtifact{
		ContentType: csvContentType,
		Filename:    table.Name + ".csv",
		Data:        buf.Bytes(),
	}, nil
}

// formatValue renders one cell. Nulls are empty fields, never the literal
// string "null"; numbers round-trip through strconv.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
