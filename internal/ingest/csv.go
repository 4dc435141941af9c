// Package ingest parses uploaded CSV files, infers column types, and loads
// the data into the embedded store.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"querydesk/internal/domain"
)

// Dataset is a fully parsed upload: columns with inferred types and rows
// converted to typed Go values. Empty cells become nil.
type Dataset struct {
	Columns []domain.Column
	Rows    [][]any
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int64 { return int64(len(d.Rows)) }

// Parse reads an entire CSV document. The first record is the header; every
// data record must have the same number of fields. Type inference runs over
// all rows per column: a column is boolean, integer, or float only when
// every non-empty cell parses as such, otherwise it is text.
func Parse(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, domain.ErrUpload("file is empty")
	}
	if err != nil {
		return nil, domain.ErrUpload("malformed CSV header: %v", err)
	}

	var raw [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.ErrUpload("malformed CSV: %v", err)
		}
		raw = append(raw, rec)
	}

	names := headerNames(header)
	columns := make([]domain.Column, len(names))
	for i, name := range names {
		columns[i] = domain.Column{Name: name, Type: inferColumnType(raw, i)}
	}

	rows := make([][]any, len(raw))
	for ri, rec := range raw {
		row := make([]any, len(columns))
		for ci := range columns {
			v, err := convertCell(rec[ci], columns[ci].Type)
			if err != nil {
				return nil, domain.ErrUpload("row %d, column %q: %v", ri+1, columns[ci].Name, err)
			}
			row[ci] = v
		}
		rows[ri] = row
	}

	return &Dataset{Columns: columns, Rows: rows}, nil
}

// headerNames sanitizes header cells into usable column names. Blank cells
// get positional names and duplicates get a numeric suffix.
func headerNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := SanitizeIdentifier(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			base := name
			// The suffixed name can itself collide with another header
			// cell, so keep counting until a free one turns up.
			for {
				n++
				name = fmt.Sprintf("%s_%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name]++
		names[i] = name
	}
	return names
}

func inferColumnType(rows [][]string, col int) domain.ColumnType {
	couldBeBool, couldBeInt, couldBeFloat := true, true, true
	saw := false
	for _, rec := range rows {
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		saw = true
		if couldBeBool && !isBool(cell) {
			couldBeBool = false
		}
		if couldBeInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				couldBeInt = false
			}
		}
		if couldBeFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				couldBeFloat = false
			}
		}
		if !couldBeBool && !couldBeInt && !couldBeFloat {
			return domain.TypeText
		}
	}
	if !saw {
		return domain.TypeText
	}
	switch {
	case couldBeBool:
		return domain.TypeBoolean
	case couldBeInt:
		return domain.TypeInteger
	case couldBeFloat:
		return domain.TypeFloat
	default:
		return domain.TypeText
	}
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

func convertCell(cell string, t domain.ColumnType) (any, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil, nil
	}
	switch t {
	case domain.TypeBoolean:
		return strings.EqualFold(trimmed, "true"), nil
	case domain.TypeInteger:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", cell)
		}
		return v, nil
	case domain.TypeFloat:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", cell)
		}
		return v, nil
	default:
		return cell, nil
	}
}

// SanitizeIdentifier turns an arbitrary string into a safe SQL identifier:
// lowercase, runs of disallowed characters collapsed to underscores, and a
// leading letter guaranteed.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128, r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return out
}

// TableNameFromFilename derives a table name from an uploaded filename by
// stripping the extension and sanitizing the rest.
func TableNameFromFilename(filename string) (string, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := SanitizeIdentifier(base)
	if name == "" {
		return "", domain.ErrUpload("cannot derive a table name from %q", filename)
	}
	return name, nil
}
