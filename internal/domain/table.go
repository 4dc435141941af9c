// Package domain defines core types, interfaces, and errors for querydesk.
package domain

import (
	"sort"
	"strings"
	"time"
)

// ColumnType is the inferred storage type of an uploaded column.
type ColumnType string

// Column types, ordered from most to least specific. A column that cannot
// be classified as one of the stricter types falls back to text.
const (
	TypeBoolean ColumnType = "boolean"
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeText    ColumnType = "text"
)

// DuckDBType maps an inferred column type to the DuckDB column type used
// when the table is created in the data store.
func (t ColumnType) DuckDBType() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

// Column describes one column of a registered table.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is the registry entry for one uploaded table. Tables are immutable
// once registered; re-uploading under the same name replaces the entry
// atomically.
type Table struct {
	Name           string    `json:"name"`
	Columns        []Column  `json:"columns"`
	RowCount       int64     `json:"row_count"`
	SourceFileName string    `json:"source_file_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasColumn reports whether the table has a column with the given name.
// Column names are matched case-insensitively, like the SQL engine does.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cp := *t
	cp.Columns = make([]Column, len(t.Columns))
	copy(cp.Columns, t.Columns)
	return &cp
}

// Schema is an immutable snapshot of the registry, keyed by lowercase table
// name. Translation and validation always work against one snapshot so a
// concurrent upload cannot change the ground truth mid-flight.
type Schema struct {
	Tables map[string]*Table
}

// Lookup resolves a table by name, case-insensitively.
func (s *Schema) Lookup(name string) (*Table, bool) {
	t, ok := s.Tables[strings.ToLower(name)]
	return t, ok
}

// IsEmpty reports whether the snapshot contains no tables.
func (s *Schema) IsEmpty() bool {
	return len(s.Tables) == 0
}

// TableNames returns the registered table names in lexical order of their
// lowercase keys.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
