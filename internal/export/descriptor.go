package export

import (
	"time"

	"querydesk/internal/domain"
)

// ColumnDescriptor is one column as shown to the UI.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableDescriptor is one table as shown to the UI.
type TableDescriptor struct {
	Name           string             `json:"name"`
	Columns        []ColumnDescriptor `json:"columns"`
	RowCount       int64              `json:"row_count"`
	SourceFileName string             `json:"source_file_name"`
	CreatedAt      time.Time          `json:"created_at"`
}

// SchemaDescriptor is the full catalog as shown to the UI.
type SchemaDescriptor struct {
	Tables []TableDescriptor `json:"tables"`
}

// DescribeSchema renders a snapshot for UI consumption, tables in lexical
// order.
func DescribeSchema(schema *domain.Schema) *SchemaDescriptor {
	desc := &SchemaDescriptor{Tables: []TableDescriptor{}}
	for _, name := range schema.TableNames() {
		t, _ := schema.Lookup(name)
		desc.Tables = append(desc.Tables, DescribeTable(t))
	}
	return desc
}

// DescribeTable renders one table for UI consumption.
func DescribeTable(t *domain.Table) TableDescriptor {
	cols := make([]ColumnDescriptor, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ColumnDescriptor{Name: c.Name, Type: string(c.Type)}
	}
	return TableDescriptor{
		Name:           t.Name,
		Columns:        cols,
		RowCount:       t.RowCount,
		SourceFileName: t.SourceFileName,
		CreatedAt:      t.CreatedAt,
	}
}
