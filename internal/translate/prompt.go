// Package translate turns natural language questions into candidate SQL via
// an external language model. It owns the prompt contract, the retry and
// timeout policy, and the extraction of one statement from the raw output.
package translate

import (
	"fmt"
	"strings"

	"querydesk/internal/domain"
)

// SystemPrompt is the persona sent with every translation request.
const SystemPrompt = "You are a SQL expert. Convert natural language to SQL queries."

// BuildPrompt renders the full translation prompt for one question against
// a schema snapshot. The prompt embeds structure only, never data rows, and
// is deterministic for a given question and snapshot.
func BuildPrompt(question string, schema *domain.Schema) string {
	var b strings.Builder
	b.WriteString("Given the following database schema:\n\n")
	b.WriteString(FormatSchema(schema))
	b.WriteString("\nConvert this natural language query to SQL: \"")
	b.WriteString(question)
	b.WriteString("\"\n\nRules:\n")
	b.WriteString("- Return ONLY the SQL query, no explanations\n")
	b.WriteString("- Use proper DuckDB syntax\n")
	b.WriteString("- Return a single SELECT statement\n")
	b.WriteString("- Be careful with column names and table names\n")
	b.WriteString("- If the query is ambiguous, make reasonable assumptions\n")
	b.WriteString("- For multi-table queries, use proper JOIN conditions to avoid Cartesian products\n")
	b.WriteString("- When joining tables, use meaningful relationships between tables\n")
	b.WriteString("\nSQL Query:")
	return b.String()
}

// FormatSchema renders the snapshot as prompt text, tables in lexical order
// so the output is stable.
func FormatSchema(schema *domain.Schema) string {
	var b strings.Builder
	for _, name := range schema.TableNames() {
		t, _ := schema.Lookup(name)
		fmt.Fprintf(&b, "Table: %s\nColumns:\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "Row count: %d\n\n", t.RowCount)
	}
	return b.String()
}
