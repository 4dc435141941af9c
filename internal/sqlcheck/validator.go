// Package sqlcheck is the sole gate between generated SQL and the executor.
// It parses candidate statements into a real AST and rejects anything that
// is not a single SELECT over registered tables and columns.
package sqlcheck

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"querydesk/internal/domain"
)

// Validator checks candidate statements against a schema snapshot. A nil
// error means the returned statement is safe to hand to the executor.
type Validator struct {
	parser *sqlparser.Parser
	rowCap int
}

// New builds a Validator enforcing the given result row cap.
func New(rowCap int) (*Validator, error) {
	p, err := sqlparser.New(sqlparser.Options{})
	if err != nil {
		return nil, fmt.Errorf("init sql parser: %w", err)
	}
	return &Validator{parser: p, rowCap: rowCap}, nil
}

// Validate checks sql against the snapshot and returns the statement to
// execute. When the outermost statement has no LIMIT, one is appended at
// rowCap+1 so the executor can detect truncation; the original text is
// otherwise passed through untouched.
func (v *Validator) Validate(sql string, schema *domain.Schema) (string, error) {
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if sql == "" {
		return "", domain.ErrValidation(domain.ReasonParseError, "empty statement")
	}

	pieces, err := v.parser.SplitStatementToPieces(sql)
	if err != nil {
		return "", domain.ErrValidation(domain.ReasonParseError, "cannot split statement: %v", err)
	}
	if countNonEmpty(pieces) > 1 {
		return "", domain.ErrValidation(domain.ReasonMultipleStatements, "only one statement is allowed")
	}

	stmt, err := v.parser.Parse(sql)
	if err != nil {
		return "", domain.ErrValidation(domain.ReasonParseError, "cannot parse statement: %v", err)
	}

	var hasLimit bool
	switch s := stmt.(type) {
	case *sqlparser.Select:
		if s.Into != nil {
			return "", domain.ErrValidation(domain.ReasonNotSelect, "SELECT INTO is not allowed")
		}
		hasLimit = s.Limit != nil
	case *sqlparser.Union:
		hasLimit = s.Limit != nil
	default:
		return "", domain.ErrValidation(domain.ReasonNotSelect,
			"only SELECT statements are allowed, got %s", statementKind(stmt))
	}

	refs, err := collectReferences(stmt)
	if err != nil {
		return "", err
	}
	if err := v.checkTables(refs, schema); err != nil {
		return "", err
	}
	if err := v.checkColumns(stmt, refs, schema); err != nil {
		return "", err
	}

	if !hasLimit {
		sql = fmt.Sprintf("%s LIMIT %d", sql, v.rowCap+1)
	}
	return sql, nil
}

// references holds everything collected from one walk over the AST that is
// needed to resolve names.
type references struct {
	// tables are physical table names referenced anywhere in the statement.
	tables []string
	// aliases maps table aliases (or the bare table name when no alias is
	// given) to the physical table, lowercased on both sides.
	aliases map[string]string
	// virtual holds CTE names and derived table aliases, whose columns
	// cannot be resolved against the catalog.
	virtual map[string]bool
	// selectAliases are output aliases usable in ORDER BY and HAVING.
	selectAliases map[string]bool
}

func collectReferences(stmt sqlparser.Statement) (*references, error) {
	refs := &references{
		aliases:       make(map[string]string),
		virtual:       make(map[string]bool),
		selectAliases: make(map[string]bool),
	}

	err := sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.CommonTableExpr:
			refs.virtual[strings.ToLower(n.ID.String())] = true
		case *sqlparser.AliasedTableExpr:
			switch expr := n.Expr.(type) {
			case sqlparser.TableName:
				name := expr.Name.String()
				key := strings.ToLower(name)
				alias := key
				if !n.As.IsEmpty() {
					alias = strings.ToLower(n.As.String())
				}
				if refs.virtual[key] {
					refs.virtual[alias] = true
					return true, nil
				}
				refs.tables = append(refs.tables, name)
				refs.aliases[alias] = key
			case *sqlparser.DerivedTable:
				if !n.As.IsEmpty() {
					refs.virtual[strings.ToLower(n.As.String())] = true
				}
			}
		case *sqlparser.AliasedExpr:
			if !n.As.IsEmpty() {
				refs.selectAliases[strings.ToLower(n.As.String())] = true
			}
		}
		return true, nil
	}, stmt)
	if err != nil {
		return nil, domain.ErrValidation(domain.ReasonParseError, "cannot inspect statement: %v", err)
	}
	return refs, nil
}

func (v *Validator) checkTables(refs *references, schema *domain.Schema) error {
	for _, name := range refs.tables {
		if _, ok := schema.Lookup(name); !ok {
			return domain.ErrValidation(domain.ReasonUnknownTable, "unknown table %q", name)
		}
	}
	return nil
}

// checkColumns resolves every column reference. Qualified references are
// checked against the table their qualifier resolves to; unqualified ones
// must exist on at least one referenced table. Columns inside or against
// CTEs and derived tables cannot be resolved statically and are skipped.
func (v *Validator) checkColumns(stmt sqlparser.Statement, refs *references, schema *domain.Schema) error {
	hasVirtual := len(refs.virtual) > 0

	return sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		col, ok := node.(*sqlparser.ColName)
		if !ok {
			return true, nil
		}
		name := col.Name.String()

		if qual := col.Qualifier.Name.String(); qual != "" {
			key := strings.ToLower(qual)
			if refs.virtual[key] {
				return true, nil
			}
			tableName, ok := refs.aliases[key]
			if !ok {
				return false, domain.ErrValidation(domain.ReasonUnknownTable, "unknown table or alias %q", qual)
			}
			t, ok := schema.Lookup(tableName)
			if !ok {
				return false, domain.ErrValidation(domain.ReasonUnknownTable, "unknown table %q", tableName)
			}
			if !t.HasColumn(name) {
				return false, domain.ErrValidation(domain.ReasonUnknownColumn,
					"table %q has no column %q", t.Name, name)
			}
			return true, nil
		}

		if refs.selectAliases[strings.ToLower(name)] {
			return true, nil
		}
		if hasVirtual {
			// An unqualified name may belong to a CTE or derived relation.
			return true, nil
		}
		for _, tableName := range refs.aliases {
			if t, ok := schema.Lookup(tableName); ok && t.HasColumn(name) {
				return true, nil
			}
		}
		return false, domain.ErrValidation(domain.ReasonUnknownColumn,
			"no referenced table has a column %q", name)
	}, stmt)
}

func countNonEmpty(pieces []string) int {
	n := 0
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func statementKind(stmt sqlparser.Statement) string {
	switch stmt.(type) {
	case *sqlparser.Insert:
		return "INSERT"
	case *sqlparser.Update:
		return "UPDATE"
	case *sqlparser.Delete:
		return "DELETE"
	case *sqlparser.CreateTable, *sqlparser.CreateView, *sqlparser.CreateDatabase:
		return "CREATE"
	case *sqlparser.DropTable, *sqlparser.DropView, *sqlparser.DropDatabase:
		return "DROP"
	case *sqlparser.AlterTable, *sqlparser.AlterView, *sqlparser.AlterDatabase:
		return "ALTER"
	default:
		return "a non-SELECT statement"
	}
}
