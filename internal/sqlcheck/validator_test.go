package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/domain"
)

func testSchema() *domain.Schema {
	return &domain.Schema{Tables: map[string]*domain.Table{
		"orders": {
			Name: "orders",
			Columns: []domain.Column{
				{Name: "id", Type: domain.TypeInteger},
				{Name: "customer_id", Type: domain.TypeInteger},
				{Name: "total", Type: domain.TypeFloat},
				{Name: "created_at", Type: domain.TypeText},
			},
		},
		"customers": {
			Name: "customers",
			Columns: []domain.Column{
				{Name: "id", Type: domain.TypeInteger},
				{Name: "name", Type: domain.TypeText},
			},
		},
	}}
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(100)
	require.NoError(t, err)
	return v
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, reason, ve.Reason)
}

func TestValidateAcceptsSimpleSelect(t *testing.T) {
	v := newValidator(t)
	out, err := v.Validate("SELECT id, total FROM orders", testSchema())
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, total FROM orders LIMIT 101", out)
}

func TestValidatePreservesExistingLimit(t *testing.T) {
	v := newValidator(t)
	out, err := v.Validate("SELECT id FROM orders LIMIT 5", testSchema())
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders LIMIT 5", out)
}

func TestValidateStripsTrailingSemicolon(t *testing.T) {
	v := newValidator(t)
	out, err := v.Validate("SELECT id FROM orders;", testSchema())
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders LIMIT 101", out)
}

func TestValidateAcceptsJoinWithAliases(t *testing.T) {
	v := newValidator(t)
	sql := "SELECT c.name, o.total FROM orders o JOIN customers c ON o.customer_id = c.id"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
}

func TestValidateAcceptsAggregatesAndSelectAlias(t *testing.T) {
	v := newValidator(t)
	sql := "SELECT customer_id, sum(total) AS revenue FROM orders GROUP BY customer_id ORDER BY revenue DESC"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
}

func TestValidateAcceptsUnion(t *testing.T) {
	v := newValidator(t)
	sql := "SELECT id FROM orders UNION SELECT id FROM customers"
	out, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 101")
}

func TestValidateAcceptsParenthesizedUnion(t *testing.T) {
	v := newValidator(t)
	sql := "(SELECT id FROM orders) UNION (SELECT id FROM customers)"
	out, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 101")
}

func TestValidateAcceptsCTE(t *testing.T) {
	v := newValidator(t)
	sql := "WITH big AS (SELECT customer_id, total FROM orders WHERE total > 100) " +
		"SELECT customer_id FROM big"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
}

func TestValidateCTEOverUnknownTableRejected(t *testing.T) {
	v := newValidator(t)
	sql := "WITH big AS (SELECT x FROM missing) SELECT x FROM big"
	_, err := v.Validate(sql, testSchema())
	requireReason(t, err, domain.ReasonUnknownTable)
}

func TestValidateAcceptsDerivedTable(t *testing.T) {
	v := newValidator(t)
	sql := "SELECT t.n FROM (SELECT count(*) AS n FROM orders) t"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
}

func TestValidateUnknownTable(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT id FROM payments", testSchema())
	requireReason(t, err, domain.ReasonUnknownTable)
}

func TestValidateUnknownColumn(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT shipping_cost FROM orders", testSchema())
	requireReason(t, err, domain.ReasonUnknownColumn)
}

func TestValidateUnknownQualifiedColumn(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT o.shipping_cost FROM orders o", testSchema())
	requireReason(t, err, domain.ReasonUnknownColumn)
}

func TestValidateUnknownAlias(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT x.id FROM orders o", testSchema())
	requireReason(t, err, domain.ReasonUnknownTable)
}

func TestValidateColumnNamesAreCaseInsensitive(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT ID, Total FROM Orders", testSchema())
	require.NoError(t, err)
}

func TestValidateRejectsDML(t *testing.T) {
	v := newValidator(t)
	for _, sql := range []string{
		"INSERT INTO orders (id) VALUES (1)",
		"UPDATE orders SET total = 0",
		"DELETE FROM orders",
	} {
		_, err := v.Validate(sql, testSchema())
		requireReason(t, err, domain.ReasonNotSelect)
	}
}

func TestValidateRejectsDDL(t *testing.T) {
	v := newValidator(t)
	for _, sql := range []string{
		"DROP TABLE orders",
		"CREATE TABLE evil (id int)",
		"ALTER TABLE orders ADD COLUMN x int",
	} {
		_, err := v.Validate(sql, testSchema())
		requireReason(t, err, domain.ReasonNotSelect)
	}
}

func TestValidateRejectsMultipleStatements(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("SELECT id FROM orders; DROP TABLE orders", testSchema())
	requireReason(t, err, domain.ReasonMultipleStatements)
}

func TestValidateRejectsUnparseable(t *testing.T) {
	v := newValidator(t)
	for _, sql := range []string{
		"SELECT FROM WHERE",
		"PRAGMA table_info(orders)",
		"ATTACH ':memory:' AS other",
		"",
	} {
		_, err := v.Validate(sql, testSchema())
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "input %q", sql)
	}
}

func TestValidateDDLKeywordInsideLiteralAllowed(t *testing.T) {
	v := newValidator(t)
	// Keyword checks are structural; a data value containing "DROP" passes.
	sql := "SELECT id FROM orders WHERE created_at = 'DROP TABLE'"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)
}

func TestValidateSubqueryColumnsChecked(t *testing.T) {
	v := newValidator(t)
	sql := "SELECT name FROM customers WHERE id IN (SELECT customer_id FROM orders)"
	_, err := v.Validate(sql, testSchema())
	require.NoError(t, err)

	_, err = v.Validate("SELECT name FROM customers WHERE id IN (SELECT nope FROM orders)", testSchema())
	requireReason(t, err, domain.ReasonUnknownColumn)
}
