package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/db"
	"querydesk/internal/domain"
)

func newTestExecutor(t *testing.T, rowCap int) *Executor {
	t.Helper()
	store, err := db.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Exec(`CREATE TABLE items (id BIGINT, name VARCHAR, price DOUBLE)`)
	require.NoError(t, err)
	_, err = store.Exec(`INSERT INTO items VALUES
		(1, 'alpha', 1.5), (2, 'beta', 2.5), (3, NULL, NULL), (4, 'delta', 4.0)`)
	require.NoError(t, err)

	return New(store, 5*time.Second, rowCap, slog.Default())
}

func TestExecuteShapesRows(t *testing.T) {
	ex := newTestExecutor(t, 100)

	res, err := ex.Execute(context.Background(), `SELECT id, name, price FROM items ORDER BY id`)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "price"}, res.Columns)
	assert.Equal(t, 4, res.RowCount)
	assert.False(t, res.Truncated)

	assert.Equal(t, "alpha", res.Rows[0]["name"])
	assert.Equal(t, 2.5, res.Rows[1]["price"])
	// NULLs come through as nil, not zero values.
	assert.Nil(t, res.Rows[2]["name"])
	assert.Nil(t, res.Rows[2]["price"])
}

func TestExecuteTruncatesAtRowCap(t *testing.T) {
	ex := newTestExecutor(t, 2)

	res, err := ex.Execute(context.Background(), `SELECT id FROM items ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecuteExactCapIsNotTruncated(t *testing.T) {
	ex := newTestExecutor(t, 4)

	res, err := ex.Execute(context.Background(), `SELECT id FROM items`)
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowCount)
	assert.False(t, res.Truncated)
}

func TestExecuteParenthesizedUnion(t *testing.T) {
	ex := newTestExecutor(t, 100)

	res, err := ex.Execute(context.Background(),
		`(SELECT id FROM items WHERE id = 1) UNION (SELECT id FROM items WHERE id = 2) LIMIT 101`)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
}

func TestExecuteTimeout(t *testing.T) {
	ex := newTestExecutor(t, 100)
	slow := New(ex.db, time.Millisecond, 100, slog.Default())

	_, err := slow.Execute(context.Background(),
		`SELECT count(*) FROM range(2000000) a, range(2000000) b`)
	var ee *domain.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, domain.ReasonTimeout, ee.Reason)
}

func TestExecuteRuntimeError(t *testing.T) {
	ex := newTestExecutor(t, 100)

	_, err := ex.Execute(context.Background(), `SELECT CAST(name AS BIGINT) FROM items`)
	var ee *domain.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, domain.ReasonRuntimeError, ee.Reason)
}

func TestExecuteRefusesNonRead(t *testing.T) {
	ex := newTestExecutor(t, 100)

	_, err := ex.Execute(context.Background(), `DELETE FROM items`)
	var ee *domain.ExecutionError
	require.ErrorAs(t, err, &ee)

	// Data untouched.
	res, err := ex.Execute(context.Background(), `SELECT count(*) AS n FROM items`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)
}

func TestExecuteEmptyResult(t *testing.T) {
	ex := newTestExecutor(t, 100)

	res, err := ex.Execute(context.Background(), `SELECT id FROM items WHERE id > 100`)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestTableExists(t *testing.T) {
	ex := newTestExecutor(t, 100)

	ok, err := ex.TableExists(context.Background(), "items")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ex.TableExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
