package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/db"
	"querydesk/internal/domain"
	"querydesk/internal/engine"
	"querydesk/internal/registry"
	"querydesk/internal/sqlcheck"
	"querydesk/internal/translate"
)

type fakeModel struct {
	response string
	calls    int
}

func (f *fakeModel) Complete(context.Context, string, string) (string, error) {
	f.calls++
	return f.response, nil
}

type memHistory struct {
	entries []domain.HistoryEntry
}

func (m *memHistory) Insert(_ context.Context, e *domain.HistoryEntry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memHistory) List(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]domain.HistoryEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memHistory) DeleteOlderThan(context.Context, int) (int64, error) { return 0, nil }

type memTableRepo struct{}

func (memTableRepo) Upsert(context.Context, *domain.Table) error   { return nil }
func (memTableRepo) Delete(context.Context, string) error          { return nil }
func (memTableRepo) List(context.Context) ([]*domain.Table, error) { return nil, nil }

func newPipeline(t *testing.T, modelOutput string) (*QueryService, *memHistory, *fakeModel) {
	t.Helper()

	store, err := db.OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Exec(`CREATE TABLE sales (region VARCHAR, amount DOUBLE)`)
	require.NoError(t, err)
	_, err = store.Exec(`INSERT INTO sales VALUES ('west', 10), ('east', 20), ('west', 5)`)
	require.NoError(t, err)

	logger := slog.Default()
	reg := registry.New(memTableRepo{}, logger)
	require.NoError(t, reg.Register(context.Background(), &domain.Table{
		Name: "sales",
		Columns: []domain.Column{
			{Name: "region", Type: domain.TypeText},
			{Name: "amount", Type: domain.TypeFloat},
		},
		RowCount: 3,
	}))

	model := &fakeModel{response: modelOutput}
	translator := translate.NewTranslator(model, time.Second, 0, logger)
	validator, err := sqlcheck.New(100)
	require.NoError(t, err)
	executor := engine.New(store, time.Second, 100, logger)
	history := &memHistory{}

	return NewQueryService(reg, translator, validator, executor, history, logger), history, model
}

func TestRunFullPipeline(t *testing.T) {
	svc, history, _ := newPipeline(t, "```sql\nSELECT region, sum(amount) AS total FROM sales GROUP BY region ORDER BY total DESC;\n```")

	out, err := svc.Run(context.Background(), "total sales by region")
	require.NoError(t, err)

	assert.Equal(t, "SELECT region, sum(amount) AS total FROM sales GROUP BY region ORDER BY total DESC", out.SQL)
	assert.Equal(t, 2, out.Result.RowCount)
	assert.Equal(t, "east", out.Result.Rows[0]["region"])
	assert.Equal(t, 20.0, out.Result.Rows[0]["total"])
	assert.Equal(t, 15.0, out.Result.Rows[1]["total"])

	require.Len(t, history.entries, 1)
	e := history.entries[0]
	assert.Equal(t, domain.StatusExecuted, e.Status)
	assert.Equal(t, "total sales by region", e.Question)
	assert.Equal(t, int64(2), e.RowCount)
	assert.Empty(t, e.FailureStage)
}

func TestRunRecordsValidationFailure(t *testing.T) {
	svc, history, _ := newPipeline(t, "SELECT nonexistent FROM sales")

	_, err := svc.Run(context.Background(), "bad question")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domain.ReasonUnknownColumn, ve.Reason)

	require.Len(t, history.entries, 1)
	e := history.entries[0]
	assert.Equal(t, domain.StatusFailed, e.Status)
	assert.Equal(t, domain.StageValidation, e.FailureStage)
	assert.Equal(t, "SELECT nonexistent FROM sales", e.GeneratedSQL)
}

func TestRunRecordsTranslationFailure(t *testing.T) {
	svc, history, _ := newPipeline(t, "   ")

	_, err := svc.Run(context.Background(), "empty answer")
	var te *domain.TranslationError
	require.ErrorAs(t, err, &te)

	require.Len(t, history.entries, 1)
	assert.Equal(t, domain.StageTranslation, history.entries[0].FailureStage)
	assert.Empty(t, history.entries[0].GeneratedSQL)
}

func TestRunRejectsWriteStatement(t *testing.T) {
	svc, history, _ := newPipeline(t, "DELETE FROM sales")

	_, err := svc.Run(context.Background(), "delete everything")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domain.ReasonNotSelect, ve.Reason)
	require.Len(t, history.entries, 1)
	assert.Equal(t, domain.StageValidation, history.entries[0].FailureStage)
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, _, _ := newPipeline(t, "SELECT region FROM sales")

	_, err := svc.Run(context.Background(), "first")
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), "second")
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Question)
}

func TestFailureStage(t *testing.T) {
	assert.Equal(t, domain.StageTranslation, FailureStage(domain.ErrTranslation(domain.ReasonModelError, "x")))
	assert.Equal(t, domain.StageValidation, FailureStage(domain.ErrValidation(domain.ReasonUnknownTable, "x")))
	assert.Equal(t, domain.StageExecution, FailureStage(domain.ErrExecution(domain.ReasonTimeout, "x")))
	assert.Empty(t, FailureStage(context.Canceled))
}
