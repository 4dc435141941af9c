package insights

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/domain"
)

type fakeModel struct {
	response string
	errs     []error
	calls    int
	lastUser string
}

func (f *fakeModel) Complete(_ context.Context, _, prompt string) (string, error) {
	i := f.calls
	f.calls++
	f.lastUser = prompt
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.response, nil
}

func sampleResult(rows int) *domain.QueryResult {
	res := &domain.QueryResult{Columns: []string{"region", "total"}, RowCount: rows}
	for i := 0; i < rows; i++ {
		res.Rows = append(res.Rows, map[string]any{"region": "west", "total": int64(i)})
	}
	return res
}

func TestSummarize(t *testing.T) {
	m := &fakeModel{response: "West region dominates sales."}
	g := NewGenerator(m, time.Second, 2, 50, slog.Default())

	summary, err := g.Summarize(context.Background(), "SELECT region, total FROM sales", sampleResult(3))
	require.NoError(t, err)
	assert.Equal(t, "West region dominates sales.", summary)
	assert.Contains(t, m.lastUser, "Columns: region, total")
	assert.Contains(t, m.lastUser, "Total rows: 3")
}

func TestSummarizeBoundsSampleRows(t *testing.T) {
	m := &fakeModel{response: "ok"}
	g := NewGenerator(m, time.Second, 0, 5, slog.Default())

	_, err := g.Summarize(context.Background(), "", sampleResult(100))
	require.NoError(t, err)

	assert.Contains(t, m.lastUser, "Sample rows (5 of 100):")
	// 5 sample lines, never the full result.
	assert.Equal(t, 5, strings.Count(m.lastUser, "region=west"))
}

func TestSummarizeRetriesThenSucceeds(t *testing.T) {
	m := &fakeModel{response: "fine", errs: []error{errors.New("boom")}}
	g := NewGenerator(m, time.Second, 2, 50, slog.Default())

	summary, err := g.Summarize(context.Background(), "", sampleResult(1))
	require.NoError(t, err)
	assert.Equal(t, "fine", summary)
	assert.Equal(t, 2, m.calls)
}

func TestSummarizeModelError(t *testing.T) {
	m := &fakeModel{errs: []error{errors.New("boom"), errors.New("boom")}}
	g := NewGenerator(m, time.Second, 1, 50, slog.Default())

	_, err := g.Summarize(context.Background(), "", sampleResult(1))
	var ie *domain.InsightsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.ReasonModelError, ie.Reason)
}

func TestSummarizeEmptyResult(t *testing.T) {
	g := NewGenerator(&fakeModel{response: "x"}, time.Second, 0, 50, slog.Default())

	_, err := g.Summarize(context.Background(), "", &domain.QueryResult{})
	var ie *domain.InsightsError
	require.ErrorAs(t, err, &ie)
}
