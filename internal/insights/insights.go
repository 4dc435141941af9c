// Package insights produces a short natural-language summary of a query
// result. It is an optional enhancement: a failure here never aborts the
// query flow that produced the rows.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"querydesk/internal/domain"
)

const systemPrompt = "You are a data analyst. Summarize query results clearly and concisely for a business audience."

const retryBase = 500 * time.Millisecond

// Generator summarizes query results through the language model, embedding
// at most sampleRows rows in the prompt to bound cost.
type Generator struct {
	model      domain.LanguageModel
	timeout    time.Duration
	maxRetries uint64
	sampleRows int
	logger     *slog.Logger
}

func NewGenerator(model domain.LanguageModel, timeout time.Duration, maxRetries, sampleRows int, logger *slog.Logger) *Generator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Generator{
		model:      model,
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		sampleRows: sampleRows,
		logger:     logger.With("component", "insights"),
	}
}

// Summarize asks the model for a summary of the result. The prompt carries
// the column names, the row count, and a bounded sample of rows.
func (g *Generator) Summarize(ctx context.Context, sql string, res *domain.QueryResult) (string, error) {
	if res == nil || len(res.Columns) == 0 {
		return "", domain.ErrInsights(domain.ReasonModelError, "nothing to summarize")
	}

	prompt := g.buildPrompt(sql, res)

	var out string
	backoff := retry.WithMaxRetries(g.maxRetries, retry.NewFibonacci(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.model.Complete(attemptCtx, systemPrompt, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			g.logger.Warn("model call failed", "error", err)
			return retry.RetryableError(err)
		}
		out = resp
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.ErrInsights(domain.ReasonModelTimeout, "model did not answer within %s", g.timeout)
		}
		return "", domain.ErrInsights(domain.ReasonModelError, "model call failed: %v", err)
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", domain.ErrInsights(domain.ReasonModelError, "model returned an empty summary")
	}
	return summary, nil
}

func (g *Generator) buildPrompt(sql string, res *domain.QueryResult) string {
	var b strings.Builder
	b.WriteString("Summarize the following query results in 2-3 sentences. ")
	b.WriteString("Mention notable values, ranges, or patterns.\n\n")
	if sql != "" {
		fmt.Fprintf(&b, "Query: %s\n\n", sql)
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(res.Columns, ", "))
	fmt.Fprintf(&b, "Total rows: %d\n\n", res.RowCount)

	n := len(res.Rows)
	if n > g.sampleRows {
		n = g.sampleRows
	}
	if n > 0 {
		fmt.Fprintf(&b, "Sample rows (%d of %d):\n", n, res.RowCount)
		for _, row := range res.Rows[:n] {
			parts := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				parts[i] = fmt.Sprintf("%s=%v", col, row[col])
			}
			b.WriteString(strings.Join(parts, ", "))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
