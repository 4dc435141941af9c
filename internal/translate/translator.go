package translate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"querydesk/internal/domain"
)

// retryBase is the first fibonacci backoff interval between model calls.
const retryBase = 500 * time.Millisecond

// Translator produces one candidate SQL statement for a question. Only
// transport and timeout failures are retried; an answer that parses but is
// wrong SQL is the validator's problem, not a reason to call the model
// again.
type Translator struct {
	model      domain.LanguageModel
	timeout    time.Duration
	maxRetries uint64
	logger     *slog.Logger
}

func NewTranslator(model domain.LanguageModel, timeout time.Duration, maxRetries int, logger *slog.Logger) *Translator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Translator{
		model:      model,
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		logger:     logger.With("component", "translator"),
	}
}

// Translate builds the prompt from the snapshot, calls the model, and
// extracts a single statement from the output.
func (t *Translator) Translate(ctx context.Context, question string, schema *domain.Schema) (string, error) {
	if schema.IsEmpty() {
		return "", domain.ErrTranslation(domain.ReasonNoTables, "no tables have been uploaded yet")
	}

	prompt := BuildPrompt(question, schema)
	raw, err := t.complete(ctx, SystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	sql, err := ExtractSQL(raw)
	if err != nil {
		t.logger.Warn("unusable model output", "error", err)
		return "", err
	}
	return sql, nil
}

// complete runs one model call with the per-attempt timeout and bounded
// fibonacci retries.
func (t *Translator) complete(ctx context.Context, system, prompt string) (string, error) {
	var out string

	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewFibonacci(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		resp, err := t.model.Complete(attemptCtx, system, prompt)
		if err != nil {
			// The caller going away ends the attempt loop; everything else
			// is a transport problem worth another try.
			if ctx.Err() != nil {
				return err
			}
			t.logger.Warn("model call failed", "error", err)
			return retry.RetryableError(err)
		}
		out = resp
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.ErrTranslation(domain.ReasonModelTimeout, "model did not answer within %s", t.timeout)
		}
		return "", domain.ErrTranslation(domain.ReasonModelError, "model call failed: %v", err)
	}
	return out, nil
}
