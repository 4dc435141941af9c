// Package service orchestrates the translation pipeline and the
// housekeeping jobs around it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"querydesk/internal/domain"
	"querydesk/internal/engine"
	"querydesk/internal/registry"
	"querydesk/internal/sqlcheck"
	"querydesk/internal/translate"
)

// QueryOutcome is what one /query request produces: the generated SQL and
// the executed result.
type QueryOutcome struct {
	SQL    string
	Result *domain.QueryResult
}

// QueryService runs a question through translate, validate, and execute,
// and records every request in the history log whatever the outcome.
type QueryService struct {
	registry   *registry.Registry
	translator *translate.Translator
	validator  *sqlcheck.Validator
	executor   *engine.Executor
	history    domain.HistoryRepository
	logger     *slog.Logger
}

func NewQueryService(
	reg *registry.Registry,
	translator *translate.Translator,
	validator *sqlcheck.Validator,
	executor *engine.Executor,
	history domain.HistoryRepository,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		registry:   reg,
		translator: translator,
		validator:  validator,
		executor:   executor,
		history:    history,
		logger:     logger.With("component", "query"),
	}
}

// Run executes the full pipeline for one question. The schema snapshot is
// taken once, so a concurrent upload cannot change the ground truth between
// translation and validation.
func (s *QueryService) Run(ctx context.Context, question string) (*QueryOutcome, error) {
	start := time.Now()
	snapshot := s.registry.Snapshot()

	candidate, err := s.translator.Translate(ctx, question, snapshot)
	if err != nil {
		s.record(ctx, question, "", FailureStage(err), err, 0, start)
		return nil, err
	}

	execSQL, err := s.validator.Validate(candidate, snapshot)
	if err != nil {
		s.record(ctx, question, candidate, FailureStage(err), err, 0, start)
		return nil, err
	}

	result, err := s.executor.Execute(ctx, execSQL)
	if err != nil {
		s.record(ctx, question, candidate, FailureStage(err), err, 0, start)
		return nil, err
	}

	s.record(ctx, question, candidate, "", nil, result.RowCount, start)
	s.logger.Info("query answered",
		"rows", result.RowCount, "truncated", result.Truncated, "duration", time.Since(start))

	return &QueryOutcome{SQL: candidate, Result: result}, nil
}

// record appends a history entry. History is best-effort; a logging failure
// never fails the request.
func (s *QueryService) record(ctx context.Context, question, sql, stage string, cause error, rows int, start time.Time) {
	entry := &domain.HistoryEntry{
		Question:     question,
		GeneratedSQL: sql,
		Status:       domain.StatusExecuted,
		RowCount:     int64(rows),
		DurationMs:   time.Since(start).Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if cause != nil {
		entry.Status = domain.StatusFailed
		entry.FailureStage = stage
		entry.FailureMsg = cause.Error()
	}

	// Use a detached context so a client disconnect still leaves a record.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Insert(writeCtx, entry); err != nil {
		s.logger.Error("record history", "error", err)
	}
}

// History returns the most recent entries, newest first.
func (s *QueryService) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return s.history.List(ctx, limit)
}

// FailureStage extracts the pipeline stage from a typed pipeline error, or
// empty when the error is not one of ours.
func FailureStage(err error) string {
	var te *domain.TranslationError
	var ve *domain.ValidationError
	var ee *domain.ExecutionError
	switch {
	case errors.As(err, &te):
		return domain.StageTranslation
	case errors.As(err, &ve):
		return domain.StageValidation
	case errors.As(err, &ee):
		return domain.StageExecution
	}
	return ""
}
