package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"querydesk/internal/domain"
)

// retentionSchedule runs the sweep shortly after midnight, off the hour.
const retentionSchedule = "10 0 * * *"

// RetentionSweeper prunes old query history on a nightly schedule.
type RetentionSweeper struct {
	history domain.HistoryRepository
	days    int
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewRetentionSweeper(history domain.HistoryRepository, days int, logger *slog.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		history: history,
		days:    days,
		cron:    cron.New(),
		logger:  logger.With("component", "retention"),
	}
}

// Start runs one sweep immediately, then schedules the nightly job.
func (r *RetentionSweeper) Start() error {
	r.sweep()
	if _, err := r.cron.AddFunc(retentionSchedule, r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *RetentionSweeper) Stop() {
	<-r.cron.Stop().Done()
}

func (r *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := r.history.DeleteOlderThan(ctx, r.days)
	if err != nil {
		r.logger.Error("history sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("history pruned", "removed", n, "retention_days", r.days)
	}
}
