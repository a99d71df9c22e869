package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fieldline/fieldline/internal/jobs"
)

// OverdueSweeper flips past-due invoices to overdue.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// OverdueSweepJob runs the daily overdue sweep.
type OverdueSweepJob struct {
	Sweeper OverdueSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverdueSweepJob initialises the sweep handler.
func NewOverdueSweepJob(sweeper OverdueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	start := time.Now()
	tracker := j.Metrics.Track(TaskInvoiceOverdueSweep)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n, err := j.Sweeper.SweepOverdue(ctx)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddItems(TaskInvoiceOverdueSweep, n)
	logger.Info("overdue sweep completed",
		slog.Int64("invoices", n),
		slog.Duration("duration", time.Since(start)))
	return nil
}
