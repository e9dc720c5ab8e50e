package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

// ReportWarmer builds the cached accounting reports.
type ReportWarmer interface {
	MonthlySummary(ctx context.Context, year int) ([]reports.MonthlyRow, error)
	TaxSummary(ctx context.Context, year int) (reports.TaxSummary, error)
	ProfitLoss(ctx context.Context, start, end time.Time) (reports.ProfitLoss, error)
	Today() time.Time
}

// ReportsWarmupJob pre-populates the report cache for a year.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(warmer ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: warmer, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes report warmup tasks. The yearly reports and the
// year-to-date statement are built concurrently.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := decodePayload(t, &payload); err != nil {
		return fmt.Errorf("reports warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	today := j.Reports.Today()
	if payload.Year == 0 {
		payload.Year = today.Year()
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("year", payload.Year))
	start := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	yearStart := time.Date(payload.Year, time.January, 1, 0, 0, 0, 0, today.Location())
	yearEnd := time.Date(payload.Year, time.December, 31, 0, 0, 0, 0, today.Location())
	if payload.Year == today.Year() {
		yearEnd = today
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := j.Reports.MonthlySummary(gctx, payload.Year)
		return err
	})
	g.Go(func() error {
		_, err := j.Reports.TaxSummary(gctx, payload.Year)
		return err
	})
	g.Go(func() error {
		_, err := j.Reports.ProfitLoss(gctx, yearStart, yearEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("reports warmup failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed reports warmup", slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
