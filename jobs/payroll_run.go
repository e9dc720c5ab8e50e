package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/payroll"
)

// PayrollRunner pays every pending salary of a period.
type PayrollRunner interface {
	PayAllSalaries(ctx context.Context, input payroll.PayAllInput) (payroll.PayAllResult, error)
}

// PayrollRunJob executes the scheduled monthly payroll.
type PayrollRunJob struct {
	Payroll PayrollRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPayrollRunJob wires dependencies for the payroll handler.
func NewPayrollRunJob(runner PayrollRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PayrollRunJob {
	return &PayrollRunJob{Payroll: runner, Logger: logger, Metrics: metrics}
}

// Handle processes payroll run tasks. A period without unpaid salaries is a
// successful no-op so retries and overlapping schedules stay harmless.
func (j *PayrollRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Payroll == nil {
		return errors.New("payroll run: handler not configured")
	}
	var payload PayrollRunPayload
	if err := decodePayload(t, &payload); err != nil {
		return fmt.Errorf("payroll run: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	input := payroll.PayAllInput{}
	if payload.Period != "" {
		period, err := ledger.ParsePeriod(payload.Period)
		if err != nil {
			return fmt.Errorf("payroll run: %v: %w", err, asynq.SkipRetry)
		}
		input.Period = &period
	}

	tracker := j.metrics().Track(TaskPayrollRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("period", payload.Period))
	res, err := j.Payroll.PayAllSalaries(ctx, input)
	switch {
	case errors.Is(err, ledger.ErrNothingToDo):
		logger.Info("payroll run skipped", slog.String("reason", ledger.UserMessage(err)))
		return nil
	case errors.Is(err, ledger.ErrValidation):
		resultErr = err
		logger.Error("payroll run rejected", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		resultErr = err
		logger.Error("payroll run failed", slog.Any("error", err))
		return err
	}
	logger.Info("payroll run completed",
		slog.String("period", res.Period.String()),
		slog.Int("paid", res.PaidCount),
		slog.String("total_net", res.TotalNet.StringFixed(2)),
	)
	return nil
}

func (j *PayrollRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPayrollRun))
	}
	return slog.Default().With(slog.String("job", TaskPayrollRun))
}

func (j *PayrollRunJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
