package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/customers"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/payroll"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

const warmupCron = "30 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close(logger)

	clock := ledger.SystemClock{}
	loc := cfg.Location()
	ledgerMetrics := observability.NewLedgerMetrics(prometheus.DefaultRegisterer)
	jobMetrics := jobmetrics.NewMetrics(nil)

	payrollService := payroll.NewService(payroll.NewRepository(rt.Pool, rt.Runner, rt.Activity), rt.Cache, ledgerMetrics, clock, loc, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(rt.Pool, rt.Runner, rt.Activity), rt.Cache, nil, clock, logger)
	customersService := customers.NewService(customers.NewRepository(rt.Pool, rt.Runner, rt.Activity), rt.Cache, clock, logger)
	accountingService := accounting.NewService(
		accounting.NewRepository(rt.Pool, rt.Runner, rt.Activity, loc),
		rt.Cache, ledgerMetrics, cfg.AccountingOptions(), clock, logger,
	)

	payrollJob := jobs.NewPayrollRunJob(payrollService, logger, jobMetrics)
	notifyJob := jobs.NewNotifyScanJob(inventoryService, customersService, jobs.PGNotificationStore{Pool: rt.Pool}, logger, jobMetrics)
	warmupJob := jobs.NewReportsWarmupJob(accountingService, logger, jobMetrics)

	payrollTask, err := jobs.NewPayrollRunTask(jobs.PayrollRunPayload{})
	if err != nil {
		logger.Error("build payroll task", slog.Any("error", err))
		os.Exit(1)
	}
	notifyTask, err := jobs.NewNotifyScanTask(jobs.NotifyScanPayload{Reason: "schedule"})
	if err != nil {
		logger.Error("build notify task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportsWarmupTask(jobs.ReportsWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	cron := []jobs.CronRegistration{
		{Spec: warmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
	}
	if cfg.PayrollCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.PayrollCron, Task: payrollTask})
	}
	if cfg.NotifyCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.NotifyCron, Task: notifyTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPayrollRun, Handler: payrollJob.Handle},
			{Type: jobs.TaskNotifyScan, Handler: notifyJob.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("timezone", loc.String()), slog.Int("schedules", len(cron)))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
