package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/accounting"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/customers"
	"github.com/odyssey-erp/odyssey-pos/internal/integration"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/payroll"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/jobs"
	"github.com/odyssey-erp/odyssey-pos/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, logger, os.Args[2:]))
	}

	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer rt.Close(logger)

	metrics := observability.NewMetrics()
	ledgerMetrics := metrics.Ledger()
	clock := ledger.SystemClock{}
	loc := cfg.Location()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	hooks := integration.NewHooks(jobClient, logger)

	idempotencyStore := shared.NewIdempotencyStore(rt.Pool)

	salesRepo := sales.NewRepository(rt.Pool, rt.Runner, rt.Activity)
	salesService := sales.NewService(salesRepo, idempotencyStore, rt.Cache, ledgerMetrics, clock, logger, cfg.SalesConfig())

	inventoryRepo := inventory.NewRepository(rt.Pool, rt.Runner, rt.Activity)
	inventoryService := inventory.NewService(inventoryRepo, rt.Cache, hooks, clock, logger)

	customersRepo := customers.NewRepository(rt.Pool, rt.Runner, rt.Activity)
	customersService := customers.NewService(customersRepo, rt.Cache, clock, logger)

	payrollRepo := payroll.NewRepository(rt.Pool, rt.Runner, rt.Activity)
	payrollService := payroll.NewService(payrollRepo, rt.Cache, ledgerMetrics, clock, loc, logger)

	accountingRepo := accounting.NewRepository(rt.Pool, rt.Runner, rt.Activity, loc)
	accountingService := accounting.NewService(accountingRepo, rt.Cache, ledgerMetrics, cfg.AccountingOptions(), clock, logger)

	reportClient := report.NewClient(cfg.GotenbergURL, 30*time.Second)
	renderer := report.NewRenderer(reportClient, clock)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SalesHandler:      sales.NewHandler(logger, salesService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		CustomersHandler:  customers.NewHandler(logger, customersService),
		PayrollHandler:    payroll.NewHandler(logger, payrollService),
		AccountingHandler: accounting.NewHandler(logger, accountingService, renderer),
		ReportHandler:     report.NewHandler(reportClient, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	return jobsCLI.Command(ctx, args, cli.CommandOptions{})
}
