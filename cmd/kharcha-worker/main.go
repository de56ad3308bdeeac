package main

import (
	"context"
	"errors"

	"kharcha/internal/cli"
	applog "kharcha/internal/log"
	"kharcha/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, nil)
	logger.Info("Starting kharcha-worker", applog.FieldOperation, applog.OpStartup)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		cli.Fatal(logger, "Cannot start kharcha-worker", err)
	}

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize services", err)
	}
	defer app.Close()
	app.StartCaches()

	var scheduler *worker.Scheduler
	if cfg.ForecastCron != "" {
		scheduler, err = worker.NewScheduler(cfg.ForecastCron, app.Predictions, cfg.WorkerConcurrency, logger)
		if err != nil {
			_ = app.Close()
			cli.Fatal(logger, "Failed to create forecast scheduler", err)
		}
		if err := scheduler.AddSessionCleanup(app.Auth); err != nil {
			_ = app.Close()
			cli.Fatal(logger, "Failed to register session cleanup", err)
		}
		logger.Info("Forecast scheduler configured", "cron", cfg.ForecastCron, "jobs", scheduler.Entries())
	} else {
		logger.Info("Forecast scheduler disabled - FORECAST_CRON is empty")
	}

	var consumer worker.Consumer
	if app.Backend.AMQP != nil {
		consumer = app.Backend.AMQP
	} else {
		logger.Info("Skipping AMQP consumption - messaging is not configured")
	}
	if consumer == nil && scheduler == nil {
		_ = app.Close()
		cli.Fatal(logger, "Nothing to run", errors.New("neither AMQP_URL nor FORECAST_CRON is set"))
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	handler := worker.NewForecastWorker(app.Predictions, logger)
	if err := worker.Run(ctx, consumer, handler, scheduler); err != nil {
		_ = app.Close()
		cli.Fatal(logger, "Worker stopped with error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
