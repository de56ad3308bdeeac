package main

import (
	"context"
	"errors"
	"net/http"

	"kharcha/internal/cli"
	apphttp "kharcha/internal/http"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, nil)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		cli.Fatal(logger, "Cannot start kharcha", err)
	}

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize services", err)
	}
	app.StartCaches()

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(":"+cfg.Port, app.Auth, app.Expenses, app.Predictions, app.Backend.Store, apphttp.Options{
		RateLimit:      rl,
		TrustedProxies: cfg.TrustedProxies,
		SecureCookies:  cfg.CookieSecure,
		Logger:         logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		return errors.Join(err, app.Close())
	})

	logger.Info("Starting kharcha server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = app.Close()
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
