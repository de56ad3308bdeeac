package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kharcha/internal/cli"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

var (
	flagUser        int64
	flagMonth       string
	flagAll         bool
	flagAsync       bool
	flagConcurrency int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast a month's spending for one user or all users",
	Long: "Forecast spending for --month (default: next month). With --all every user is\n" +
		"forecast; with --async the request is queued for kharcha-worker instead.",
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().Int64VarP(&flagUser, "user", "u", 0, "User id")
	predictCmd.Flags().StringVarP(&flagMonth, "month", "m", "", "Target month, YYYY-MM")
	predictCmd.Flags().BoolVar(&flagAll, "all", false, "Forecast every user")
	predictCmd.Flags().BoolVar(&flagAsync, "async", false, "Queue the forecast on AMQP")
	predictCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Forecasts in flight with --all (default WORKER_CONCURRENCY)")
	predictCmd.MarkFlagsMutuallyExclusive("user", "all")
	predictCmd.MarkFlagsOneRequired("user", "all")
	rootCmd.AddCommand(predictCmd)
}

func parseMonthFlag(s string) (core.Month, error) {
	if s == "" {
		return core.Month{}, nil
	}
	m, err := core.ParseMonth(s)
	if err != nil {
		return core.Month{}, fmt.Errorf("--month: %w", err)
	}
	return m, nil
}

func runPredict(cmd *cobra.Command, _ []string) error {
	target, err := parseMonthFlag(flagMonth)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
		if target.IsZero() {
			target = app.Predictions.DefaultTarget()
		}

		if flagAll {
			return predictAll(ctx, app, target)
		}

		if flagAsync {
			if err := app.Predictions.RequestForecast(ctx, flagUser, target); err != nil {
				return err
			}
			fmt.Printf("\n  Queued forecast of %s for user %d\n\n", target, flagUser)
			return nil
		}

		p, err := app.Predictions.Generate(ctx, flagUser, target)
		var insufficient *forecast.InsufficientDataError
		if errors.As(err, &insufficient) {
			fmt.Printf("\n  %s\n\n", insufficient.UserMessage())
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("FORECAST  user %d  %s", flagUser, target)))
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.PredictionTable(p)))
		fmt.Printf("  Based on %d of %d months, news from %s\n\n", p.AvailableMonths, p.WindowMonths, p.NewsSource)
		return nil
	})
}

func predictAll(ctx context.Context, app *cli.App, target core.Month) error {
	if flagAsync {
		users, err := app.Backend.Store.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := app.Predictions.RequestForecast(ctx, u.ID, target); err != nil {
				return fmt.Errorf("queue forecast for user %d: %w", u.ID, err)
			}
		}
		fmt.Printf("\n  Queued forecast of %s for %d users\n\n", target, len(users))
		return nil
	}

	concurrency := flagConcurrency
	if concurrency < 1 {
		concurrency = cfg.WorkerConcurrency
	}
	res, err := app.Predictions.GenerateAll(ctx, target, concurrency)
	if err != nil {
		return err
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Batch forecast for %s", target),
		Headers: []string{"Outcome", "Users"},
		Rows: [][]string{
			{"Generated", fmt.Sprint(res.Generated)},
			{"Skipped (insufficient data)", fmt.Sprint(res.Skipped)},
			{"Failed", fmt.Sprint(res.Failed)},
		},
	}))
	if res.Failed > 0 {
		return fmt.Errorf("%d forecasts failed", res.Failed)
	}
	return nil
}
