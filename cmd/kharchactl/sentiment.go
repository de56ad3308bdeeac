package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kharcha/internal/cli"
)

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Show the news headlines and factor the estimator would apply",
	RunE: func(cmd *cobra.Command, _ []string) error {
		month, err := parseMonthFlag(flagSentimentMonth)
		if err != nil {
			return err
		}
		fc, err := cfg.Forecast()
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
			if month.IsZero() {
				month = app.Predictions.DefaultTarget()
			}
			s, err := app.News.Sentiment(ctx, month)
			if err != nil {
				return err
			}
			fmt.Print(cli.RenderTable(cli.SentimentTable(month, s, fc)))
			return nil
		})
	},
}

var flagSentimentMonth string

func init() {
	sentimentCmd.Flags().StringVarP(&flagSentimentMonth, "month", "m", "", "Month, YYYY-MM (default: next month)")
	rootCmd.AddCommand(sentimentCmd)
}
