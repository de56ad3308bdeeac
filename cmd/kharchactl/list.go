package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kharcha/internal/cli"
	"kharcha/internal/core"
)

var (
	flagCategory int64
	flagFrom     string
	flagTo       string
	flagLimit    int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect registered users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
			users, err := app.Backend.Store.ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Println("\n  No users registered.")
				return nil
			}
			fmt.Print(cli.RenderTable(cli.UsersTable(users)))
			return nil
		})
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Inspect expense categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
			cats, err := app.Expenses.Categories(ctx)
			if err != nil {
				return err
			}
			fmt.Print(cli.RenderTable(cli.CategoriesTable(cats)))
			return nil
		})
	},
}

var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "Inspect a user's expenses",
}

var expensesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := core.ExpenseFilter{CategoryID: flagCategory, Limit: flagLimit}
		var err error
		if flagFrom != "" {
			if f.From, err = core.ParseDate(flagFrom); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
		}
		if flagTo != "" {
			if f.To, err = core.ParseDate(flagTo); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
			list, err := app.Expenses.ListExpenses(ctx, flagUser, f)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("\n  No expenses found.")
				return nil
			}
			fmt.Print(cli.RenderTable(cli.ExpensesTable(list)))
			return nil
		})
	},
}

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Inspect stored forecasts",
}

var predictionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show a user's recent forecasts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *cli.App) error {
			history, err := app.Predictions.History(ctx, flagUser)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Println("\n  No forecasts yet.")
				return nil
			}
			t := cli.Table{
				Title:   fmt.Sprintf("Forecasts for user %d", flagUser),
				Headers: []string{"Month", "Total", "Confidence", "Sentiment", "Created"},
			}
			totals := make([]float64, 0, len(history))
			for i := len(history) - 1; i >= 0; i-- {
				p := history[i]
				t.Rows = append(t.Rows, []string{
					p.Month.String(),
					core.FormatRupees(p.Total),
					fmt.Sprintf("%.2f%%", p.Confidence),
					fmt.Sprintf("x%.4f", p.SentimentFactor),
					p.CreatedAt.Format("2006-01-02 15:04"),
				})
				totals = append(totals, float64(p.Total.Paise))
			}
			fmt.Print(cli.RenderTable(t))
			fmt.Printf("  Trend %s\n\n", cli.RenderSparkline(totals))
			return nil
		})
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	categoriesCmd.AddCommand(categoriesListCmd)

	expensesListCmd.Flags().Int64VarP(&flagUser, "user", "u", 0, "User id")
	expensesListCmd.Flags().Int64Var(&flagCategory, "category", 0, "Only this category id")
	expensesListCmd.Flags().StringVar(&flagFrom, "from", "", "Earliest date, YYYY-MM-DD")
	expensesListCmd.Flags().StringVar(&flagTo, "to", "", "Latest date, YYYY-MM-DD")
	expensesListCmd.Flags().IntVar(&flagLimit, "limit", 50, "Maximum rows")
	_ = expensesListCmd.MarkFlagRequired("user")
	expensesCmd.AddCommand(expensesListCmd)

	predictionsListCmd.Flags().Int64VarP(&flagUser, "user", "u", 0, "User id")
	_ = predictionsListCmd.MarkFlagRequired("user")
	predictionsCmd.AddCommand(predictionsListCmd)

	rootCmd.AddCommand(usersCmd, categoriesCmd, expensesCmd, predictionsCmd)
}
