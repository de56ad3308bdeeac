// Command kharchactl administers a kharcha deployment: migrations,
// listings and on-demand forecasts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kharcha/internal/cli"
	"kharcha/internal/config"
	applog "kharcha/internal/log"
)

var (
	flagEnvFile string
	flagQuiet   bool

	logger *applog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kharchactl",
	Short:         "Administer the kharcha expense tracker",
	Long:          "Run migrations, inspect users and expenses, and generate spending forecasts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if flagEnvFile != "" {
			cli.LoadEnvFile(flagEnvFile)
		} else {
			cli.LoadEnvFile()
		}
		if flagQuiet {
			_ = os.Setenv("LOG_LEVEL", "error")
		}
		logger = cli.SetupLogger(applog.ComponentCLI, os.Stderr)

		var err error
		cfg, err = cli.LoadAndValidateConfig(logger)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

// withApp wires the services for one command and releases them afterwards.
func withApp(ctx context.Context, fn func(context.Context, *cli.App) error) error {
	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
