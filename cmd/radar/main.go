package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/subscription-radar/pkg/config"
	"github.com/FACorreiaa/subscription-radar/pkg/logger"
)

var (
	envFile   string
	logLevel  string
	logFormat string

	deps *Dependencies

	rootCmd = &cobra.Command{
		Use:   "radar",
		Short: "Track recurring subscriptions and get reminded before they renew",
		Long: `radar keeps a list of your subscriptions, totals what they cost each month
and schedules reminders a few days before every renewal.`,
		PersistentPreRunE: initApp,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load configuration from this .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(upcomingCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(serveCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if deps != nil {
		deps.Cleanup()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, _ []string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags win over the environment
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	log, err := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(log)

	deps, err = InitDependencies(cmd.Context(), cfg, log, cmd.Name() == serveName)
	if err != nil {
		return err
	}
	return nil
}
