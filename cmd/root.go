// Package cmd defines and implements the CLI commands for the dealercrawler
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dealercrawler",
		Short: "Crawls vehicle dealer listings into structured records.",
		Long: `dealercrawler walks the configured vehicle dealer listing pages brand by
brand and city by city, renders JavaScript-heavy pages in a headless
browser when the static HTML carries no dealer cards, and writes the
normalized dealer records to Excel, CSV, or JSON.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (built-in defaults plus DEALERCRAWLER_* env vars apply when omitted)")

	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context so an
// interrupted crawl still persists whatever it accumulated.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
