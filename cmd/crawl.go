package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/api"
	"github.com/autoatlas/dealercrawler/internal/catalog"
	"github.com/autoatlas/dealercrawler/internal/clock/system"
	"github.com/autoatlas/dealercrawler/internal/config"
	"github.com/autoatlas/dealercrawler/internal/extractor"
	collyfetcher "github.com/autoatlas/dealercrawler/internal/fetcher/colly"
	"github.com/autoatlas/dealercrawler/internal/fetcher/headless"
	"github.com/autoatlas/dealercrawler/internal/headless/detector"
	"github.com/autoatlas/dealercrawler/internal/id/uuid"
	"github.com/autoatlas/dealercrawler/internal/logging"
	"github.com/autoatlas/dealercrawler/internal/normalizer"
	"github.com/autoatlas/dealercrawler/internal/scraper"
	"github.com/autoatlas/dealercrawler/internal/sink"
	"github.com/autoatlas/dealercrawler/internal/storage/postgres"
)

// newCrawlCmd creates and configures the 'crawl' subcommand, which runs one
// full crawl over the configured vehicle types and brands.
func newCrawlCmd() *cobra.Command {
	var outputName string

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the dealer crawl",
		Long: `Runs one crawl over every configured vehicle type, brand, and city,
then writes the accumulated dealer records in the configured output
format. Interrupting the crawl persists the partial results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), outputName)
		},
	}

	cmd.Flags().StringVar(&outputName, "output", "", "custom output file name, without extension")
	return cmd
}

func runCrawl(ctx context.Context, outputName string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	clk := system.New()
	runID, err := uuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	resolver := catalog.NewResolver(catalog.Config{
		URL:            cfg.Catalog.URL,
		Dir:            cfg.Output.Dir,
		MaxSnapshotAge: cfg.Catalog.MaxSnapshotAge,
		Timeout:        cfg.Crawler.Timeout,
	}, nil, clk, logger)

	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
	})

	renderer, err := headless.New(headless.Config{
		Headless:          cfg.Headless.Headless,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.Crawler.Timeout,
		MaxParallel:       cfg.Headless.MaxParallel,
		MaxScroll:         cfg.Crawler.MaxScroll,
		DomainQPS:         cfg.Headless.DomainQPS,
	}, logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}
	defer renderer.Close()

	orch, err := scraper.New(
		cfg,
		resolver,
		probe,
		renderer,
		detector.New(0),
		extractor.New(logger),
		normalizer.New(),
		scraper.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries, time.Second),
		clk,
		runID,
		logger,
	)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		stopServer := startStatusServer(cfg.Server.Port, orch, logger)
		defer stopServer()
	}

	runErr := orch.Run(ctx)

	if perr := persistResults(cfg, clk, orch, runID, outputName, logger); perr != nil {
		if runErr == nil {
			return perr
		}
		logger.Error("failed to persist results", zap.Error(perr))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("crawl interrupted, partial results persisted")
			return nil
		}
		return fmt.Errorf("run crawl: %w", runErr)
	}
	return nil
}

// startStatusServer exposes /healthz, /metrics, and /v1/run/status while the
// crawl runs. The returned func shuts the listener down.
func startStatusServer(port int, orch *scraper.Orchestrator, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(orch, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}

// persistResults writes records and failures to disk and, when a DSN is
// configured, to Postgres. It runs on a fresh context so an interrupted
// crawl still gets its partial results saved.
func persistResults(
	cfg config.Config,
	clk *system.Clock,
	orch *scraper.Orchestrator,
	runID string,
	outputName string,
	logger *zap.Logger,
) error {
	fileSink, err := sink.NewFileSink(cfg.Output.Dir, clk, logger)
	if err != nil {
		return err
	}

	records := orch.Records()
	path, err := fileSink.SaveRecords(records, cfg.Output.Format, outputName)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Info("records saved", zap.String("path", path), zap.Int("dealers", len(records)))
	}

	if err := fileSink.SaveFailures(orch.Failures()); err != nil {
		return err
	}

	if cfg.DB.DSN == "" || len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.NewDealerStore(ctx, postgres.DealerStoreConfig{
		DSN:   cfg.DB.DSN,
		Table: cfg.DB.Table,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.StoreRun(ctx, runID, records); err != nil {
		return err
	}
	logger.Info("records stored", zap.String("table", cfg.DB.Table), zap.Int("dealers", len(records)))
	return nil
}
