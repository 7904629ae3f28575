// Command fetch-jobs runs one keyword ingestion batch from the command line
// and prints its summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfa546/pak-job-portal/internal/bootstrap"
	"github.com/alfa546/pak-job-portal/internal/config"
	"github.com/alfa546/pak-job-portal/internal/ingest"
	"github.com/alfa546/pak-job-portal/internal/ingest/provider"
	ingeststorage "github.com/alfa546/pak-job-portal/internal/ingest/storage"
	"github.com/alfa546/pak-job-portal/shared/postgresql"
)

type options struct {
	configPath string
	provider   string
	keywords   []string
	dryRun     bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "fetch-jobs",
		Short: "Fetch job listings for the configured keywords and store them",
		Long: `fetch-jobs queries one job-search provider for every configured keyword,
normalizes the apply links and upserts the postings keyed on apply URL.
The batch summary is printed to stdout as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to configuration file")
	cmd.Flags().StringVar(&opts.provider, "provider", provider.NameJSearch, "Provider to query (adzuna or jsearch)")
	cmd.Flags().StringSliceVar(&opts.keywords, "keyword", nil, "Keyword to fetch; repeat to override the configured list")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Keep results in memory instead of writing to the database")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(opts.keywords) > 0 {
		cfg.Ingest.Keywords = opts.keywords
	}

	validate := cfg.Validate
	if opts.dryRun {
		validate = cfg.ValidateIngestConfig
	}
	if err := validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// stdout carries the summary
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	appLogger, err := bootstrap.InitLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	p, err := bootstrap.ProviderFactory(cfg.Providers)(opts.provider)
	if err != nil {
		appLogger.Error("Cannot build provider", slog.Any("error", err))
		return err
	}

	sink, closeSink, err := openSink(cfg, opts.dryRun, appLogger.Logger)
	if err != nil {
		return err
	}
	defer closeSink()

	summary := ingest.NewOrchestrator(p, sink, bootstrap.IngestOptions(&cfg.Ingest), appLogger.Logger).Run(cmd.Context())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if errors.Is(cmd.Context().Err(), context.Canceled) {
		return cmd.Context().Err()
	}
	return nil
}

func openSink(cfg *config.Config, dryRun bool, logger *slog.Logger) (ingest.Sink, func(), error) {
	if dryRun {
		return ingeststorage.NewMemoryStore(), func() {}, nil
	}

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return ingeststorage.NewStorage(dbClient.GetDB(), logger), closeClient(dbClient), nil
}

func closeClient(c *postgresql.Client) func() {
	return func() { _ = c.Close() }
}
