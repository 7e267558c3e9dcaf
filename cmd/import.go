package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gregoire78/gtfs-arango-import/internal/config"
	"github.com/gregoire78/gtfs-arango-import/internal/feed"
	"github.com/gregoire78/gtfs-arango-import/internal/ingest"
	"github.com/gregoire78/gtfs-arango-import/internal/observability"
	"github.com/gregoire78/gtfs-arango-import/internal/store"
)

// newImportCmd creates and configures the `import` command.
func newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import [feed-url]",
		Short: "Downloads a GTFS feed and loads it into the graph database",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override config file and environment
			// values with the right precedence.
			if err := viper.BindPFlag("ingest.batch_size", cmd.Flags().Lookup("batch-size")); err != nil {
				return err
			}
			if err := viper.BindPFlag("ingest.commit_size", cmd.Flags().Lookup("commit-size")); err != nil {
				return err
			}
			return viper.BindPFlag("feed.cleanup", cmd.Flags().Lookup("cleanup"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Feed.URL = args[0]
			}

			logger.Info("Starting feed import",
				zap.String("url", cfg.Feed.URL),
				zap.String("database", cfg.Arango.Database),
				zap.Int("batch_size", cfg.Ingest.BatchSize),
				zap.Int("commit_size", cfg.Ingest.CommitSize),
			)
			start := time.Now()

			st, err := store.New(ctx, store.Config{
				Endpoint:   cfg.Arango.Endpoint,
				Database:   cfg.Arango.Database,
				Username:   cfg.Arango.Username,
				Password:   cfg.Arango.Password,
				CommitSize: cfg.Ingest.CommitSize,
			}, logger)
			if err != nil {
				return fmt.Errorf("connecting to graph store: %w", err)
			}
			if err := st.Init(ctx); err != nil {
				return fmt.Errorf("preparing collections: %w", err)
			}

			if err := acquireFeed(cmd, cfg, logger); err != nil {
				return err
			}

			ingester := ingest.New(st, cfg.Ingest.BatchSize, logger)
			if err := ingester.Run(ctx, cfg.Feed.Dir); err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			if cfg.Feed.Cleanup {
				feed.Cleanup(logger, cfg.Feed.ZipPath, cfg.Feed.Dir)
			}

			logger.Info("Feed import finished", zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}

	importCmd.Flags().Int("batch-size", 0, "documents per bulk import batch (default 50000)")
	importCmd.Flags().Int("commit-size", 0, "intermediate commit threshold for enrichment queries (default 100000)")
	importCmd.Flags().Bool("cleanup", true, "remove the zip and extracted directory after a successful run")
	return importCmd
}

// acquireFeed makes sure the extracted feed directory exists: an already
// extracted directory is reused, an already downloaded zip is re-extracted,
// otherwise the archive is downloaded first.
func acquireFeed(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
	if _, err := os.Stat(cfg.Feed.Dir); err == nil {
		logger.Info("Feed directory already present, skipping download", zap.String("dir", cfg.Feed.Dir))
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking feed directory: %w", err)
	}

	if _, err := os.Stat(cfg.Feed.ZipPath); errors.Is(err, os.ErrNotExist) {
		logger.Info("Downloading feed archive", zap.String("url", cfg.Feed.URL))
		if err := feed.Download(cmd.Context(), cfg.Feed.URL, cfg.Feed.ZipPath); err != nil {
			return err
		}
		logger.Info("Download successful", zap.String("zip", cfg.Feed.ZipPath))
	} else if err != nil {
		return fmt.Errorf("checking feed archive: %w", err)
	}

	return feed.Extract(cfg.Feed.ZipPath, cfg.Feed.Dir, logger)
}
