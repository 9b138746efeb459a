// Package cli provides the command-line interface for gamesearch.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/gamesearch/internal/config"
	"github.com/raphaelgruber/gamesearch/internal/cosmos"
	"github.com/raphaelgruber/gamesearch/internal/embed"
	"github.com/raphaelgruber/gamesearch/internal/search"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, loaded once per invocation
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gamesearch",
	Short: "Game review harvesting and hybrid search",
	Long: `Gamesearch harvests game and review data from the upstream store API into
a partitioned bronze artifact lake, generates embeddings for review text,
and answers hybrid (text + semantic) search queries against a vector-capable
document store.

Runs are resumable: killing an ingestion mid-flight and restarting it with
--resume picks up exactly the unfinished items.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		return nil
	},
}

// buildSearchService wires the query-time stack: embedding pipeline, store
// client, form resolver, repositories and ranker.
func buildSearchService(logger *slog.Logger) (*search.Service, *cosmos.Client, error) {
	pipeline := embed.New(embed.Config{
		BaseURL:       cfg.Embeddings.BaseURL,
		Model:         cfg.Embeddings.Model,
		ContextLength: cfg.Embeddings.ContextLength,
		BatchSize:     cfg.Embeddings.BatchSize,
		Dimensions:    cfg.Embeddings.Dimensions,
		AllowChunking: cfg.Embeddings.AllowChunking,
		AllowFallback: cfg.Embeddings.AllowFallback,
		Timeout:       cfg.Embeddings.Timeout,
	}, logger)

	storeCfg := cosmosConfig()
	client, err := cosmos.NewClient(storeCfg, logger)
	if err != nil {
		return nil, nil, err
	}

	resolver := cosmos.NewResolver(logger)
	reviews := cosmos.NewReviewsRepo(client, resolver, storeCfg)
	games := cosmos.NewGamesRepo(client, resolver, storeCfg)

	return search.NewService(pipeline, reviews, games, nil, logger), client, nil
}

func cosmosConfig() cosmos.Config {
	return cosmos.Config{
		ConnectionString: cfg.Cosmos.ConnectionString,
		Endpoint:         cfg.Cosmos.Endpoint,
		Key:              cfg.Cosmos.Key,
		Database:         cfg.Cosmos.Database,
		GamesContainer:   cfg.Cosmos.GamesContainer,
		ReviewsContainer: cfg.Cosmos.ReviewsContainer,
		VectorField:      cfg.Cosmos.VectorField,
		Metric:           cfg.Cosmos.Metric,
		FormPreference:   cfg.Cosmos.FormPreference,
	}
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(probeCmd)
}
