package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/gamesearch/internal/config"
	"github.com/raphaelgruber/gamesearch/internal/cosmos"
	"github.com/raphaelgruber/gamesearch/internal/ingest"
	"github.com/raphaelgruber/gamesearch/internal/lake"
	"github.com/raphaelgruber/gamesearch/internal/steam"
)

var (
	ingestSample       int
	ingestReviewsCap   int
	ingestNewsCount    int
	ingestNewsTags     string
	ingestConcurrency  int
	ingestDataRoot     string
	ingestResume       string
	ingestRequireStore bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Harvest a sample of games into the bronze artifact lake",
	Long: `Ingest fetches reviews, a store details snapshot and a news page for a
random sample of catalog items, sanitizes identity fields, and writes the
results as partitioned gzip artifacts under the data root.

A run id identifies all artifacts of one run. Pass --resume with a previous
run id to continue a killed run; already-completed items are skipped.

Examples:
  gamesearch ingest --sample 50 --reviews-cap 500
  gamesearch ingest --resume run-20260830T120000Z-1a2b3c4d
  gamesearch ingest --require-store --concurrency 4`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestSample, "sample", 0, "number of catalog items to sample (default from config)")
	ingestCmd.Flags().IntVar(&ingestReviewsCap, "reviews-cap", 0, "max review items per game")
	ingestCmd.Flags().IntVar(&ingestNewsCount, "news-count", 0, "feed items to fetch per game")
	ingestCmd.Flags().StringVar(&ingestNewsTags, "news-tags", "", "feed tag filter")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "parallel workers")
	ingestCmd.Flags().StringVar(&ingestDataRoot, "data-root", "", "artifact lake root directory")
	ingestCmd.Flags().StringVar(&ingestResume, "resume", "", "run id of a previous run to resume")
	ingestCmd.Flags().BoolVar(&ingestRequireStore, "require-store", false, "abort unless the document store is reachable")
}

func runIngest(cmd *cobra.Command, args []string) error {
	opts := ingestOptions()

	runID := ingestResume
	if runID == "" {
		runID = fmt.Sprintf("run-%s-%s",
			time.Now().UTC().Format("20060102T150405Z"),
			strings.Split(uuid.NewString(), "-")[0])
	}
	opts.RunID = runID

	logPath := lake.RunLogPath(opts.DataRoot, time.Now().UTC(), runID)
	logger, cleanup := config.NewRunLogger(logPath, runID, cfg.LogLevel)
	defer cleanup()

	ctx := cmd.Context()

	// The store is optional for bronze ingestion; when explicitly required,
	// its unreachability is the one run-fatal precondition.
	if ingestRequireStore {
		client, err := cosmos.NewClient(cosmosConfig(), logger)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("mandatory document store check: %w", err)
		}
	}

	src := steam.NewClient(steam.Config{
		StoreBaseURL: cfg.Steam.StoreBaseURL,
		APIBaseURL:   cfg.Steam.APIBaseURL,
		Timeout:      cfg.Steam.Timeout,
	}, logger)

	tracker := lake.NewRunStateTracker(lake.RunStatePath(opts.DataRoot, runID))
	manifest := lake.NewManifestWriter(opts.DataRoot, runID, "bronze", manifestInput(opts))
	manifest.AddArtifact("log", logPath)

	orch := ingest.New(src, tracker, manifest, opts, logger)

	logger.Info("ingestion run starting", "sample", opts.SampleSize, "resume", ingestResume != "")
	return orch.Run(ctx)
}

// ingestOptions merges config defaults with any flags set for this run.
func ingestOptions() ingest.Options {
	opts := ingest.Options{
		DataRoot:           cfg.Lake.DataRoot,
		SampleSize:         cfg.Ingest.SampleSize,
		ReviewsCap:         cfg.Ingest.ReviewsCap,
		NewsCount:          cfg.Ingest.NewsCount,
		NewsTags:           cfg.Ingest.NewsTags,
		Concurrency:        cfg.Ingest.Concurrency,
		MinRecommendations: cfg.Ingest.MinRecommendations,
	}
	if ingestSample > 0 {
		opts.SampleSize = ingestSample
	}
	if ingestReviewsCap > 0 {
		opts.ReviewsCap = ingestReviewsCap
	}
	if ingestNewsCount > 0 {
		opts.NewsCount = ingestNewsCount
	}
	if ingestNewsTags != "" {
		opts.NewsTags = ingestNewsTags
	}
	if ingestConcurrency > 0 {
		opts.Concurrency = ingestConcurrency
	}
	if ingestDataRoot != "" {
		opts.DataRoot = ingestDataRoot
	}
	return opts
}

// manifestInput snapshots the effective run configuration for the manifest.
func manifestInput(opts ingest.Options) map[string]string {
	return map[string]string{
		"sample":      strconv.Itoa(opts.SampleSize),
		"reviewsCap":  strconv.Itoa(opts.ReviewsCap),
		"newsCount":   strconv.Itoa(opts.NewsCount),
		"newsTags":    opts.NewsTags,
		"concurrency": strconv.Itoa(opts.Concurrency),
		"dataRoot":    opts.DataRoot,
		"minRecs":     strconv.Itoa(opts.MinRecommendations),
	}
}
