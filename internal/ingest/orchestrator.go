// Package ingest drives the bronze-layer harvesting run: it samples the
// catalog, processes items with bounded parallelism, and records progress so
// a killed run can resume without duplicate work.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/raphaelgruber/gamesearch/internal/lake"
	"github.com/raphaelgruber/gamesearch/internal/steam"
)

// preferredSeedIDs are prepended to the random sample so a sparse sample
// still ingests items with substantial review volume.
var preferredSeedIDs = []int64{620, 570, 440, 730, 292030, 271590, 1172470}

// maxThrottleRetries bounds how often one request is retried after the
// client slept out an upstream throttle.
const maxThrottleRetries = 5

// Source is the upstream surface the orchestrator consumes. Tests
// substitute a fake.
type Source interface {
	ListApps(ctx context.Context) ([]steam.App, error)
	AppDetails(ctx context.Context, itemID int64) (*steam.DetailsResult, error)
	FetchReviewsPage(ctx context.Context, itemID int64, cursor string, pageSize int) (*steam.ReviewsPage, error)
	FetchNews(ctx context.Context, itemID int64, count int, tagFilter string) (*steam.NewsResult, error)
}

// Options configure one ingestion run.
type Options struct {
	RunID              string
	DataRoot           string
	SampleSize         int
	ReviewsCap         int
	NewsCount          int
	NewsTags           string
	Concurrency        int
	MinRecommendations int
}

// Orchestrator processes the shuffled pending work set.
type Orchestrator struct {
	src      Source
	tracker  *lake.RunStateTracker
	manifest *lake.ManifestWriter
	opts     Options
	logger   *slog.Logger

	// runDate anchors the date partition for every artifact of the run.
	runDate time.Time
}

// New creates an orchestrator. Zero-value options fall back to conservative
// defaults suited to an aggressively rate-limited upstream.
func New(src Source, tracker *lake.RunStateTracker, manifest *lake.ManifestWriter, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.SampleSize <= 0 {
		opts.SampleSize = 25
	}
	if opts.ReviewsCap <= 0 {
		opts.ReviewsCap = 200
	}
	if opts.NewsCount <= 0 {
		opts.NewsCount = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		src:      src,
		tracker:  tracker,
		manifest: manifest,
		opts:     opts,
		logger:   logger,
	}
}

// Run executes the ingestion. Item-level failures are counted and skipped;
// only the catalog fetch failing aborts the run. A manifest is always saved,
// even for a run with zero successes.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runDate = time.Now().UTC()
	o.manifest.Start()
	defer func() {
		o.manifest.Finish()
		if err := o.manifest.Save(); err != nil {
			o.logger.Error("saving manifest failed", "error", err)
		}
	}()

	items, err := o.selectItems(ctx)
	if err != nil {
		o.manifest.RecordError("catalog")
		return fmt.Errorf("select work items: %w", err)
	}
	o.logger.Info("work set selected", "items", len(items), "concurrency", o.opts.Concurrency)

	pool, err := ants.NewPool(o.opts.Concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for itemID := range o.tracker.PendingShuffled(items) {
		if ctx.Err() != nil {
			break
		}
		id := itemID
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			o.processItem(ctx, id)
		}); err != nil {
			wg.Done()
			o.logger.Error("submitting item to pool failed", "item_id", id, "error", err)
			o.manifest.RecordError("pool")
		}
	}
	wg.Wait()

	return nil
}

// selectItems fetches the catalog, builds the preferred-seeds-plus-random
// sample, and persists it as the run's catalog artifact.
func (o *Orchestrator) selectItems(ctx context.Context) ([]int64, error) {
	apps, err := o.src.ListApps(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]steam.App, len(apps))
	for _, app := range apps {
		if app.Name == "" {
			continue
		}
		byID[app.ID] = app
	}

	var sample []steam.App
	taken := make(map[int64]bool, o.opts.SampleSize+len(preferredSeedIDs))
	for _, id := range preferredSeedIDs {
		if app, ok := byID[id]; ok {
			sample = append(sample, app)
			taken[id] = true
		}
	}

	shuffled := make([]steam.App, 0, len(byID))
	for _, app := range byID {
		if !taken[app.ID] {
			shuffled = append(shuffled, app)
		}
	}
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, app := range shuffled {
		if len(sample) >= o.opts.SampleSize {
			break
		}
		sample = append(sample, app)
	}

	catalogPath := lake.CatalogPath(o.opts.DataRoot, o.runDate, o.opts.RunID)
	if err := lake.WriteGzipJSON(catalogPath, sample); err != nil {
		return nil, fmt.Errorf("write catalog artifact: %w", err)
	}
	o.manifest.AddArtifact("catalog", catalogPath)
	o.manifest.RecordItem("catalog", len(sample))

	ids := make([]int64, len(sample))
	for i, app := range sample {
		ids[i] = app.ID
	}
	return ids, nil
}

// processItem runs the fetch-sanitize-write sequence for one item. Failures
// are counted against the manifest and leave the item un-Succeeded so the
// next run resumes it.
func (o *Orchestrator) processItem(ctx context.Context, itemID int64) {
	log := o.logger.With("item_id", itemID)

	if err := o.tracker.MarkStarted(itemID); err != nil {
		log.Error("marking item started failed", "error", err)
		o.manifest.RecordError("state")
		return
	}

	reviews, err := o.ingestReviews(ctx, itemID)
	if err != nil {
		log.Warn("review ingestion failed", "error", err, "reviews_written", reviews)
		o.manifest.RecordError(errorKind(err))
		return
	}
	o.manifest.RecordItem(fmt.Sprintf("reviews:%d", itemID), reviews)

	if err := o.ingestStore(ctx, itemID); err != nil {
		log.Warn("store snapshot ingestion failed", "error", err)
		o.manifest.RecordError(errorKind(err))
		return
	}

	newsItems, err := o.ingestNews(ctx, itemID)
	if err != nil {
		log.Warn("news ingestion failed", "error", err)
		o.manifest.RecordError(errorKind(err))
		return
	}
	o.manifest.RecordItem(fmt.Sprintf("news:%d", itemID), newsItems)

	if err := o.tracker.MarkSucceeded(itemID); err != nil {
		log.Error("marking item succeeded failed", "error", err)
		o.manifest.RecordError("state")
		return
	}
	o.manifest.RecordItem("items:succeeded", 1)
	log.Info("item ingested", "reviews", reviews, "news", newsItems)
}

// retryThrottled re-invokes fn after the source client reports a throttle.
// The client already slept out the advertised backoff, so the retry is
// immediate and bounded.
func retryThrottled(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxThrottleRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if !errors.Is(err, steam.ErrThrottled) {
			return err
		}
	}
	return err
}

func errorKind(err error) string {
	var statusErr *steam.StatusError
	switch {
	case errors.Is(err, steam.ErrThrottled):
		return "throttled"
	case errors.Is(err, steam.ErrMalformedPayload):
		return "malformed"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.Code)
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
