package ingest

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/gamesearch/internal/lake"
	"github.com/raphaelgruber/gamesearch/internal/steam"
)

// ingestStore fetches the store details snapshot for one item and writes the
// raw envelope as a bronze artifact. Snapshots with an unsuccessful flag or
// below the candidacy recommendation floor are skipped and counted, not
// treated as errors.
func (o *Orchestrator) ingestStore(ctx context.Context, itemID int64) error {
	var details *steam.DetailsResult
	err := retryThrottled(ctx, func() error {
		var fetchErr error
		details, fetchErr = o.src.AppDetails(ctx, itemID)
		return fetchErr
	})
	if err != nil {
		return err
	}

	if !details.Success || details.Data == nil {
		o.manifest.RecordItem("store:unsuccessful", 1)
		return nil
	}
	if o.opts.MinRecommendations > 0 {
		total := 0
		if details.Data.Recommendations != nil {
			total = details.Data.Recommendations.Total
		}
		if total < o.opts.MinRecommendations {
			o.manifest.RecordItem("store:below_candidacy", 1)
			return nil
		}
	}

	path := lake.StoreSnapshotPath(o.opts.DataRoot, o.runDate, o.opts.RunID, itemID)
	if err := lake.WriteGzipJSON(path, details.Raw); err != nil {
		return fmt.Errorf("write store snapshot: %w", err)
	}
	o.manifest.RecordItem("store:written", 1)
	return nil
}
