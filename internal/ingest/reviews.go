package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/gamesearch/internal/lake"
	"github.com/raphaelgruber/gamesearch/internal/sanitize"
	"github.com/raphaelgruber/gamesearch/internal/steam"
)

// maxPageSize is the largest page the upstream serves per request.
const maxPageSize = 100

// reviewsArtifact is the sanitized bronze payload for one review page.
type reviewsArtifact struct {
	Success bool              `json:"success"`
	Reviews []json.RawMessage `json:"reviews"`
	Cursor  string            `json:"cursor"`
}

// ingestReviews walks the cursor pagination for one item until the per-item
// cap, upstream exhaustion (short page) or a non-advancing cursor. Throttles
// retry the identical cursor. Returns the number of review items written.
func (o *Orchestrator) ingestReviews(ctx context.Context, itemID int64) (int, error) {
	cursor := "*"
	written := 0
	pageNo := 1

	for written < o.opts.ReviewsCap {
		remaining := o.opts.ReviewsCap - written
		perPage := min(maxPageSize, remaining)

		var page *steam.ReviewsPage
		err := retryThrottled(ctx, func() error {
			var fetchErr error
			page, fetchErr = o.src.FetchReviewsPage(ctx, itemID, cursor, perPage)
			return fetchErr
		})
		if err != nil {
			return written, err
		}
		if !bool(page.Success) {
			return written, fmt.Errorf("%w: reviews page %d for item %d reported failure",
				steam.ErrMalformedPayload, pageNo, itemID)
		}
		if len(page.Reviews) == 0 {
			break
		}

		reviews := page.Reviews
		if len(reviews) > remaining {
			reviews = reviews[:remaining]
		}
		sanitized := make([]json.RawMessage, len(reviews))
		for i, raw := range reviews {
			sanitized[i] = sanitize.Document(raw)
		}

		artifact := reviewsArtifact{
			Success: bool(page.Success),
			Reviews: sanitized,
			Cursor:  page.Cursor,
		}
		path := lake.ReviewsPagePath(o.opts.DataRoot, o.runDate, o.opts.RunID, itemID, pageNo)
		if err := lake.WriteGzipJSON(path, artifact); err != nil {
			return written, fmt.Errorf("write reviews page %d: %w", pageNo, err)
		}

		written += len(sanitized)
		pageNo++

		// A short page means the upstream ran out of reviews.
		if len(page.Reviews) < perPage {
			break
		}
		// The upstream repeats the cursor when exhausted.
		if page.Cursor == "" || page.Cursor == cursor {
			break
		}
		cursor = page.Cursor
	}
	return written, nil
}
