package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/gamesearch/internal/lake"
	"github.com/raphaelgruber/gamesearch/internal/steam"
)

// ingestNews fetches one feed page for the item and persists the raw
// payload. Returns the number of feed items in the page.
func (o *Orchestrator) ingestNews(ctx context.Context, itemID int64) (int, error) {
	var news *steam.NewsResult
	err := retryThrottled(ctx, func() error {
		var fetchErr error
		news, fetchErr = o.src.FetchNews(ctx, itemID, o.opts.NewsCount, o.opts.NewsTags)
		return fetchErr
	})
	if err != nil {
		return 0, err
	}

	path := lake.NewsPagePath(o.opts.DataRoot, o.runDate, o.opts.RunID, itemID, 1)
	if err := lake.WriteGzipJSON(path, json.RawMessage(news.Raw)); err != nil {
		return 0, fmt.Errorf("write news page: %w", err)
	}
	return len(news.Items), nil
}
