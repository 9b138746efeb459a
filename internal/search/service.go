// Package search ties the embedding pipeline, store repositories and hybrid
// ranker into the query-time path.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/gamesearch/internal/metrics"
	"github.com/raphaelgruber/gamesearch/internal/rank"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Healthcheck(ctx context.Context) error
}

// ReviewSearcher answers semantic and lexical review queries.
type ReviewSearcher interface {
	Semantic(ctx context.Context, vector []float32, topK int) ([]rank.Candidate, error)
	Text(ctx context.Context, queryText string, topK int) ([]rank.Candidate, error)
}

// GameSearcher answers semantic game queries.
type GameSearcher interface {
	Semantic(ctx context.Context, vector []float32, topK int) ([]rank.Candidate, error)
}

// Request is one hybrid search invocation.
type Request struct {
	Query   string
	TopK    int
	Weights rank.Weights
}

// Service runs hybrid queries.
type Service struct {
	embedder  Embedder
	reviews   ReviewSearcher
	games     GameSearcher
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewService wires the query path. The collector may be nil.
func NewService(embedder Embedder, reviews ReviewSearcher, games GameSearcher, collector *metrics.Collector, logger *slog.Logger) *Service {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, reviews: reviews, games: games, collector: collector, logger: logger}
}

// Healthcheck gates the query path on a working embedding endpoint.
func (s *Service) Healthcheck(ctx context.Context) error {
	return s.embedder.Healthcheck(ctx)
}

// Search embeds the query, fetches semantic and lexical candidates, merges
// candidates appearing in both lists, and returns them ranked.
func (s *Service) Search(ctx context.Context, req Request) ([]rank.Candidate, error) {
	if req.TopK <= 0 {
		req.TopK = 10
	}

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, []string{req.Query})
	s.collector.RecordTiming(metrics.OpEmbedding, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vector := vectors[0]

	start = time.Now()
	semantic, err := s.reviews.Semantic(ctx, vector, req.TopK)
	if err != nil {
		return nil, err
	}
	lexical, err := s.reviews.Text(ctx, req.Query, req.TopK)
	s.collector.RecordTiming(metrics.OpStoreQuery, time.Since(start))
	if err != nil {
		return nil, err
	}

	merged := merge(semantic, lexical)

	start = time.Now()
	ranked := rank.Rank(merged, req.Weights)
	s.collector.RecordTiming(metrics.OpRank, time.Since(start))

	if len(ranked) > req.TopK {
		ranked = ranked[:req.TopK]
	}
	s.logger.Debug("hybrid search complete", "query", req.Query, "candidates", len(merged), "returned", len(ranked))
	return ranked, nil
}

// Probe embeds the probe text and returns the nearest games, exercising the
// store's resolved distance form.
func (s *Service) Probe(ctx context.Context, text string, topK int) ([]rank.Candidate, error) {
	if topK <= 0 {
		topK = 5
	}
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed probe text: %w", err)
	}
	return s.games.Semantic(ctx, vectors[0], topK)
}

// Metrics exposes the collected query timings.
func (s *Service) Metrics() metrics.Snapshot {
	return s.collector.Snapshot()
}

// merge combines the two candidate lists keyed by review id (or game id for
// review-less candidates), so a hit found by both paths carries both scores.
func merge(semantic, lexical []rank.Candidate) []rank.Candidate {
	type key struct{ gameID, reviewID string }

	index := make(map[key]int, len(semantic))
	out := make([]rank.Candidate, 0, len(semantic)+len(lexical))

	for _, c := range semantic {
		index[key{c.GameID, c.ReviewID}] = len(out)
		out = append(out, c)
	}
	for _, c := range lexical {
		k := key{c.GameID, c.ReviewID}
		if i, ok := index[k]; ok {
			out[i].TextScore = c.TextScore
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out
}
