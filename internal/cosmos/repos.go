package cosmos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/raphaelgruber/gamesearch/internal/rank"
)

const excerptLimit = 200

// reviewHit is the projection returned by review queries.
type reviewHit struct {
	ID           string    `json:"id"`
	GameID       string    `json:"gameId"`
	GameTitle    string    `json:"gameTitle"`
	Text         string    `json:"text"`
	HelpfulVotes int       `json:"helpfulVotes"`
	CreatedAt    time.Time `json:"createdAt"`
	Score        float64   `json:"score"`
}

// gameHit is the projection returned by game queries.
type gameHit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// ReviewsRepo issues vector and text queries against the reviews container.
type ReviewsRepo struct {
	q        Querier
	resolver *Resolver
	cfg      Config
	pref     Preference
}

// NewReviewsRepo creates a repository over the configured reviews container.
func NewReviewsRepo(q Querier, resolver *Resolver, cfg Config) *ReviewsRepo {
	return &ReviewsRepo{q: q, resolver: resolver, cfg: cfg, pref: ParsePreference(cfg.FormPreference)}
}

// Semantic returns the top-k reviews nearest to the query vector, with the
// store's distance score as the semantic score.
func (r *ReviewsRepo) Semantic(ctx context.Context, vector []float32, topK int) ([]rank.Candidate, error) {
	form := r.resolver.Resolve(ctx, r.q, r.cfg.Database, r.cfg.ReviewsContainer, r.cfg.VectorField, r.cfg.Metric, vector, r.pref)
	dist := form.DistanceExpr(r.cfg.VectorField, "@qv", r.cfg.Metric)

	query := fmt.Sprintf(
		"SELECT TOP @k c.id, c.gameId, c.gameTitle, c.text, c.helpfulVotes, c.createdAt, %s AS score FROM c ORDER BY %s",
		dist, dist)
	params := []azcosmos.QueryParameter{
		{Name: "@k", Value: topK},
		{Name: "@qv", Value: vector},
	}

	items, err := r.q.Query(ctx, r.cfg.ReviewsContainer, query, params)
	if err != nil {
		return nil, fmt.Errorf("semantic review query: %w", err)
	}

	hits, err := decodeReviewHits(items)
	if err != nil {
		return nil, err
	}
	out := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		c := reviewCandidate(hit)
		c.SemanticScore = hit.Score
		out = append(out, c)
	}
	return out, nil
}

// Text returns reviews matching the query terms, scored by the fraction of
// terms each review contains. The score is computed locally so it stays
// independent of the store's ranking behavior.
func (r *ReviewsRepo) Text(ctx context.Context, queryText string, topK int) ([]rank.Candidate, error) {
	terms := splitTerms(queryText)
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		clauses []string
		params  = []azcosmos.QueryParameter{{Name: "@k", Value: topK}}
	)
	for i, term := range terms {
		name := fmt.Sprintf("@t%d", i)
		clauses = append(clauses, fmt.Sprintf("CONTAINS(c.text, %s, true)", name))
		params = append(params, azcosmos.QueryParameter{Name: name, Value: term})
	}
	query := fmt.Sprintf(
		"SELECT TOP @k c.id, c.gameId, c.gameTitle, c.text, c.helpfulVotes, c.createdAt FROM c WHERE %s",
		strings.Join(clauses, " OR "))

	items, err := r.q.Query(ctx, r.cfg.ReviewsContainer, query, params)
	if err != nil {
		return nil, fmt.Errorf("text review query: %w", err)
	}

	hits, err := decodeReviewHits(items)
	if err != nil {
		return nil, err
	}
	out := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		c := reviewCandidate(hit)
		// Score against the full review text; the excerpt may cut off the
		// matching term.
		c.TextScore = termScore(hit.Text, hit.GameTitle, terms)
		out = append(out, c)
	}
	return out, nil
}

func decodeReviewHits(items [][]byte) ([]reviewHit, error) {
	hits := make([]reviewHit, 0, len(items))
	for _, raw := range items {
		var hit reviewHit
		if err := json.Unmarshal(raw, &hit); err != nil {
			return nil, fmt.Errorf("decode review hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func reviewCandidate(hit reviewHit) rank.Candidate {
	return rank.Candidate{
		GameID:    hit.GameID,
		GameTitle: hit.GameTitle,
		ReviewID:  hit.ID,
		Excerpt:   excerpt(hit.Text),
		Meta: rank.ReviewMeta{
			HelpfulVotes: hit.HelpfulVotes,
			CreatedAt:    hit.CreatedAt,
		},
	}
}

// GamesRepo issues vector queries against the games container.
type GamesRepo struct {
	q        Querier
	resolver *Resolver
	cfg      Config
	pref     Preference
}

// NewGamesRepo creates a repository over the configured games container.
func NewGamesRepo(q Querier, resolver *Resolver, cfg Config) *GamesRepo {
	return &GamesRepo{q: q, resolver: resolver, cfg: cfg, pref: ParsePreference(cfg.FormPreference)}
}

// Semantic returns the top-k games nearest to the query vector.
func (g *GamesRepo) Semantic(ctx context.Context, vector []float32, topK int) ([]rank.Candidate, error) {
	form := g.resolver.Resolve(ctx, g.q, g.cfg.Database, g.cfg.GamesContainer, g.cfg.VectorField, g.cfg.Metric, vector, g.pref)
	dist := form.DistanceExpr(g.cfg.VectorField, "@qv", g.cfg.Metric)

	query := fmt.Sprintf("SELECT TOP @k c.id, c.title, %s AS score FROM c ORDER BY %s", dist, dist)
	params := []azcosmos.QueryParameter{
		{Name: "@k", Value: topK},
		{Name: "@qv", Value: vector},
	}

	items, err := g.q.Query(ctx, g.cfg.GamesContainer, query, params)
	if err != nil {
		return nil, fmt.Errorf("semantic game query: %w", err)
	}

	out := make([]rank.Candidate, 0, len(items))
	for _, raw := range items {
		var hit gameHit
		if err := json.Unmarshal(raw, &hit); err != nil {
			return nil, fmt.Errorf("decode game hit: %w", err)
		}
		out = append(out, rank.Candidate{
			GameID:        hit.ID,
			GameTitle:     hit.Title,
			SemanticScore: hit.Score,
		})
	}
	return out, nil
}

func splitTerms(queryText string) []string {
	fields := strings.Fields(strings.ToLower(queryText))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

func termScore(text, title string, terms []string) float64 {
	haystack := strings.ToLower(text + " " + title)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptLimit]) + "..."
}
