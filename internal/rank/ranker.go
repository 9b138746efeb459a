// Package rank merges independent lexical and semantic scores into one
// deterministic ordering.
package rank

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// ReviewMeta carries the review fields used for tie-breaking.
type ReviewMeta struct {
	HelpfulVotes int       `json:"helpfulVotes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Candidate is a query-time search hit. Constructed fresh per query from
// repository data, never persisted.
type Candidate struct {
	GameID        string     `json:"gameId"`
	GameTitle     string     `json:"gameTitle"`
	ReviewID      string     `json:"reviewId,omitempty"`
	Excerpt       string     `json:"excerpt,omitempty"`
	TextScore     float64    `json:"textScore"`
	SemanticScore float64    `json:"semanticScore"`
	CombinedScore float64    `json:"combinedScore"`
	Meta          ReviewMeta `json:"reviewMeta"`
}

// Weights blends the two score components. Values are clamped to [0,1].
type Weights struct {
	Text     float64
	Semantic float64
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Rank computes combined scores and returns candidates in descending order
// with deterministic tie-breaks: combined score, then helpful votes, then
// recency, then game id ascending, then review id ascending. The result is
// a new slice; the input is left untouched.
func Rank(candidates []Candidate, weights Weights) []Candidate {
	wText := clamp01(weights.Text)
	wSemantic := clamp01(weights.Semantic)
	if wText+wSemantic == 0 {
		wText, wSemantic = 0.5, 0.5
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].CombinedScore = finite(ranked[i].SemanticScore)*wSemantic + finite(ranked[i].TextScore)*wText
	}

	slices.SortFunc(ranked, func(a, b Candidate) int {
		if c := cmp.Compare(b.CombinedScore, a.CombinedScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Meta.HelpfulVotes, a.Meta.HelpfulVotes); c != 0 {
			return c
		}
		if c := b.Meta.CreatedAt.Compare(a.Meta.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.GameID, b.GameID); c != 0 {
			return c
		}
		return cmp.Compare(a.ReviewID, b.ReviewID)
	})
	return ranked
}
