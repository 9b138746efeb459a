package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/gamesearch/internal/rank"
	"github.com/raphaelgruber/gamesearch/internal/search"
)

var (
	searchTop            int
	searchTextWeight     float64
	searchSemanticWeight float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid text + semantic search over ingested reviews",
	Long: `Search embeds the query, fetches semantic and lexical review candidates
from the document store, and prints them in combined-score order.

Examples:
  gamesearch search "cozy farming with friends"
  gamesearch search "souls-like but fair" --top 20
  gamesearch search "couch co-op" --text-weight 0.8 --semantic-weight 0.2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTop, "top", 10, "number of results")
	searchCmd.Flags().Float64Var(&searchTextWeight, "text-weight", -1, "lexical score weight (0-1)")
	searchCmd.Flags().Float64Var(&searchSemanticWeight, "semantic-weight", -1, "semantic score weight (0-1)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	svc, _, err := buildSearchService(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := svc.Healthcheck(ctx); err != nil {
		return fmt.Errorf("embedding service unavailable: %w", err)
	}

	weights := rank.Weights{Text: cfg.Rank.TextWeight, Semantic: cfg.Rank.SemanticWeight}
	if searchTextWeight >= 0 {
		weights.Text = searchTextWeight
	}
	if searchSemanticWeight >= 0 {
		weights.Semantic = searchSemanticWeight
	}

	results, err := svc.Search(ctx, search.Request{
		Query:   query,
		TopK:    searchTop,
		Weights: weights,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	printCandidates(results)
	return nil
}

func printCandidates(results []rank.Candidate) {
	for i, c := range results {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, c.CombinedScore, c.GameTitle, c.GameID)
		if c.Excerpt != "" {
			fmt.Printf("      %s\n", c.Excerpt)
		}
		fmt.Printf("      text=%.3f semantic=%.3f votes=%d\n",
			c.TextScore, c.SemanticScore, c.Meta.HelpfulVotes)
	}
}
