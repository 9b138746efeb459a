package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var probeTop int

var probeCmd = &cobra.Command{
	Use:   "probe <text>",
	Short: "Resolve the store's distance form and show nearest games",
	Long: `Probe embeds the given text, lets the store negotiate its VectorDistance
call signature, and prints the nearest games. Useful for checking that the
vector index and the resolved distance form work end to end.

Example:
  gamesearch probe "atmospheric exploration"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVar(&probeTop, "top", 5, "number of matches to print")
}

func runProbe(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	svc, client, err := buildSearchService(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("document store check: %w", err)
	}

	matches, err := svc.Probe(ctx, text, probeTop)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, m := range matches {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, m.SemanticScore, m.GameTitle, m.GameID)
	}
	return nil
}
