package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/logging"
	"github.com/ppiankov/riskprobe/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	searchSource     string
	searchMaxResults int
	searchRegion     string
	searchJSON       bool
	searchTimeout    = 30 * time.Second
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one raw query against an evidence source",
	Long: `Search sends a single query to an evidence source and prints the results
without scoring. Useful for checking credentials, quota and what a source
returns for a subject.

Example:
  riskprobe search "Acme Payments Ltd FCA register"
  riskprobe search "Acme Payments Ltd" --source direct --max-results 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchSource, "source", "", "source id (default: primary)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 10, "maximum results to return")
	searchCmd.Flags().StringVar(&searchRegion, "region", "", "region hint for the source")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw response as JSON")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", searchTimeout, "search timeout")
	shared.register(searchCmd.Flags())
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shared.apply(cmd.Flags(), &cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	logger := logging.New(cfg.Output.Verbose, cfg.Output.JSONLogs)
	rt, err := pipeline.Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	source := rt.Registry.Primary()
	if searchSource != "" {
		var ok bool
		if source, ok = rt.Registry.Get(searchSource); !ok {
			return fmt.Errorf("unknown source %q", searchSource)
		}
	}

	resp, err := source.Search(ctx, args[0], connector.SearchOptions{MaxResults: searchMaxResults, Region: searchRegion})
	if err != nil {
		return fmt.Errorf("search %s failed (%s): %w", source.ID(), connector.GetCategory(err), err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	cached := ""
	if resp.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(os.Stderr, "✓ %d results from %s%s\n\n", len(resp.Results), resp.Source, cached)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
	}
	return nil
}
