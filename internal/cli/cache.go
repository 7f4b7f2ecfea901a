package cli

import (
	"fmt"

	"github.com/ppiankov/riskprobe/internal/cache"
	"github.com/ppiankov/riskprobe/internal/logging"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the query cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached search response",
	Long: `Clear empties the configured query cache backend (memory and disk
layers, or the shared Redis keyspace). The next analysis queries every source fresh.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := logging.New(cfg.Output.Verbose, cfg.Output.JSONLogs)
		qc, err := cache.New(cmd.Context(), cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		if qc == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled, nothing to clear")
			return nil
		}
		if closer, ok := qc.(interface{ Close() error }); ok {
			defer func() { _ = closer.Close() }()
		}

		if err := qc.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
