package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ppiankov/riskprobe/internal/logging"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/pipeline"
	"github.com/ppiankov/riskprobe/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency   int
	outputDir     string
	batchTimeout  time.Duration
	batchEnhanced bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple subjects from a YAML file in parallel",
	Long: `Batch analyzes many subject profiles concurrently:
- Read profiles from a YAML file (a list, or a mapping with a "profiles" key)
- Analyze profiles in parallel with a configurable worker count
- All workers share one rate limiter and query cache
- Generate individual JSON and Markdown reports for each subject

Example:
  riskprobe batch profiles.yaml
  riskprobe batch profiles.yaml --concurrency 4 --output-dir ./reports
  riskprobe batch profiles.yaml --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./riskprobe-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 20*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchEnhanced, "enhanced", false, "deeper research and include evidence atoms in every report")

	shared.register(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shared.apply(cmd.Flags(), &cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = 1
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  riskprobe Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	logger := logging.New(cfg.Output.Verbose, cfg.Output.JSONLogs)
	rt, err := pipeline.Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	opts := pipeline.Options{Enhanced: batchEnhanced}
	processor := worker.NewBatchProcessor(func(ctx context.Context, profile model.SubjectProfile) (*model.AnalysisResult, error) {
		return rt.Pipeline.Analyze(ctx, profile, opts)
	}, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing profiles with %d workers...\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	successCount := 0
	failureCount := 0
	used := make(map[string]int)

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Profile.Name, result.Error)
			continue
		}

		slug := uniqueSlug(sanitizeFilename(result.Profile.Name), used)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderReport(result.Result, jsonPath, mdPath, nil); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Profile.Name, err)
			continue
		}

		successCount++
		marker := "✓"
		if result.Result.Degraded {
			marker = "⚠️ "
		}
		fmt.Fprintf(os.Stderr, "%s %s (score: %d/100, %s risk, %s)\n",
			marker, result.Profile.Name, result.Result.FraudScore, result.Result.RiskLevel, result.Result.RecommendedAction)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d subjects\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a subject name into a lowercase file slug
func sanitizeFilename(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if runes := []rune(slug); len(runes) > 100 {
		slug = strings.TrimSuffix(string(runes[:100]), "-")
	}
	if slug == "" {
		slug = "subject"
	}
	return slug
}

// uniqueSlug suffixes repeated slugs so reports never overwrite each other
func uniqueSlug(slug string, used map[string]int) string {
	used[slug]++
	if n := used[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}
