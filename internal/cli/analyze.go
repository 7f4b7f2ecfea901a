package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/logging"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	description string
	region      string
	industry    string
	enhanced    bool
	outJSON     string
	outMD       string
	timeout     time.Duration
)

// runFlags are the config overrides shared by analyze, batch and search
type runFlags struct {
	userAgent   string
	noCache     bool
	noFooter    bool
	insecureTLS bool
	noFallback  bool
	parallel    bool
	httpProxy   string
	httpsProxy  string
	llmProvider string
	llmModel    string
	noNarrative bool
}

var shared runFlags

// register adds the shared flags to a command
func (f *runFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.userAgent, "ua", "", "HTTP User-Agent (default from config)")
	flags.BoolVar(&f.noCache, "no-cache", false, "disable the query cache (force fresh searches)")
	flags.BoolVar(&f.noFooter, "no-footer", false, "disable footer in Markdown reports")
	flags.BoolVar(&f.insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	flags.BoolVar(&f.noFallback, "no-fallback", false, "never use the direct HTTP fallback source")
	flags.BoolVar(&f.parallel, "parallel", false, "run evidence queries concurrently")
	flags.StringVar(&f.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.StringVar(&f.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.StringVar(&f.llmProvider, "llm-provider", "", "reasoning service for narratives (openai, anthropic, ollama)")
	flags.StringVar(&f.llmModel, "llm-model", "", "reasoning service model name")
	flags.BoolVar(&f.noNarrative, "no-narrative", false, "skip narrative synthesis")
}

// apply overrides cfg with the flags the user actually set
func (f *runFlags) apply(flags *pflag.FlagSet, cfg *model.Config) {
	if flags.Changed("ua") {
		cfg.HTTP.UserAgent = f.userAgent
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !f.noCache
	}
	if flags.Changed("no-footer") {
		cfg.Output.IncludeFooter = !f.noFooter
	}
	if flags.Changed("insecure") {
		cfg.HTTP.InsecureTLS = f.insecureTLS
	}
	if flags.Changed("no-fallback") {
		cfg.Source.Fallback.Disabled = f.noFallback
	}
	if flags.Changed("parallel") {
		cfg.Collection.Parallel = f.parallel
	}
	if flags.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = f.httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = f.httpsProxy
	}
	if flags.Changed("llm-provider") {
		cfg.LLM.Provider = f.llmProvider
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = f.llmModel
	}
	if flags.Changed("no-narrative") {
		cfg.Narrative.Enabled = !f.noNarrative
	}
	applyProviderEnv(cfg)
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <name>",
	Short: "Analyze one subject and generate a fraud risk report",
	Long: `Analyze runs one business subject through the full pipeline:
- Triage the description and pick a research strategy
- Query evidence sources with budgeted, prioritized queries
- Classify every result by source authority
- Score legitimacy, fraud, regulatory and sentiment signals
- Explain the result in a narrative

Example:
  riskprobe analyze "Acme Payments Ltd" --region UK --industry fintech
  riskprobe analyze "Acme Payments Ltd" -d "Registered with the FCA" --json acme.json --md acme.md
  riskprobe analyze "QuickYield" --enhanced --llm-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Subject flags
	analyzeCmd.Flags().StringVarP(&description, "description", "d", "", "free-text description of the subject")
	analyzeCmd.Flags().StringVar(&region, "region", "", "region or jurisdiction (e.g. UK, US)")
	analyzeCmd.Flags().StringVar(&industry, "industry", "", "industry (e.g. fintech, crypto)")
	analyzeCmd.Flags().BoolVar(&enhanced, "enhanced", false, "deeper research and include evidence atoms in the report")

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")

	shared.register(analyzeCmd.Flags())
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shared.apply(cmd.Flags(), &cfg)

	logger := logging.New(cfg.Output.Verbose, cfg.Output.JSONLogs)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	rt, err := pipeline.Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	profile := model.SubjectProfile{
		Name:        args[0],
		Description: description,
		Region:      region,
		Industry:    industry,
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", profile.Name)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "⚙️  Collecting evidence...\n")
	}

	result, err := rt.Pipeline.Analyze(ctx, profile, pipeline.Options{Enhanced: enhanced})
	if err != nil {
		if errors.Is(err, connector.ErrQuotaExhausted) {
			return fmt.Errorf("analysis aborted, evidence source quota exhausted: %w", err)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	if cfg.Output.Verbose && result.Collection != nil {
		fmt.Fprintf(os.Stderr, "✓ Issued %d queries\n", result.Collection.QueriesIssued)
		fmt.Fprintf(os.Stderr, "✓ Collected %d evidence atoms\n", result.EvidenceBreakdown.Total)
		if result.Narrative != nil {
			fmt.Fprintf(os.Stderr, "✓ Narrative from %s\n", result.Narrative.Source)
		}
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	if err := renderer.RenderReport(result, outJSON, outMD, os.Stderr); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	pipeline.WriteSummary(cmd.OutOrStdout(), result)
	return nil
}
