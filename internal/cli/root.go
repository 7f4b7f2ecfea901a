package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "riskprobe",
	Short: "riskprobe - Evidence-based fraud risk scoring for business subjects",
	Long: `riskprobe collects public evidence about a business subject from
search sources, classifies every result by source authority, and turns the
evidence into a fraud risk score with a recommended action.

It does not make legal determinations. Every score is backed by the
evidence atoms, signals and formulas that produced it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for riskprobe.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "riskprobe %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.riskprobe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "emit logs as JSON")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.json_logs", rootCmd.PersistentFlags().Lookup("log-json"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.riskprobe")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RISKPROBE_SOURCE_PRIMARY_API_KEY -> source.primary.api_key
	viper.SetEnvPrefix("RISKPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range configKeys(reflect.TypeOf(model.Config{}), "") {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges the config file, environment and bound flags over the built-in defaults
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyProviderEnv(&cfg)
	return cfg, nil
}

// applyProviderEnv fills reasoning service credentials from the provider's conventional variables
func applyProviderEnv(cfg *model.Config) {
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// configKeys lists every leaf key of the config struct in viper's dotted form
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
