package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage riskprobe configuration",
	Long: `Manage riskprobe configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (RISKPROBE_*, e.g. RISKPROBE_SOURCE_PRIMARY_API_KEY)
3. Config file (~/.riskprobe/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file and environment. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)

		yamlData, err := yaml.Marshal(maskSecrets(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Fprintln(out, string(yamlData))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "⚠️  %v\n\n", err)
		}

		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration hierarchy (highest to lowest priority):")
		fmt.Fprintln(out, "  1. CLI flags")
		fmt.Fprintln(out, "  2. Environment variables (RISKPROBE_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)")
		fmt.Fprintln(out, "  3. Config file (~/.riskprobe/config.yaml)")
		fmt.Fprintln(out, "  4. Defaults")
		fmt.Fprintln(out)

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.riskprobe/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".riskprobe", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nSet the search API key before the first run:\n")
		fmt.Fprintf(out, "  export RISKPROBE_SOURCE_PRIMARY_API_KEY=...\n")
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  riskprobe config show\n")
		fmt.Fprintf(out, "\n")

		return nil
	},
}

// writeDefaultConfig writes the built-in defaults to path, refusing to overwrite
func writeDefaultConfig(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'riskprobe config show' to view it, or delete it first to recreate", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// The file will hold API keys once edited
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := "# riskprobe configuration\n" +
		"#\n" +
		"# Configuration hierarchy (highest to lowest priority):\n" +
		"#   1. CLI flags\n" +
		"#   2. Environment variables (RISKPROBE_*)\n" +
		"#   3. This config file\n" +
		"#   4. Built-in defaults\n\n"
	footer := "\n# API keys (recommended to use environment variables instead):\n" +
		"#   export RISKPROBE_SOURCE_PRIMARY_API_KEY=...\n" +
		"#   export OPENAI_API_KEY=sk-...\n" +
		"#   export ANTHROPIC_API_KEY=sk-ant-...\n" +
		"#   export OLLAMA_BASE_URL=http://localhost:11434\n"

	for _, chunk := range [][]byte{[]byte(header), yamlData, []byte(footer)} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}
	}
	return nil
}

// maskSecrets hides credentials before the config is printed
func maskSecrets(cfg model.Config) model.Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	cfg.Source.Primary.APIKey = mask(cfg.Source.Primary.APIKey)
	cfg.LLM.APIKey = mask(cfg.LLM.APIKey)
	cfg.Server.AuthToken = mask(cfg.Server.AuthToken)
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
