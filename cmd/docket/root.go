package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "docket",
	Short: "Legal document structuring and translation pipeline",
	Long: `Docket splits extracted legal documents into anchored sections and
translates them through a language-model provider.

The pipeline includes:
  - Section detection (headers, legal patterns, heuristics) with stable anchors
  - Shared per-provider rate limits and retries with backoff
  - Usage and cost metrics
  - Parsing of translated output back into sections and flagged risks`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docket/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docket home directory (default: $DOCKET_HOME or ~/.docket)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default: log_level from config)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(limitsCmd)
	rootCmd.AddCommand(providersCmd)
}
