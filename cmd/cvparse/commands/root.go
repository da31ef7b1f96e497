// Package commands implements the CLI commands for cvparse.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/cvparse/internal/config"
	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/output"
)

var rootCmd = &cobra.Command{
	Use:   "cvparse",
	Short: "Turn CV documents into structured, scored records",
	Long: `cvparse cleans CV documents (PDF, DOCX, HTML, text), parses them into
structured JSON with an LLM and optionally scores and ranks the candidates.

Documents are read from <data-dir>/raw. Cleaned texts, parsed records, scores
and rankings are written below <data-dir>/outputs and processing logs to
<data-dir>/processing_logs.

API keys are read from the environment or a .env file in the working
directory: GOOGLE_API_KEY (gemini), OPENAI_API_KEY, ANTHROPIC_API_KEY, or
GOOGLE_CLOUD_PROJECT for Vertex AI.

Examples:
  # Clean, parse, score and rank everything in data/raw
  cvparse run --score --rank

  # Only clean and normalize, no LLM calls
  cvparse clean

  # Parse one document to stdout with OpenAI
  cvparse parse data/raw/alice.pdf -p openai

  # Explain why one candidate outranks another
  cvparse compare data/outputs/scored_cvs/alice_scored.json data/outputs/scored_cvs/bob_scored.json`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.String("config", "", "config file (default $HOME/.cvparse.yaml or ./.cvparse.yaml)")
	flags.StringP("data-dir", "d", "data", "data directory containing raw/")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON lines")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: gemini, vertex, openai, anthropic, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key for the preferred provider (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.String("schema", "", "JSON/YAML schema file replacing the built-in CV schema")

	// Scoring settings
	flags.String("scoring-config", "", "scoring rubric YAML (default: built-in)")
	flags.String("mappings-dir", "", "directory overriding university, journal and venue mappings")
	flags.String("target-domain", "", "domain that experience is matched against")
	flags.Int("top-n", 10, "candidates listed in the ranking report")

	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("log.debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("log.quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log.json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("extraction.schema_file", flags.Lookup("schema"))
	_ = viper.BindPFlag("scoring.config_file", flags.Lookup("scoring-config"))
	_ = viper.BindPFlag("scoring.mappings_dir", flags.Lookup("mappings-dir"))
	_ = viper.BindPFlag("scoring.target_domain", flags.Lookup("target-domain"))
	_ = viper.BindPFlag("scoring.top_n", flags.Lookup("top-n"))
}

// setup loads .env, the config file and the environment, then configures logging.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	logger.Init(logger.Options{
		Debug: viper.GetBool("log.debug"),
		Quiet: viper.GetBool("log.quiet"),
		JSON:  viper.GetBool("log.json"),
	})
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// writeOut renders v to stdout in the --format format.
func writeOut(cmd *cobra.Command, v any) error {
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	w, err := output.NewWriter(os.Stdout, format)
	if err != nil {
		return err
	}
	if err := w.Write(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return w.Close()
}
