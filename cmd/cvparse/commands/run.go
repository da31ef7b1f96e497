package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/cvparse/internal/config"
	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/parser"
	"github.com/jmylchreest/cvparse/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clean and parse every document in <data-dir>/raw",
	Long: `Run the cleaning, handling and parsing stages over every document in
<data-dir>/raw. Empty, corrupt, unsupported and duplicate documents are
skipped and recorded in the processing logs.

With --score the parsed records are scored, and with --rank the scored
candidates are ranked and explained.

Examples:
  cvparse run
  cvparse run --score --rank --target-domain "machine learning"
  cvparse run --resume --concurrency 4 -p anthropic`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean and normalize documents without calling an LLM",
	Long: `Run only the cleaning and handling stages. Cleaned texts are written to
<data-dir>/outputs/cleaned_texts and the cleaning log to
<data-dir>/processing_logs.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(runCmd, cleanCmd)

	flags := runCmd.Flags()
	flags.Bool("score", false, "score parsed records after the run")
	flags.Bool("rank", false, "rank scored candidates (implies --score)")
	flags.IntP("concurrency", "c", 1, "documents processed in parallel")
	flags.Bool("resume", false, "reuse existing parsed records instead of calling the LLM")
	flags.Bool("fail-on-error", false, "exit non-zero when any document fails")
	flags.Int("max-retries", 2, "extra LLM attempts after a validation, parse or rate-limit failure")
	flags.Bool("skip-handling", false, "parse stage-one text without secondary normalization")
	flags.String("max-content-size", "100KB", "max input content size (e.g., 100KB, 1MB, 0=unlimited)")

	_ = viper.BindPFlag("pipeline.concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("pipeline.resume", flags.Lookup("resume"))
	_ = viper.BindPFlag("pipeline.fail_on_error", flags.Lookup("fail-on-error"))
	_ = viper.BindPFlag("pipeline.skip_handling", flags.Lookup("skip-handling"))
	_ = viper.BindPFlag("extraction.max_retries", flags.Lookup("max-retries"))
	_ = viper.BindPFlag("extraction.max_content_size", flags.Lookup("max-content-size"))
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doRank, _ := cmd.Flags().GetBool("rank")
	doScore, _ := cmd.Flags().GetBool("score")
	doScore = doScore || doRank

	prs, ext, err := buildParser(cfg)
	if err != nil {
		logger.Error("failed to build extractor chain", "error", err)
		return err
	}
	res := &resources{}
	res.add(ext.Close)
	defer res.Close()

	p, summary, err := runPipeline(ctx, cmd, cfg, prs, res)
	if err != nil {
		return err
	}

	if doScore {
		if err := scoreAndRank(ctx, cfg, p, doRank); err != nil {
			return err
		}
	}

	if cfg.Pipeline.FailOnError && summary.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", summary.Failed, summary.Total)
	}
	return nil
}

func runClean(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res := &resources{}
	defer res.Close()

	_, _, err = runPipeline(ctx, cmd, cfg, nil, res)
	return err
}

// runPipeline runs stages one to three (two without a parser) and prints the summary.
func runPipeline(ctx context.Context, cmd *cobra.Command, cfg *config.Config, prs *parser.Parser, res *resources) (*pipeline.Pipeline, *pipeline.Summary, error) {
	p, err := buildPipeline(ctx, cfg, prs, res)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		return nil, nil, err
	}

	summary, err := p.Run(ctx)
	if summary != nil {
		tokens := 0
		for _, r := range summary.Results {
			if r.Record != nil {
				tokens += r.Record.InputTokens + r.Record.OutputTokens
			}
		}
		logger.Info("run complete",
			"documents", summary.Total,
			"parsed", summary.Parsed,
			"cleaned", summary.Cleaned,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"tokens", humanize.Comma(int64(tokens)),
			"elapsed", summary.Duration.Round(time.Millisecond).String())
		if werr := writeOut(cmd, summary); werr != nil {
			return p, summary, werr
		}
	}
	if err != nil {
		logger.Error("pipeline stopped", "error", err)
		return p, summary, err
	}
	return p, summary, nil
}
