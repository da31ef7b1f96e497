package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cvparse/internal/config"
	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/pipeline"
	"github.com/jmylchreest/cvparse/pkg/ranking"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every parsed record in <data-dir>/outputs/extracted_jsons",
	Long: `Score parsed CV records against the scoring rubric. Each record gets a
<stem>_scored.json in outputs/scored_cvs and the scores are summarized in
outputs/scoring_summary.json.

Examples:
  cvparse score
  cvparse score --target-domain "natural language processing"
  cvparse score --scoring-config rubric.yaml --mappings-dir ./mappings`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank scored candidates and explain adjacent pairs",
	Long: `Rank the candidates in outputs/scored_cvs by final score. Writes
outputs/ranked_candidates.json, outputs/ranking_report.json and pairwise
explanations in outputs/explanations.`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

var compareCmd = &cobra.Command{
	Use:   "compare <cv-a> <cv-b>",
	Short: "Compare two candidates criterion by criterion",
	Long: `Compare two candidates. Each argument is a scored file from
outputs/scored_cvs or a parsed record from outputs/extracted_jsons, which is
scored on the fly.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(scoreCmd, rankCmd, compareCmd)
}

func scorePipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{Layout: pipeline.NewLayout(cfg.DataDir), Store: store})
}

// scoreAndRank scores the parsed records and, when rank is set, ranks them.
func scoreAndRank(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, rank bool) error {
	agg, err := buildAggregator(cfg)
	if err != nil {
		logger.Error("failed to load scoring rubric", "error", err)
		return err
	}
	run, err := p.Score(ctx, agg)
	if err != nil {
		return err
	}
	if !rank {
		return nil
	}
	_, err = p.Rank(ctx, run.Results, cfg.Scoring.TopN, time.Now())
	return err
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := scorePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	agg, err := buildAggregator(cfg)
	if err != nil {
		logger.Error("failed to load scoring rubric", "error", err)
		return err
	}
	run, err := p.Score(ctx, agg)
	if err != nil {
		return err
	}
	return writeOut(cmd, run.Summary)
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := scorePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	results, err := p.LoadScored()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errors.New("no scored candidates found; run 'cvparse score' first")
	}
	run, err := p.Rank(ctx, results, cfg.Scoring.TopN, time.Now())
	if err != nil {
		return err
	}
	return writeOut(cmd, run.Report)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	agg, err := buildAggregator(cfg)
	if err != nil {
		return err
	}
	a, err := pipeline.LoadResult(args[0], agg)
	if err != nil {
		return err
	}
	b, err := pipeline.LoadResult(args[1], agg)
	if err != nil {
		return err
	}
	return writeOut(cmd, pipeline.DetailedComparison{
		Comparison:  ranking.Compare(a, b),
		Explanation: ranking.Explain(a, b),
	})
}
