package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/ranking"
	"github.com/jmylchreest/cvparse/pkg/scoring"
	"github.com/jmylchreest/cvparse/pkg/status"
)

// DetailedComparison is the content of the first-versus-last explanation file.
type DetailedComparison struct {
	Comparison  *ranking.Comparison  `json:"comparison"`
	Explanation *ranking.Explanation `json:"explanation"`
}

// RankRun is the outcome of the ranking stage.
type RankRun struct {
	List         ranking.RankedList
	Report       ranking.Report
	Explanations []string
}

// Rank orders results, writes ranked_candidates.json and ranking_report.json,
// and explains each adjacent pair within the first topN plus the first
// candidate against the last.
func (p *Pipeline) Rank(ctx context.Context, results []*scoring.Result, topN int, at time.Time) (*RankRun, error) {
	if topN <= 0 {
		topN = ranking.DefaultTopN
	}
	if err := p.opts.Layout.EnsureDirs(); err != nil {
		return nil, err
	}

	ranked := ranking.Rank(results)
	run := &RankRun{
		List:   ranking.NewRankedList(ranked, at),
		Report: ranking.NewReport(ranked, topN),
	}
	if err := p.putJSON(ctx, RankedKey, run.List); err != nil {
		return run, stageError(status.StageRank, RankedKey, err)
	}
	if err := p.putJSON(ctx, RankingReportKey, run.Report); err != nil {
		return run, stageError(status.StageRank, RankingReportKey, err)
	}

	for i := 0; i+1 < min(topN, len(ranked)); i++ {
		a, b := ranked[i], ranked[i+1]
		name := fmt.Sprintf("rank%d_vs_rank%d_%s_vs_%s.json", a.Rank, b.Rank, stem(a.Result), stem(b.Result))
		if err := p.putJSON(ctx, ExplanationKey(name), ranking.Explain(a.Result, b.Result)); err != nil {
			return run, stageError(status.StageRank, name, err)
		}
		run.Explanations = append(run.Explanations, name)
	}
	if n := len(ranked); n >= 2 {
		first, last := ranked[0], ranked[n-1]
		name := fmt.Sprintf("rank1_vs_rank%d_detailed.json", last.Rank)
		detail := DetailedComparison{
			Comparison:  ranking.Compare(first.Result, last.Result),
			Explanation: ranking.Explain(first.Result, last.Result),
		}
		if err := p.putJSON(ctx, ExplanationKey(name), detail); err != nil {
			return run, stageError(status.StageRank, name, err)
		}
		run.Explanations = append(run.Explanations, name)
	}

	logger.Info("ranking finished", "run_id", p.opts.RunID, "candidates", len(ranked),
		"explanations", len(run.Explanations))
	return run, nil
}

func stem(r *scoring.Result) string {
	if s := StemFromExtracted(r.CVFilename); s != "" {
		return s
	}
	return r.CVFilename
}
