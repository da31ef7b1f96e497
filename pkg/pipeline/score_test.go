package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/ranking"
	"github.com/jmylchreest/cvparse/pkg/scoring"
)

func writeExtracted(t *testing.T, l Layout, name string, v any) {
	t.Helper()
	require.NoError(t, l.EnsureDirs())
	var data []byte
	switch v := v.(type) {
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(v)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(l.Path(ExtractedDir+"/"+name), data, 0o600))
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

var (
	strongCV = &cv.CV{
		Education:  []cv.Education{{Degree: "PhD", University: "Stanford University", GPA: cv.Float(3.9), Scale: cv.Float(4)}},
		Experience: []cv.Experience{{Title: "Lead Scientist", Org: "Lab", Domain: "ML", DurationMonths: cv.Int(60)}},
		Publications: []cv.Publication{
			{Title: "P", Venue: "NeurIPS", Type: "Conference", AuthorPosition: cv.Int(1), EvidenceSpan: "P, NeurIPS 2022"},
		},
	}
	weakCV = &cv.CV{
		Education: []cv.Education{{Degree: "BSc", University: "Unknown College"}},
	}
)

func TestScore(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, root, nil)
	l := p.opts.Layout
	writeExtracted(t, l, "alice.json", strongCV)
	writeExtracted(t, l, "bob.json", weakCV)
	writeExtracted(t, l, "broken.json", "{")

	run, err := p.Score(context.Background(), scoring.NewAggregator(nil, nil))
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	assert.Equal(t, []string{"broken.json"}, run.Failed)
	assert.Equal(t, "alice.json", run.Results[0].CVFilename)
	assert.Greater(t, run.Results[0].FinalScore, run.Results[1].FinalScore)

	var scored ScoredCV
	readJSON(t, l.Path(ScoredKey("alice")), &scored)
	assert.Equal(t, "alice.json", scored.Metadata.Filename)
	assert.Equal(t, l.Path(ExtractedKey("alice")), scored.Metadata.OriginalJSONPath)
	require.NotNil(t, scored.ScoringResults)
	assert.Equal(t, run.Results[0].FinalScore, scored.ScoringResults.FinalScore)
	assert.Len(t, scored.CVData.Publications, 1)

	var summary ScoringSummary
	readJSON(t, l.Path(ScoringSummaryKey), &summary)
	assert.Equal(t, 2, summary.TotalCVsScored)
	require.Len(t, summary.Scores, 2)
	assert.Equal(t, "bob.json", summary.Scores[1].Filename)
	assert.InDelta(t, 0.30, summary.ConfigUsed.Weights.Education, 1e-9)
}

func TestScore_Cancelled(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, root, nil)
	writeExtracted(t, p.opts.Layout, "alice.json", strongCV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Score(ctx, scoring.NewAggregator(nil, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, p.opts.Layout.Path(ScoredKey("alice")))
}

func TestLoadScored(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, root, nil)
	writeExtracted(t, p.opts.Layout, "alice.json", strongCV)
	writeExtracted(t, p.opts.Layout, "bob.json", weakCV)
	_, err := p.Score(context.Background(), scoring.NewAggregator(nil, nil))
	require.NoError(t, err)

	results, err := p.LoadScored()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alice.json", results[0].CVFilename)
	assert.NotEmpty(t, results[0].CriterionScores)
}

func TestLoadResult(t *testing.T) {
	dir := t.TempDir()

	record := filepath.Join(dir, "carol.json")
	data, err := json.Marshal(weakCV)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(record, data, 0o600))
	res, err := LoadResult(record, nil)
	require.NoError(t, err)
	assert.Equal(t, "carol.json", res.CVFilename)
	assert.Greater(t, res.FinalScore, 0.0)

	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"foo": 1}`), 0o600))
	_, err = LoadResult(other, nil)
	assert.ErrorIs(t, err, errNotScoreable)

	null := filepath.Join(dir, "null_scored.json")
	require.NoError(t, os.WriteFile(null, []byte(`{"scoring_results": null}`), 0o600))
	_, err = LoadResult(null, nil)
	assert.ErrorIs(t, err, errNotScoreable)

	_, err = LoadResult(filepath.Join(dir, "missing.json"), nil)
	assert.Error(t, err)
}

// --- Rank Tests ---

func result(name string, final float64) *scoring.Result {
	return &scoring.Result{CVFilename: name, FinalScore: final, FinalScorePercentage: final * 100}
}

func TestRank(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, root, nil)
	l := p.opts.Layout
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	results := []*scoring.Result{result("bob.json", 0.4), result("alice.json", 0.8), result("carol.json", 0.6)}
	run, err := p.Rank(context.Background(), results, 10, at)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rank1_vs_rank2_alice_vs_carol.json",
		"rank2_vs_rank3_carol_vs_bob.json",
		"rank1_vs_rank3_detailed.json",
	}, run.Explanations)
	for _, name := range run.Explanations {
		assert.FileExists(t, l.Path(ExplanationKey(name)))
	}

	var list struct {
		TotalCandidates  int    `json:"total_candidates"`
		RankingDate      string `json:"ranking_date"`
		RankedCandidates []struct {
			Rank       int     `json:"rank"`
			CVFilename string  `json:"cv_filename"`
			FinalScore float64 `json:"final_score"`
		} `json:"ranked_candidates"`
	}
	readJSON(t, l.Path(RankedKey), &list)
	assert.Equal(t, 3, list.TotalCandidates)
	assert.Equal(t, "2025-01-02 03:04:05", list.RankingDate)
	require.Len(t, list.RankedCandidates, 3)
	assert.Equal(t, 1, list.RankedCandidates[0].Rank)
	assert.Equal(t, "alice.json", list.RankedCandidates[0].CVFilename)

	var report ranking.Report
	readJSON(t, l.Path(RankingReportKey), &report)
	assert.Equal(t, 3, report.TotalCandidates)
	assert.Len(t, report.TopN, 3)

	var detail DetailedComparison
	readJSON(t, l.Path(ExplanationKey("rank1_vs_rank3_detailed.json")), &detail)
	assert.Equal(t, ranking.WinnerA, detail.Comparison.Winner)
	assert.Equal(t, "alice.json", detail.Explanation.CVA)
}

func TestRank_TopNLimitsPairs(t *testing.T) {
	p := newPipeline(t, t.TempDir(), nil)
	results := []*scoring.Result{result("a.json", 0.9), result("b.json", 0.8), result("c.json", 0.7), result("d.json", 0.6)}

	run, err := p.Rank(context.Background(), results, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"rank1_vs_rank2_a_vs_b.json", "rank1_vs_rank4_detailed.json"}, run.Explanations)
	assert.Len(t, run.Report.TopN, 2)
}

func TestRank_Single(t *testing.T) {
	p := newPipeline(t, t.TempDir(), nil)
	run, err := p.Rank(context.Background(), []*scoring.Result{result("a.json", 0.5)}, 0, time.Now())
	require.NoError(t, err)
	assert.Empty(t, run.Explanations)
	assert.Equal(t, 1, run.List.TotalCandidates)
}
