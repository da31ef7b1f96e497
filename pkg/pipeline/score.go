package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/output"
	"github.com/jmylchreest/cvparse/internal/storage"
	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/scoring"
	"github.com/jmylchreest/cvparse/pkg/status"
)

// ScoredMetadata identifies the record a score was computed from.
type ScoredMetadata struct {
	Filename         string `json:"filename"`
	OriginalJSONPath string `json:"original_json_path"`
}

// ScoredCV is the content of scored_cvs/<stem>_scored.json.
type ScoredCV struct {
	Metadata       ScoredMetadata  `json:"metadata"`
	CVData         *cv.CV          `json:"cv_data"`
	ScoringResults *scoring.Result `json:"scoring_results"`
}

// ScoreEntry is one line of the scoring summary.
type ScoreEntry struct {
	Filename             string  `json:"filename"`
	FinalScore           float64 `json:"final_score"`
	FinalScorePercentage float64 `json:"final_score_percentage"`
}

// ScoringSummary is the content of scoring_summary.json.
type ScoringSummary struct {
	TotalCVsScored int             `json:"total_cvs_scored"`
	ConfigUsed     *scoring.Config `json:"config_used"`
	Scores         []ScoreEntry    `json:"scores"`
}

// ScoreRun is the outcome of the scoring stage.
type ScoreRun struct {
	Summary ScoringSummary
	Results []*scoring.Result
	Failed  []string
}

// Score rates every record in extracted_jsons and writes one scored file per
// record plus the scoring summary. Unreadable records are logged and skipped.
func (p *Pipeline) Score(ctx context.Context, agg *scoring.Aggregator) (*ScoreRun, error) {
	layout := p.opts.Layout
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	files, err := layout.ListExtracted()
	if err != nil {
		return nil, err
	}
	logger.Info("scoring started", "run_id", p.opts.RunID, "records", len(files),
		"target_domain", agg.Config().Policies.TargetDomain)

	run := &ScoreRun{Summary: ScoringSummary{ConfigUsed: agg.Config(), Scores: []ScoreEntry{}}}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return run, fmt.Errorf("scoring interrupted: %w", err)
		}
		name := filepath.Base(file)
		res, err := p.scoreFile(ctx, agg, file)
		if err != nil {
			logger.Warn("scoring failed", "document", name, "error", err)
			run.Failed = append(run.Failed, name)
			continue
		}
		run.Results = append(run.Results, res)
		run.Summary.Scores = append(run.Summary.Scores, ScoreEntry{
			Filename:             res.CVFilename,
			FinalScore:           res.FinalScore,
			FinalScorePercentage: res.FinalScorePercentage,
		})
		logger.Debug("document scored", "document", name, "score", res.FinalScorePercentage)
	}
	run.Summary.TotalCVsScored = len(run.Results)

	if err := p.putJSON(ctx, ScoringSummaryKey, run.Summary); err != nil {
		return run, stageError(status.StageScore, ScoringSummaryKey, err)
	}
	logger.Info("scoring finished", "run_id", p.opts.RunID, "scored", len(run.Results),
		"failed", len(run.Failed))
	return run, nil
}

func (p *Pipeline) scoreFile(ctx context.Context, agg *scoring.Aggregator, path string) (*scoring.Result, error) {
	name := filepath.Base(path)
	c, err := cv.Load(path)
	if err != nil {
		return nil, stageError(status.StageScore, name, err)
	}
	res := agg.Score(c)
	res.CVFilename = name
	res.CVPath = path

	scored := ScoredCV{
		Metadata:       ScoredMetadata{Filename: name, OriginalJSONPath: path},
		CVData:         c,
		ScoringResults: res,
	}
	if err := p.putJSON(ctx, ScoredKey(StemFromExtracted(name)), scored); err != nil {
		return nil, stageError(status.StageScore, name, err)
	}
	return res, nil
}

func (p *Pipeline) putJSON(ctx context.Context, key string, v any) error {
	data, err := output.Marshal(v, "  ")
	if err != nil {
		return err
	}
	return p.opts.Store.Put(ctx, key, data, storage.ContentTypeJSON)
}

// LoadScored reads every scored file written by Score.
func (p *Pipeline) LoadScored() ([]*scoring.Result, error) {
	files, err := p.opts.Layout.ListScored()
	if err != nil {
		return nil, err
	}
	results := make([]*scoring.Result, 0, len(files))
	for _, file := range files {
		res, err := LoadResult(file, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// LoadResult reads a scored file. A parsed record is accepted too and scored
// with agg, which may be nil for the default rubric.
func LoadResult(path string, agg *scoring.Aggregator) (*scoring.Result, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, ok := probe["scoring_results"]; ok {
		var scored ScoredCV
		if err := json.Unmarshal(data, &scored); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		res := scored.ScoringResults
		if res == nil {
			return nil, fmt.Errorf("%s: %w", path, errNotScoreable)
		}
		if res.CVFilename == "" {
			res.CVFilename = strings.TrimSuffix(filepath.Base(path), "_scored.json") + ".json"
		}
		return res, nil
	}

	if !hasAny(probe, "education", "experience", "publications", "awards") {
		return nil, fmt.Errorf("%s: %w", path, errNotScoreable)
	}
	c, err := cv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if agg == nil {
		agg = scoring.NewAggregator(nil, nil)
	}
	res := agg.Score(c)
	res.CVFilename = filepath.Base(path)
	res.CVPath = path
	return res, nil
}

func hasAny(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

var errNotScoreable = errors.New("neither a scored file nor a parsed CV record")
