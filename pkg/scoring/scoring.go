// Package scoring rates parsed CVs against a configurable rubric.
//
// Five criteria are scored independently into [0,1]: education, experience,
// publications, career coherence and awards. The Aggregator combines them
// with the rubric weights into a final score and reports each criterion's
// contribution along with the evidence it used.
package scoring

import (
	"math"
	"sort"

	"github.com/jmylchreest/cvparse/pkg/cv"
)

// Criterion names a scored aspect of a CV.
type Criterion string

const (
	Education    Criterion = "education"
	Experience   Criterion = "experience"
	Publications Criterion = "publications"
	Coherence    Criterion = "coherence"
	AwardsOther  Criterion = "awards_other"
)

// Criteria lists every criterion in reporting order.
var Criteria = []Criterion{Education, Experience, Publications, Coherence, AwardsOther}

// evidenceLimit bounds the evidence spans reported per criterion.
const (
	evidenceLimit   = 3
	evidenceMaxRune = 200
)

// Scorer rates one criterion.
type Scorer interface {
	Criterion() Criterion
	// Score returns the unrounded score in [0,1] and its explanation.
	Score(c *cv.CV) (float64, Details)
}

// Details explains a criterion score. MissingPenaltyApplied marks an empty
// section, which scores 0; no further penalty is subtracted.
type Details struct {
	SubScores             map[string]float64 `json:"sub_scores,omitempty"`
	FinalScore            float64            `json:"final_score"`
	HasData               bool               `json:"has_data"`
	MissingPenaltyApplied bool               `json:"missing_penalty_applied"`
	Evidence              []string           `json:"evidence"`

	TotalMonths       int     `json:"total_months,omitempty"`
	TotalYears        float64 `json:"total_years,omitempty"`
	TotalPublications int     `json:"total_publications,omitempty"`
	TotalAwards       int     `json:"total_awards,omitempty"`
	DominantDomain    string  `json:"dominant_domain,omitempty"`

	Breakdown any `json:"breakdown,omitempty"`
}

// CriterionScore is one criterion's share of the final score.
type CriterionScore struct {
	Score                float64 `json:"score"`
	Weight               float64 `json:"weight"`
	WeightedContribution float64 `json:"weighted_contribution"`
	Details              Details `json:"details"`
}

// Strength is a criterion ranked by its contribution.
type Strength struct {
	Criterion    Criterion `json:"criterion"`
	Score        float64   `json:"score"`
	Contribution float64   `json:"contribution"`
	HasData      bool      `json:"has_data"`
}

// ImprovementArea is a criterion ranked by its low score.
type ImprovementArea struct {
	Criterion Criterion `json:"criterion"`
	Score     float64   `json:"score"`
	HasData   bool      `json:"has_data"`
	Missing   bool      `json:"missing"`
}

// ConfigUsed records the rubric parameters that shaped a result.
type ConfigUsed struct {
	Weights      Weights `json:"weights"`
	TargetDomain string  `json:"target_domain"`
}

// Result is the scoring outcome of one CV.
type Result struct {
	CVFilename           string                       `json:"cv_filename,omitempty"`
	CVPath               string                       `json:"cv_path,omitempty"`
	FinalScore           float64                      `json:"final_score"`
	FinalScorePercentage float64                      `json:"final_score_percentage"`
	CriterionScores      map[Criterion]CriterionScore `json:"criterion_scores"`
	Strengths            []Strength                   `json:"top_strengths"`
	ImprovementAreas     []ImprovementArea            `json:"improvement_areas"`
	ConfigUsed           ConfigUsed                   `json:"config_used"`

	// rawTotal is the unrounded, unclamped sum of contributions.
	rawTotal float64
}

// Criterion returns the score entry for c, or a zero entry.
func (r *Result) Criterion(c Criterion) CriterionScore {
	return r.CriterionScores[c]
}

// Aggregator combines the criterion scorers.
type Aggregator struct {
	cfg     *Config
	scorers []Scorer
}

// NewAggregator builds the standard five scorers over cfg and m. Nil arguments
// select the embedded defaults.
func NewAggregator(cfg *Config, m *Mappings) *Aggregator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if m == nil {
		m = DefaultMappings()
	}
	return &Aggregator{
		cfg: cfg,
		scorers: []Scorer{
			&EducationScorer{cfg: cfg, mappings: m},
			&ExperienceScorer{cfg: cfg},
			&PublicationScorer{cfg: cfg, mappings: m},
			&CoherenceScorer{cfg: cfg},
			&AwardsScorer{},
		},
	}
}

// Config returns the rubric in use.
func (a *Aggregator) Config() *Config {
	return a.cfg
}

// Score rates c on every criterion and combines the weighted results.
func (a *Aggregator) Score(c *cv.CV) *Result {
	if c == nil {
		c = &cv.CV{}
	}
	res := &Result{
		CriterionScores: make(map[Criterion]CriterionScore, len(a.scorers)),
		ConfigUsed: ConfigUsed{
			Weights:      a.cfg.Weights,
			TargetDomain: a.cfg.Policies.TargetDomain,
		},
	}

	for _, s := range a.scorers {
		score, details := s.Score(c)
		weight := a.cfg.Weights.Of(s.Criterion())
		res.rawTotal += score * weight
		res.CriterionScores[s.Criterion()] = CriterionScore{
			Score:                round(score, 4),
			Weight:               weight,
			WeightedContribution: round(score*weight, 4),
			Details:              details,
		}
	}

	final := clamp(res.rawTotal)
	res.FinalScore = round(final, 4)
	res.FinalScorePercentage = round(final*100, 2)
	res.Strengths = a.strengths(res, 3)
	res.ImprovementAreas = a.improvementAreas(res, 2)
	return res
}

func (a *Aggregator) strengths(res *Result, n int) []Strength {
	order := a.order()
	sort.SliceStable(order, func(i, j int) bool {
		return res.CriterionScores[order[i]].WeightedContribution > res.CriterionScores[order[j]].WeightedContribution
	})
	out := make([]Strength, 0, n)
	for _, c := range order[:min(n, len(order))] {
		cs := res.CriterionScores[c]
		out = append(out, Strength{Criterion: c, Score: cs.Score, Contribution: cs.WeightedContribution, HasData: cs.Details.HasData})
	}
	return out
}

func (a *Aggregator) improvementAreas(res *Result, n int) []ImprovementArea {
	order := a.order()
	sort.SliceStable(order, func(i, j int) bool {
		return res.CriterionScores[order[i]].Score < res.CriterionScores[order[j]].Score
	})
	out := make([]ImprovementArea, 0, n)
	for _, c := range order[:min(n, len(order))] {
		cs := res.CriterionScores[c]
		out = append(out, ImprovementArea{Criterion: c, Score: cs.Score, HasData: cs.Details.HasData, Missing: !cs.Details.HasData})
	}
	return out
}

func (a *Aggregator) order() []Criterion {
	out := make([]Criterion, len(a.scorers))
	for i, s := range a.scorers {
		out[i] = s.Criterion()
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// normalize scales v by limit, capped at 1.
func normalize(v, limit float64) float64 {
	if limit == 0 {
		return 0
	}
	return math.Min(1, v/limit)
}

// evidence collects up to evidenceLimit non-empty spans, each truncated.
func evidence(spans []string) []string {
	out := []string{}
	for _, s := range spans {
		if len(out) == evidenceLimit {
			break
		}
		if s == "" {
			continue
		}
		if r := []rune(s); len(r) > evidenceMaxRune {
			s = string(r[:evidenceMaxRune])
		}
		out = append(out, s)
	}
	return out
}
