package ranking

import (
	"math"
	"sort"

	"github.com/jmylchreest/cvparse/pkg/scoring"
)

// Winner labels.
const (
	WinnerA   = "A"
	WinnerB   = "B"
	WinnerTie = "Tie"
)

// keyDifferences is the number of criteria highlighted in a comparison.
const keyDifferences = 3

// CriterionDelta is the difference A minus B on one criterion.
type CriterionDelta struct {
	ScoreDelta        float64 `json:"score_delta"`
	ContributionDelta float64 `json:"contribution_delta"`
	AScore            float64 `json:"a_score"`
	BScore            float64 `json:"b_score"`
	AContribution     float64 `json:"a_contribution"`
	BContribution     float64 `json:"b_contribution"`
}

// KeyDifference is a criterion with a large contribution delta.
type KeyDifference struct {
	Criterion scoring.Criterion `json:"criterion"`
	CriterionDelta
}

// DeltaRow is one row of the side-by-side table.
type DeltaRow struct {
	Criterion         string  `json:"criterion"`
	Weight            float64 `json:"weight"`
	CVAScore          float64 `json:"cv_a_score"`
	CVBScore          float64 `json:"cv_b_score"`
	ScoreDelta        float64 `json:"score_delta"`
	CVAContribution   float64 `json:"cv_a_contribution"`
	CVBContribution   float64 `json:"cv_b_contribution"`
	ContributionDelta float64 `json:"contribution_delta"`
	Winner            string  `json:"winner"`
}

// Comparison contrasts two scored CVs.
type Comparison struct {
	CVA             string                               `json:"cv_a"`
	CVB             string                               `json:"cv_b"`
	ScoreA          float64                              `json:"score_a"`
	ScoreB          float64                              `json:"score_b"`
	OverallDelta    float64                              `json:"overall_delta"`
	Winner          string                               `json:"winner"`
	CriterionDeltas map[scoring.Criterion]CriterionDelta `json:"criterion_deltas"`
	KeyDifferences  []KeyDifference                      `json:"key_differences"`
	DeltaTable      []DeltaRow                           `json:"delta_table"`
}

func winner(delta float64) string {
	switch {
	case delta > 0:
		return WinnerA
	case delta < 0:
		return WinnerB
	default:
		return WinnerTie
	}
}

func name(r *scoring.Result, fallback string) string {
	if r.CVFilename != "" {
		return r.CVFilename
	}
	return fallback
}

// Compare reports how a differs from b overall and per criterion.
func Compare(a, b *scoring.Result) *Comparison {
	overall := round(a.FinalScore-b.FinalScore, 4)
	cmp := &Comparison{
		CVA:             name(a, "CV A"),
		CVB:             name(b, "CV B"),
		ScoreA:          a.FinalScore,
		ScoreB:          b.FinalScore,
		OverallDelta:    overall,
		Winner:          winner(overall),
		CriterionDeltas: make(map[scoring.Criterion]CriterionDelta, len(scoring.Criteria)),
		DeltaTable:      make([]DeltaRow, 0, len(scoring.Criteria)),
	}

	keys := make([]KeyDifference, 0, len(scoring.Criteria))
	for _, c := range scoring.Criteria {
		ca, cb := a.Criterion(c), b.Criterion(c)
		d := CriterionDelta{
			ScoreDelta:        round(ca.Score-cb.Score, 4),
			ContributionDelta: round(ca.WeightedContribution-cb.WeightedContribution, 4),
			AScore:            ca.Score,
			BScore:            cb.Score,
			AContribution:     ca.WeightedContribution,
			BContribution:     cb.WeightedContribution,
		}
		cmp.CriterionDeltas[c] = d
		keys = append(keys, KeyDifference{Criterion: c, CriterionDelta: d})

		weight := ca.Weight
		if weight == 0 {
			weight = cb.Weight
		}
		cmp.DeltaTable = append(cmp.DeltaTable, DeltaRow{
			Criterion:         Title(c),
			Weight:            round(weight, 2),
			CVAScore:          ca.Score,
			CVBScore:          cb.Score,
			ScoreDelta:        d.ScoreDelta,
			CVAContribution:   ca.WeightedContribution,
			CVBContribution:   cb.WeightedContribution,
			ContributionDelta: d.ContributionDelta,
			Winner:            winner(d.ScoreDelta),
		})
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return math.Abs(keys[i].ContributionDelta) > math.Abs(keys[j].ContributionDelta)
	})
	cmp.KeyDifferences = keys[:min(keyDifferences, len(keys))]
	return cmp
}
