package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/cvparse/pkg/scoring"
)

// Impact levels of a reason, by absolute contribution delta.
const (
	ImpactHigh   = "High"
	ImpactMedium = "Medium"
	ImpactLow    = "Low"
)

const (
	maxReasons     = 3
	evidencePerCV  = 2
	notableSubDiff = 0.1
)

// Evidence holds supporting spans from both CVs.
type Evidence struct {
	CVA []string `json:"cv_a"`
	CVB []string `json:"cv_b"`
}

// Reason is one criterion on which the higher ranked CV is ahead.
type Reason struct {
	Rank              int       `json:"rank"`
	Criterion         string    `json:"criterion"`
	Reason            string    `json:"reason"`
	ScoreDelta        float64   `json:"score_delta"`
	ContributionDelta float64   `json:"contribution_delta"`
	Impact            string    `json:"impact"`
	Evidence          *Evidence `json:"evidence,omitempty"`
}

// Explanation says in words why one CV ranks above another.
type Explanation struct {
	CVA     string   `json:"cv_a"`
	CVB     string   `json:"cv_b"`
	ScoreA  float64  `json:"score_a"`
	ScoreB  float64  `json:"score_b"`
	Summary string   `json:"summary"`
	Reasons []Reason `json:"reasons"`
}

func impact(contributionDelta float64) string {
	d := max(contributionDelta, -contributionDelta)
	switch {
	case d > 0.1:
		return ImpactHigh
	case d > 0.05:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Explain describes why the higher scoring of a and b ranks first. The
// explanation's CVA is always the higher scoring CV, or a when they tie.
func Explain(a, b *scoring.Result) *Explanation {
	if b.FinalScore > a.FinalScore {
		a, b = b, a
	}
	cmp := Compare(a, b)

	ahead := make([]KeyDifference, 0, len(scoring.Criteria))
	for _, c := range scoring.Criteria {
		if d := cmp.CriterionDeltas[c]; d.ContributionDelta > 0 {
			ahead = append(ahead, KeyDifference{Criterion: c, CriterionDelta: d})
		}
	}
	sort.SliceStable(ahead, func(i, j int) bool {
		return ahead[i].ContributionDelta > ahead[j].ContributionDelta
	})
	ahead = ahead[:min(maxReasons, len(ahead))]

	exp := &Explanation{
		CVA:     cmp.CVA,
		CVB:     cmp.CVB,
		ScoreA:  a.FinalScorePercentage,
		ScoreB:  b.FinalScorePercentage,
		Reasons: make([]Reason, 0, len(ahead)),
	}
	for i, k := range ahead {
		da, db := a.Criterion(k.Criterion).Details, b.Criterion(k.Criterion).Details
		r := Reason{
			Rank:              i + 1,
			Criterion:         Title(k.Criterion),
			Reason:            reasonText(k.Criterion, k.ScoreDelta, da, db),
			ScoreDelta:        k.ScoreDelta,
			ContributionDelta: k.ContributionDelta,
			Impact:            impact(k.ContributionDelta),
		}
		if len(da.Evidence) > 0 || len(db.Evidence) > 0 {
			r.Evidence = &Evidence{CVA: firstN(da.Evidence, evidencePerCV), CVB: firstN(db.Evidence, evidencePerCV)}
		}
		exp.Reasons = append(exp.Reasons, r)
	}

	if cmp.Winner == WinnerTie {
		exp.Summary = fmt.Sprintf("%s and %s have the same score (%.2f%%).", cmp.CVA, cmp.CVB, exp.ScoreA)
		return exp
	}
	primary := "overall profile"
	if len(exp.Reasons) > 0 {
		primary = exp.Reasons[0].Criterion
	}
	exp.Summary = fmt.Sprintf("%s (Score: %.2f%%) ranks higher than %s (Score: %.2f%%) by %.2f percentage points. The primary advantage is in %s.",
		cmp.CVA, exp.ScoreA, cmp.CVB, exp.ScoreB, exp.ScoreA-exp.ScoreB, primary)
	return exp
}

func firstN(s []string, n int) []string {
	out := make([]string, 0, n)
	return append(out, s[:min(n, len(s))]...)
}

var profileNouns = map[scoring.Criterion]string{
	scoring.Education:    "education",
	scoring.Experience:   "experience",
	scoring.Publications: "research",
	scoring.Coherence:    "career coherence",
	scoring.AwardsOther:  "awards",
}

func fallbackText(c scoring.Criterion, scoreDelta float64) string {
	return fmt.Sprintf("Better overall %s profile (score advantage: %.1f%%).", profileNouns[c], scoreDelta*100)
}

// better lists the labels whose sub-score lead exceeds notableSubDiff.
func better(a, b scoring.Details, subs []string, labels []string) []string {
	var out []string
	for i, s := range subs {
		if a.SubScores[s]-b.SubScores[s] > notableSubDiff {
			out = append(out, labels[i])
		}
	}
	return out
}

func reasonText(c scoring.Criterion, scoreDelta float64, a, b scoring.Details) string {
	switch c {
	case scoring.Education:
		parts := better(a, b,
			[]string{"university_tier", "gpa", "degree_level"},
			[]string{"higher-tier university", "better GPA", "higher degree level"})
		if len(parts) > 0 {
			return "Stronger education due to " + strings.Join(parts, ", ") + "."
		}

	case scoring.Experience:
		var parts []string
		if years := a.TotalYears - b.TotalYears; years > 0 {
			parts = append(parts, fmt.Sprintf("%.1f more years of experience", years))
		}
		parts = append(parts, better(a, b,
			[]string{"domain_match", "seniority"},
			[]string{"better domain alignment", "higher seniority level"})...)
		if len(parts) > 0 {
			return "Stronger experience: " + strings.Join(parts, ", ") + "."
		}

	case scoring.Publications:
		var parts []string
		if n := a.TotalPublications - b.TotalPublications; n > 0 {
			parts = append(parts, fmt.Sprintf("%d more publications", n))
		}
		parts = append(parts, better(a, b,
			[]string{"if", "author_position", "venue_quality"},
			[]string{"higher impact factor journals", "better author positions", "higher-quality venues"})...)
		if len(parts) > 0 {
			return "Stronger research profile: " + strings.Join(parts, ", ") + "."
		}

	case scoring.Coherence:
		parts := better(a, b,
			[]string{"domain_consistency", "progression"},
			[]string{"more consistent domain focus", "better career progression"})
		if len(parts) > 0 {
			return "Better career coherence: " + strings.Join(parts, ", ") + "."
		}

	case scoring.AwardsOther:
		if n := a.TotalAwards - b.TotalAwards; n > 0 {
			return fmt.Sprintf("%d more awards and achievements.", n)
		}
		if scoreDelta > notableSubDiff {
			return "Higher quality awards."
		}
	}
	return fallbackText(c, scoreDelta)
}
