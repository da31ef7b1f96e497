// Package ranking orders scored CVs, summarizes the cohort and explains the
// difference between two candidates.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jmylchreest/cvparse/pkg/scoring"
)

// DateFormat is the layout of RankedList.RankingDate.
const DateFormat = "2006-01-02 15:04:05"

// DefaultTopN is the number of candidates listed in a report.
const DefaultTopN = 10

// Ranked is a scoring result with its position, 1 being the best.
type Ranked struct {
	Rank int `json:"rank"`
	*scoring.Result
}

// RankedList is the content of ranked_candidates.json.
type RankedList struct {
	TotalCandidates  int      `json:"total_candidates"`
	RankingDate      string   `json:"ranking_date"`
	RankedCandidates []Ranked `json:"ranked_candidates"`
}

// Rank sorts results by final score, highest first, and numbers them from 1.
// Equal scores are ordered by file name. The input slice is not modified.
func Rank(results []*scoring.Result) []Ranked {
	sorted := make([]*scoring.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return sorted[i].CVFilename < sorted[j].CVFilename
	})

	out := make([]Ranked, len(sorted))
	for i, r := range sorted {
		out[i] = Ranked{Rank: i + 1, Result: r}
	}
	return out
}

// NewRankedList wraps ranked candidates with a timestamp.
func NewRankedList(ranked []Ranked, at time.Time) RankedList {
	if ranked == nil {
		ranked = []Ranked{}
	}
	return RankedList{
		TotalCandidates:  len(ranked),
		RankingDate:      at.Format(DateFormat),
		RankedCandidates: ranked,
	}
}

// Statistics describes the final score distribution.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// TopEntry is one line of the report's leaderboard.
type TopEntry struct {
	Rank     int     `json:"rank"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Report is the content of ranking_report.json.
type Report struct {
	TotalCandidates   int            `json:"total_candidates"`
	Statistics        Statistics     `json:"statistics"`
	ScoreDistribution map[string]int `json:"score_distribution"`
	TopN              []TopEntry     `json:"top_n"`
}

// Buckets are the score distribution ranges. The last one includes 1.0.
var Buckets = []string{"0.0-0.2", "0.2-0.4", "0.4-0.6", "0.6-0.8", "0.8-1.0"}

var bucketUpper = []float64{0.2, 0.4, 0.6, 0.8}

func bucket(score float64) string {
	for i, upper := range bucketUpper {
		if score < upper {
			return Buckets[i]
		}
	}
	return Buckets[len(Buckets)-1]
}

// NewReport summarizes ranked candidates and lists the first topN.
func NewReport(ranked []Ranked, topN int) Report {
	rep := Report{
		TotalCandidates:   len(ranked),
		ScoreDistribution: make(map[string]int, len(Buckets)),
		TopN:              []TopEntry{},
	}
	for _, b := range Buckets {
		rep.ScoreDistribution[b] = 0
	}
	if len(ranked) == 0 {
		return rep
	}

	scores := make([]float64, len(ranked))
	for i, r := range ranked {
		scores[i] = r.FinalScore
		rep.ScoreDistribution[bucket(r.FinalScore)]++
	}
	rep.Statistics = statistics(scores)

	for _, r := range ranked[:min(topN, len(ranked))] {
		rep.TopN = append(rep.TopN, TopEntry{Rank: r.Rank, Filename: r.CVFilename, Score: r.FinalScorePercentage})
	}
	return rep
}

// statistics uses the upper median and the population standard deviation.
func statistics(scores []float64) Statistics {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, s := range sorted {
		sq += (s - mean) * (s - mean)
	}

	return Statistics{
		Mean:   round(mean, 4),
		Median: round(sorted[len(sorted)/2], 4),
		Std:    round(math.Sqrt(sq/float64(len(sorted))), 4),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

var titleCaser = cases.Title(language.English)

// Title renders a criterion as a heading, e.g. "Awards Other".
func Title(c scoring.Criterion) string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
