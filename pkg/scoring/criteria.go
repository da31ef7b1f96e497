package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/jmylchreest/cvparse/pkg/cv"
)

// Seniority levels inferred from job titles.
const (
	levelJunior = 1
	levelMid    = 2
	levelSenior = 3
)

var (
	seniorKeywords = []string{"senior", "lead", "principal", "director", "manager", "head", "chief", "vp"}
	midKeywords    = []string{"associate", "specialist", "analyst", "engineer", "developer"}

	// Progression also treats consultants as mid-level.
	progressionMidKeywords = append(slices.Clone(midKeywords), "consultant")

	currentKeywords = []string{"current", "present", "now"}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func seniority(title string, mid []string) int {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, seniorKeywords):
		return levelSenior
	case containsAny(t, mid):
		return levelMid
	default:
		return levelJunior
	}
}

func seniorityName(level int) string {
	switch level {
	case levelSenior:
		return "Senior"
	case levelMid:
		return "Mid"
	default:
		return "Junior"
	}
}

// DegreeLevel maps a degree name to 1 (bachelor or unknown), 2 (master) or 3 (doctorate).
// Short abbreviations must appear as whole words so "BSc Mathematics" is not
// read as an MA.
func DegreeLevel(degree string) int {
	d := strings.ToLower(strings.ReplaceAll(degree, ".", ""))
	if strings.Contains(d, "phd") || strings.Contains(d, "doctor") {
		return 3
	}
	if strings.Contains(d, "master") {
		return 2
	}
	for _, w := range strings.FieldsFunc(d, func(r rune) bool { return !unicode.IsLetter(r) }) {
		switch w {
		case "msc", "ms", "ma", "mphil":
			return 2
		}
	}
	return 1
}

// --- Education ---

// EducationScorer rates GPA, degree level and university tier.
type EducationScorer struct {
	cfg      *Config
	mappings *Mappings
}

func (s *EducationScorer) Criterion() Criterion { return Education }

func (s *EducationScorer) Score(c *cv.CV) (float64, Details) {
	if len(c.Education) == 0 {
		return 0, Details{
			SubScores:             map[string]float64{"gpa": 0, "degree_level": 0, "university_tier": 0},
			MissingPenaltyApplied: true,
			Evidence:              []string{},
		}
	}

	var gpa, tier float64
	level := 0
	type row struct {
		Degree      string  `json:"degree"`
		University  string  `json:"university"`
		GPA         string  `json:"gpa"`
		TierScore   float64 `json:"tier_score"`
		DegreeLevel int     `json:"degree_level"`
	}
	breakdown := make([]row, 0, len(c.Education))
	for _, e := range c.Education {
		if e.GPA != nil && *e.GPA > 0 {
			scale := 4.0
			if e.Scale != nil && *e.Scale > 0 {
				scale = *e.Scale
			}
			gpa = math.Max(gpa, *e.GPA/scale)
		}
		l := DegreeLevel(e.Degree)
		level = max(level, l)
		t := s.mappings.UniversityTier(e.University)
		tier = math.Max(tier, t)
		breakdown = append(breakdown, row{
			Degree:      e.Degree,
			University:  e.University,
			GPA:         fmt.Sprintf("%g/%g", deref(e.GPA), derefOr(e.Scale, 4)),
			TierScore:   t,
			DegreeLevel: l,
		})
	}
	degree := float64(level-1) / 2

	w := s.cfg.Subweights.Education
	score := gpa*w.GPA + degree*w.DegreeLevel + tier*w.UniversityTier
	switch level {
	case 3:
		score += s.cfg.Policies.PhDBonus
	case 2:
		score += s.cfg.Policies.MastersBonus
	}
	score = clamp(score)

	return score, Details{
		SubScores: map[string]float64{
			"gpa":             round(gpa, 3),
			"degree_level":    round(degree, 3),
			"university_tier": round(tier, 3),
		},
		FinalScore: round(score, 3),
		HasData:    true,
		Evidence:   []string{},
		Breakdown:  breakdown,
	}
}

// --- Experience ---

// ExperienceScorer rates total duration, match with the target domain and seniority.
type ExperienceScorer struct {
	cfg *Config
}

func (s *ExperienceScorer) Criterion() Criterion { return Experience }

// months returns the recorded duration, or 12 for an ongoing role without one.
func months(e cv.Experience) int {
	if e.DurationMonths != nil && *e.DurationMonths > 0 {
		return *e.DurationMonths
	}
	if e.End != "" && containsAny(strings.ToLower(e.End), currentKeywords) {
		return 12
	}
	return 0
}

func (s *ExperienceScorer) Score(c *cv.CV) (float64, Details) {
	if len(c.Experience) == 0 {
		return 0, Details{
			SubScores:             map[string]float64{"duration": 0, "domain_match": 0, "seniority": 0},
			MissingPenaltyApplied: true,
			Evidence:              []string{},
		}
	}

	total := 0
	level := 0
	type row struct {
		Title          string `json:"title"`
		Org            string `json:"org"`
		DurationMonths int    `json:"duration_months"`
		Domain         string `json:"domain"`
		SeniorityLevel string `json:"seniority_level"`
	}
	breakdown := make([]row, 0, len(c.Experience))
	for _, e := range c.Experience {
		m := months(e)
		total += m
		l := seniority(e.Title, midKeywords)
		level = max(level, l)
		breakdown = append(breakdown, row{e.Title, e.Org, m, e.Domain, seniorityName(l)})
	}

	duration := normalize(float64(total), s.cfg.Normalization.MaxExperienceMonths)
	domain := s.domainMatch(c.Experience)
	senior := float64(level-1) / 2

	w := s.cfg.Subweights.Experience
	score := duration*w.Duration + domain*w.DomainMatch + senior*w.Seniority
	if total >= s.cfg.Policies.MinMonthsExperienceForBonus {
		score += s.cfg.Policies.ExperienceBonus
	}
	score = clamp(score)

	return score, Details{
		SubScores: map[string]float64{
			"duration":     round(duration, 3),
			"domain_match": round(domain, 3),
			"seniority":    round(senior, 3),
		},
		FinalScore:  round(score, 3),
		HasData:     true,
		Evidence:    []string{},
		TotalMonths: total,
		TotalYears:  round(float64(total)/12, 1),
		Breakdown:   breakdown,
	}
}

func (s *ExperienceScorer) domainMatch(jobs []cv.Experience) float64 {
	target := strings.ToLower(strings.TrimSpace(s.cfg.Policies.TargetDomain))
	if target == "" {
		return 0.5
	}
	matches := 0
	for _, j := range jobs {
		if strings.Contains(strings.ToLower(j.Domain), target) {
			matches++
		}
	}
	share := float64(matches) / float64(len(jobs))
	if share >= 0.5 {
		return math.Min(1, share+s.cfg.Policies.DomainMatchBonus)
	}
	return share
}

// --- Publications ---

// PublicationScorer rates impact factor, author position and venue quality.
type PublicationScorer struct {
	cfg      *Config
	mappings *Mappings
}

func (s *PublicationScorer) Criterion() Criterion { return Publications }

func isJournal(p cv.Publication) bool {
	return strings.Contains(strings.ToLower(p.Type), "journal")
}

func (s *PublicationScorer) Score(c *cv.CV) (float64, Details) {
	pubs := c.Publications
	if len(pubs) == 0 {
		return 0, Details{
			SubScores:             map[string]float64{"if": 0, "author_position": 0, "venue_quality": 0},
			MissingPenaltyApplied: true,
			Evidence:              []string{},
		}
	}

	var ifSum, posSum, venueSum float64
	ifCount := 0
	type row struct {
		Title          string  `json:"title"`
		Venue          string  `json:"venue"`
		Year           *int    `json:"year,omitempty"`
		Type           string  `json:"type"`
		AuthorPosition *int    `json:"author_position,omitempty"`
		QualityMetric  float64 `json:"quality_metric"`
		QualityType    string  `json:"quality_type"`
		Domain         string  `json:"domain"`
	}
	breakdown := make([]row, 0, len(pubs))
	spans := make([]string, 0, len(pubs))
	for _, p := range pubs {
		if v := s.impactFactor(p); v > 0 {
			ifSum += normalize(v, s.cfg.Normalization.MaxJournalIF)
			ifCount++
		}
		posSum += s.authorPosition(p.AuthorPosition)

		r := row{Title: p.Title, Venue: p.Venue, Year: p.Year, Type: p.Type, AuthorPosition: p.AuthorPosition, Domain: p.Domain}
		if isJournal(p) {
			journalIF := s.mappings.JournalIF(p.Venue)
			venueSum += math.Min(1, journalIF/50)
			r.QualityMetric, r.QualityType = round(journalIF, 2), "IF"
		} else {
			q := s.mappings.VenueQuality(p.Venue)
			venueSum += q
			r.QualityMetric, r.QualityType = round(q, 2), "Venue Score"
		}
		breakdown = append(breakdown, r)
		spans = append(spans, p.EvidenceSpan)
	}

	n := float64(len(pubs))
	var impact float64
	if ifCount > 0 {
		impact = ifSum / float64(ifCount)
	}
	position := posSum / n
	venue := venueSum / n

	w := s.cfg.Subweights.Publications
	score := clamp(impact*w.IF + position*w.AuthorPosition + venue*w.VenueQuality)

	return score, Details{
		SubScores: map[string]float64{
			"if":              round(impact, 3),
			"author_position": round(position, 3),
			"venue_quality":   round(venue, 3),
		},
		FinalScore:        round(score, 3),
		HasData:           true,
		Evidence:          evidence(spans),
		TotalPublications: len(pubs),
		Breakdown:         breakdown,
	}
}

// impactFactor prefers the CV's value, then the journal table, then venue
// quality scaled to an IF-like range for non-journal venues.
func (s *PublicationScorer) impactFactor(p cv.Publication) float64 {
	if p.JournalIF != nil && *p.JournalIF > 0 {
		return *p.JournalIF
	}
	if isJournal(p) {
		return s.mappings.JournalIF(p.Venue)
	}
	return s.mappings.VenueQuality(p.Venue) * 10
}

func (s *PublicationScorer) authorPosition(pos *int) float64 {
	p := 999
	if pos != nil {
		p = *pos
	}
	switch {
	case p == 1:
		return math.Min(1, 1+s.cfg.Policies.FirstAuthorBonus)
	case p == 2:
		return math.Min(1, 0.8+s.cfg.Policies.SecondAuthorBonus)
	case p <= 5:
		return 0.6 - float64(p-3)*0.1
	default:
		return 0.2
	}
}

// --- Coherence ---

// CoherenceScorer rates domain consistency across sections and career progression.
type CoherenceScorer struct {
	cfg *Config
}

func (s *CoherenceScorer) Criterion() Criterion { return Coherence }

func (s *CoherenceScorer) Score(c *cv.CV) (float64, Details) {
	if len(c.Experience) == 0 {
		return 0.5, Details{
			SubScores:  map[string]float64{"domain_consistency": 0.5, "progression": 0.5},
			FinalScore: 0.5,
			Evidence:   []string{},
		}
	}

	domains := collectDomains(c)
	consistency := s.consistency(domains)
	progression := progression(c.Experience)

	w := s.cfg.Subweights.Coherence
	score := clamp(consistency*w.DomainConsistency + progression*w.Progression)

	ev := make([]string, 0, evidenceLimit)
	for _, e := range c.Experience[:min(evidenceLimit, len(c.Experience))] {
		ev = append(ev, fmt.Sprintf("%s at %s (%s)", e.Title, e.Org, e.Domain))
	}

	type step struct {
		Title     string `json:"title"`
		Domain    string `json:"domain"`
		Seniority string `json:"seniority"`
	}
	path := make([]step, 0, len(c.Experience))
	distribution := map[string]int{}
	for _, e := range c.Experience {
		path = append(path, step{e.Title, e.Domain, seniorityName(seniority(e.Title, progressionMidKeywords))})
		if e.Domain != "" {
			distribution[e.Domain]++
		}
	}

	return score, Details{
		SubScores: map[string]float64{
			"domain_consistency": round(consistency, 3),
			"progression":        round(progression, 3),
		},
		FinalScore:     round(score, 3),
		HasData:        true,
		Evidence:       ev,
		DominantDomain: dominantDomain(domains),
		Breakdown: map[string]any{
			"total_experiences":   len(c.Experience),
			"domain_distribution": distribution,
			"career_path":         path,
		},
	}
}

// collectDomains lists the non-empty experience domains, education fields and
// publication domains, trimmed, in CV order.
func collectDomains(c *cv.CV) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	for _, e := range c.Experience {
		add(e.Domain)
	}
	for _, e := range c.Education {
		add(e.Field)
	}
	for _, p := range c.Publications {
		add(p.Domain)
	}
	return out
}

// mostCommon returns the most frequent value and its count. Ties go to the
// value seen first.
func mostCommon(values []string) (string, int) {
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}

func (s *CoherenceScorer) consistency(domains []string) float64 {
	if len(domains) == 0 {
		return 0.5
	}
	lower := make([]string, len(domains))
	for i, d := range domains {
		lower[i] = strings.ToLower(d)
	}
	_, count := mostCommon(lower)
	share := float64(count) / float64(len(domains))
	if share >= s.cfg.Policies.MinDomainConsistency {
		return math.Min(1, share+0.1)
	}
	return share
}

func dominantDomain(domains []string) string {
	if len(domains) == 0 {
		return "Unknown"
	}
	d, _ := mostCommon(domains)
	return d
}

// progression is the share of adjacent jobs, listed most recent first, where
// the later job is at least as senior as the earlier one.
func progression(jobs []cv.Experience) float64 {
	if len(jobs) < 2 {
		return 0.5
	}
	up := 0
	for i := 0; i < len(jobs)-1; i++ {
		if seniority(jobs[i].Title, progressionMidKeywords) >= seniority(jobs[i+1].Title, progressionMidKeywords) {
			up++
		}
	}
	return float64(up) / float64(len(jobs)-1)
}

// --- Awards ---

var (
	prestigiousTitles = []string{
		"gold", "medal", "best", "outstanding", "excellence",
		"dean's list", "honors", "scholarship", "fellowship",
		"distinguished", "achievement", "recognition",
	}
	prestigiousIssuers = []string{
		"ieee", "acm", "google", "microsoft", "amazon",
		"national", "international", "government",
	}
	highPrestige   = []string{"gold", "medal", "best", "outstanding", "excellence", "national", "international", "distinguished"}
	mediumPrestige = []string{"dean's list", "honors", "scholarship", "fellowship", "achievement", "recognition", "academic", "professional"}
)

// AwardsScorer rates the number and prestige of awards with diminishing returns.
type AwardsScorer struct{}

func (s *AwardsScorer) Criterion() Criterion { return AwardsOther }

// AwardValue scores a single award in [0,1].
func AwardValue(a cv.Award) float64 {
	kind := strings.ToLower(a.Type)
	v := 0.3
	if containsAny(kind, []string{"research", "academic", "professional"}) {
		v = 0.6
	}
	if containsAny(kind, []string{"national", "international"}) {
		v = 0.8
	}
	if containsAny(strings.ToLower(a.Title), prestigiousTitles) {
		v += 0.2
	}
	if containsAny(strings.ToLower(a.Issuer), prestigiousIssuers) {
		v += 0.1
	}
	return math.Min(1, v)
}

func prestige(a cv.Award) string {
	text := strings.ToLower(a.Title + " " + a.Type + " " + a.Issuer)
	switch {
	case containsAny(text, highPrestige):
		return "High"
	case containsAny(text, mediumPrestige):
		return "Medium"
	default:
		return "Standard"
	}
}

func (s *AwardsScorer) Score(c *cv.CV) (float64, Details) {
	if len(c.Awards) == 0 {
		return 0, Details{Evidence: []string{}}
	}

	var total float64
	type row struct {
		Title         string `json:"title"`
		Issuer        string `json:"issuer"`
		Year          *int   `json:"year,omitempty"`
		Type          string `json:"type"`
		PrestigeLevel string `json:"prestige_level"`
	}
	breakdown := make([]row, 0, len(c.Awards))
	spans := make([]string, 0, len(c.Awards))
	for _, a := range c.Awards {
		total += AwardValue(a)
		breakdown = append(breakdown, row{a.Title, a.Issuer, a.Year, a.Type, prestige(a)})
		spans = append(spans, a.EvidenceSpan)
	}
	score := clamp(math.Log1p(total) / math.Log1p(float64(len(c.Awards))*1.5))

	return score, Details{
		FinalScore:  round(score, 3),
		HasData:     true,
		Evidence:    evidence(spans),
		TotalAwards: len(c.Awards),
		Breakdown:   breakdown,
	}
}

func deref(p *float64) float64 {
	return derefOr(p, 0)
}

func derefOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
