package scoring

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// ErrInvalidConfig is returned for scoring configurations that fail validation.
var ErrInvalidConfig = errors.New("invalid scoring config")

// weightTolerance is the allowed deviation of the weight sum from 1.
const weightTolerance = 0.01

// Config is the scoring rubric.
type Config struct {
	Weights       Weights       `yaml:"weights" json:"weights"`
	Subweights    Subweights    `yaml:"subweights" json:"subweights"`
	Policies      Policies      `yaml:"policies" json:"policies"`
	Normalization Normalization `yaml:"normalization" json:"normalization"`
}

// Weights are the criterion weights of the final score.
type Weights struct {
	Education    float64 `yaml:"education" json:"education" validate:"gte=0,lte=1"`
	Experience   float64 `yaml:"experience" json:"experience" validate:"gte=0,lte=1"`
	Publications float64 `yaml:"publications" json:"publications" validate:"gte=0,lte=1"`
	Coherence    float64 `yaml:"coherence" json:"coherence" validate:"gte=0,lte=1"`
	AwardsOther  float64 `yaml:"awards_other" json:"awards_other" validate:"gte=0,lte=1"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Education + w.Experience + w.Publications + w.Coherence + w.AwardsOther
}

// Of returns the weight of criterion c.
func (w Weights) Of(c Criterion) float64 {
	switch c {
	case Education:
		return w.Education
	case Experience:
		return w.Experience
	case Publications:
		return w.Publications
	case Coherence:
		return w.Coherence
	case AwardsOther:
		return w.AwardsOther
	}
	return 0
}

// Subweights split each criterion into its components.
type Subweights struct {
	Education    EducationWeights   `yaml:"education" json:"education" validate:"required"`
	Experience   ExperienceWeights  `yaml:"experience" json:"experience" validate:"required"`
	Publications PublicationWeights `yaml:"publications" json:"publications" validate:"required"`
	Coherence    CoherenceWeights   `yaml:"coherence" json:"coherence"`
}

type EducationWeights struct {
	GPA            float64 `yaml:"gpa" json:"gpa" validate:"gte=0,lte=1"`
	DegreeLevel    float64 `yaml:"degree_level" json:"degree_level" validate:"gte=0,lte=1"`
	UniversityTier float64 `yaml:"university_tier" json:"university_tier" validate:"gte=0,lte=1"`
}

type ExperienceWeights struct {
	Duration    float64 `yaml:"duration" json:"duration" validate:"gte=0,lte=1"`
	DomainMatch float64 `yaml:"domain_match" json:"domain_match" validate:"gte=0,lte=1"`
	Seniority   float64 `yaml:"seniority" json:"seniority" validate:"gte=0,lte=1"`
}

type PublicationWeights struct {
	IF             float64 `yaml:"if" json:"if" validate:"gte=0,lte=1"`
	AuthorPosition float64 `yaml:"author_position" json:"author_position" validate:"gte=0,lte=1"`
	VenueQuality   float64 `yaml:"venue_quality" json:"venue_quality" validate:"gte=0,lte=1"`
}

// CoherenceWeights default to 0.6/0.4 when omitted.
type CoherenceWeights struct {
	DomainConsistency float64 `yaml:"domain_consistency" json:"domain_consistency" validate:"gte=0,lte=1"`
	Progression       float64 `yaml:"progression" json:"progression" validate:"gte=0,lte=1"`
}

// Policies are bonuses, penalties and thresholds.
type Policies struct {
	// MissingValuesPenalty is accepted for rubric compatibility and reported,
	// but never applied: empty sections already score 0.
	MissingValuesPenalty        float64 `yaml:"missing_values_penalty" json:"missing_values_penalty" validate:"gte=0,lte=1"`
	PhDBonus                    float64 `yaml:"phd_bonus" json:"phd_bonus" validate:"gte=0,lte=1"`
	MastersBonus                float64 `yaml:"masters_bonus" json:"masters_bonus" validate:"gte=0,lte=1"`
	TargetDomain                string  `yaml:"target_domain" json:"target_domain"`
	DomainMatchBonus            float64 `yaml:"domain_match_bonus" json:"domain_match_bonus" validate:"gte=0,lte=1"`
	MinMonthsExperienceForBonus int     `yaml:"min_months_experience_for_bonus" json:"min_months_experience_for_bonus" validate:"gte=0"`
	ExperienceBonus             float64 `yaml:"experience_bonus" json:"experience_bonus" validate:"gte=0,lte=1"`
	FirstAuthorBonus            float64 `yaml:"first_author_bonus" json:"first_author_bonus" validate:"gte=0,lte=1"`
	SecondAuthorBonus           float64 `yaml:"second_author_bonus" json:"second_author_bonus" validate:"gte=0,lte=1"`
	MinDomainConsistency        float64 `yaml:"min_domain_consistency" json:"min_domain_consistency" validate:"gte=0,lte=1"`
}

// Normalization holds the caps used to scale raw values into [0,1].
type Normalization struct {
	MaxExperienceMonths float64 `yaml:"max_experience_months" json:"max_experience_months" validate:"gt=0"`
	MaxJournalIF        float64 `yaml:"max_journal_if" json:"max_journal_if" validate:"gt=0"`
}

var requiredSections = []string{"weights", "subweights", "policies", "normalization"}

// DefaultConfig returns the embedded rubric.
func DefaultConfig() *Config {
	cfg, err := ParseConfig(defaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("scoring: embedded config: %v", err))
	}
	return cfg
}

// LoadConfig reads a rubric from a YAML file, or returns the embedded default
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path) //#nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML rubric. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var sections map[string]any
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, s := range requiredSections {
		if _, ok := sections[s]; !ok {
			return nil, fmt.Errorf("%w: missing section %q", ErrInvalidConfig, s)
		}
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Subweights.Coherence == (CoherenceWeights{}) {
		cfg.Subweights.Coherence = CoherenceWeights{DomainConsistency: 0.6, Progression: 0.4}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and that the weights sum to 1.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.4f", ErrInvalidConfig, sum)
	}
	return nil
}

// WithTargetDomain returns a copy of c with the target domain replaced.
func (c *Config) WithTargetDomain(domain string) *Config {
	out := *c
	out.Policies.TargetDomain = domain
	return &out
}
