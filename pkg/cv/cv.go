// Package cv defines the structured record extracted from a candidate CV.
//
// Lists are always present (possibly empty). Fields inside list items are
// optional: strings are omitted when the CV does not state them and numbers
// are null.
package cv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmylchreest/cvparse/pkg/schema"
)

// CV is the record returned by the Clean-Text Parser.
type CV struct {
	Education    []Education   `json:"education" description:"List of extracted education entries." validate:"dive"`
	Experience   []Experience  `json:"experience" description:"List of extracted work experiences." validate:"dive"`
	Publications []Publication `json:"publications" description:"List of extracted publications." validate:"dive"`
	Awards       []Award       `json:"awards" description:"List of extracted awards and achievements." validate:"dive"`
}

// Education is one degree.
type Education struct {
	Degree     string   `json:"degree,omitempty" description:"Degree name of the applicant." examples:"BSc,BS Computer Science,MSc,MBA,PhD"`
	Field      string   `json:"field,omitempty" description:"Field or major of study." examples:"Computer Science,Electrical Engineering,Economics"`
	University string   `json:"university,omitempty" description:"Full official name of the university or institution." examples:"University of Lahore,Harvard University"`
	Country    string   `json:"country,omitempty" description:"Country where the university is located." examples:"Pakistan,United States,Germany"`
	Start      string   `json:"start,omitempty" description:"Start date of the degree in any format found in the CV." examples:"12/09/2022,2018,Sep 2020"`
	End        string   `json:"end,omitempty" description:"End or expected graduation date." examples:"30/05/2026,2023,Jun 2024"`
	GPA        *float64 `json:"gpa" description:"Obtained GPA/CGPA. In '3.22/4.0' the GPA is 3.22." validate:"omitempty,gte=0"`
	Scale      *float64 `json:"scale" description:"GPA scale. In '3.22/4.0' the scale is 4.0; in '7.5/10' it is 10." validate:"omitempty,gt=0"`
}

// Experience is one job or internship.
type Experience struct {
	Title          string `json:"title,omitempty" description:"Job title or position held." examples:"Software Engineer,Research Intern,Teaching Assistant"`
	Org            string `json:"org,omitempty" description:"Organization name." examples:"Google,NVIDIA,FAST University"`
	Start          string `json:"start,omitempty" description:"Start date of the job or internship." examples:"Jan 2021,2020,01/03/2019"`
	End            string `json:"end,omitempty" description:"End date of the job or internship." examples:"Mar 2023,2021,Present"`
	DurationMonths *int   `json:"duration_months" description:"Total duration in months; 24 means two years. Null if it cannot be computed." validate:"omitempty,gte=0,lte=1200"`
	Domain         string `json:"domain,omitempty" description:"Work domain or specialization inferred from the role." examples:"NLP,Backend Development,Machine Learning,Finance"`
}

// Publication is one paper or preprint.
type Publication struct {
	Title          string   `json:"title,omitempty" description:"Full title of the publication."`
	Venue          string   `json:"venue,omitempty" description:"Journal or conference name." examples:"IEEE Transactions on Medical Imaging,ACL 2023,Nature,ICLR"`
	Year           *int     `json:"year" description:"Year of publication." validate:"omitempty,gte=1900,lte=2100"`
	Type           string   `json:"type,omitempty" description:"Type of publication." examples:"Journal,Conference,Workshop,Preprint"`
	Authors        []string `json:"authors,omitempty" description:"Authors exactly as written."`
	AuthorPosition *int     `json:"author_position" description:"Position of the applicant in the author list; 1 for first author." validate:"omitempty,gte=1"`
	JournalIF      *float64 `json:"journal_if" description:"Journal impact factor if stated in the CV, otherwise null." validate:"omitempty,gte=0"`
	Domain         string   `json:"domain,omitempty" description:"Research area inferred from the publication." examples:"Computer Vision,NLP,Bioinformatics"`
	EvidenceSpan   string   `json:"evidence_span,omitempty" description:"Exact text span from the CV supporting this publication."`
}

// Award is one award or achievement.
type Award struct {
	Title        string `json:"title,omitempty" description:"Award or achievement title." examples:"Dean's List,Gold Medalist,Employee of the Month"`
	Issuer       string `json:"issuer,omitempty" description:"Organization that issued the award." examples:"FAST University,Google,ACM"`
	Year         *int   `json:"year" description:"Year the award was received." validate:"omitempty,gte=1900,lte=2100"`
	Type         string `json:"type,omitempty" description:"Award category." examples:"Academic,Professional,Research,Sports"`
	EvidenceSpan string `json:"evidence_span,omitempty" description:"Exact text snippet from the CV supporting this award."`
}

// Description is the schema description shown to the model.
const Description = "Structured information extracted from an applicant's CV. " +
	"Only extract what the CV states; do not invent entries."

// Schema returns the extraction schema for CV.
func Schema() schema.Schema {
	return schema.MustSchema[CV](schema.WithName("cv"), schema.WithDescription(Description))
}

// Empty reports whether no section has any entry.
func (c *CV) Empty() bool {
	return c == nil || len(c.Education)+len(c.Experience)+len(c.Publications)+len(c.Awards) == 0
}

// Normalize replaces nil lists with empty ones so they marshal as [].
func (c *CV) Normalize() {
	if c.Education == nil {
		c.Education = []Education{}
	}
	if c.Experience == nil {
		c.Experience = []Experience{}
	}
	if c.Publications == nil {
		c.Publications = []Publication{}
	}
	if c.Awards == nil {
		c.Awards = []Award{}
	}
}

// Decode parses a CV from JSON.
func Decode(data []byte) (*CV, error) {
	var c CV
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cv: %w", err)
	}
	c.Normalize()
	return &c, nil
}

// Load reads a CV JSON file such as data/outputs/extracted_jsons/<stem>.json.
func Load(path string) (*CV, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- caller-controlled output path
	if err != nil {
		return nil, fmt.Errorf("read cv: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Float returns a pointer to f, for building records in code.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i.
func Int(i int) *int { return &i }
