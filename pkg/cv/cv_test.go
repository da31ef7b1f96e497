package cv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Fields(t *testing.T) {
	s := Schema()
	assert.Equal(t, "cv", s.Name)
	require.Len(t, s.Fields, 4)

	for _, f := range s.Fields {
		assert.True(t, f.Required, "%s should be required", f.Name)
		require.NotNil(t, f.Items, f.Name)
		for _, p := range f.Items.Properties {
			assert.False(t, p.Required, "%s.%s should be optional", f.Name, p.Name)
		}
	}

	js, err := s.ToJSONSchema()
	require.NoError(t, err)
	_, err = json.Marshal(js)
	require.NoError(t, err)
}

func TestSchema_ValidatesDecodedRecord(t *testing.T) {
	s := Schema()
	raw := []byte(`{
		"education": [{"degree": "PhD", "field": "Computer Science", "gpa": 3.8, "scale": 4.0}],
		"experience": [{"title": "Research Intern", "duration_months": 6, "domain": "NLP"}],
		"publications": [{"title": "Parsing CVs", "year": 2023, "author_position": 1, "journal_if": null}],
		"awards": []
	}`)

	v, err := s.Unmarshal(raw)
	require.NoError(t, err)
	rec, ok := v.(*CV)
	require.True(t, ok)
	assert.Empty(t, s.Validate(rec))

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Empty(t, s.Validate(m))
}

func TestSchema_RejectsOutOfRange(t *testing.T) {
	s := Schema()
	rec := &CV{
		Experience:   []Experience{{DurationMonths: Int(-3)}},
		Publications: []Publication{{AuthorPosition: Int(0)}},
	}
	errs := s.Validate(rec)
	require.Len(t, errs, 2)
	assert.Equal(t, "experience[0].duration_months", errs[0].Field)
	assert.Equal(t, "publications[0].author_position", errs[1].Field)
}

func TestDecode_NormalizesLists(t *testing.T) {
	c, err := Decode([]byte(`{"education": [{"degree": "MSc"}]}`))
	require.NoError(t, err)
	assert.Len(t, c.Education, 1)
	assert.NotNil(t, c.Experience)
	assert.NotNil(t, c.Awards)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"awards":[]`)
	assert.Contains(t, string(out), `"gpa":null`)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"education": "nope"}`))
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	var nilCV *CV
	assert.True(t, nilCV.Empty())
	assert.True(t, (&CV{}).Empty())
	assert.False(t, (&CV{Awards: []Award{{Title: "Dean's List"}}}).Empty())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"awards": [{"title": "Gold Medal", "year": 2021}]}`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Awards, 1)
	assert.Equal(t, 2021, *c.Awards[0].Year)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
