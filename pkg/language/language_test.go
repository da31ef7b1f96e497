package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const englishCV = `Experienced data scientist with a strong background in machine learning,
statistics and software engineering. Led a team of five engineers building
fraud detection models for an international payments company. Holds a master's
degree in computer science from the University of Edinburgh and has published
several papers on graph neural networks in peer reviewed journals.`

const germanCV = `Erfahrener Datenwissenschaftler mit fundierten Kenntnissen in maschinellem
Lernen, Statistik und Softwareentwicklung. Leitete ein Team von fünf Ingenieuren,
das Modelle zur Betrugserkennung für ein internationales Zahlungsunternehmen
entwickelte. Hat einen Masterabschluss in Informatik und veröffentlichte mehrere
Artikel über neuronale Netze in begutachteten Fachzeitschriften.`

func TestDetect(t *testing.T) {
	en := Detect(englishCV)
	assert.Equal(t, "en", en.Code)
	assert.True(t, en.Known())
	assert.Greater(t, en.Confidence, 0.0)

	assert.Equal(t, "de", Code(germanCV))
}

func TestDetect_Empty(t *testing.T) {
	for _, s := range []string{"", "   \n\t"} {
		r := Detect(s)
		assert.Equal(t, Unknown, r.Code)
		assert.False(t, r.Known())
	}
}

func TestDetect_LongTextIsSampled(t *testing.T) {
	long := strings.Repeat(englishCV+"\n", 50)
	assert.Equal(t, "en", Code(long))
}

const shortCV = `Ahmed Khan
BS Computer Science, CGPA 3.4/4.0
Data Analyst, Acme Corp (2021-2023)
Python, SQL, Power BI`

func TestDetect_ShortListCV(t *testing.T) {
	r := Detect(shortCV)
	assert.True(t, r.Known(), "short CVs get a language even at low confidence")
	assert.NotEmpty(t, r.Code)
	assert.NotEqual(t, Unknown, r.Name)
}

func TestDetect_NoLetters(t *testing.T) {
	r := Detect("2019 - 2021 / 3.8 (4.0)")
	assert.Equal(t, Unknown, r.Code)
	assert.False(t, r.Reliable)
}
