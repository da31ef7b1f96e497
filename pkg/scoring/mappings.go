package scoring

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

//go:embed mappings/*.json
var embeddedMappings embed.FS

// Mapping file names.
const (
	UniversityTiersFile = "university_tiers.json"
	JournalIFFile       = "journal_if.json"
	VenueQualityFile    = "venue_quality.json"
)

// fuzzyThreshold is the minimum token-set similarity (0-100) for a fuzzy hit.
const fuzzyThreshold = 85

var preprintKeywords = []string{"arxiv", "biorxiv", "medrxiv", "preprint", "ssrn"}

type entry struct {
	key   string // lowercase
	value float64
}

// Mappings resolves university tiers, journal impact factors and venue quality.
type Mappings struct {
	universities     []entry
	defaultTier      float64
	journals         []entry
	defaultIF        float64
	venues           []entry
	defaultVenue     float64
	preprintScore    float64
	universityByName map[string]float64
	journalByName    map[string]float64
	venueByName      map[string]float64
}

type tierFile map[string]struct {
	Score        float64  `json:"score"`
	Universities []string `json:"universities"`
	Venues       []string `json:"venues"`
}

type journalFile struct {
	Journals  map[string]float64 `json:"journals"`
	DefaultIF float64            `json:"default_if"`
}

// DefaultMappings returns the embedded mapping tables.
func DefaultMappings() *Mappings {
	sub, _ := fs.Sub(embeddedMappings, "mappings")
	m, err := loadMappings(sub, nil)
	if err != nil {
		panic(fmt.Sprintf("scoring: embedded mappings: %v", err))
	}
	return m
}

// LoadMappings reads mapping tables from dir. Files missing from dir fall back
// to the embedded tables. An empty dir selects the embedded tables.
func LoadMappings(dir string) (*Mappings, error) {
	sub, _ := fs.Sub(embeddedMappings, "mappings")
	if dir == "" {
		return loadMappings(sub, nil)
	}
	return loadMappings(os.DirFS(dir), sub)
}

func loadMappings(fsys, fallback fs.FS) (*Mappings, error) {
	read := func(name string, v any) error {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) && fallback != nil {
			data, err = fs.ReadFile(fallback, name)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		return nil
	}

	var unis, venues tierFile
	var journals journalFile
	if err := read(UniversityTiersFile, &unis); err != nil {
		return nil, err
	}
	if err := read(JournalIFFile, &journals); err != nil {
		return nil, err
	}
	if err := read(VenueQualityFile, &venues); err != nil {
		return nil, err
	}

	m := &Mappings{
		defaultTier:      unis["default_tier"].Score,
		defaultIF:        journals.DefaultIF,
		defaultVenue:     venues["default_venue"].Score,
		preprintScore:    venues["preprints"].Score,
		universityByName: make(map[string]float64),
		journalByName:    make(map[string]float64),
		venueByName:      make(map[string]float64),
	}
	for _, tier := range sortedKeys(unis) {
		if tier == "default_tier" {
			continue
		}
		for _, name := range unis[tier].Universities {
			m.universities = appendEntry(m.universities, m.universityByName, name, unis[tier].Score)
		}
	}
	names := make([]string, 0, len(journals.Journals))
	for name := range journals.Journals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m.journals = appendEntry(m.journals, m.journalByName, name, journals.Journals[name])
	}
	for _, tier := range sortedKeys(venues) {
		if tier == "default_venue" {
			continue
		}
		for _, name := range venues[tier].Venues {
			m.venues = appendEntry(m.venues, m.venueByName, name, venues[tier].Score)
		}
	}
	return m, nil
}

func sortedKeys(t tierFile) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// appendEntry keeps the first score seen for a name.
func appendEntry(list []entry, index map[string]float64, name string, score float64) []entry {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return list
	}
	if _, ok := index[key]; ok {
		return list
	}
	index[key] = score
	return append(list, entry{key: key, value: score})
}

// UniversityTier returns the tier score of a university.
func (m *Mappings) UniversityTier(name string) float64 {
	return lookup(name, m.universityByName, m.universities, m.defaultTier)
}

// JournalIF returns the impact factor of a journal.
func (m *Mappings) JournalIF(name string) float64 {
	return lookup(name, m.journalByName, m.journals, m.defaultIF)
}

// VenueQuality returns the quality score of a conference or other venue.
// Preprint servers are recognized by keyword before fuzzy matching.
func (m *Mappings) VenueQuality(name string) float64 {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return m.defaultVenue
	}
	if v, ok := m.venueByName[key]; ok {
		return v
	}
	for _, kw := range preprintKeywords {
		if strings.Contains(key, kw) {
			return m.preprintScore
		}
	}
	return fuzzyLookup(key, m.venues, m.defaultVenue)
}

func lookup(name string, index map[string]float64, list []entry, fallback float64) float64 {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fallback
	}
	if v, ok := index[key]; ok {
		return v
	}
	return fuzzyLookup(key, list, fallback)
}

// fuzzyLookup returns the value of the most similar entry above the threshold.
// Ties keep the earlier entry.
func fuzzyLookup(key string, list []entry, fallback float64) float64 {
	best, bestRatio := fallback, 0
	for _, e := range list {
		if r := TokenSetRatio(key, e.key); r > fuzzyThreshold && r > bestRatio {
			best, bestRatio = e.value, r
		}
	}
	return best
}

// TokenSetRatio scores the similarity of a and b from 0 to 100, ignoring word
// order and repeated words. When one name's words are a subset of the other's
// the ratio is 100.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	return max(ratio(base, withA), ratio(base, withB), ratio(withA, withB))
}

// ratio is a normalized Levenshtein similarity from 0 to 100.
func ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	longest := max(la, lb)
	return int(float64(longest-d)/float64(longest)*100 + 0.5)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[t] = true
	}
	return set
}
