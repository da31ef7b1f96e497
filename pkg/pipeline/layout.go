package pipeline

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Directory names below the data root. Keys are slash-separated and relative
// to the root so the same key addresses local files and mirrored objects.
const (
	RawDir       = "raw"
	OutputsDir   = "outputs"
	LogsDir      = "processing_logs"
	CleanedDir   = "outputs/cleaned_texts"
	ExtractedDir = "outputs/extracted_jsons"
	ScoredDir    = "outputs/scored_cvs"
	ExplainDir   = "outputs/explanations"

	ScoringSummaryKey = "outputs/scoring_summary.json"
	RankedKey         = "outputs/ranked_candidates.json"
	RankingReportKey  = "outputs/ranking_report.json"
)

// Layout resolves the data directory structure:
//
//	data/
//	  raw/                      input documents
//	  outputs/cleaned_texts/    <stem>.txt
//	  outputs/extracted_jsons/  <stem>.json
//	  outputs/scored_cvs/       <stem>_scored.json
//	  outputs/explanations/     pairwise ranking explanations
//	  processing_logs/          cleaning, error and processing JSONL logs
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// Path resolves a slash-separated key below the root.
func (l Layout) Path(key string) string {
	return filepath.Join(l.Root, filepath.FromSlash(key))
}

// Raw returns the input directory.
func (l Layout) Raw() string { return l.Path(RawDir) }

// Logs returns the processing logs directory.
func (l Layout) Logs() string { return l.Path(LogsDir) }

// CleanedKey is the storage key of a document's cleaned text.
func CleanedKey(stem string) string {
	return path.Join(CleanedDir, stem+".txt")
}

// ExtractedKey is the storage key of a document's parsed record.
func ExtractedKey(stem string) string {
	return path.Join(ExtractedDir, stem+".json")
}

// ScoredKey is the storage key of a document's scoring result.
func ScoredKey(stem string) string {
	return path.Join(ScoredDir, stem+"_scored.json")
}

// ExplanationKey is the storage key of an explanation file name.
func ExplanationKey(name string) string {
	return path.Join(ExplainDir, name)
}

// StemFromExtracted returns the stem for an extracted_jsons file name, or ""
// when name is not a JSON file.
func StemFromExtracted(name string) string {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// OutputStems returns the stem each raw file's artifacts are stored under, in
// the order of files. Files whose stems collide (case-insensitively) keep their
// extension, so "cand.md" and "cand.txt" write cand.md.json and cand.txt.json.
func OutputStems(files []string) []string {
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[strings.ToLower(fileStem(f))]++
	}
	stems := make([]string, len(files))
	for i, f := range files {
		s := fileStem(f)
		if counts[strings.ToLower(s)] > 1 {
			s = filepath.Base(f)
		}
		stems[i] = s
	}
	return stems
}

func fileStem(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EnsureDirs creates every directory of the layout.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{RawDir, CleanedDir, ExtractedDir, ScoredDir, ExplainDir, LogsDir} {
		if err := os.MkdirAll(l.Path(dir), 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ListRaw returns the regular, non-hidden files in the input directory sorted by name.
func (l Layout) ListRaw() ([]string, error) {
	return listFiles(l.Raw(), "")
}

// ListScored returns the scored files sorted by name.
func (l Layout) ListScored() ([]string, error) {
	return listFiles(l.Path(ScoredDir), ".json")
}

// ListExtracted returns the parsed record files sorted by name.
func (l Layout) ListExtracted() ([]string, error) {
	return listFiles(l.Path(ExtractedDir), ".json")
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
