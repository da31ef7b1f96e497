package status

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmylchreest/cvparse/internal/output"
)

// Recorder appends cleaning logs and processing entries to JSONL files.
// It is safe for concurrent use.
type Recorder struct {
	cleaning   *output.AppendLog
	errors     *output.AppendLog
	processing *output.AppendLog
	now        func() time.Time
}

// OpenRecorder opens (creating if needed) the log files in dir.
func OpenRecorder(dir string) (*Recorder, error) {
	r := &Recorder{now: time.Now}
	var err error
	if r.cleaning, err = output.OpenAppendLog(filepath.Join(dir, CleaningLogFile)); err != nil {
		return nil, err
	}
	if r.errors, err = output.OpenAppendLog(filepath.Join(dir, ErrorLogFile)); err != nil {
		_ = r.cleaning.Close()
		return nil, err
	}
	if r.processing, err = output.OpenAppendLog(filepath.Join(dir, ProcessingLogFile)); err != nil {
		_ = r.cleaning.Close()
		_ = r.errors.Close()
		return nil, err
	}
	return r, nil
}

// RecordCleaning appends l to the cleaning log, and to the error log when it has issues.
func (r *Recorder) RecordCleaning(l *CleaningLog) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = r.now().UTC()
	}
	if err := r.cleaning.Append(l); err != nil {
		return fmt.Errorf("append cleaning log: %w", err)
	}
	if l.HasIssue {
		if err := r.errors.Append(l); err != nil {
			return fmt.Errorf("append error log: %w", err)
		}
	}
	return nil
}

// Record appends a processing entry.
func (r *Recorder) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if err := r.processing.Append(e); err != nil {
		return fmt.Errorf("append processing log: %w", err)
	}
	return nil
}

// Close closes all log files.
func (r *Recorder) Close() error {
	return errors.Join(r.cleaning.Close(), r.errors.Close(), r.processing.Close())
}

// ReadJSONL decodes every line of a JSONL file. A missing file yields no records.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path) //#nosec G304 -- log paths come from the data layout
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

// LatestRun returns the entries of the most recent run in a processing log.
func LatestRun(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	runID := entries[len(entries)-1].RunID
	var out []Entry
	for _, e := range entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// Count tallies entries by status.
func Count(entries []Entry) map[Status]int {
	counts := make(map[Status]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}
