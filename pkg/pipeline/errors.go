package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/cvparse/pkg/status"
)

// ErrSkipped is returned by ParseFile for documents stopped by a cleaning issue.
var ErrSkipped = errors.New("document skipped")

// StageError records which stage failed for which file.
type StageError struct {
	Stage status.Stage
	File  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.File, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage status.Stage, file string, err error) error {
	return &StageError{Stage: stage, File: file, Err: err}
}

func skipped(log *status.CleaningLog) error {
	return fmt.Errorf("%w: %s", ErrSkipped, strings.Join(log.Issue, ", "))
}
