// Package status records per-document progress through the pipeline as JSON
// lines under the processing logs directory.
package status

import (
	"slices"
	"time"
)

// Log file names inside the processing logs directory.
const (
	CleaningLogFile   = "cleaning_logs.jsonl"
	ErrorLogFile      = "error_logs.jsonl"
	ProcessingLogFile = "processing_log.jsonl"
)

// Issues attached to a CleaningLog. Any issue stops the document before parsing.
const (
	IssueZeroText         = "Zero text"
	IssueUnknownLanguage  = "Unknown language"
	IssueDuplicate        = "Duplicate file"
	IssueUnsupportedType  = "Unsupported file type"
	IssueExtractionFailed = "Extraction failed"
)

// CleaningLog describes the outcome of text extraction for one document.
type CleaningLog struct {
	RunID       string    `json:"run_id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	Hash        string    `json:"hash"`
	OCRUsed     bool      `json:"ocr_used"`
	ZeroText    bool      `json:"zero_text"`
	Language    string    `json:"language"`
	Pages       int       `json:"pages"`
	Chars       int       `json:"chars"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Error       string    `json:"error,omitempty"`
	Issue       []string  `json:"issue"`
	HasIssue    bool      `json:"has_issue"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewCleaningLog creates an empty log for filename.
func NewCleaningLog(runID, filename string) *CleaningLog {
	return &CleaningLog{
		RunID:    runID,
		Filename: filename,
		Issue:    []string{},
	}
}

// AddIssue records an issue once and marks the log as problematic.
func (l *CleaningLog) AddIssue(issue string) {
	if !slices.Contains(l.Issue, issue) {
		l.Issue = append(l.Issue, issue)
	}
	l.HasIssue = true
}

// Stage names a pipeline step.
type Stage string

const (
	StageClean  Stage = "clean"
	StageHandle Stage = "handle"
	StageParse  Stage = "parse"
	StageSave   Stage = "save"
	StageScore  Stage = "score"
	StageRank   Stage = "rank"
)

// Status is the final state of a document in a run.
type Status string

const (
	StatusParsed  Status = "parsed"
	StatusCached  Status = "cached"
	StatusCleaned Status = "cleaned" // clean-only runs stop after the handling stage
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Entry is one processing-log line: the final status of a document in a run.
type Entry struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Filename     string    `json:"filename"`
	Hash         string    `json:"hash,omitempty"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Issues       []string  `json:"issues,omitempty"`
	Output       string    `json:"output,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	Retries      int       `json:"retries,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
}
