// Package pipeline runs CV documents from data/raw through cleaning, handling
// and LLM parsing, writing artifacts and processing logs as it goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/cvparse/internal/dedup"
	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/storage"
	"github.com/jmylchreest/cvparse/pkg/cleaner"
	"github.com/jmylchreest/cvparse/pkg/document"
	"github.com/jmylchreest/cvparse/pkg/language"
	"github.com/jmylchreest/cvparse/pkg/parser"
	"github.com/jmylchreest/cvparse/pkg/status"
)

// DefaultConcurrency is the number of documents processed in parallel. One
// document at a time keeps duplicate ownership in sorted file order.
const DefaultConcurrency = 1

// Options configures a Pipeline. Zero values select the defaults noted per field.
type Options struct {
	Layout Layout

	// Loader extracts document text. Default: document.NewLoader().
	Loader *document.Loader

	// Cleaner is the stage-one text cleaner. Default: cleaner.Text.
	Cleaner cleaner.Cleaner

	// Handler is the stage-two normalization. Default: Unicode then Layout.
	Handler cleaner.Cleaner

	// Registry detects duplicate content. Default: an in-memory registry.
	Registry dedup.Registry

	// Store receives cleaned texts and parsed records. Default: a local store
	// rooted at Layout.Root.
	Store storage.Store

	// Recorder receives cleaning logs and processing entries. Default: opened
	// in the layout's logs directory for the duration of Run.
	Recorder *status.Recorder

	// Parser runs stage three. When nil, documents stop after handling with
	// status cleaned.
	Parser *parser.Parser

	Concurrency int

	// Resume reuses existing extracted records instead of calling the LLM.
	Resume bool

	// RunID tags every log line. Default: a random UUID.
	RunID string
}

// Pipeline processes the documents of one data directory.
type Pipeline struct {
	opts  Options
	local *storage.Local
}

// New validates opts and fills in defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Layout.Root == "" {
		return nil, errors.New("pipeline: data directory is required")
	}
	if opts.Loader == nil {
		opts.Loader = document.NewLoader()
	}
	if opts.Cleaner == nil {
		opts.Cleaner = cleaner.Text
	}
	if opts.Handler == nil {
		opts.Handler = cleaner.NewChain(cleaner.Unicode, cleaner.Layout)
	}
	if opts.Registry == nil {
		opts.Registry = dedup.NewMemory()
	}
	local := storage.NewLocal(opts.Layout.Root)
	if opts.Store == nil {
		opts.Store = local
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Pipeline{opts: opts, local: local}, nil
}

// RunID returns the identifier attached to this pipeline's log records.
func (p *Pipeline) RunID() string {
	return p.opts.RunID
}

// Result is the outcome of one document.
type Result struct {
	File     string         `json:"filename"`
	Stem     string         `json:"stem"`
	Hash     string         `json:"hash,omitempty"`
	Stage    status.Stage   `json:"stage"`
	Status   status.Status  `json:"status"`
	Issues   []string       `json:"issues,omitempty"`
	Language string         `json:"language,omitempty"`
	Output   string         `json:"output,omitempty"`
	Err      error          `json:"-"`
	Record   *parser.Record `json:"-"`
	Duration time.Duration  `json:"duration"`
}

// Summary tallies a run. Results are in input order.
type Summary struct {
	RunID    string        `json:"run_id"`
	Total    int           `json:"total"`
	Parsed   int           `json:"parsed"`
	Cached   int           `json:"cached"`
	Cleaned  int           `json:"cleaned,omitempty"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case status.StatusParsed:
		s.Parsed++
	case status.StatusCached:
		s.Cached++
	case status.StatusCleaned:
		s.Cleaned++
	case status.StatusSkipped:
		s.Skipped++
	case status.StatusFailed:
		s.Failed++
	}
}

// Run processes every document in the raw directory. Per-document failures are
// reported in the Summary, not returned. The error is non-nil only for setup
// failures or when ctx was cancelled before every document was scheduled.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	layout := p.opts.Layout
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	files, err := layout.ListRaw()
	if err != nil {
		return nil, err
	}

	recorder := p.opts.Recorder
	if recorder == nil {
		recorder, err = status.OpenRecorder(layout.Logs())
		if err != nil {
			return nil, fmt.Errorf("open processing logs: %w", err)
		}
		defer func() {
			if cerr := recorder.Close(); cerr != nil {
				logger.Warn("closing processing logs", "error", cerr)
			}
		}()
	}

	logger.Info("pipeline started", "run_id", p.opts.RunID, "documents", len(files),
		"concurrency", p.opts.Concurrency, "parser", p.parserName())

	stems := OutputStems(files)
	results := make([]*Result, len(files))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := p.process(ctx, recorder, file, stems[i])
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{RunID: p.opts.RunID, Total: len(files)}
	for _, r := range results {
		if r != nil {
			summary.add(*r)
		}
	}
	summary.Duration = time.Since(start)

	logger.Info("pipeline finished", "run_id", summary.RunID, "total", summary.Total,
		"parsed", summary.Parsed, "cached", summary.Cached, "skipped", summary.Skipped,
		"failed", summary.Failed, "duration", summary.Duration.Round(time.Millisecond).String())

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

func (p *Pipeline) parserName() string {
	if p.opts.Parser == nil {
		return "none"
	}
	return p.opts.Parser.Name()
}

// process runs one document through every stage and records its outcome.
// Artifacts are stored under stem.
func (p *Pipeline) process(ctx context.Context, recorder *status.Recorder, path, stem string) (res Result) {
	start := time.Now()
	name := filepath.Base(path)
	ctx = logger.WithContext(ctx, "run_id", p.opts.RunID, "document", name)

	res = Result{File: name, Stem: stem}
	defer func() {
		res.Duration = time.Since(start)
		p.record(ctx, recorder, &res)
	}()

	text, log := p.clean(ctx, path)
	res.Hash = log.Hash
	res.Language = log.Language

	// Handling: duplicates, record keeping, skip decision, normalization.
	res.Stage = status.StageHandle
	if log.Hash != "" && !log.HasIssue {
		dup, owner, err := dedup.IsDuplicate(ctx, p.opts.Registry, log.Hash, name)
		if err != nil {
			p.fail(&res, stageError(status.StageHandle, name, err))
			return res
		}
		if dup {
			log.DuplicateOf = owner
			log.AddIssue(status.IssueDuplicate)
		}
	}
	if err := recorder.RecordCleaning(log); err != nil {
		logger.ErrorContext(ctx, "recording cleaning log", "error", err)
	}
	if log.HasIssue {
		res.Status = status.StatusSkipped
		res.Issues = log.Issue
		logger.InfoContext(ctx, "document skipped", "issues", log.Issue)
		return res
	}

	cleaned, err := p.handle(text)
	if err != nil {
		p.fail(&res, stageError(status.StageHandle, name, err))
		return res
	}
	key := CleanedKey(res.Stem)
	if err := p.opts.Store.Put(ctx, key, []byte(cleaned.Text), storage.ContentTypeText); err != nil {
		p.fail(&res, stageError(status.StageHandle, name, err))
		return res
	}
	res.Output = key

	if p.opts.Parser == nil {
		res.Status = status.StatusCleaned
		return res
	}

	// Parsing.
	res.Stage = status.StageParse
	key = ExtractedKey(res.Stem)
	if p.opts.Resume && p.local.Exists(key) {
		res.Status = status.StatusCached
		res.Output = key
		logger.DebugContext(ctx, "reusing extracted record", "output", key)
		return res
	}
	rec, err := p.opts.Parser.Parse(ctx, name, cleaned.Text)
	if rec != nil {
		res.Record = rec
	}
	if err != nil {
		p.fail(&res, stageError(status.StageParse, name, err))
		return res
	}

	res.Stage = status.StageSave
	data, err := rec.MarshalData()
	if err == nil {
		err = p.opts.Store.Put(ctx, key, data, storage.ContentTypeJSON)
	}
	if err != nil {
		p.fail(&res, stageError(status.StageSave, name, err))
		return res
	}
	res.Status = status.StatusParsed
	res.Output = key
	logger.InfoContext(ctx, "document parsed", "output", key, "provider", rec.Provider,
		"retries", rec.Retries)
	return res
}

func (p *Pipeline) fail(res *Result, err error) {
	res.Status = status.StatusFailed
	res.Err = err
}

func (p *Pipeline) record(ctx context.Context, recorder *status.Recorder, res *Result) {
	if res.Err != nil {
		logger.ErrorContext(ctx, "document failed", "stage", string(res.Stage), "error", res.Err)
	}
	e := status.Entry{
		RunID:      p.opts.RunID,
		Filename:   res.File,
		Hash:       res.Hash,
		Stage:      res.Stage,
		Status:     res.Status,
		Issues:     res.Issues,
		Output:     res.Output,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if rec := res.Record; rec != nil {
		e.Provider = rec.Provider
		e.Model = rec.Model
		e.InputTokens = rec.InputTokens
		e.OutputTokens = rec.OutputTokens
		e.Retries = rec.Retries
	}
	if err := recorder.Record(e); err != nil {
		logger.ErrorContext(ctx, "recording processing entry", "error", err)
	}
}

// ParseFile runs a single document through cleaning, handling and parsing
// without duplicate checks, logs or stored artifacts. Documents with cleaning
// issues return ErrSkipped along with their CleaningLog.
func (p *Pipeline) ParseFile(ctx context.Context, path string) (*parser.Record, *status.CleaningLog, error) {
	if p.opts.Parser == nil {
		return nil, nil, errors.New("pipeline: no parser configured")
	}
	text, log := p.clean(ctx, path)
	if log.HasIssue {
		return nil, log, skipped(log)
	}
	cleaned, err := p.handle(text)
	if err != nil {
		return nil, log, stageError(status.StageHandle, log.Filename, err)
	}
	rec, err := p.opts.Parser.Parse(ctx, log.Filename, cleaned.Text)
	if err != nil {
		return rec, log, stageError(status.StageParse, log.Filename, err)
	}
	return rec, log, nil
}

// CleanFile runs stages one and two on a single document without side effects.
func (p *Pipeline) CleanFile(ctx context.Context, path string) (*CleanedText, *status.CleaningLog, error) {
	text, log := p.clean(ctx, path)
	if log.HasIssue {
		return text, log, skipped(log)
	}
	cleaned, err := p.handle(text)
	if err != nil {
		return text, log, stageError(status.StageHandle, log.Filename, err)
	}
	return cleaned, log, nil
}

// CleanedText is stage output: text plus where it came from.
type CleanedText struct {
	Text     string
	Document *document.Document
	Language language.Result
	Cleaners []string
}

// clean is stage one. Failures never escape: they become issues on the log.
func (p *Pipeline) clean(ctx context.Context, path string) (*CleanedText, *status.CleaningLog) {
	name := filepath.Base(path)
	log := status.NewCleaningLog(p.opts.RunID, name)
	log.Language = language.Unknown

	doc, err := p.opts.Loader.Load(ctx, path)
	if doc != nil {
		log.FileType = doc.Extension()
		log.Hash = doc.Hash
		log.Pages = doc.Pages
		log.OCRUsed = doc.OCRUsed
	} else {
		log.FileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		log.AddIssue(status.IssueUnsupportedType)
		return nil, log
	case errors.Is(err, document.ErrEmptyDocument):
		log.ZeroText = true
		log.AddIssue(status.IssueZeroText)
		return nil, log
	case err != nil:
		log.Error = stageError(status.StageClean, name, err).Error()
		log.AddIssue(status.IssueExtractionFailed)
		logger.WarnContext(ctx, "text extraction failed", "error", err)
		return nil, log
	}

	text, err := p.opts.Cleaner.Clean(doc.Text)
	if err != nil {
		log.Error = stageError(status.StageClean, name, err).Error()
		log.AddIssue(status.IssueExtractionFailed)
		return nil, log
	}

	lang := language.Detect(text)
	log.Language = lang.Code
	log.Chars = len([]rune(text))
	if cleaner.IsBlank(text) {
		log.ZeroText = true
		log.AddIssue(status.IssueZeroText)
	}
	switch {
	case !lang.Known():
		log.AddIssue(status.IssueUnknownLanguage)
	case !lang.Reliable:
		logger.DebugContext(ctx, "low language confidence", "language", lang.Code,
			"confidence", lang.Confidence)
	}
	return &CleanedText{
		Text:     text,
		Document: doc,
		Language: lang,
		Cleaners: []string{p.opts.Cleaner.Name()},
	}, log
}

// handle is the stage-two normalization.
func (p *Pipeline) handle(in *CleanedText) (*CleanedText, error) {
	text, err := p.opts.Handler.Clean(in.Text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.opts.Handler.Name(), err)
	}
	out := *in
	out.Text = text
	out.Cleaners = append(append([]string(nil), in.Cleaners...), p.opts.Handler.Name())
	return &out, nil
}
