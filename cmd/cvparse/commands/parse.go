package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/parser"
	"github.com/jmylchreest/cvparse/pkg/status"
)

// wrappedResult wraps a parsed record with metadata.
type wrappedResult struct {
	Metadata resultMetadata `json:"_metadata"`
	Data     any            `json:"data"`
}

type resultMetadata struct {
	Document      string `json:"document"`
	FileType      string `json:"file_type"`
	Language      string `json:"language"`
	Pages         int    `json:"pages"`
	OCRUsed       bool   `json:"ocr_used,omitempty"`
	ParsedAt      string `json:"parsed_at"`
	Model         string `json:"model"`
	Provider      string `json:"provider"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	LLMDurationMs int64  `json:"llm_duration_ms"`
	RetryCount    int    `json:"retry_count,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a single document to stdout",
	Long: `Clean and parse one document and print the structured record. Nothing is
written to the data directory and duplicate detection is skipped.

Examples:
  cvparse parse resume.pdf
  cvparse parse resume.docx -p anthropic --format yaml
  cvparse parse resume.pdf --include-metadata=false`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var cleanFileCmd = &cobra.Command{
	Use:   "clean-file <file>",
	Short: "Print the cleaned text of a single document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCleanFile,
}

func init() {
	rootCmd.AddCommand(parseCmd, cleanFileCmd)

	parseCmd.Flags().Bool("include-metadata", true, "wrap output with _metadata and data keys (use --include-metadata=false to disable)")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prs, ext, err := buildParser(cfg)
	if err != nil {
		logger.Error("failed to build extractor chain", "error", err)
		return err
	}
	res := &resources{}
	res.add(ext.Close)
	defer res.Close()

	p, err := buildPipeline(ctx, cfg, prs, res)
	if err != nil {
		return err
	}

	rec, log, err := p.ParseFile(ctx, args[0])
	if err != nil {
		if log != nil {
			logger.Error("parse failed", "document", log.Filename, "issues", log.Issue, "error", err)
		}
		return err
	}

	includeMetadata, _ := cmd.Flags().GetBool("include-metadata")
	if !includeMetadata {
		return writeOut(cmd, rec.Data)
	}
	return writeOut(cmd, wrap(rec, log))
}

func wrap(rec *parser.Record, log *status.CleaningLog) wrappedResult {
	return wrappedResult{
		Metadata: resultMetadata{
			Document:      rec.Document,
			FileType:      log.FileType,
			Language:      log.Language,
			Pages:         log.Pages,
			OCRUsed:       log.OCRUsed,
			ParsedAt:      time.Now().UTC().Format(time.RFC3339),
			Model:         rec.Model,
			Provider:      rec.Provider,
			InputTokens:   rec.InputTokens,
			OutputTokens:  rec.OutputTokens,
			LLMDurationMs: rec.Duration.Milliseconds(),
			RetryCount:    rec.Retries,
		},
		Data: rec.Data,
	}
}

func runCleanFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res := &resources{}
	defer res.Close()

	p, err := buildPipeline(ctx, cfg, nil, res)
	if err != nil {
		return err
	}
	text, log, err := p.CleanFile(ctx, args[0])
	if err != nil {
		logger.Error("clean failed", "document", log.Filename, "issues", log.Issue, "error", err)
		return err
	}
	_, err = cmd.OutOrStdout().Write([]byte(text.Text + "\n"))
	return err
}
