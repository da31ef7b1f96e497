// Package extractor turns cleaned CV text into a schema-validated record by
// prompting an LLM, validating the reply and feeding errors back on retry.
package extractor

import (
	"context"
	"time"

	"github.com/jmylchreest/cvparse/pkg/schema"
)

// Extractor extracts structured data from content.
type Extractor interface {
	// Extract performs extraction from content using the provided schema.
	Extract(ctx context.Context, content string, s schema.Schema) (*Result, error)

	// Name returns the extractor identifier.
	Name() string

	// Available returns true if the extractor is properly configured
	// (e.g., has required API keys).
	Available() bool
}

// Result holds the extraction output.
type Result struct {
	// Data is the validated record: a pointer to the schema's struct type,
	// or a map for schemas loaded from files.
	Data any

	// Raw is the raw response from the LLM.
	Raw string

	// Errors contains validation errors from the last attempt.
	Errors []schema.ValidationError

	// Usage tracks token consumption across all attempts.
	Usage Usage

	// Model is the model reported by the provider.
	Model string

	// Provider is the provider name.
	Provider string

	// RetryCount is the number of retries performed.
	RetryCount int

	// Duration is the total time spent extracting.
	Duration time.Duration

	// FinishReason of the last attempt ("stop", "length", ...).
	FinishReason string
}

// Usage tracks token consumption for LLM-based extractors.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
