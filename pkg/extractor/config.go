package extractor

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/schema"
)

// LLMConfig holds shared configuration for LLM-based extractors.
type LLMConfig struct {
	// Model overrides the default model for this provider.
	Model string

	// APIKey for the provider. If empty, the provider's environment variable is used.
	APIKey string

	// BaseURL for custom API endpoints.
	BaseURL string

	// Temperature for LLM responses (default: 0.1).
	Temperature float64

	// MaxTokens for LLM responses (default: 16384).
	MaxTokens int

	// MaxRetries is the number of extra attempts after a validation, parse or
	// rate-limit failure (default: 2).
	MaxRetries int

	// MaxContentSize limits input content in bytes (0 = unlimited).
	MaxContentSize int

	// StrictMode sends a schema with every property required and optional
	// ones nullable. Needed by OpenAI strict structured outputs.
	StrictMode bool

	// Timeout bounds each provider request. Zero keeps the provider default.
	Timeout time.Duration

	// Project and Location select the Vertex AI endpoint.
	Project  string
	Location string

	// Observer receives notifications about LLM calls.
	Observer llm.LLMObserver
}

// DefaultLLMConfig returns sensible defaults for LLM extraction.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Temperature:    0.1,
		MaxTokens:      16384,
		MaxRetries:     2,
		MaxContentSize: 100000,
	}
}

// SystemPrompt frames the model as an HR assistant reading CVs.
const SystemPrompt = `You are an HR CV assistant and you are best at your job. Your task is to carefully read applicants' CVs and extract the required information.

Only extract the fields described in the format instructions. Each field has a description with examples for reference.

Respond with ONLY valid JSON matching the schema. No explanations.

Rules:
1. Lists: use [] when the CV has no entries for a section
2. Unknown values: use null for numbers and omit unknown text fields
3. Do not invent entries or values that the CV does not state
4. Numbers: extract the numeric value only (3.22 from "3.22/4.0")
5. Evidence spans: copy the text exactly as it appears in the CV`

// BuildPrompt creates the extraction prompt from content and schema.
func BuildPrompt(content string, s schema.Schema, previousErr error, maxContentSize int) string {
	var prompt strings.Builder

	prompt.WriteString("Extract structured data from the following CV.\n\n")
	prompt.WriteString(s.ToPromptDescription())

	// Include previous errors for self-correction
	if previousErr != nil {
		prompt.WriteString("\n## Previous Attempt Errors\n")
		prompt.WriteString("The previous extraction attempt had these errors that need to be fixed:\n")
		prompt.WriteString(previousErr.Error())
		prompt.WriteString("\n\nPlease correct these errors in your response.\n")
	}

	prompt.WriteString("\n## CV Text\n")
	prompt.WriteString("```\n")
	prompt.WriteString(TruncateContent(content, maxContentSize))
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// TruncateContent limits content size to avoid token limits, cutting on a
// rune boundary. maxLen of 0 means no limit.
func TruncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "\n\n[Content truncated due to length...]"
}

// StripMarkdownCodeBlock removes markdown code block wrappers from JSON responses.
// Some models wrap their JSON output in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}

	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
