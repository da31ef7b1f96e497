package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/schema"
)

// BaseLLMExtractor provides the extraction loop shared by all providers.
type BaseLLMExtractor struct {
	provider  llm.Provider
	config    LLMConfig
	name      string
	available bool
	observer  llm.LLMObserver

	// backoff is the wait before retrying a rate-limited call; it doubles per attempt.
	backoff time.Duration
}

// New creates an extractor for a registered provider. The API key falls back
// to the provider's environment variables. An extractor whose provider cannot
// be built is returned unavailable together with the error.
func New(name string, cfg LLMConfig) (*BaseLLMExtractor, error) {
	pc := llm.DefaultProviderConfig()
	pc.APIKey = cfg.APIKey
	pc.BaseURL = cfg.BaseURL
	pc.Model = cfg.Model
	if cfg.Timeout > 0 {
		pc.Timeout = cfg.Timeout
	}
	if cfg.Project != "" {
		pc.Project = cfg.Project
	}
	if cfg.Location != "" {
		pc.Location = cfg.Location
	}

	provider, err := llm.NewProvider(name, pc)
	if err != nil {
		return &BaseLLMExtractor{name: name, config: mergeConfig(&cfg)}, err
	}
	if name == "openai" {
		cfg.StrictMode = true
	}
	return NewLLMExtractor(provider, &cfg), nil
}

// NewLLMExtractor wraps an llm.Provider. Zero Temperature and MaxTokens take
// defaults; the other fields are copied as given. A nil cfg means all defaults.
func NewLLMExtractor(provider llm.Provider, cfg *LLMConfig) *BaseLLMExtractor {
	config := mergeConfig(cfg)
	return &BaseLLMExtractor{
		provider:  provider,
		config:    config,
		name:      provider.Name(),
		available: true,
		observer:  config.Observer,
		backoff:   2 * time.Second,
	}
}

func mergeConfig(cfg *LLMConfig) LLMConfig {
	config := DefaultLLMConfig()
	if cfg == nil {
		return config
	}
	if cfg.Temperature > 0 {
		config.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		config.MaxTokens = cfg.MaxTokens
	}
	if cfg.MaxRetries >= 0 {
		config.MaxRetries = cfg.MaxRetries
	}
	// 0 is a valid "unlimited" setting
	config.MaxContentSize = cfg.MaxContentSize
	config.StrictMode = cfg.StrictMode
	config.Observer = cfg.Observer
	return config
}

// Extract performs LLM-based data extraction with retry logic. Validation
// and JSON parse failures are fed back into the next prompt; rate limits are
// retried after a backoff; any other error ends the loop.
func (e *BaseLLMExtractor) Extract(ctx context.Context, content string, s schema.Schema) (*Result, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%s: %w", e.name, ErrNoExtractorAvailable)
	}

	logger.DebugContext(ctx, "extractor starting",
		"extractor", e.name,
		"schema", s.Name,
		"content_size", len(content),
		"max_retries", e.config.MaxRetries)

	var lastErr error
	var lastResult *Result
	var totalUsage Usage
	var totalDuration time.Duration
	attempts := 0

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		attempts = attempt + 1
		start := time.Now()
		result, err := e.extractOnce(ctx, content, s, feedback(lastErr), attempt)
		totalDuration += time.Since(start)
		lastResult = result

		totalUsage.InputTokens += result.Usage.InputTokens
		totalUsage.OutputTokens += result.Usage.OutputTokens

		if err == nil {
			validationErrors := s.Validate(result.Data)
			if len(validationErrors) == 0 {
				result.Usage = totalUsage
				result.RetryCount = attempt
				result.Duration = totalDuration
				logger.DebugContext(ctx, "extractor success",
					"attempts", attempts,
					"input_tokens", totalUsage.InputTokens,
					"output_tokens", totalUsage.OutputTokens,
					"model", result.Model)
				return result, nil
			}

			result.Errors = validationErrors
			err = &validationError{errors: validationErrors}
			logger.DebugContext(ctx, "extractor validation failed", "errors", len(validationErrors))
		}
		lastErr = err

		if attempt >= e.config.MaxRetries {
			break
		}
		if retry, werr := e.shouldRetry(ctx, err, attempt); !retry {
			if werr != nil {
				lastErr = werr
			}
			break
		}
	}

	out := &Result{
		Usage:      totalUsage,
		RetryCount: attempts - 1,
		Duration:   totalDuration,
		Provider:   e.name,
	}
	if lastResult != nil {
		out.Raw = lastResult.Raw
		out.Model = lastResult.Model
		out.FinishReason = lastResult.FinishReason
		out.Errors = lastResult.Errors
	}
	return out, fmt.Errorf("extraction failed after %d attempts: %w", attempts, lastErr)
}

// shouldRetry decides whether err deserves another attempt. Rate limits wait
// for the backoff first; a cancelled wait is returned as the error.
func (e *BaseLLMExtractor) shouldRetry(ctx context.Context, err error, attempt int) (bool, error) {
	var pe *parseError
	var ve *validationError
	switch {
	case errors.As(err, &ve), errors.As(err, &pe):
		return true, nil
	case llm.IsRateLimit(err):
		if werr := e.wait(ctx, attempt); werr != nil {
			return false, werr
		}
		return true, nil
	default:
		logger.DebugContext(ctx, "extractor error not retryable", "error", err)
		return false, nil
	}
}

func (e *BaseLLMExtractor) wait(ctx context.Context, attempt int) error {
	d := e.backoff << attempt
	if d <= 0 {
		return ctx.Err()
	}
	logger.DebugContext(ctx, "extractor rate limited, backing off", "wait", d.String())
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// feedback returns the error worth showing the model on the next attempt.
func feedback(err error) error {
	var ve *validationError
	var pe *parseError
	if errors.As(err, &ve) || errors.As(err, &pe) {
		return err
	}
	return nil
}

// extractOnce performs a single attempt. The returned Result is never nil.
func (e *BaseLLMExtractor) extractOnce(ctx context.Context, content string, s schema.Schema, previousErr error, attempt int) (*Result, error) {
	prompt := BuildPrompt(content, s, previousErr, e.config.MaxContentSize)

	var jsonSchema map[string]any
	var err error
	if e.config.StrictMode {
		jsonSchema, err = s.ToStrictJSONSchema()
	} else {
		jsonSchema, err = s.ToJSONSchema()
	}
	if err != nil {
		return &Result{}, fmt.Errorf("failed to generate JSON schema: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}

	logger.DebugContext(ctx, "extractor calling LLM",
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"attempt", attempt+1,
		"prompt_size", len(prompt),
		"strict_mode", e.config.StrictMode)

	startedAt := time.Now()
	resp, err := e.provider.Execute(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  jsonSchema,
		SchemaName:  s.Name,
		StrictMode:  e.config.StrictMode,
	})
	e.notify(ctx, messages, len(content), attempt, startedAt, resp, err)

	if err != nil {
		return &Result{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	result := &Result{
		Raw: resp.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Model:        resp.Model,
		Provider:     e.name,
		FinishReason: resp.FinishReason,
	}

	data, err := s.Unmarshal([]byte(StripMarkdownCodeBlock(resp.Content)))
	if err != nil {
		return result, &parseError{err: err, finishReason: resp.FinishReason, response: truncateForError(resp.Content)}
	}
	result.Data = data
	return result, nil
}

func (e *BaseLLMExtractor) notify(ctx context.Context, messages []llm.Message, size, attempt int, startedAt time.Time, resp *llm.Response, err error) {
	if e.observer == nil {
		return
	}
	event := llm.LLMCallEvent{
		Provider:  e.name,
		Model:     e.provider.Model(),
		Duration:  time.Since(startedAt),
		Attempt:   attempt,
		StartedAt: startedAt,
		Error:     err,
		Request: llm.LLMCallRequest{
			Messages:         messages,
			MaxTokens:        e.config.MaxTokens,
			Temperature:      e.config.Temperature,
			StrictMode:       e.config.StrictMode,
			InputContentSize: size,
			Document:         llm.DocumentFrom(ctx),
		},
	}
	if resp != nil {
		event.Model = resp.Model
		event.Response = &llm.LLMCallResponse{
			Content:      resp.Content,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			FinishReason: resp.FinishReason,
		}
	}
	e.observer.OnLLMCall(ctx, event)
}

// Name returns the extractor name.
func (e *BaseLLMExtractor) Name() string {
	return e.name
}

// Available reports whether the provider was built.
func (e *BaseLLMExtractor) Available() bool {
	return e.available
}

// Model returns the provider's model, or "" when unavailable.
func (e *BaseLLMExtractor) Model() string {
	if e.provider == nil {
		return ""
	}
	return e.provider.Model()
}

// Close releases provider resources.
func (e *BaseLLMExtractor) Close() error {
	if e.provider == nil {
		return nil
	}
	return llm.Close(e.provider)
}

// validationError wraps validation errors for retry context.
type validationError struct {
	errors []schema.ValidationError
}

func (e *validationError) Error() string {
	var sb strings.Builder
	for _, err := range e.errors {
		sb.WriteString("- Field \"")
		sb.WriteString(err.Field)
		sb.WriteString("\": ")
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseError reports a response that is not valid JSON for the schema.
type parseError struct {
	err          error
	finishReason string
	response     string
}

func (e *parseError) Error() string {
	msg := "response is not valid JSON: " + e.err.Error()
	if e.finishReason == "length" || e.finishReason == "max_tokens" {
		msg += " (output was truncated by the token limit)"
	}
	return msg + " (response: " + e.response + ")"
}

func (e *parseError) Unwrap() error { return e.err }

const maxErrorResponse = 200

// truncateForError truncates content for error messages on a rune boundary.
func truncateForError(s string) string {
	if len(s) <= maxErrorResponse {
		return s
	}
	cut := maxErrorResponse
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
