package llm

import (
	"context"
	"time"

	"github.com/jmylchreest/cvparse/internal/logger"
)

// LLMObserver receives notifications about LLM calls. The CLI uses one to log
// every call at debug level; the observer is called whether the call
// succeeded or failed.
type LLMObserver interface {
	// OnLLMCall is called after each LLM provider execution.
	// It receives full context about the call including request, response, and timing.
	//
	// Parameters:
	//   - ctx: The context from the original call (may contain trace IDs, user info, etc.)
	//   - event: Contains all details about the LLM call
	//
	// Implementations should be non-blocking or handle their own goroutines
	// to avoid impacting extraction latency.
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent contains all information about an LLM call.
type LLMCallEvent struct {
	// Provider name (e.g., "gemini", "vertex", "anthropic")
	Provider string

	// Model used for the call
	Model string

	// Request details
	Request LLMCallRequest

	// Response details (nil if call failed before getting a response)
	Response *LLMCallResponse

	// Error if the call failed (nil on success)
	Error error

	// Duration of the LLM call
	Duration time.Duration

	// Attempt number (0 = first attempt, 1 = first retry, etc.)
	Attempt int

	// Timestamp when the call started
	StartedAt time.Time
}

// LLMCallRequest contains the request sent to the LLM.
type LLMCallRequest struct {
	// Messages sent to the LLM
	Messages []Message

	// MaxTokens requested
	MaxTokens int

	// Temperature used
	Temperature float64

	// Whether strict JSON mode was enabled
	StrictMode bool

	// Size in bytes of the CV text being parsed
	InputContentSize int

	// Document the call belongs to, when known
	Document string
}

// LLMCallResponse contains the response from the LLM.
type LLMCallResponse struct {
	// Raw response content
	Content string

	// Token usage
	InputTokens  int
	OutputTokens int

	// Finish reason ("stop", "length", etc.)
	FinishReason string
}

// ObserverFunc is a convenience type for using a function as an LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver combines multiple observers into one.
// All observers are called for each event.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnLLMCall dispatches the event to all registered observers.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	m.observers = append(m.observers, obs)
}

type documentKey struct{}

// WithDocument tags ctx with the document being parsed so observers can
// attribute calls.
func WithDocument(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, documentKey{}, name)
}

// DocumentFrom returns the document name set by WithDocument.
func DocumentFrom(ctx context.Context) string {
	name, _ := ctx.Value(documentKey{}).(string)
	return name
}

// NewLogObserver returns an observer that logs each call at debug level and
// failed calls as warnings.
func NewLogObserver() LLMObserver {
	return ObserverFunc(func(ctx context.Context, e LLMCallEvent) {
		args := []any{
			"provider", e.Provider,
			"model", e.Model,
			"attempt", e.Attempt,
			"duration", e.Duration.String(),
			"input_bytes", e.Request.InputContentSize,
		}
		if e.Request.Document != "" {
			args = append(args, "document", e.Request.Document)
		}
		if e.Response != nil {
			args = append(args,
				"input_tokens", e.Response.InputTokens,
				"output_tokens", e.Response.OutputTokens,
				"finish_reason", e.Response.FinishReason)
		}
		if e.Error != nil {
			logger.WarnContext(ctx, "llm call failed", append(args, "error", e.Error.Error())...)
			return
		}
		logger.DebugContext(ctx, "llm call", args...)
	})
}
