package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/schema"
)

// ErrNoExtractorAvailable is returned when no extractors in the fallback chain are available.
var ErrNoExtractorAvailable = errors.New("no extractor available")

// FallbackExtractor tries each extractor in order until one succeeds.
type FallbackExtractor struct {
	extractors []Extractor
}

// NewFallback creates a fallback chain from the given extractors.
// Extractors are tried in order. Only available extractors are used.
func NewFallback(extractors ...Extractor) *FallbackExtractor {
	return &FallbackExtractor{
		extractors: extractors,
	}
}

// Extract tries each extractor in order until one succeeds. A cancelled
// context ends the chain.
func (f *FallbackExtractor) Extract(ctx context.Context, content string, s schema.Schema) (*Result, error) {
	var lastErr error
	var lastResult *Result
	var tried []string

	for _, ext := range f.extractors {
		if !ext.Available() {
			continue
		}

		tried = append(tried, ext.Name())
		result, err := ext.Extract(ctx, content, s)
		if err == nil {
			return result, nil
		}

		lastErr = err
		lastResult = result
		if ctx.Err() != nil {
			break
		}
		logger.WarnContext(ctx, "extractor failed, trying next", "extractor", ext.Name(), "error", err.Error())
	}

	if len(tried) == 0 {
		return nil, ErrNoExtractorAvailable
	}

	return lastResult, fmt.Errorf("all extractors failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *FallbackExtractor) Name() string {
	var names []string
	for _, ext := range f.extractors {
		names = append(names, ext.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Available returns true if at least one extractor is available.
func (f *FallbackExtractor) Available() bool {
	for _, ext := range f.extractors {
		if ext.Available() {
			return true
		}
	}
	return false
}

// First returns the first available extractor, or nil if none available.
func (f *FallbackExtractor) First() Extractor {
	for _, ext := range f.extractors {
		if ext.Available() {
			return ext
		}
	}
	return nil
}

// Close closes every extractor that holds resources.
func (f *FallbackExtractor) Close() error {
	var errs []error
	for _, ext := range f.extractors {
		if c, ok := ext.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// ChainOptions describes a provider chain.
type ChainOptions struct {
	// Preferred provider, tried first. Empty means llm.DefaultProvider.
	Preferred string

	// Order lists the fallback providers after Preferred.
	Order []string

	// Settings returns the config for a provider. APIKey set here applies
	// only to that provider.
	Settings func(name string) LLMConfig
}

// BuildChain creates a fallback chain: the preferred provider first, then
// Order. Providers without credentials are skipped, except an explicitly
// preferred one whose construction error is returned if nothing is usable.
func BuildChain(opts ChainOptions) (*FallbackExtractor, error) {
	preferred := opts.Preferred
	if preferred == "" {
		preferred = llm.DefaultProvider
	}
	settings := opts.Settings
	if settings == nil {
		settings = func(string) LLMConfig { return DefaultLLMConfig() }
	}

	seen := map[string]bool{}
	var chain []Extractor
	var firstErr error

	for i, name := range append([]string{preferred}, opts.Order...) {
		if seen[name] {
			continue
		}
		seen[name] = true

		if !llm.IsRegistered(name) {
			logger.Warn("unknown provider in fallback order", "provider", name)
			continue
		}

		cfg := settings(name)
		if i > 0 && cfg.APIKey == "" && !llm.HasCredentials(name) {
			continue
		}

		ext, err := New(name, cfg)
		if err != nil {
			logger.Debug("provider unavailable", "provider", name, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		chain = append(chain, ext)
	}

	if len(chain) == 0 {
		if firstErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoExtractorAvailable, firstErr)
		}
		return nil, ErrNoExtractorAvailable
	}
	return NewFallback(chain...), nil
}
