package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultProvider is used when none is configured.
const DefaultProvider = "gemini"

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"gemini":    "gemini-2.5-pro",
	"vertex":    "gemini-2.5-pro",
	"openai":    "gpt-4o",
	"anthropic": "claude-sonnet-4-20250514",
	"ollama":    "llama3.2",
}

var registry = map[string]ProviderFactory{}

func init() {
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
	RegisterProvider("vertex", func(cfg ProviderConfig) (Provider, error) {
		return NewVertexProvider(cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("ollama", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
}

// NewProvider creates a provider by name. A missing API key is resolved from
// the provider's environment variables and a missing model from DefaultModels.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(name)
	}
	if cfg.Model == "" {
		cfg.Model = GetDefaultModel(name)
	}
	if name == "vertex" {
		if cfg.Project == "" {
			cfg.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if cfg.Location == "" {
			cfg.Location = os.Getenv("GOOGLE_CLOUD_LOCATION")
		}
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	if model, ok := DefaultModels[provider]; ok {
		return model
	}
	return ""
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

// providerEnvKeys maps provider names to their API key environment variables,
// in lookup order.
var providerEnvKeys = map[string][]string{
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// APIKeyFromEnv returns the first non-empty API key variable for the provider.
func APIKeyFromEnv(provider string) string {
	for _, env := range providerEnvKeys[provider] {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}

// HasCredentials reports whether the provider can be used with the current
// environment. Vertex needs a project (credentials come from ADC) and ollama
// needs nothing.
func HasCredentials(provider string) bool {
	switch provider {
	case "vertex":
		return os.Getenv("GOOGLE_CLOUD_PROJECT") != ""
	case "ollama":
		return true
	default:
		return APIKeyFromEnv(provider) != ""
	}
}

// DetectProvider picks the first provider with credentials.
// Priority: GOOGLE_API_KEY > GOOGLE_CLOUD_PROJECT > OPENAI_API_KEY > ANTHROPIC_API_KEY > ollama.
func DetectProvider() string {
	for _, name := range []string{"gemini", "vertex", "openai", "anthropic"} {
		if HasCredentials(name) {
			return name
		}
	}
	return "ollama"
}
