package llm

import (
	"fmt"
)

// GeminiBaseURL is the OpenAI-compatible endpoint of the Gemini API.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewGeminiProvider creates a provider for Gemini models through the Gemini
// API's OpenAI-compatible endpoint, authenticated with GOOGLE_API_KEY.
func NewGeminiProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required (set GOOGLE_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels["gemini"]
	}
	p := newOpenAICompatible("gemini", cfg)
	p.transform = SanitizeGeminiSchema
	return p, nil
}

// geminiUnsupported are JSON Schema keywords the Gemini endpoint rejects.
var geminiUnsupported = map[string]bool{
	"additionalProperties": true,
	"examples":             true,
	"default":              true,
	"$schema":              true,
}

// SanitizeGeminiSchema returns a copy of schema that Gemini accepts: unsupported
// keywords are dropped and ["T", "null"] type unions become T with nullable.
func SanitizeGeminiSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if geminiUnsupported[k] {
			continue
		}
		switch k {
		case "type":
			typ, nullable := splitNullable(v)
			out["type"] = typ
			if nullable {
				out["nullable"] = true
			}
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				out[k] = v
				continue
			}
			clean := make(map[string]any, len(props))
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					clean[name] = SanitizeGeminiSchema(pm)
				} else {
					clean[name] = p
				}
			}
			out[k] = clean
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = SanitizeGeminiSchema(im)
			} else {
				out[k] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}

// splitNullable turns a type union into a single type and a nullable flag.
func splitNullable(v any) (any, bool) {
	var types []string
	switch t := v.(type) {
	case []string:
		types = t
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok {
				types = append(types, s)
			}
		}
	default:
		return v, false
	}

	var typ string
	nullable := false
	for _, s := range types {
		if s == "null" {
			nullable = true
			continue
		}
		if typ == "" {
			typ = s
		}
	}
	if typ == "" {
		return "string", nullable
	}
	return typ, nullable
}
