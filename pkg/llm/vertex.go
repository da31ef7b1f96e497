package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// VertexProvider implements Provider for Gemini models on Vertex AI.
// Credentials come from Application Default Credentials.
type VertexProvider struct {
	client *genai.Client
	model  string
	cfg    ProviderConfig

	newModel func(name string) *genai.GenerativeModel
	generate func(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// NewVertexProvider creates a Vertex AI provider for cfg.Project and cfg.Location.
func NewVertexProvider(cfg ProviderConfig) (*VertexProvider, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex project required (set GOOGLE_CLOUD_PROJECT)")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	client, err := genai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	p := newVertex(cfg, client.GenerativeModel)
	p.client = client
	return p, nil
}

func newVertex(cfg ProviderConfig, newModel func(string) *genai.GenerativeModel) *VertexProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultModels["vertex"]
	}
	return &VertexProvider{
		model:    model,
		cfg:      cfg,
		newModel: newModel,
		generate: func(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
			return m.GenerateContent(ctx, parts...)
		},
	}
}

// Execute sends a completion request to Vertex AI.
func (p *VertexProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	m := p.newModel(p.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: genai.Ptr(int32(maxTokens(req))),
	}

	var parts []genai.Part
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		default:
			parts = append(parts, genai.Text(msg.Content))
		}
	}

	if req.JSONSchema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = ToGenaiSchema(req.JSONSchema)
	}

	resp, err := p.generate(ctx, m, parts...)
	if err != nil {
		return nil, fmt.Errorf("vertex API error: %w", err)
	}

	content, finish, err := vertexText(resp)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Content:      content,
		FinishReason: finish,
		Model:        p.model,
		Duration:     time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func vertexText(resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", "", errors.New("vertex: no candidates in response")
	}
	cand := resp.Candidates[0]
	finish := strings.ToLower(strings.TrimPrefix(cand.FinishReason.String(), "FinishReason"))
	if cand.Content == nil {
		return "", finish, errors.New("vertex: empty candidate")
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), finish, nil
}

// Name returns the provider identifier.
func (p *VertexProvider) Name() string {
	return "vertex"
}

// Model returns the configured model name.
func (p *VertexProvider) Model() string {
	return p.model
}

// Close releases the underlying client.
func (p *VertexProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// ToGenaiSchema converts a JSON Schema map into a Vertex AI response schema.
// Keywords Vertex cannot express (additionalProperties, examples) are dropped.
func ToGenaiSchema(js map[string]any) *genai.Schema {
	s := &genai.Schema{}

	typ, nullable := splitNullable(js["type"])
	if t, ok := typ.(string); ok {
		s.Type = genaiType(t)
	}
	s.Nullable = nullable
	if n, ok := js["nullable"].(bool); ok && n {
		s.Nullable = true
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(js["enum"])
	s.Required = stringList(js["required"])

	if items, ok := js["items"].(map[string]any); ok {
		s.Items = ToGenaiSchema(items)
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = ToGenaiSchema(pm)
			}
		}
	}
	return s
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var _ Provider = (*VertexProvider)(nil)
