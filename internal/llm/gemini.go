package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures a GeminiBackend.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	// Model is used when a request does not name one.
	Model     string
	MaxTokens int
}

// GeminiBackend talks to the Gemini API through google.golang.org/genai.
type GeminiBackend struct {
	models    *genai.Models
	model     string
	maxTokens int
}

func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{
		models:    client.Models,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}
	if model == "" {
		return nil, NewError(KindBackendUnavailable, "no model configured", nil)
	}

	contents, gcfg := buildGeminiRequest(req, b.maxTokens)
	resp, err := b.models.GenerateContent(ctx, model, contents, gcfg)
	if err != nil {
		return nil, Classify(err)
	}
	return convertGeminiResponse(resp), nil
}

func buildGeminiRequest(req Request, defaultMaxTokens int) ([]*genai.Content, *genai.GenerateContentConfig) {
	gcfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if maxTokens > 0 {
		gcfg.MaxOutputTokens = int32(maxTokens)
	}
	if req.ThinkingBudget != nil {
		budget := int32(*req.ThinkingBudget)
		gcfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, geminiDeclaration(d))
		}
		gcfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Text != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Text})
			}
			for _, call := range m.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Name,
						Args: call.Args,
					},
					ThoughtSignature: call.ThoughtSignature,
				})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		case RoleTool:
			c := &genai.Content{Role: genai.RoleUser}
			for _, res := range m.ToolResults {
				c.Parts = append(c.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       res.ID,
					Name:     res.Name,
					Response: responseMap(res.Payload),
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		default:
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
		}
	}
	return contents, gcfg
}

func geminiDeclaration(d ToolDeclaration) *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(d.Params)),
	}
	for _, p := range d.Params {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        geminiType(p.Type),
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  schema,
	}
}

func geminiType(t ParamType) genai.Type {
	switch t {
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// responseMap shapes a tool payload into the object a FunctionResponse
// expects; non-object payloads are wrapped under "output".
func responseMap(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	return map[string]any{"output": payload}
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:               part.FunctionCall.ID,
				Name:             part.FunctionCall.Name,
				Args:             part.FunctionCall.Args,
				ThoughtSignature: part.ThoughtSignature,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = text.String()
	return out
}

// apiStatus extracts the HTTP code and status string of a Gemini API error.
func apiStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}
