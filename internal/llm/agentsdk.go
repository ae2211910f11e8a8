package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cexll/agentsdk-go/pkg/model"
)

// SDKBackend adapts an agentsdk-go model provider (Anthropic or
// OpenAI-compatible) to Backend. Thinking budgets are not forwarded.
type SDKBackend struct {
	provider  model.Provider
	model     string
	maxTokens int
}

func NewSDKBackend(provider model.Provider, modelName string, maxTokens int) *SDKBackend {
	return &SDKBackend{provider: provider, model: modelName, maxTokens: maxTokens}
}

func (b *SDKBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	mdl, err := b.provider.Model(ctx)
	if err != nil {
		return nil, NewError(KindBackendUnavailable, "create model", err)
	}

	sreq := model.Request{
		System:    req.System,
		Messages:  toSDKMessages(req.Messages),
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	if sreq.Model == "" {
		sreq.Model = b.model
	}
	if sreq.MaxTokens == 0 {
		sreq.MaxTokens = b.maxTokens
	}
	for _, d := range req.Tools {
		sreq.Tools = append(sreq.Tools, model.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.JSONSchema(),
		})
	}

	resp, err := mdl.Complete(ctx, sreq)
	if err != nil {
		return nil, Classify(err)
	}
	if resp == nil {
		return &Response{}, nil
	}

	out := &Response{Text: resp.Message.Content}
	for _, call := range resp.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   call.ID,
			Name: call.Name,
			Args: call.Arguments,
		})
	}
	return out, nil
}

func toSDKMessages(msgs []Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			sm := model.Message{Role: "assistant", Content: m.Text}
			for _, call := range m.ToolCalls {
				sm.ToolCalls = append(sm.ToolCalls, model.ToolCall{
					ID:        call.ID,
					Name:      call.Name,
					Arguments: call.Args,
				})
			}
			out = append(out, sm)
		case RoleTool:
			sm := model.Message{Role: "tool"}
			for _, res := range m.ToolResults {
				sm.ToolCalls = append(sm.ToolCalls, model.ToolCall{
					ID:     res.ID,
					Name:   res.Name,
					Result: encodePayload(res.Payload),
				})
			}
			out = append(out, sm)
		default:
			out = append(out, model.Message{Role: "user", Content: m.Text})
		}
	}
	return out
}

func encodePayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}
