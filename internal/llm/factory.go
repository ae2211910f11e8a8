package llm

import (
	"context"
	"fmt"

	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/stellarlinkco/edusphere/internal/config"
)

// New builds the backend selected by pc.Type. defaultModel is used for
// requests that do not name a model.
func New(ctx context.Context, pc config.ProviderConfig, defaultModel string, maxTokens int) (Backend, error) {
	switch pc.Type {
	case "", config.ProviderGemini:
		return NewGeminiBackend(ctx, GeminiConfig{
			APIKey:    pc.APIKey,
			BaseURL:   pc.BaseURL,
			Model:     defaultModel,
			MaxTokens: maxTokens,
		})
	case config.ProviderAnthropic:
		return NewSDKBackend(&model.AnthropicProvider{
			APIKey:    pc.APIKey,
			BaseURL:   pc.BaseURL,
			ModelName: defaultModel,
			MaxTokens: maxTokens,
		}, defaultModel, maxTokens), nil
	case config.ProviderOpenAI:
		return NewSDKBackend(&model.OpenAIProvider{
			APIKey:    pc.APIKey,
			BaseURL:   pc.BaseURL,
			ModelName: defaultModel,
			MaxTokens: maxTokens,
		}, defaultModel, maxTokens), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}
