package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/stellarlinkco/edusphere/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"api 429", genai.APIError{Code: 429, Message: "slow down"}, KindQuotaExceeded},
		{"api resource exhausted", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, KindQuotaExceeded},
		{"wrapped api 429", fmt.Errorf("call: %w", genai.APIError{Code: 429}), KindQuotaExceeded},
		{"api 500", genai.APIError{Code: 500, Status: "INTERNAL", Message: "boom"}, KindBackendUnavailable},
		{"quota marker", errors.New("You exceeded your current Quota"), KindQuotaExceeded},
		{"status text", errors.New("POST /v1/messages: 429 Too Many Requests"), KindQuotaExceeded},
		{"network", errors.New("dial tcp: connection refused"), KindBackendUnavailable},
		{"already classified", NewError(KindEmptyResponse, "", nil), KindEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			var classified *Error
			require.True(t, errors.As(got, &classified))
			assert.Equal(t, tt.want, classified.Kind)
		})
	}
	assert.NoError(t, Classify(nil))
}

func TestIsQuotaExceeded(t *testing.T) {
	assert.True(t, IsQuotaExceeded(genai.APIError{Code: 429}))
	assert.True(t, IsQuotaExceeded(NewError(KindQuotaExceeded, "", nil)))
	assert.False(t, IsQuotaExceeded(errors.New("timeout")))
	assert.False(t, IsQuotaExceeded(nil))
	// a classified non-quota error stays non-quota even with a marker in the text
	assert.False(t, IsQuotaExceeded(NewError(KindBackendUnavailable, "quota service down", nil)))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "empty_response", NewError(KindEmptyResponse, "", nil).Error())
	assert.Equal(t, "tool_not_found: x", NewError(KindToolNotFound, "x", nil).Error())
	assert.Equal(t, "backend_unavailable: boom", NewError(KindBackendUnavailable, "", errors.New("boom")).Error())
}

func TestJSONSchema(t *testing.T) {
	d := ToolDeclaration{
		Name: "searchStudent",
		Params: []ToolParam{
			{Name: "name", Type: TypeString, Description: "student name", Required: true},
			{Name: "limit", Type: TypeNumber},
		},
	}
	schema := d.JSONSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"name"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 2)

	empty := ToolDeclaration{Name: "getSchoolStats"}.JSONSchema()
	assert.NotContains(t, empty, "required")
}

func TestWithTimeout(t *testing.T) {
	slow := BackendFunc(func(ctx context.Context, req Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	b := WithTimeout(slow, 20*time.Millisecond)

	start := time.Now()
	_, err := b.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, KindBackendUnavailable, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	fast := BackendFunc(func(ctx context.Context, req Request) (*Response, error) {
		return &Response{Text: "ok"}, nil
	})
	resp, err := WithTimeout(fast, time.Second).Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	assert.IsType(t, BackendFunc(nil), WithTimeout(fast, 0))
}

func TestWithTimeout_PassesErrorsThrough(t *testing.T) {
	quota := NewError(KindQuotaExceeded, "", nil)
	b := WithTimeout(BackendFunc(func(ctx context.Context, req Request) (*Response, error) {
		return nil, quota
	}), time.Second)

	_, err := b.Generate(context.Background(), Request{})
	assert.Same(t, quota, err)
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Type: "bogus"}, "m", 0)
	assert.Error(t, err)

	_, err = New(context.Background(), config.ProviderConfig{Type: config.ProviderGemini}, "m", 0)
	assert.Error(t, err, "gemini needs a key")

	b, err := New(context.Background(), config.ProviderConfig{Type: config.ProviderAnthropic, APIKey: "k"}, "claude", 100)
	require.NoError(t, err)
	assert.IsType(t, &SDKBackend{}, b)

	b, err = New(context.Background(), config.ProviderConfig{Type: config.ProviderOpenAI, APIKey: "k"}, "gpt", 100)
	require.NoError(t, err)
	assert.IsType(t, &SDKBackend{}, b)

	b, err = New(context.Background(), config.ProviderConfig{APIKey: "k"}, "gemini-3-flash-preview", 100)
	require.NoError(t, err)
	assert.IsType(t, &GeminiBackend{}, b)
}
