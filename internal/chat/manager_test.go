package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/school"
	"github.com/stellarlinkco/edusphere/internal/tools"
)

func echoBackend() llm.Backend {
	return llm.BackendFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		return &llm.Response{Text: "echo: " + last.Text}, nil
	})
}

func TestManager_SessionsPerKey(t *testing.T) {
	m := NewManager(echoBackend(), tools.NewRegistry(school.NewStore(school.DefaultSeed())), Options{})

	r := m.Send(context.Background(), "webui:webui-1", "hello")
	assert.Equal(t, "echo: hello", r.Text)
	m.Send(context.Background(), "telegram:42", "hi")

	assert.Equal(t, 2, m.Len())
	assert.Same(t, m.Get("webui:webui-1"), m.Get("webui:webui-1"))
	assert.Len(t, m.Get("webui:webui-1").History(), 2)
	assert.Len(t, m.Get("telegram:42").History(), 2)
}

func TestManager_ResetAndDrop(t *testing.T) {
	m := NewManager(echoBackend(), tools.NewRegistry(school.NewStore(school.DefaultSeed())), Options{})

	m.Send(context.Background(), "a", "one")
	m.Reset("a")
	assert.Empty(t, m.Get("a").History())
	assert.Equal(t, 1, m.Len())

	m.Drop("a")
	assert.Equal(t, 0, m.Len())

	// unknown keys are a no-op
	m.Reset("missing")
	m.Drop("missing")
	assert.Equal(t, 0, m.Len())
}
