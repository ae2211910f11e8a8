package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/tools"
)

// Manager owns one Session per conversation key, e.g. "webui:webui-3" or
// "telegram:12345".
type Manager struct {
	backend  llm.Backend
	registry *tools.Registry
	opts     Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(backend llm.Backend, registry *tools.Registry, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		backend:  backend,
		registry: registry,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for key, creating it on first use.
func (m *Manager) Get(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		s = NewSession(key, m.backend, m.registry, m.opts)
		m.sessions[key] = s
	}
	return s
}

func (m *Manager) Send(ctx context.Context, key, text string) Reply {
	return m.Get(key).Send(ctx, text)
}

// Reset abandons the conversation under key, if any.
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		s.Reset()
	}
}

// Drop abandons and forgets the conversation under key.
func (m *Manager) Drop(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if ok {
		s.Reset()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
