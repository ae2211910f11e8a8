// Package chat runs EduBot conversations: one user message in, exactly one
// assistant message out, with at most one round of tool calls in between.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/logging"
	"github.com/stellarlinkco/edusphere/internal/nav"
	"github.com/stellarlinkco/edusphere/internal/tools"
)

type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingModelResponse State = "awaiting_model_response"
	StateExecutingTools        State = "executing_tools"
	StateAwaitingFinalResponse State = "awaiting_final_response"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

// Options tunes a Session. Zero values fall back to the EduBot defaults.
type Options struct {
	Model         string
	MaxTokens     int
	System        string
	ParallelTools bool
	Logger        *zap.Logger
}

// Reply is the outcome of one turn.
type Reply struct {
	Text     string        `json:"text"`
	Segments []nav.Segment `json:"segments"`
	// State is StateDone or StateFailed; StateIdle for a discarded turn.
	State     State `json:"state"`
	ToolCalls int   `json:"toolCalls"`
	// Discarded is set when the session was reset while the turn was in
	// flight; nothing was appended.
	Discarded bool `json:"discarded,omitempty"`
}

// Session is one EduBot conversation. Turns are serialized.
type Session struct {
	id       string
	backend  llm.Backend
	registry *tools.Registry
	opts     Options
	logger   *zap.Logger

	turn sync.Mutex

	mu      sync.Mutex
	history []llm.Message
	epoch   uint64
	state   State
}

func NewSession(id string, backend llm.Backend, registry *tools.Registry, opts Options) *Session {
	if opts.System == "" {
		opts.System = SystemPrompt
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:       id,
		backend:  backend,
		registry: registry,
		opts:     opts,
		logger:   logger.With(zap.String("session", id)),
		state:    StateIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns the user and assistant messages of the conversation.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

// Reset abandons the conversation. A turn still waiting on the backend will
// have its result discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.history = nil
	s.state = StateIdle
}

// Send runs one turn. It never returns an error: backend failures produce
// the offline message.
func (s *Session) Send(ctx context.Context, text string) Reply {
	s.turn.Lock()
	defer s.turn.Unlock()

	start := time.Now()

	s.mu.Lock()
	epoch := s.epoch
	mark := len(s.history)
	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Text: text})
	msgs := append([]llm.Message(nil), s.history...)
	s.state = StateAwaitingModelResponse
	s.mu.Unlock()

	s.logger.Debug("turn started", zap.String("text", logging.Truncate(text, 80)))

	resp, err := s.backend.Generate(ctx, s.request(msgs))
	if err != nil {
		if ctx.Err() != nil {
			return s.abandon(epoch, mark, 0)
		}
		return s.fail(epoch, 0, err)
	}

	calls := resp.ToolCalls
	final := resp.Text
	if len(calls) > 0 {
		if !s.setState(epoch, StateExecutingTools) {
			return s.discard(0)
		}
		calls = withIDs(calls)
		results := s.runTools(calls)

		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: calls},
			llm.Message{Role: llm.RoleTool, ToolResults: results},
		)
		if !s.setState(epoch, StateAwaitingFinalResponse) {
			return s.discard(len(calls))
		}

		resp, err = s.backend.Generate(ctx, s.request(msgs))
		if err != nil {
			if ctx.Err() != nil {
				return s.abandon(epoch, mark, len(calls))
			}
			return s.fail(epoch, len(calls), err)
		}
		if len(resp.ToolCalls) > 0 {
			names := make([]string, 0, len(resp.ToolCalls))
			for _, c := range resp.ToolCalls {
				names = append(names, c.Name)
			}
			s.logger.Warn("ignoring second round of tool calls", zap.Strings("tools", names))
		}
		final = resp.Text
	}

	if final == "" {
		s.logger.Info("empty model response", zap.Error(llm.NewError(llm.KindEmptyResponse, "", nil)))
		final = EmptyMessage
	}

	reply := s.finish(epoch, StateDone, final, len(calls))
	s.logger.Info("turn finished",
		zap.String("state", string(reply.State)),
		zap.Int("tool_calls", reply.ToolCalls),
		zap.Bool("discarded", reply.Discarded),
		zap.Duration("elapsed", time.Since(start)))
	return reply
}

func (s *Session) request(msgs []llm.Message) llm.Request {
	var decls []llm.ToolDeclaration
	if s.registry != nil {
		decls = s.registry.Declarations()
	}
	return llm.Request{
		Model:     s.opts.Model,
		System:    s.opts.System,
		Messages:  msgs,
		Tools:     decls,
		MaxTokens: s.opts.MaxTokens,
	}
}

// withIDs fills in correlation IDs the backend left empty.
func withIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}

// runTools resolves every call; results keep the order of calls.
func (s *Session) runTools(calls []llm.ToolCall) []llm.ToolResult {
	results := make([]tools.Result, len(calls))
	if s.opts.ParallelTools && len(calls) > 1 {
		var g errgroup.Group
		for i, call := range calls {
			g.Go(func() error {
				results[i] = s.registry.Invoke(call)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, call := range calls {
			results[i] = s.registry.Invoke(call)
		}
	}

	out := make([]llm.ToolResult, len(results))
	for i, r := range results {
		if r.Err != nil {
			s.logger.Info("tool returned error payload",
				zap.String("tool", r.Name),
				zap.String("kind", string(r.Err.Kind)))
		} else {
			s.logger.Debug("tool executed", zap.String("tool", r.Name))
		}
		out[i] = r.ToolResult
	}
	return out
}

func (s *Session) setState(epoch uint64, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.state = st
	return true
}

func (s *Session) fail(epoch uint64, toolCalls int, err error) Reply {
	s.logger.Error("backend call failed",
		zap.String("kind", string(llm.KindOf(err))),
		zap.Error(err))
	return s.finish(epoch, StateFailed, OfflineMessage, toolCalls)
}

// abandon rolls back a turn whose caller went away: the user message is
// removed so the conversation reads as if the turn never happened.
func (s *Session) abandon(epoch uint64, mark, toolCalls int) Reply {
	s.mu.Lock()
	if s.epoch == epoch {
		s.history = s.history[:mark]
		s.state = StateIdle
	}
	s.mu.Unlock()
	return s.discard(toolCalls)
}

func (s *Session) discard(toolCalls int) Reply {
	s.logger.Info("discarding response for abandoned turn")
	return Reply{State: StateIdle, ToolCalls: toolCalls, Discarded: true}
}

// finish appends the single assistant message of the turn unless the
// session was reset meanwhile, then returns to Idle.
func (s *Session) finish(epoch uint64, terminal State, text string, toolCalls int) Reply {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return s.discard(toolCalls)
	}
	s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Text: text})
	s.state = StateIdle
	s.mu.Unlock()

	return Reply{
		Text:      text,
		Segments:  nav.Parse(text),
		State:     terminal,
		ToolCalls: toolCalls,
	}
}
