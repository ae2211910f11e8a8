// Package llm is the text-generation seam used by the chat assistant and the
// strategic advisor. A Backend turns a conversation plus tool declarations
// into either text or tool-call requests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`

	// ThoughtSignature is opaque backend state that must travel back with
	// the call on the follow-up turn (Gemini 3 rejects the turn otherwise).
	ThoughtSignature []byte `json:"thoughtSignature,omitempty"`
}

type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// Message is one entry of a conversation. Assistant messages may carry tool
// calls; tool messages carry the results for those calls.
type Message struct {
	Role        Role         `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

type ToolDeclaration struct {
	Name        string
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as a JSON-schema object.
func (d ToolDeclaration) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type Request struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolDeclaration
	// ThinkingBudget is nil for the backend default; 0 disables thinking.
	ThinkingBudget *int
	MaxTokens      int
}

type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Backend generates one model turn.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (*Response, error)

func (fn BackendFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return fn(ctx, req)
}

type ErrorKind string

const (
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindEmptyResponse      ErrorKind = "empty_response"
	KindToolNotFound       ErrorKind = "tool_not_found"
	KindToolLookupMiss     ErrorKind = "tool_lookup_miss"
	KindInvalidArguments   ErrorKind = "invalid_arguments"
	KindToolFailed         ErrorKind = "tool_failed"
)

// Error is a classified backend or tool failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindBackendUnavailable when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendUnavailable
}

var quotaMarkers = []string{"429", "resource_exhausted", "quota"}

// Classify wraps a raw backend or transport error into an *Error. Quota
// exhaustion is recognized from an HTTP 429 status, a RESOURCE_EXHAUSTED
// status or a quota marker in the message. Everything else is
// BackendUnavailable. Already classified errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if code, status, ok := apiStatus(err); ok {
		if code == http.StatusTooManyRequests || strings.EqualFold(status, "RESOURCE_EXHAUSTED") {
			return NewError(KindQuotaExceeded, "", err)
		}
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return NewError(KindQuotaExceeded, "", err)
		}
	}
	return NewError(KindBackendUnavailable, "", err)
}

// IsQuotaExceeded reports whether err is (or classifies as) a quota failure.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(Classify(err)) == KindQuotaExceeded
}
