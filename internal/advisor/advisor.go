// Package advisor answers one-shot strategic questions about the school,
// grounded in a live snapshot of the dashboard data.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/logging"
	"github.com/stellarlinkco/edusphere/internal/school"
)

const (
	FallbackNotice  = "(Note: Switched to High-Speed Model due to traffic)\n\n"
	HighTrafficText = "System is currently experiencing very high traffic. Please try again in 1 minute."
	UnexpectedText  = "An unexpected error occurred while consulting the AI Advisor."

	NoAnalysisText     = "No analysis available."
	AnalysisFailedText = "Analysis failed."
)

const strategicContext = `You are the Strategic AI Advisor for "EduSphere Academy".
You are an expert in Educational Management and Finance.
Analyze the provided data snapshot carefully and provide high-level strategic advice.
Do not ask for more data; assume the context provided is the complete executive summary.`

const closingInstruction = "Please provide a comprehensive, strategic response. Structure your answer with clear headings, analysis, and actionable steps."

var suggestions = []string{
	"Analyze the current budget efficiency and propose cuts.",
	"Draft a strategy to improve student attendance in Grade 11.",
	"Evaluate the feasibility of adding a new Robotics lab.",
	"Write a circular for parents about the new fee structure.",
}

// Snapshotter provides the live data the prompt is grounded in.
type Snapshotter interface {
	Stats() school.Stats
	ListFinancials() []school.FinancialRecord
}

type Config struct {
	PrimaryModel   string
	FallbackModel  string
	AnalysisModel  string
	ThinkingBudget int
	MaxTokens      int
}

// Advice is the formatted answer for the presentation layer.
type Advice struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	FellBack bool   `json:"fellBack"`
}

// Handler is stateless: no tools and no conversation memory.
type Handler struct {
	primary  llm.Backend
	fallback llm.Backend
	data     Snapshotter
	cfg      Config
	logger   *zap.Logger
}

// New builds a Handler. primary and fallback may be the same backend; they
// are kept apart so each can carry its own timeout.
func New(primary, fallback llm.Backend, data Snapshotter, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = primary
	}
	return &Handler{
		primary:  primary,
		fallback: fallback,
		data:     data,
		cfg:      cfg,
		logger:   logger,
	}
}

// Suggestions returns the canned strategic questions offered on the advisor
// page.
func Suggestions() []string {
	return append([]string(nil), suggestions...)
}

// Advise never fails: every error maps to a fixed user-facing text.
func (h *Handler) Advise(ctx context.Context, query string) Advice {
	start := time.Now()
	prompt := h.prompt(query)
	h.logger.Info("advisor request",
		zap.String("query", logging.Truncate(query, 80)),
		zap.String("model", h.cfg.PrimaryModel))

	budget := h.cfg.ThinkingBudget
	resp, err := h.primary.Generate(ctx, h.request(h.cfg.PrimaryModel, prompt, &budget))
	if err == nil && resp != nil && resp.Text != "" {
		h.logger.Info("advisor answered", zap.Duration("elapsed", time.Since(start)))
		return Advice{Text: resp.Text, Model: h.cfg.PrimaryModel}
	}
	if err == nil {
		err = llm.NewError(llm.KindEmptyResponse, "empty response from "+h.cfg.PrimaryModel, nil)
	}

	if !llm.IsQuotaExceeded(err) {
		h.logger.Error("advisor request failed", zap.Error(err))
		return Advice{Text: UnexpectedText}
	}

	h.logger.Warn("primary model quota exceeded, falling back",
		zap.String("primary", h.cfg.PrimaryModel),
		zap.String("fallback", h.cfg.FallbackModel))

	off := 0
	resp, err = h.fallback.Generate(ctx, h.request(h.cfg.FallbackModel, prompt, &off))
	if err != nil || resp == nil || resp.Text == "" {
		if err == nil {
			err = llm.NewError(llm.KindEmptyResponse, "empty response from "+h.cfg.FallbackModel, nil)
		}
		h.logger.Error("fallback model failed", zap.Error(err))
		return Advice{Text: HighTrafficText, FellBack: true}
	}

	h.logger.Info("advisor answered by fallback", zap.Duration("elapsed", time.Since(start)))
	return Advice{
		Text:     FallbackNotice + resp.Text,
		Model:    h.cfg.FallbackModel,
		FellBack: true,
	}
}

// Analyze asks for three short bullet points about payload. An empty
// answer is an EmptyResponse error.
func (h *Handler) Analyze(ctx context.Context, payload string) (string, error) {
	req := llm.Request{
		Model:     h.cfg.AnalysisModel,
		Messages:  []llm.Message{{Role: llm.RoleUser, Text: "Analyze this data briefly and give 3 key bullet points:\n" + payload}},
		MaxTokens: h.cfg.MaxTokens,
	}
	resp, err := h.fallback.Generate(ctx, req)
	if err != nil {
		return "", llm.Classify(err)
	}
	if resp == nil || resp.Text == "" {
		return "", llm.NewError(llm.KindEmptyResponse, "empty analysis from "+h.cfg.AnalysisModel, nil)
	}
	return resp.Text, nil
}

// QuickAnalysis is Analyze with failures turned into display text.
func (h *Handler) QuickAnalysis(ctx context.Context, payload string) string {
	text, err := h.Analyze(ctx, payload)
	switch {
	case err == nil:
		return text
	case llm.KindOf(err) == llm.KindEmptyResponse:
		return NoAnalysisText
	default:
		h.logger.Error("quick analysis failed", zap.Error(err))
		return AnalysisFailedText
	}
}

// Snapshot renders the live data block embedded in every advisor prompt.
func (h *Handler) Snapshot() string {
	stats, err := json.Marshal(h.data.Stats())
	if err != nil {
		stats = []byte("{}")
	}
	records := h.data.ListFinancials()
	if len(records) > 6 {
		records = records[len(records)-6:]
	}
	fin, err := json.Marshal(records)
	if err != nil {
		fin = []byte("[]")
	}
	return fmt.Sprintf("Current Stats: %s\nFinancials (Last 6 Months): %s", stats, fin)
}

func (h *Handler) prompt(query string) string {
	var b strings.Builder
	b.WriteString(strategicContext)
	b.WriteString("\n\nAdditional Context Provided:\n")
	b.WriteString(h.Snapshot())
	b.WriteString("\n\nUser Query:\n")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(closingInstruction)
	return b.String()
}

func (h *Handler) request(model, prompt string, budget *int) llm.Request {
	return llm.Request{
		Model:          model,
		Messages:       []llm.Message{{Role: llm.RoleUser, Text: prompt}},
		ThinkingBudget: budget,
		MaxTokens:      h.cfg.MaxTokens,
	}
}
