package advisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/school"
)

type stubBackend struct {
	calls atomic.Int32
	last  llm.Request
	resp  *llm.Response
	err   error
}

func (s *stubBackend) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.calls.Add(1)
	s.last = req
	return s.resp, s.err
}

var testConfig = Config{
	PrimaryModel:   "gemini-3-pro-preview",
	FallbackModel:  "gemini-3-flash-preview",
	AnalysisModel:  "gemini-3-flash-preview",
	ThinkingBudget: 16384,
}

func newHandler(t *testing.T, primary, fallback llm.Backend) *Handler {
	return New(primary, fallback, school.NewStore(school.DefaultSeed()), testConfig, zaptest.NewLogger(t))
}

func TestAdvise_Primary(t *testing.T) {
	primary := &stubBackend{resp: &llm.Response{Text: "Cut costs."}}
	fallback := &stubBackend{}
	h := newHandler(t, primary, fallback)

	advice := h.Advise(context.Background(), "How do we save money?")
	assert.Equal(t, Advice{Text: "Cut costs.", Model: "gemini-3-pro-preview"}, advice)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Zero(t, fallback.calls.Load())

	req := primary.last
	assert.Equal(t, "gemini-3-pro-preview", req.Model)
	require.NotNil(t, req.ThinkingBudget)
	assert.Equal(t, 16384, *req.ThinkingBudget)
	assert.Empty(t, req.Tools)
	require.Len(t, req.Messages, 1)

	prompt := req.Messages[0].Text
	assert.True(t, strings.HasPrefix(prompt, `You are the Strategic AI Advisor for "EduSphere Academy".`))
	assert.Contains(t, prompt, `Current Stats: {"totalStudents":10,"totalTeachers":5,"monthlyRevenue":400000,"avgAttendance":90}`)
	assert.Contains(t, prompt, `Financials (Last 6 Months): [{"month":"Jan","revenue":420000,"expenses":350000}`)
	assert.Contains(t, prompt, "User Query:\nHow do we save money?")
	assert.True(t, strings.HasSuffix(prompt, closingInstruction))
}

func TestAdvise_QuotaFallback(t *testing.T) {
	primary := &stubBackend{err: llm.NewError(llm.KindQuotaExceeded, "429", nil)}
	fallback := &stubBackend{resp: &llm.Response{Text: "ok"}}
	h := newHandler(t, primary, fallback)

	advice := h.Advise(context.Background(), "q")
	assert.Equal(t, "(Note: Switched to High-Speed Model due to traffic)\n\nok", advice.Text)
	assert.True(t, advice.FellBack)
	assert.Equal(t, "gemini-3-flash-preview", advice.Model)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), fallback.calls.Load())

	require.NotNil(t, fallback.last.ThinkingBudget)
	assert.Equal(t, 0, *fallback.last.ThinkingBudget)
	assert.Equal(t, "gemini-3-flash-preview", fallback.last.Model)
	assert.Equal(t, primary.last.Messages, fallback.last.Messages)
}

func TestAdvise_RawQuotaErrors(t *testing.T) {
	for _, err := range []error{
		genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"},
		errors.New("Quota exceeded for metric generate_content"),
	} {
		primary := &stubBackend{err: err}
		fallback := &stubBackend{resp: &llm.Response{Text: "fast"}}
		advice := newHandler(t, primary, fallback).Advise(context.Background(), "q")
		assert.Equal(t, FallbackNotice+"fast", advice.Text)
	}
}

func TestAdvise_FallbackFails(t *testing.T) {
	primary := &stubBackend{err: llm.NewError(llm.KindQuotaExceeded, "", nil)}
	fallback := &stubBackend{err: errors.New("also down")}
	h := newHandler(t, primary, fallback)

	advice := h.Advise(context.Background(), "q")
	assert.Equal(t, HighTrafficText, advice.Text)
	assert.True(t, advice.FellBack)
	assert.Equal(t, int32(1), fallback.calls.Load())
}

func TestAdvise_FallbackEmpty(t *testing.T) {
	primary := &stubBackend{err: llm.NewError(llm.KindQuotaExceeded, "", nil)}
	fallback := &stubBackend{resp: &llm.Response{}}

	advice := newHandler(t, primary, fallback).Advise(context.Background(), "q")
	assert.Equal(t, HighTrafficText, advice.Text)
}

func TestAdvise_OtherErrorsDoNotRetry(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubBackend
	}{
		{"unavailable", &stubBackend{err: llm.NewError(llm.KindBackendUnavailable, "dial", nil)}},
		{"server error", &stubBackend{err: genai.APIError{Code: 500, Status: "INTERNAL"}}},
		{"empty primary", &stubBackend{resp: &llm.Response{}}},
		{"nil primary response", &stubBackend{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &stubBackend{resp: &llm.Response{Text: "unused"}}
			advice := newHandler(t, tt.primary, fallback).Advise(context.Background(), "q")
			assert.Equal(t, UnexpectedText, advice.Text)
			assert.False(t, advice.FellBack)
			assert.Zero(t, fallback.calls.Load())
		})
	}
}

func TestNew_FallbackDefaultsToPrimary(t *testing.T) {
	backend := &stubBackend{err: llm.NewError(llm.KindQuotaExceeded, "", nil)}
	h := New(backend, nil, school.NewStore(school.DefaultSeed()), testConfig, nil)

	advice := h.Advise(context.Background(), "q")
	assert.Equal(t, HighTrafficText, advice.Text)
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestQuickAnalysis(t *testing.T) {
	fallback := &stubBackend{resp: &llm.Response{Text: "- a\n- b\n- c"}}
	h := newHandler(t, &stubBackend{}, fallback)

	assert.Equal(t, "- a\n- b\n- c", h.QuickAnalysis(context.Background(), `{"x":1}`))
	assert.Equal(t, "gemini-3-flash-preview", fallback.last.Model)
	assert.Equal(t, "Analyze this data briefly and give 3 key bullet points:\n{\"x\":1}", fallback.last.Messages[0].Text)
	assert.Nil(t, fallback.last.ThinkingBudget)

	fallback.resp = &llm.Response{}
	assert.Equal(t, NoAnalysisText, h.QuickAnalysis(context.Background(), "x"))

	fallback.err = errors.New("down")
	assert.Equal(t, AnalysisFailedText, h.QuickAnalysis(context.Background(), "x"))
}

func TestAnalyze_ReportsFailures(t *testing.T) {
	fallback := &stubBackend{resp: &llm.Response{}}
	h := newHandler(t, &stubBackend{}, fallback)

	_, err := h.Analyze(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, llm.KindEmptyResponse, llm.KindOf(err))

	fallback.err = errors.New("down")
	_, err = h.Analyze(context.Background(), "x")
	require.Error(t, err)

	fallback.err = nil
	fallback.resp = &llm.Response{Text: "- up"}
	text, err := h.Analyze(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "- up", text)
}

func TestSnapshot_LastSixMonths(t *testing.T) {
	seed := school.DefaultSeed()
	seed.Financials = append(seed.Financials, school.FinancialRecord{Month: "Jul", Revenue: 1, Expenses: 1})
	h := New(&stubBackend{}, nil, school.NewStore(seed), testConfig, nil)

	snap := h.Snapshot()
	assert.NotContains(t, snap, `"Jan"`)
	assert.Contains(t, snap, `"Jul"`)
	assert.Contains(t, snap, `"monthlyRevenue":1`)
}

func TestSuggestions(t *testing.T) {
	got := Suggestions()
	require.Len(t, got, 4)
	got[0] = "mutated"
	assert.Equal(t, "Analyze the current budget efficiency and propose cuts.", Suggestions()[0])
}
