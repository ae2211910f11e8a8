package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/stellarlinkco/edusphere/internal/advisor"
	"github.com/stellarlinkco/edusphere/internal/chat"
	"github.com/stellarlinkco/edusphere/internal/insights"
	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/nav"
	"github.com/stellarlinkco/edusphere/internal/school"
	"github.com/stellarlinkco/edusphere/internal/tools"
)

type fakeAdvisor struct {
	queries []string
}

func (f *fakeAdvisor) Advise(_ context.Context, query string) advisor.Advice {
	f.queries = append(f.queries, query)
	return advisor.Advice{Text: "Cut costs.", Model: "gemini-3-pro-preview"}
}

type fakeInsights struct {
	latest *insights.Insight
}

func (f *fakeInsights) Latest() (insights.Insight, error) {
	if f.latest == nil {
		return insights.Insight{}, insights.ErrNoInsight
	}
	return *f.latest, nil
}

func (f *fakeInsights) Status() insights.Status {
	return insights.Status{Schedule: "0 0 7 * * *"}
}

type testEnv struct {
	srv      Server
	store    *school.Store
	advisor  *fakeAdvisor
	chat     *chat.Manager
	insights *fakeInsights
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := school.NewStore(school.DefaultSeed())
	backend := llm.BackendFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := req.Messages[len(req.Messages)-1]
		return &llm.Response{Text: "You said " + last.Text + " [[NAV:STUDENTS]]"}, nil
	})
	env := &testEnv{
		store:    store,
		advisor:  &fakeAdvisor{},
		chat:     chat.NewManager(backend, tools.NewRegistry(store), chat.Options{}),
		insights: &fakeInsights{},
	}
	env.srv = NewServer(&Options{
		DisableReqLogs: true,
		Store:          store,
		Advisor:        env.advisor,
		Chat:           env.chat,
		Insights:       env.insights,
		Logger:         zaptest.NewLogger(t),
	})
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	return e.doContext(context.Background(), method, path, body)
}

func (e *testEnv) doContext(ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHome(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to EduSphere API!", rec.Body.String())
}

func TestStats(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, school.Stats{TotalStudents: 10, TotalTeachers: 5, MonthlyRevenue: 400000, AvgAttendance: 90}, decode[school.Stats](t, rec))
}

func TestListStudents(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantLen  int
	}{
		{"all", "/v1/students", http.StatusOK, 10},
		{"trailing slash", "/v1/students/", http.StatusOK, 10},
		{"limit", "/v1/students?limit=3", http.StatusOK, 3},
		{"limit above size", "/v1/students?limit=50", http.StatusOK, 10},
		{"search by grade", "/v1/students?q=10-A", http.StatusOK, 3},
		{"search miss", "/v1/students?q=zzz", http.StatusOK, 0},
		{"bad limit", "/v1/students?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "/v1/students?limit=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Len(t, decode[[]school.Student](t, rec), tt.wantLen)
			}
		})
	}
}

func TestAdmitStudent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/students", school.StudentInput{
		Name: "Zara Khan", Grade: "9-B", Attendance: 97, FeesStatus: school.FeesPaid, GPA: 3.6,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decode[school.Student](t, rec)
	assert.Equal(t, "S011", st.ID)

	list := decode[[]school.Student](t, env.do(http.MethodGet, "/v1/students?limit=1", nil))
	assert.Equal(t, "Zara Khan", list[0].Name)
	assert.Equal(t, 11, env.store.Stats().TotalStudents)
}

func TestAdmitStudent_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/students", map[string]any{
		"grade": "9-B", "attendance": 120, "feesStatus": "Late", "gpa": 3,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string]string](t, rec)
	assert.Equal(t, "name is a required field", fields["name"])
	assert.Contains(t, fields, "attendance")
	assert.Contains(t, fields, "feesStatus")
	assert.NotContains(t, fields, "gpa")
	assert.Equal(t, 10, env.store.Stats().TotalStudents)
}

func TestAdmitStudent_BlankName(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodPost, "/v1/students", school.StudentInput{
		Name: "  ", Grade: "9-B", FeesStatus: school.FeesPaid,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "missing required field")
}

func TestAdmitStudent_MalformedJSON(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodPost, "/v1/students", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeachers(t *testing.T) {
	env := newTestEnv(t)

	assert.Len(t, decode[[]school.Teacher](t, env.do(http.MethodGet, "/v1/teachers", nil)), 5)
	assert.Len(t, decode[[]school.Teacher](t, env.do(http.MethodGet, "/v1/teachers?q=physic", nil)), 2)

	rec := env.do(http.MethodPost, "/v1/teachers", school.TeacherInput{
		Name: "Dr. New", Subject: "Robotics", Experience: "3 Years", Availability: school.Available, Rating: 4.2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "T006", decode[school.Teacher](t, rec).ID)

	rec = env.do(http.MethodPost, "/v1/teachers", map[string]any{
		"name": "X", "subject": "Y", "availability": "Busy", "rating": 6,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string]string](t, rec)
	assert.Contains(t, fields, "availability")
	assert.Contains(t, fields, "rating")
}

func TestCoursesAndFinancials(t *testing.T) {
	env := newTestEnv(t)

	assert.NotEmpty(t, decode[[]school.Course](t, env.do(http.MethodGet, "/v1/courses", nil)))
	assert.Len(t, decode[[]school.FinancialRecord](t, env.do(http.MethodGet, "/v1/financials", nil)), 6)

	summary := decode[school.FinanceSummary](t, env.do(http.MethodGet, "/v1/financials/summary", nil))
	assert.Equal(t, "Jun", summary.Current.Month)
	assert.Equal(t, float64(70000), summary.NetIncome)
}

func TestAdvisor(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/advisor", adviceRequest{Query: "How do we save money?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, advisor.Advice{Text: "Cut costs.", Model: "gemini-3-pro-preview"}, decode[advisor.Advice](t, rec))
	assert.Equal(t, []string{"How do we save money?"}, env.advisor.queries)

	rec = env.do(http.MethodPost, "/v1/advisor", adviceRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query is a required field", decode[map[string]string](t, rec)["query"])
	assert.Len(t, env.advisor.queries, 1)

	assert.Equal(t, advisor.Suggestions(), decode[[]string](t, env.do(http.MethodGet, "/v1/advisor/suggestions", nil)))
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/chat", chatRequest{SessionID: "abc", Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[chat.Reply](t, rec)
	assert.Equal(t, chat.StateDone, reply.State)
	assert.Equal(t, "You said hello [[NAV:STUDENTS]]", reply.Text)
	assert.Equal(t, []nav.Segment{
		{Kind: nav.KindText, Text: "You said hello "},
		{Kind: nav.KindNav, Key: "STUDENTS"},
	}, reply.Segments)
	assert.Len(t, env.chat.Get("api:abc").History(), 2)

	rec = env.do(http.MethodDelete, "/v1/chat/abc", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.chat.Len())

	rec = env.do(http.MethodPost, "/v1/chat", chatRequest{SessionID: "abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec), "message")
}

func TestChat_ClientGone(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := env.doContext(ctx, http.MethodPost, "/v1/chat", chatRequest{SessionID: "gone", Message: "hello"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.chat.Get("api:gone").History())
}

func TestInsights(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/insights", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no insight generated yet", decode[map[string]string](t, rec)["error"])

	at := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	env.insights.latest = &insights.Insight{Text: "- revenue dipped", GeneratedAt: at}
	rec = env.do(http.MethodGet, "/v1/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, insights.Insight{Text: "- revenue dipped", GeneratedAt: at}, decode[insights.Insight](t, rec))

	rec = env.do(http.MethodGet, "/v1/insights/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 0 7 * * *", decode[insights.Status](t, rec).Schedule)
}

func TestInsights_Disabled(t *testing.T) {
	srv := NewServer(&Options{DisableReqLogs: true, Store: school.NewStore(school.DefaultSeed())})

	for _, path := range []string{"/v1/insights", "/v1/insights/status"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestExportRoster(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodGet, "/v1/export/roster.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "roster.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(school.SheetStudents)
	require.NoError(t, err)
	assert.Len(t, rows, 11)
}

func TestImportStudents(t *testing.T) {
	env := newTestEnv(t)

	wb := excelize.NewFile()
	for i, row := range [][]any{
		{"Name", "Grade", "Attendance", "Fees", "GPA"},
		{"Imported One", "10-B", 88, "Paid", 3.1},
		{"", "10-B", 50, "Paid", 2.0},
		{"Out Of Range", "10-B", 250, "Bribed", 9.7},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &row))
	}
	var xlsx bytes.Buffer
	require.NoError(t, wb.Write(&xlsx))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/students/import", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[school.ImportResult](t, rec)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 3, res.Rejected[0].Row)
	assert.Equal(t, "name is a required field", res.Rejected[0].Reason)
	assert.Equal(t, 4, res.Rejected[1].Row)
	assert.Contains(t, res.Rejected[1].Reason, "attendance must be 100 or less")
	assert.Contains(t, res.Rejected[1].Reason, "gpa must be 4 or less")
	assert.Contains(t, res.Rejected[1].Reason, "feesStatus must be one of")
	assert.Equal(t, 11, env.store.Stats().TotalStudents)
	assert.LessOrEqual(t, env.store.Stats().AvgAttendance, 100.0)
}

func TestImportStudents_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/students/import", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, _ = part.Write([]byte("plain text"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/students/import", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := newTestEnv(t).do(http.MethodGet, "/v1/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode[map[string]string](t, rec)["error"])
}

func TestStartStop(t *testing.T) {
	srv := NewServer(&Options{Address: "127.0.0.1:0", DisableReqLogs: true, Store: school.NewStore(school.DefaultSeed())})

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
