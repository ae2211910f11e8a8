package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stellarlinkco/edusphere/internal/insights"
	"github.com/stellarlinkco/edusphere/internal/school"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *server) registerSchoolAPI(g *echo.Group) {
	g.GET("/stats", s.stats)
	g.GET("/students", s.listStudents)
	g.POST("/students", s.admitStudent)
	g.POST("/students/import", s.importStudents)
	g.GET("/teachers", s.listTeachers)
	g.POST("/teachers", s.hireTeacher)
	g.GET("/courses", s.listCourses)
	g.GET("/financials", s.listFinancials)
	g.GET("/financials/summary", s.financeSummary)
	g.GET("/insights", s.latestInsight)
	g.GET("/insights/status", s.insightsStatus)
	g.GET("/export/roster.xlsx", s.exportRoster)
}

func (s *server) stats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.opts.Store.Stats())
}

func (s *server) listStudents(ctx echo.Context) error {
	var students []school.Student
	if q := ctx.QueryParam("q"); q != "" {
		students = s.opts.Store.SearchStudents(q)
	} else {
		students = s.opts.Store.ListStudents()
	}

	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return errBadLimit
		}
		if limit < len(students) {
			students = students[:limit]
		}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (s *server) admitStudent(ctx echo.Context) error {
	var in school.StudentInput
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := ctx.Validate(&in); err != nil {
		return err
	}
	st, err := s.opts.Store.AppendStudent(in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (s *server) importStudents(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errNoFile
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := school.ImportStudents(f, s.opts.Store, s.validator.Explain)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (s *server) listTeachers(ctx echo.Context) error {
	if q := ctx.QueryParam("q"); q != "" {
		return ctx.JSON(http.StatusOK, s.opts.Store.SearchTeachers(q))
	}
	return ctx.JSON(http.StatusOK, s.opts.Store.ListTeachers())
}

func (s *server) hireTeacher(ctx echo.Context) error {
	var in school.TeacherInput
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := ctx.Validate(&in); err != nil {
		return err
	}
	t, err := s.opts.Store.AppendTeacher(in)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (s *server) listCourses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.opts.Store.ListCourses())
}

func (s *server) listFinancials(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.opts.Store.ListFinancials())
}

func (s *server) financeSummary(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.opts.Store.FinanceSummary())
}

func (s *server) latestInsight(ctx echo.Context) error {
	if s.opts.Insights == nil {
		return errNoInsight
	}
	ins, err := s.opts.Insights.Latest()
	if errors.Is(err, insights.ErrNoInsight) {
		return errNoInsight
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (s *server) insightsStatus(ctx echo.Context) error {
	if s.opts.Insights == nil {
		return echo.NewHTTPError(http.StatusNotFound, "insights are disabled")
	}
	return ctx.JSON(http.StatusOK, s.opts.Insights.Status())
}

func (s *server) exportRoster(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := school.WriteWorkbook(&buf, s.opts.Store); err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="roster.xlsx"`)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
