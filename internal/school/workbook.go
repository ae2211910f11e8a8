package school

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	SheetStudents   = "Students"
	SheetTeachers   = "Teachers"
	SheetCourses    = "Courses"
	SheetFinancials = "Financials"
)

// WriteWorkbook writes the store as an .xlsx workbook with one sheet per
// collection.
func WriteWorkbook(w io.Writer, s *Store) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetStudents); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTeachers, SheetCourses, SheetFinancials} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	var rows [][]any
	rows = append(rows, []any{"ID", "Name", "Grade", "Attendance", "Fees Status", "GPA"})
	for _, st := range s.ListStudents() {
		rows = append(rows, []any{st.ID, st.Name, st.Grade, st.Attendance, string(st.FeesStatus), st.GPA})
	}
	if err := writeSheet(f, SheetStudents, rows, header); err != nil {
		return err
	}

	rows = [][]any{{"ID", "Name", "Subject", "Experience", "Availability", "Rating"}}
	for _, t := range s.ListTeachers() {
		rows = append(rows, []any{t.ID, t.Name, t.Subject, t.Experience, string(t.Availability), t.Rating})
	}
	if err := writeSheet(f, SheetTeachers, rows, header); err != nil {
		return err
	}

	rows = [][]any{{"Code", "Title", "Department", "Credits", "Instructor"}}
	for _, c := range s.ListCourses() {
		rows = append(rows, []any{c.Code, c.Title, c.Department, c.Credits, c.InstructorID})
	}
	if err := writeSheet(f, SheetCourses, rows, header); err != nil {
		return err
	}

	rows = [][]any{{"Month", "Revenue", "Expenses", "Net"}}
	for _, r := range s.ListFinancials() {
		rows = append(rows, []any{r.Month, r.Revenue, r.Expenses, r.Revenue - r.Expenses})
	}
	if err := writeSheet(f, SheetFinancials, rows, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

// RowError explains why an import row was rejected. Row is 1-based, as
// spreadsheet applications number them.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Rejected []RowError `json:"rejected,omitempty"`
}

// ImportStudents admits every valid row of the first sheet of an .xlsx
// workbook. Columns are name, grade, attendance, fees status and GPA; the
// first row is a header and blank rows are ignored. Each row must pass
// validate (the same checks as a single admission); rows that do not, or
// whose numbers do not parse, are reported in Rejected.
func ImportStudents(r io.Reader, s *Store, validate func(any) error) (ImportResult, error) {
	var res ImportResult
	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return res, errors.New("workbook does not contain any sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return res, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	for i, row := range rows {
		if i == 0 || blankRow(row) {
			continue
		}
		in, err := studentRow(row)
		if err == nil && validate != nil {
			err = validate(&in)
		}
		if err == nil {
			_, err = s.AppendStudent(in)
		}
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		res.Imported++
	}
	return res, nil
}

func studentRow(row []string) (StudentInput, error) {
	attendance, err := parseFloat("attendance", column(row, 2))
	if err != nil {
		return StudentInput{}, err
	}
	gpa, err := parseFloat("gpa", column(row, 4))
	if err != nil {
		return StudentInput{}, err
	}
	in := StudentInput{
		Name:       column(row, 0),
		Grade:      column(row, 1),
		Attendance: attendance,
		FeesStatus: FeesStatus(column(row, 3)),
		GPA:        gpa,
	}
	if in.FeesStatus == "" {
		in.FeesStatus = FeesPending
	}
	return in, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func column(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// parseFloat reads an optional numeric cell; an empty cell is zero.
func parseFloat(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, s)
	}
	return v, nil
}
