// Package school holds the in-memory EduSphere dataset: the student and
// teacher rosters, the course catalogue and the monthly financial history.
package school

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

const (
	studentPrefix = "S"
	teacherPrefix = "T"
)

// ErrMissingField is returned when an append lacks a required field.
var ErrMissingField = errors.New("missing required field")

// Store is safe for concurrent use. Rosters are kept most-recent-first.
type Store struct {
	mu          sync.RWMutex
	students    []Student
	teachers    []Teacher
	courses     []Course
	financials  []FinancialRecord
	nextStudent int
	nextTeacher int
}

// NewStore copies the seed into a new store and positions the identifier
// counters past every seeded identifier.
func NewStore(seed Seed) *Store {
	s := &Store{
		students:   append([]Student(nil), seed.Students...),
		teachers:   append([]Teacher(nil), seed.Teachers...),
		courses:    append([]Course(nil), seed.Courses...),
		financials: append([]FinancialRecord(nil), seed.Financials...),
	}

	s.nextStudent = 1
	for _, st := range s.students {
		if n, ok := idNumber(st.ID, studentPrefix); ok && n >= s.nextStudent {
			s.nextStudent = n + 1
		}
	}
	s.nextTeacher = 1
	for _, t := range s.teachers {
		if n, ok := idNumber(t.ID, teacherPrefix); ok && n >= s.nextTeacher {
			s.nextTeacher = n + 1
		}
	}
	return s
}

func idNumber(id, prefix string) (int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func formatID(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

func (s *Store) ListStudents() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Student(nil), s.students...)
}

func (s *Store) ListTeachers() []Teacher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Teacher(nil), s.teachers...)
}

func (s *Store) ListCourses() []Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Course(nil), s.courses...)
}

func (s *Store) ListFinancials() []FinancialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FinancialRecord(nil), s.financials...)
}

// AppendStudent stores a new admission at the head of the roster.
func (s *Store) AppendStudent(in StudentInput) (Student, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Student{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(in.Grade) == "" {
		return Student{}, fmt.Errorf("%w: grade", ErrMissingField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Student{
		ID:         formatID(studentPrefix, s.nextStudent),
		Name:       in.Name,
		Grade:      in.Grade,
		Attendance: in.Attendance,
		FeesStatus: in.FeesStatus,
		GPA:        in.GPA,
	}
	s.nextStudent++
	s.students = append([]Student{st}, s.students...)
	return st, nil
}

// AppendTeacher stores a new hire at the head of the faculty list.
func (s *Store) AppendTeacher(in TeacherInput) (Teacher, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Teacher{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return Teacher{}, fmt.Errorf("%w: subject", ErrMissingField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := Teacher{
		ID:           formatID(teacherPrefix, s.nextTeacher),
		Name:         in.Name,
		Subject:      in.Subject,
		Experience:   in.Experience,
		Availability: in.Availability,
		Rating:       in.Rating,
	}
	s.nextTeacher++
	s.teachers = append([]Teacher{t}, s.teachers...)
	return t, nil
}

// Stats recomputes the dashboard aggregates from the current collections.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalStudents: len(s.students),
		TotalTeachers: len(s.teachers),
	}
	if n := len(s.financials); n > 0 {
		stats.MonthlyRevenue = s.financials[n-1].Revenue
	}
	if len(s.students) > 0 {
		var sum float64
		for _, st := range s.students {
			sum += st.Attendance
		}
		stats.AvgAttendance = round1(sum / float64(len(s.students)))
	}
	return stats
}

// SearchStudents filters by name or grade, case-insensitively. An empty
// term matches everyone.
func (s *Store) SearchStudents(term string) []Student {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Student, 0, len(s.students))
	for _, st := range s.students {
		if term == "" ||
			strings.Contains(strings.ToLower(st.Name), term) ||
			strings.Contains(strings.ToLower(st.Grade), term) {
			out = append(out, st)
		}
	}
	return out
}

// SearchTeachers filters by name or subject, case-insensitively.
func (s *Store) SearchTeachers(term string) []Teacher {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Teacher, 0, len(s.teachers))
	for _, t := range s.teachers {
		if term == "" ||
			strings.Contains(strings.ToLower(t.Name), term) ||
			strings.Contains(strings.ToLower(t.Subject), term) {
			out = append(out, t)
		}
	}
	return out
}

// RecentStudents returns the n most recent admissions.
func (s *Store) RecentStudents(n int) []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n > len(s.students) {
		n = len(s.students)
	}
	return append([]Student(nil), s.students[:n]...)
}

// FinanceSummary compares the latest month with the one before it.
func (s *Store) FinanceSummary() FinanceSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.financials)
	if n == 0 {
		return FinanceSummary{}
	}
	sum := FinanceSummary{Current: s.financials[n-1]}
	sum.NetIncome = sum.Current.Revenue - sum.Current.Expenses
	if n > 1 {
		prev := s.financials[n-2]
		sum.Previous = &prev
		if prev.Revenue != 0 {
			sum.RevenueGrowth = round1((sum.Current.Revenue - prev.Revenue) / prev.Revenue * 100)
		}
	}
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
