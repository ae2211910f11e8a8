package school

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the initial content of a Store.
type Seed struct {
	Students   []Student         `yaml:"students"`
	Teachers   []Teacher         `yaml:"teachers"`
	Courses    []Course          `yaml:"courses"`
	Financials []FinancialRecord `yaml:"financials"`
}

// DefaultSeed returns the demo dataset of EduSphere Academy.
func DefaultSeed() Seed {
	return Seed{
		Students: []Student{
			{ID: "S001", Name: "Alice Johnson", Grade: "10-A", Attendance: 98, FeesStatus: FeesPaid, GPA: 3.9},
			{ID: "S002", Name: "Bob Smith", Grade: "10-A", Attendance: 85, FeesStatus: FeesPending, GPA: 3.2},
			{ID: "S003", Name: "Charlie Brown", Grade: "11-B", Attendance: 92, FeesStatus: FeesPaid, GPA: 3.5},
			{ID: "S004", Name: "Daisy Miller", Grade: "11-B", Attendance: 76, FeesStatus: FeesOverdue, GPA: 2.8},
			{ID: "S005", Name: "Ethan Hunt", Grade: "12-A", Attendance: 95, FeesStatus: FeesPaid, GPA: 4.0},
			{ID: "S006", Name: "Fiona Gallagher", Grade: "12-A", Attendance: 88, FeesStatus: FeesPending, GPA: 3.1},
			{ID: "S007", Name: "George Martin", Grade: "09-C", Attendance: 91, FeesStatus: FeesPaid, GPA: 3.4},
			{ID: "S008", Name: "Hannah Abbot", Grade: "09-C", Attendance: 99, FeesStatus: FeesPaid, GPA: 3.95},
			{ID: "S009", Name: "Ian Wright", Grade: "10-A", Attendance: 82, FeesStatus: FeesOverdue, GPA: 2.9},
			{ID: "S010", Name: "Julia Stiles", Grade: "11-B", Attendance: 94, FeesStatus: FeesPaid, GPA: 3.7},
		},
		Teachers: []Teacher{
			{ID: "T001", Name: "Dr. Sarah Connor", Subject: "Physics", Experience: "12 Years", Availability: Available, Rating: 4.8},
			{ID: "T002", Name: "Mr. John Keating", Subject: "English Literature", Experience: "8 Years", Availability: InClass, Rating: 4.9},
			{ID: "T003", Name: "Mrs. Frizzle", Subject: "Science", Experience: "15 Years", Availability: OnLeave, Rating: 5.0},
			{ID: "T004", Name: "Prof. Snape", Subject: "Chemistry", Experience: "20 Years", Availability: InClass, Rating: 3.5},
			{ID: "T005", Name: "Mr. Miyagi", Subject: "Physical Education", Experience: "30 Years", Availability: Available, Rating: 4.7},
		},
		Courses: []Course{
			{Code: "PHY101", Title: "Fundamentals of Physics", Department: "Science", Credits: 4, InstructorID: "T001"},
			{Code: "ENG201", Title: "Modern Poetry", Department: "Arts", Credits: 3, InstructorID: "T002"},
			{Code: "SCI102", Title: "Field Biology", Department: "Science", Credits: 4, InstructorID: "T003"},
			{Code: "CHE301", Title: "Advanced Potions", Department: "Science", Credits: 5, InstructorID: "T004"},
			{Code: "PED101", Title: "Martial Arts Basics", Department: "Physical Ed", Credits: 2, InstructorID: "T005"},
		},
		Financials: []FinancialRecord{
			{Month: "Jan", Revenue: 420000, Expenses: 350000},
			{Month: "Feb", Revenue: 435000, Expenses: 340000},
			{Month: "Mar", Revenue: 410000, Expenses: 360000},
			{Month: "Apr", Revenue: 450000, Expenses: 355000},
			{Month: "May", Revenue: 460000, Expenses: 345000},
			{Month: "Jun", Revenue: 400000, Expenses: 330000},
		},
	}
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda", "David", "Elizabeth",
		"William", "Barbara", "Richard", "Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	}
	genGrades   = []string{"09-A", "09-B", "10-A", "10-B", "11-A", "11-B", "12-A", "12-B"}
	genStatuses = []FeesStatus{FeesPaid, FeesPaid, FeesPaid, FeesPending, FeesOverdue}
	genSubjects = []string{"Mathematics", "History", "Geography", "Computer Science", "Art", "Music", "Biology", "Chemistry"}
	genAvail    = []Availability{Available, Available, InClass, InClass, OnLeave}
)

const (
	generatedStudentBase = 1011
	generatedTeacherBase = 1006
)

// Generate returns seed with randomized roster entries appended: students
// get IDs from S1011 and teachers from T1006 (or past the highest seeded
// number if that is larger).
func Generate(rng *rand.Rand, students, teachers int, seed Seed) Seed {
	out := Seed{
		Students:   append([]Student(nil), seed.Students...),
		Teachers:   append([]Teacher(nil), seed.Teachers...),
		Courses:    append([]Course(nil), seed.Courses...),
		Financials: append([]FinancialRecord(nil), seed.Financials...),
	}

	sBase := generatedStudentBase
	for _, st := range seed.Students {
		if n, ok := idNumber(st.ID, studentPrefix); ok && n >= sBase {
			sBase = n + 1
		}
	}
	tBase := generatedTeacherBase
	for _, t := range seed.Teachers {
		if n, ok := idNumber(t.ID, teacherPrefix); ok && n >= tBase {
			tBase = n + 1
		}
	}

	for i := 0; i < students; i++ {
		out.Students = append(out.Students, Student{
			ID:         formatID(studentPrefix, sBase+i),
			Name:       randomName(rng),
			Grade:      pick(rng, genGrades),
			Attendance: float64(60 + rng.IntN(40)),
			FeesStatus: pick(rng, genStatuses),
			GPA:        math.Round((2.0+rng.Float64()*2.0)*100) / 100,
		})
	}
	for i := 0; i < teachers; i++ {
		out.Teachers = append(out.Teachers, Teacher{
			ID:           formatID(teacherPrefix, tBase+i),
			Name:         "Dr. " + randomName(rng),
			Subject:      pick(rng, genSubjects),
			Experience:   fmt.Sprintf("%d Years", 1+rng.IntN(20)),
			Availability: pick(rng, genAvail),
			Rating:       math.Round((3.5+rng.Float64()*1.5)*10) / 10,
		})
	}
	return out
}

func randomName(rng *rand.Rand) string {
	return pick(rng, firstNames) + " " + pick(rng, lastNames)
}

func pick[T any](rng *rand.Rand, xs []T) T {
	return xs[rng.IntN(len(xs))]
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}
