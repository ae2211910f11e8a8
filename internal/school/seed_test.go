package school

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	seed := Generate(rng, 65, 25, DefaultSeed())

	require.Len(t, seed.Students, 75)
	require.Len(t, seed.Teachers, 30)
	assert.Equal(t, "S1011", seed.Students[10].ID)
	assert.Equal(t, "S1075", seed.Students[74].ID)
	assert.Equal(t, "T1006", seed.Teachers[5].ID)

	for _, st := range seed.Students[10:] {
		assert.GreaterOrEqual(t, st.Attendance, 60.0)
		assert.Less(t, st.Attendance, 100.0)
		assert.GreaterOrEqual(t, st.GPA, 2.0)
		assert.LessOrEqual(t, st.GPA, 4.0)
		assert.Contains(t, genGrades, st.Grade)
		assert.Contains(t, genStatuses, st.FeesStatus)
	}
	for _, tc := range seed.Teachers[5:] {
		assert.True(t, strings.HasPrefix(tc.Name, "Dr. "), tc.Name)
		assert.GreaterOrEqual(t, tc.Rating, 3.5)
		assert.LessOrEqual(t, tc.Rating, 5.0)
		assert.True(t, strings.HasSuffix(tc.Experience, " Years"), tc.Experience)
	}

	s := NewStore(seed)
	st, err := s.AppendStudent(StudentInput{Name: "After", Grade: "10-A"})
	require.NoError(t, err)
	assert.Equal(t, "S1076", st.ID)
	tc, err := s.AppendTeacher(TeacherInput{Name: "After", Subject: "Art"})
	require.NoError(t, err)
	assert.Equal(t, "T1031", tc.ID)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(7, 7)), 5, 5, Seed{})
	b := Generate(rand.New(rand.NewPCG(7, 7)), 5, 5, Seed{})
	assert.Equal(t, a, b)
}

func TestGenerate_DoesNotAliasSeed(t *testing.T) {
	base := DefaultSeed()
	out := Generate(rand.New(rand.NewPCG(1, 1)), 1, 0, base)
	out.Students[0].Name = "Changed"
	assert.Equal(t, "Alice Johnson", base.Students[0].Name)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `students:
  - id: S100
    name: Test Student
    grade: 10-A
    attendance: 90
    feesStatus: Paid
    gpa: 3.5
teachers:
  - id: T050
    name: Test Teacher
    subject: Music
    experience: 3 Years
    availability: In Class
    rating: 4.2
financials:
  - month: Jul
    revenue: 100
    expenses: 60
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seed.Students, 1)
	assert.Equal(t, FeesPaid, seed.Students[0].FeesStatus)
	assert.Equal(t, InClass, seed.Teachers[0].Availability)
	assert.Equal(t, 100.0, seed.Financials[0].Revenue)

	s := NewStore(seed)
	st, err := s.AppendStudent(StudentInput{Name: "Next", Grade: "10-A"})
	require.NoError(t, err)
	assert.Equal(t, "S101", st.ID)
}

func TestLoadSeedFile_Errors(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("students: [oops"), 0644))
	_, err = LoadSeedFile(path)
	assert.Error(t, err)
}
