package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

func TestSubjectKey(t *testing.T) {
	assert.Equal(t, "mathe", SubjectKey("Mathe"))
	assert.Equal(t, "politik_und_wirtschaft", SubjectKey("  Politik  und Wirtschaft "))
	assert.Equal(t, "französisch", SubjectKey("Französisch"))
	// decomposed "a" + combining diaeresis collapses to the composed form
	assert.Equal(t, "kunst_\u00e4", SubjectKey("Kunst a\u0308"))
}

func TestStudentAverageIgnoresEmptySubjects(t *testing.T) {
	s := NewStudent("Anna", "7b")
	s.Subjects["a"] = Subject{Name: "A", Grades: []grading.Value{100, 200}}
	s.Subjects["b"] = NewSubject("B")

	avg, ok := s.Average()
	require.True(t, ok)
	assert.Equal(t, grading.Mean(150), avg)
}

func TestStudentAverageIsMeanOfSubjectMeans(t *testing.T) {
	s := NewStudent("Ben", "")
	s.Subjects["a"] = Subject{Name: "A", Grades: []grading.Value{100, 100}}
	s.Subjects["b"] = Subject{Name: "B", Grades: []grading.Value{600}}

	avg, ok := s.Average()
	require.True(t, ok)
	// a flat mean of all grades would be 2.67
	assert.Equal(t, grading.Mean(350), avg)
}

func TestStudentAverageUndefined(t *testing.T) {
	s := NewStudent("Cem", "")
	s.Subjects["a"] = NewSubject("A")
	_, ok := s.Average()
	assert.False(t, ok)
}

func TestRecordSetCloneIsDeep(t *testing.T) {
	set := NewRecordSet()
	s := NewStudent("Anna", "")
	s.Subjects["a"] = Subject{Name: "A", Grades: []grading.Value{100}}
	set["x"] = s

	clone := set.Clone()
	sub := clone["x"].Subjects["a"]
	sub.Grades[0] = 600
	clone["x"].Subjects["b"] = NewSubject("B")

	assert.Equal(t, grading.Value(100), set["x"].Subjects["a"].Grades[0])
	assert.Len(t, set["x"].Subjects, 1)
}

func TestRecordSetClassAverage(t *testing.T) {
	set := NewRecordSet()
	a := NewStudent("A", "")
	a.Subjects["m"] = Subject{Name: "M", Grades: []grading.Value{100}}
	b := NewStudent("B", "")
	b.Subjects["m"] = Subject{Name: "M", Grades: []grading.Value{300}}
	set["a"], set["b"], set["c"] = a, b, NewStudent("C", "")

	avg, ok := set.ClassAverage()
	require.True(t, ok)
	assert.Equal(t, grading.Mean(200), avg)

	_, ok = NewRecordSet().ClassAverage()
	assert.False(t, ok)
}

func TestRecordSetNormalize(t *testing.T) {
	set := RecordSet{"x": {Name: "X", Subjects: map[string]Subject{"m": {Name: "M"}}}, "y": {Name: "Y"}}
	set.Normalize()
	assert.NotNil(t, set["x"].Subjects["m"].Grades)
	assert.NotNil(t, set["y"].Subjects)
}

func TestLegacySubjectKeyAndResolution(t *testing.T) {
	assert.Equal(t, "deutsch__lk", LegacySubjectKey(" Deutsch  LK "))
	assert.Equal(t, "deutsch_lk", SubjectKey(" Deutsch  LK "))

	student := NewStudent("Anna", "")
	student.Subjects["deutsch__lk"] = NewSubject("Deutsch  LK")
	student.Subjects["mathe"] = NewSubject("Mathe")

	key, ok := student.ResolveSubjectKey("Deutsch  LK")
	assert.True(t, ok)
	assert.Equal(t, "deutsch__lk", key)

	key, ok = student.ResolveSubjectKey(" MATHE ")
	assert.True(t, ok)
	assert.Equal(t, "mathe", key)

	_, ok = student.ResolveSubjectKey("Latein")
	assert.False(t, ok)
	_, ok = student.ResolveSubjectKey("  ")
	assert.False(t, ok)
}
