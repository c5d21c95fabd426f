package models

import (
	"sort"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

// RecordSet is the complete collection of students keyed by student id.
type RecordSet map[string]Student

// NewRecordSet returns an empty record set.
func NewRecordSet() RecordSet {
	return RecordSet{}
}

// Clone returns a deep copy of the record set.
func (r RecordSet) Clone() RecordSet {
	clone := make(RecordSet, len(r))
	for id, student := range r {
		clone[id] = student.Clone()
	}
	return clone
}

// IDs returns the student ids in lexical order.
func (r RecordSet) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Normalize replaces nil subject maps and grade slices with empty ones so the
// document never contains null.
func (r RecordSet) Normalize() {
	for id, student := range r {
		if student.Subjects == nil {
			student.Subjects = map[string]Subject{}
		}
		for key, subject := range student.Subjects {
			if subject.Grades == nil {
				subject.Grades = []grading.Value{}
				student.Subjects[key] = subject
			}
		}
		r[id] = student
	}
}

// ClassAverage is the mean of every student average that is defined.
func (r RecordSet) ClassAverage() (grading.Mean, bool) {
	means := make([]grading.Mean, 0, len(r))
	for _, id := range r.IDs() {
		if avg, ok := r[id].Average(); ok {
			means = append(means, avg)
		}
	}
	return grading.MeanOfMeans(means)
}

// AllGrades returns every stored grade, ordered by student id, subject key
// and position.
func (r RecordSet) AllGrades() []grading.Value {
	var grades []grading.Value
	for _, id := range r.IDs() {
		student := r[id]
		for _, key := range student.SubjectKeys() {
			grades = append(grades, student.Subjects[key].Grades...)
		}
	}
	return grades
}
