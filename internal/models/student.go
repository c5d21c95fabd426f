package models

import (
	"sort"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

// Student is a learner together with the subjects they are graded in.
// The student's id is the key under which it is stored in a RecordSet.
type Student struct {
	Name     string             `json:"name"`
	Class    string             `json:"class"`
	Subjects map[string]Subject `json:"subjects"`
}

// NewStudent returns a student without subjects.
func NewStudent(name, class string) Student {
	return Student{Name: name, Class: class, Subjects: map[string]Subject{}}
}

// Average is the mean of the subject averages of every subject that has at
// least one grade. Subjects without grades do not count as zero.
func (s Student) Average() (grading.Mean, bool) {
	means := make([]grading.Mean, 0, len(s.Subjects))
	for _, key := range s.SubjectKeys() {
		if avg, ok := s.Subjects[key].Average(); ok {
			means = append(means, avg)
		}
	}
	return grading.MeanOfMeans(means)
}

// SubjectKeys returns the subject keys in lexical order.
func (s Student) SubjectKeys() []string {
	keys := make([]string, 0, len(s.Subjects))
	for key := range s.Subjects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the student.
func (s Student) Clone() Student {
	clone := Student{Name: s.Name, Class: s.Class, Subjects: make(map[string]Subject, len(s.Subjects))}
	for key, subject := range s.Subjects {
		clone.Subjects[key] = subject.Clone()
	}
	return clone
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search string `form:"search"`
	Class  string `form:"class"`
}

// ResolveSubjectKey finds the stored key for ref, which may be a stored key
// or a display name. Names are matched by SubjectKey first and then by
// LegacySubjectKey so subjects from older documents are found again.
func (s Student) ResolveSubjectKey(ref string) (string, bool) {
	for _, key := range []string{ref, SubjectKey(ref), LegacySubjectKey(ref)} {
		if key == "" {
			continue
		}
		if _, ok := s.Subjects[key]; ok {
			return key, true
		}
	}
	return "", false
}
