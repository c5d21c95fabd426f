package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

// Subject is a school subject of one student with its grades in the order
// they were entered.
type Subject struct {
	Name   string          `json:"name"`
	Grades []grading.Value `json:"grades"`
}

// NewSubject returns a subject without grades.
func NewSubject(name string) Subject {
	return Subject{Name: name, Grades: []grading.Value{}}
}

// Average is the subject's mean grade, undefined without grades.
func (s Subject) Average() (grading.Mean, bool) {
	return grading.SubjectAverage(s.Grades)
}

// Clone returns a deep copy of the subject.
func (s Subject) Clone() Subject {
	grades := make([]grading.Value, len(s.Grades))
	copy(grades, s.Grades)
	return Subject{Name: s.Name, Grades: grades}
}

// SubjectKey derives the key a subject is stored under from its display
// name: trimmed, NFC normalised, lower-cased, whitespace runs joined by "_".
func SubjectKey(name string) string {
	normalized := norm.NFC.String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(cases.Lower(language.Und).String(normalized)), "_")
}

// LegacySubjectKey is the key older documents used: lower-cased with each
// single space replaced by "_", so "Deutsch  LK" became "deutsch__lk".
func LegacySubjectKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
