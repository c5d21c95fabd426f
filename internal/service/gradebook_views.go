package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
)

func meanPtr(m grading.Mean, ok bool) *grading.Mean {
	if !ok {
		return nil
	}
	return &m
}

func tagFor(v grading.Value) string {
	tag, err := grading.TagOf(v)
	if err != nil {
		return v.String()
	}
	return tag
}

// GradeScale lists every tag of the scale, best grade first.
func GradeScale() []dto.GradeScaleEntry {
	tags := grading.AllTags()
	values := grading.Values()
	entries := make([]dto.GradeScaleEntry, 0, len(tags))
	for i, tag := range tags {
		entries = append(entries, dto.GradeScaleEntry{Tag: tag, Value: values[i], Color: grading.ColorOf(values[i])})
	}
	return entries
}

func buildSubjectResponse(key string, subject models.Subject) dto.SubjectResponse {
	grades := make([]dto.GradeResponse, 0, len(subject.Grades))
	for i, v := range subject.Grades {
		grades = append(grades, dto.GradeResponse{Index: i, Tag: tagFor(v), Value: v, Color: grading.ColorOf(v)})
	}
	avg, ok := subject.Average()
	return dto.SubjectResponse{
		Key:     key,
		Name:    subject.Name,
		Grades:  grades,
		Average: meanPtr(avg, ok),
		Band:    grading.QualitativeBand(avg, ok),
	}
}

func buildStudentOverview(id string, student models.Student) dto.StudentOverview {
	avg, ok := student.Average()
	band := grading.QualitativeBand(avg, ok)
	return dto.StudentOverview{
		ID:           id,
		Name:         student.Name,
		Class:        student.Class,
		SubjectCount: len(student.Subjects),
		Average:      meanPtr(avg, ok),
		Band:         band,
		Emoji:        band.Emoji(),
	}
}

func buildStudentDetail(id string, student models.Student) *dto.StudentDetail {
	avg, ok := student.Average()
	band := grading.QualitativeBand(avg, ok)
	subjects := make([]dto.SubjectResponse, 0, len(student.Subjects))
	for _, key := range student.SubjectKeys() {
		subjects = append(subjects, buildSubjectResponse(key, student.Subjects[key]))
	}
	return &dto.StudentDetail{
		ID:       id,
		Name:     student.Name,
		Class:    student.Class,
		Average:  meanPtr(avg, ok),
		Band:     band,
		Emoji:    band.Emoji(),
		Subjects: subjects,
	}
}

// matchesFilter applies the case-insensitive name search and class filter.
func matchesFilter(student models.Student, filter models.StudentFilter) bool {
	if search := strings.TrimSpace(filter.Search); search != "" {
		if !strings.Contains(strings.ToLower(student.Name), strings.ToLower(search)) {
			return false
		}
	}
	if class := strings.TrimSpace(filter.Class); class != "" && !strings.EqualFold(student.Class, class) {
		return false
	}
	return true
}

// sortOverview orders rows by average ascending with undefined averages last,
// then by name and id.
func sortOverview(rows []dto.StudentOverview) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.Average != nil && b.Average == nil:
			return true
		case a.Average == nil && b.Average != nil:
			return false
		case a.Average != nil && *a.Average != *b.Average:
			return *a.Average < *b.Average
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
