package dto

import "github.com/noah-isme/gradebook-api/internal/grading"

// StudentRequest captures the payload for creating or updating a student.
type StudentRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Class string `json:"class" validate:"max=40"`
}

// SubjectRequest captures the payload for adding a subject to a student.
type SubjectRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

// GradeRequest carries a grade tag such as "2-". Decimal values are never
// accepted from clients.
type GradeRequest struct {
	Tag string `json:"tag" validate:"required,max=3"`
}

// GradeScaleEntry is one row of the grade scale.
type GradeScaleEntry struct {
	Tag   string        `json:"tag"`
	Value grading.Value `json:"value"`
	Color grading.Color `json:"color"`
}

// GradeResponse is a stored grade at a position of a subject.
type GradeResponse struct {
	Index int           `json:"index"`
	Tag   string        `json:"tag"`
	Value grading.Value `json:"value"`
	Color grading.Color `json:"color"`
}

// SubjectResponse describes a subject with its grades and average.
type SubjectResponse struct {
	Key     string          `json:"key"`
	Name    string          `json:"name"`
	Grades  []GradeResponse `json:"grades"`
	Average *grading.Mean   `json:"average"`
	Band    grading.Band    `json:"band"`
}

// StudentOverview is one row of the student list.
type StudentOverview struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Class        string        `json:"class"`
	SubjectCount int           `json:"subject_count"`
	Average      *grading.Mean `json:"average"`
	Band         grading.Band  `json:"band"`
	Emoji        string        `json:"emoji"`
}

// StudentDetail describes a student with every subject.
type StudentDetail struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Class    string            `json:"class"`
	Average  *grading.Mean     `json:"average"`
	Band     grading.Band      `json:"band"`
	Emoji    string            `json:"emoji"`
	Subjects []SubjectResponse `json:"subjects"`
}
