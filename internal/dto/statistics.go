package dto

import (
	"time"

	"github.com/noah-isme/gradebook-api/internal/grading"
)

// DistributionEntry counts how often a grade occurs across the class.
type DistributionEntry struct {
	Tag   string        `json:"tag"`
	Value grading.Value `json:"value"`
	Count int           `json:"count"`
}

// SubjectStatistics aggregates every grade stored under one subject key.
type SubjectStatistics struct {
	Key          string        `json:"key"`
	Name         string        `json:"name"`
	StudentCount int           `json:"student_count"`
	GradeCount   int           `json:"grade_count"`
	Average      *grading.Mean `json:"average"`
}

// StatisticsResponse is the class statistics overview.
type StatisticsResponse struct {
	ClassAverage       *grading.Mean       `json:"class_average"`
	Band               grading.Band        `json:"band"`
	Emoji              string              `json:"emoji"`
	StudentCount       int                 `json:"student_count"`
	GradedStudentCount int                 `json:"graded_student_count"`
	GradeCount         int                 `json:"grade_count"`
	Distribution       []DistributionEntry `json:"distribution"`
	Subjects           []SubjectStatistics `json:"subjects"`
	GeneratedAt        time.Time           `json:"generated_at"`
}
