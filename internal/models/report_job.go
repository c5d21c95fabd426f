package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/gradebook-api/pkg/jobs"
)

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	// ReportTypeOverview lists every student with their overall average.
	ReportTypeOverview ReportType = "overview"
	// ReportTypeGrades lists every grade, one row per student/subject/grade.
	ReportTypeGrades ReportType = "grades"
	// ReportTypeSubjects lists every subject with its average.
	ReportTypeSubjects ReportType = "subjects"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatPDF  ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob persisted background job metadata.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams stores request-scoped options persisted as JSONB.
type ReportJobParams struct {
	Format ReportFormat `json:"format"`
	Search string       `json:"search,omitempty"`
	Class  string       `json:"class,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}

// SystemMetrics represents system level figures captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64     `json:"cache_hit_ratio"`
	CacheHits                uint64      `json:"cache_hits"`
	CacheMisses              uint64      `json:"cache_misses"`
	RequestsTotal            uint64      `json:"requests_total"`
	AverageRequestDurationMs float64     `json:"average_request_duration_ms"`
	StoreOperations          uint64      `json:"store_operations"`
	AverageStoreDurationMs   float64     `json:"average_store_duration_ms"`
	Goroutines               int         `json:"goroutines"`
	ReportQueue              *jobs.Stats `json:"report_queue,omitempty"`
	GeneratedAt              time.Time   `json:"generated_at"`
}
