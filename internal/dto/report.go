package dto

import "github.com/noah-isme/gradebook-api/internal/models"

// ReportRequest captures POST /reports payload.
type ReportRequest struct {
	Type   models.ReportType   `json:"type" validate:"required,oneof=overview grades subjects"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv xlsx pdf"`
	Search string              `json:"search,omitempty" validate:"max=120"`
	Class  string              `json:"class,omitempty" validate:"max=40"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Format    models.ReportFormat `json:"format"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
