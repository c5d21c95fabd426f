package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/pkg/export"
	"github.com/noah-isme/gradebook-api/pkg/storage"
)

type recordSnapshotter interface {
	Snapshot() models.RecordSet
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders report files from a snapshot of the gradebook and
// stores them for signed download.
type ExportService struct {
	source  recordSnapshotter
	storage fileStorage
	csv     csvRenderer
	xlsx    xlsxRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     Clock
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the default exporters.
func NewExportService(source recordSnapshotter, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, xlsx xlsxRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporterWithBOM()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:  source,
		storage: files,
		csv:     csv,
		xlsx:    xlsx,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataset, title, err := s.buildDataset(job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, sheetName(job.Type))
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Sugar().Infow("report rendered", "job_id", job.ID, "type", job.Type, "format", job.Params.Format, "rows", len(dataset.Rows))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	suffix := job.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, sanitizeFilename(suffix), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func sheetName(t models.ReportType) string {
	switch t {
	case models.ReportTypeGrades:
		return "Noten"
	case models.ReportTypeSubjects:
		return "Fächer"
	default:
		return "Übersicht"
	}
}

func (s *ExportService) buildDataset(job *models.ReportJob) (export.Dataset, string, error) {
	records := filterRecords(s.source.Snapshot(), models.StudentFilter{Search: job.Params.Search, Class: job.Params.Class})
	switch job.Type {
	case models.ReportTypeOverview:
		return overviewDataset(records), reportTitle("Notenübersicht", job.Params), nil
	case models.ReportTypeGrades:
		return GradesDataset(records), reportTitle("Notenliste", job.Params), nil
	case models.ReportTypeSubjects:
		return subjectsDataset(records), reportTitle("Fächerstatistik", job.Params), nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func filterRecords(records models.RecordSet, filter models.StudentFilter) models.RecordSet {
	filtered := models.NewRecordSet()
	for id, student := range records {
		if matchesFilter(student, filter) {
			filtered[id] = student
		}
	}
	return filtered
}

func reportTitle(base string, params models.ReportJobParams) string {
	if params.Class != "" {
		return fmt.Sprintf("%s Klasse %s", base, params.Class)
	}
	return base
}

func overviewDataset(records models.RecordSet) export.Dataset {
	overview := make([]dto.StudentOverview, 0, len(records))
	for id, student := range records {
		overview = append(overview, buildStudentOverview(id, student))
	}
	sortOverview(overview)

	rows := make([]map[string]string, 0, len(overview))
	for _, row := range overview {
		average := "—"
		if row.Average != nil {
			average = row.Average.String()
		}
		rows = append(rows, map[string]string{
			ColumnStudentID: row.ID,
			ColumnName:      row.Name,
			ColumnClass:     row.Class,
			"Fächer":        strconv.Itoa(row.SubjectCount),
			"Durchschnitt":  average,
			"Einstufung":    string(row.Band),
		})
	}
	return export.Dataset{
		Headers: []string{ColumnStudentID, ColumnName, ColumnClass, "Fächer", "Durchschnitt", "Einstufung"},
		Rows:    rows,
	}
}

func subjectsDataset(records models.RecordSet) export.Dataset {
	stats := ComputeStatistics(records, time.Time{})
	rows := make([]map[string]string, 0, len(stats.Subjects))
	for _, subject := range stats.Subjects {
		average := "—"
		if subject.Average != nil {
			average = subject.Average.String()
		}
		rows = append(rows, map[string]string{
			"Schlüssel":    subject.Key,
			ColumnSubject:  subject.Name,
			"Schüler":      strconv.Itoa(subject.StudentCount),
			"Noten":        strconv.Itoa(subject.GradeCount),
			"Durchschnitt": average,
		})
	}
	return export.Dataset{
		Headers: []string{"Schlüssel", ColumnSubject, "Schüler", "Noten", "Durchschnitt"},
		Rows:    rows,
	}
}
