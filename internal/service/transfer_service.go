package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/export"
)

// CSV column headers written on export.
const (
	ColumnStudentID    = "Schüler-ID"
	ColumnName         = "Name"
	ColumnClass        = "Klasse"
	ColumnSubject      = "Fach"
	ColumnGradeTag     = "Note (Text)"
	ColumnGradeDecimal = "Note (Dezimal)"
)

// ExportHeaders is the header row of a CSV export.
var ExportHeaders = []string{ColumnStudentID, ColumnName, ColumnClass, ColumnSubject, ColumnGradeTag, ColumnGradeDecimal}

// columnAliases lists accepted header names per export column on import.
var columnAliases = map[string][]string{
	ColumnStudentID:    {ColumnStudentID, "student_id"},
	ColumnName:         {ColumnName, "name"},
	ColumnClass:        {ColumnClass, "class"},
	ColumnSubject:      {ColumnSubject, "subject"},
	ColumnGradeTag:     {ColumnGradeTag, "grade_tag"},
	ColumnGradeDecimal: {ColumnGradeDecimal, "grade_decimal"},
}

var requiredColumns = []string{ColumnStudentID, ColumnName, ColumnSubject}

type gradebookMutator interface {
	Snapshot() models.RecordSet
	Mutate(ctx context.Context, fn func(models.RecordSet) error) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// TransferConfig tunes CSV import and export.
type TransferConfig struct {
	PreviewRows  int
	MaxFileBytes int64
}

// TransferService exports the record set to CSV and imports CSV files into it.
type TransferService struct {
	gradebook gradebookMutator
	csv       csvRenderer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       TransferConfig
}

// NewTransferService constructs the transfer service.
func NewTransferService(gradebook gradebookMutator, csv csvRenderer, metrics *MetricsService, cfg TransferConfig, logger *zap.Logger) *TransferService {
	if csv == nil {
		csv = export.NewCSVExporterWithBOM()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 8
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{gradebook: gradebook, csv: csv, metrics: metrics, logger: logger, cfg: cfg}
}

// GradesDataset flattens the record set into one row per grade, ordered by
// student id, subject key and grade position.
func GradesDataset(records models.RecordSet) export.Dataset {
	rows := make([]map[string]string, 0)
	for _, id := range records.IDs() {
		student := records[id]
		for _, key := range student.SubjectKeys() {
			subject := student.Subjects[key]
			for _, grade := range subject.Grades {
				rows = append(rows, map[string]string{
					ColumnStudentID:    id,
					ColumnName:         student.Name,
					ColumnClass:        student.Class,
					ColumnSubject:      subject.Name,
					ColumnGradeTag:     tagFor(grade),
					ColumnGradeDecimal: grade.String(),
				})
			}
		}
	}
	return export.Dataset{Headers: ExportHeaders, Rows: rows}
}

// Export renders every grade as CSV.
func (s *TransferService) Export(_ context.Context) ([]byte, error) {
	payload, err := s.csv.Render(GradesDataset(s.gradebook.Snapshot()))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render csv export")
	}
	return payload, nil
}

// Preview parses the CSV without applying it and returns the first rows.
func (s *TransferService) Preview(_ context.Context, r io.Reader) (*dto.ImportPreview, error) {
	data, _, err := s.read(r)
	if err != nil {
		return nil, err
	}
	limit := s.cfg.PreviewRows
	if limit > len(data.Rows) {
		limit = len(data.Rows)
	}
	return &dto.ImportPreview{Headers: data.Headers, Rows: data.Rows[:limit], TotalRows: len(data.Rows)}, nil
}

// Import merges the CSV into the record set. Unknown students and subjects
// are created, grades are appended and existing data is never removed. Rows
// that cannot be applied are reported and skipped. The result is saved once.
func (s *TransferService) Import(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	data, columns, err := s.read(r)
	if err != nil {
		return nil, err
	}

	var result *dto.ImportResult
	err = s.gradebook.Mutate(ctx, func(records models.RecordSet) error {
		result = applyImport(records, data, columns)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, issue := range result.Skipped {
		s.logger.Sugar().Warnw("import row skipped", "row", issue.Row, "code", issue.Code, "reason", issue.Message)
	}
	s.metrics.RecordImport(result.GradesImported, len(result.Skipped))
	s.logger.Sugar().Infow("csv import finished",
		"rows", result.RowsRead,
		"grades", result.GradesImported,
		"students_created", result.StudentsCreated,
		"subjects_created", result.SubjectsCreated,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *TransferService) read(r io.Reader) (export.Dataset, map[string]string, error) {
	limited := &io.LimitedReader{R: r, N: s.cfg.MaxFileBytes + 1}
	data, err := export.ReadCSV(limited)
	if limited.N <= 0 {
		return export.Dataset{}, nil, appErrors.WrapAs(appErrors.ErrValidation, errors.New("file too large"), fmt.Sprintf("csv exceeds %d bytes", s.cfg.MaxFileBytes))
	}
	if err != nil {
		return export.Dataset{}, nil, appErrors.WrapAs(appErrors.ErrValidation, err, "csv could not be parsed")
	}
	columns, err := resolveColumns(data.Headers)
	if err != nil {
		return export.Dataset{}, nil, err
	}
	return data, columns, nil
}

// resolveColumns maps each export column to the header used in the file.
func resolveColumns(headers []string) (map[string]string, error) {
	columns := make(map[string]string, len(columnAliases))
	for _, header := range headers {
		normalized := norm.NFC.String(strings.TrimSpace(header))
		for column, aliases := range columnAliases {
			if _, found := columns[column]; found {
				continue
			}
			for _, alias := range aliases {
				if strings.EqualFold(normalized, alias) {
					columns[column] = header
					break
				}
			}
		}
	}

	var missing []string
	for _, column := range requiredColumns {
		if _, ok := columns[column]; !ok {
			missing = append(missing, column)
		}
	}
	if _, ok := columns[ColumnGradeTag]; !ok {
		if _, ok := columns[ColumnGradeDecimal]; !ok {
			missing = append(missing, ColumnGradeTag)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv is missing columns: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func applyImport(records models.RecordSet, data export.Dataset, columns map[string]string) *dto.ImportResult {
	result := &dto.ImportResult{Skipped: make([]dto.ImportIssue, 0)}
	cell := func(row map[string]string, column string) string {
		header, ok := columns[column]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[header])
	}
	skip := func(rowNumber int, code, message string) {
		result.Skipped = append(result.Skipped, dto.ImportIssue{Row: rowNumber, Code: code, Message: message})
	}

	for i, row := range data.Rows {
		rowNumber := i + 1
		result.RowsRead++

		id := cell(row, ColumnStudentID)
		subjectName := cell(row, ColumnSubject)
		if id == "" {
			skip(rowNumber, appErrors.ErrImportRow.Code, "student id is empty")
			continue
		}
		if subjectName == "" {
			skip(rowNumber, appErrors.ErrImportRow.Code, "subject is empty")
			continue
		}

		student, exists := records[id]
		if !exists {
			name := cell(row, ColumnName)
			if name == "" {
				skip(rowNumber, appErrors.ErrImportRow.Code, "name of new student is empty")
				continue
			}
			student = models.NewStudent(name, cell(row, ColumnClass))
			result.StudentsCreated++
		}

		key, known := student.ResolveSubjectKey(subjectName)
		if !known {
			key = models.SubjectKey(subjectName)
			student.Subjects[key] = models.NewSubject(subjectName)
			result.SubjectsCreated++
		}
		records[id] = student

		// An unusable grade only drops the grade; the student and subject stay.
		value, err := importedGrade(cell(row, ColumnGradeTag), cell(row, ColumnGradeDecimal))
		if err != nil {
			code := appErrors.ErrUnknownTag.Code
			var unknownValue *grading.UnknownValueError
			if errors.As(err, &unknownValue) {
				code = appErrors.ErrUnknownValue.Code
			}
			skip(rowNumber, code, err.Error())
			continue
		}

		subject := student.Subjects[key]
		subject.Grades = append(subject.Grades, value)
		student.Subjects[key] = subject
		records[id] = student
		result.GradesImported++
	}
	return result
}

// importedGrade resolves a grade from its tag, falling back to the decimal
// column when the tag cell is empty.
func importedGrade(tag, decimal string) (grading.Value, error) {
	if tag != "" {
		return grading.DecimalOf(tag)
	}
	if decimal != "" {
		return grading.ParseValue(decimal)
	}
	return 0, &grading.UnknownTagError{Tag: tag}
}
