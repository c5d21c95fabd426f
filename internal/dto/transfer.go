package dto

// ImportIssue describes a CSV row that could not be applied.
type ImportIssue struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult summarises a CSV import.
type ImportResult struct {
	RowsRead        int           `json:"rows_read"`
	GradesImported  int           `json:"grades_imported"`
	StudentsCreated int           `json:"students_created"`
	SubjectsCreated int           `json:"subjects_created"`
	Skipped         []ImportIssue `json:"skipped"`
}

// ImportPreview shows the first rows of a CSV file without applying it.
type ImportPreview struct {
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"rows"`
	TotalRows int                 `json:"total_rows"`
}
