package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet applications detect UTF-8 encoded CSV files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVOptions controls the CSV dialect written by CSVExporter.
type CSVOptions struct {
	// BOM prefixes the output with a UTF-8 byte-order mark.
	BOM bool
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// CRLF terminates records with \r\n.
	CRLF bool
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	opts CSVOptions
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// NewCSVExporterWithBOM builds a CSV exporter that prefixes output with a UTF-8 byte-order mark.
func NewCSVExporterWithBOM() *CSVExporter {
	return &CSVExporter{opts: CSVOptions{BOM: true}}
}

// NewCSVExporterWithOptions builds a CSV exporter for the given dialect.
func NewCSVExporterWithOptions(opts CSVOptions) *CSVExporter {
	return &CSVExporter{opts: opts}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.opts.BOM {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	if e.opts.Comma != 0 {
		writer.Comma = e.opts.Comma
	}
	writer.UseCRLF = e.opts.CRLF
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
