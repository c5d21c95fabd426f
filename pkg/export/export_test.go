package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Name", "Fach"},
		Rows: []map[string]string{
			{"Name": "Jürgen", "Fach": "Französisch"},
			{"Name": "Ana, Maria", "Fach": "Mathe"},
		},
	}
}

func TestCSVExporterWithBOM(t *testing.T) {
	out, err := NewCSVExporterWithBOM().Render(sampleDataset())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Contains(t, string(out), "Jürgen,Französisch\n")
	assert.Contains(t, string(out), "\"Ana, Maria\",Mathe\n")

	plain, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(plain, utf8BOM))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestReadCSVRoundTrip(t *testing.T) {
	out, err := NewCSVExporterWithBOM().Render(sampleDataset())
	require.NoError(t, err)

	data, err := ReadCSV(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Fach"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "Jürgen", data.Rows[0]["Name"])
	assert.Equal(t, "Ana, Maria", data.Rows[1]["Name"])
}

func TestReadCSVToleratesShortAndBlankRows(t *testing.T) {
	data, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n,,\n4,5,6\n"))
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "", data.Rows[0]["c"])
	assert.Equal(t, "6", data.Rows[1]["c"])
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestXLSXExporter(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Noten")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	value, err := f.GetCellValue("Noten", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Jürgen", value)
}

func TestPDFExporter(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Übersicht")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestCSVExporterWithOptions(t *testing.T) {
	out, err := NewCSVExporterWithOptions(CSVOptions{Comma: ';', CRLF: true}).Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Name;Fach\r\nJürgen;Französisch\r\nAna, Maria;Mathe\r\n", string(out))
}

func TestReadCSVDetectsSemicolons(t *testing.T) {
	data, err := ReadCSV(strings.NewReader("\ufeffName;Fach;Note\nJürgen;Mathe;2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Fach", "Note"}, data.Headers)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "2,3", data.Rows[0]["Note"])
}

func TestPDFColumnWidthsFollowContent(t *testing.T) {
	widths := columnWidths(Dataset{
		Headers: []string{"ID", "Beschreibung"},
		Rows:    []map[string]string{{"ID": "1", "Beschreibung": "eine recht lange Zeile"}},
	}, 190)
	require.Len(t, widths, 2)
	assert.InDelta(t, 190, widths[0]+widths[1], 0.001)
	assert.Greater(t, widths[1], widths[0])
	assert.GreaterOrEqual(t, widths[0], pdfMinColumnMM)
}

func TestPDFExporterPaginatesWideTables(t *testing.T) {
	data := Dataset{Headers: []string{"A", "B", "C", "D", "E", "F"}}
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"A": "Zeile", "F": "Ende"})
	}
	out, err := NewPDFExporter().Render(data, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
