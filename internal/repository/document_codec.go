package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// EncodeDocument renders the record set as the persisted JSON document:
// two-space indentation, unescaped non-ASCII and HTML characters, keys in
// sorted order and empty collections written as {} and [] instead of null.
func EncodeDocument(records models.RecordSet) ([]byte, error) {
	if records == nil {
		records = models.NewRecordSet()
	}
	normalized := records.Clone()
	normalized.Normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("encode record document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDocument parses a persisted document. Grade values outside the scale,
// students without a name and non-object payloads are rejected.
func DecodeDocument(data []byte) (models.RecordSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode record document: empty payload")
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("decode record document: top-level value must be an object")
	}

	var records models.RecordSet
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode record document: %w", err)
	}
	if records == nil {
		records = models.NewRecordSet()
	}
	for id, student := range records {
		if id == "" {
			return nil, fmt.Errorf("decode record document: empty student id")
		}
		if student.Name == "" {
			return nil, fmt.Errorf("decode record document: student %q has no name", id)
		}
	}
	records.Normalize()
	return records, nil
}
