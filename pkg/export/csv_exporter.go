// Package export renders batch run reports as CSV attachments for the
// admin summary email.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is one report table: the column order to emit and the per-row
// values keyed by column. Missing cells render empty so partially failed
// rows still line up under the headers.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter turns a Dataset into CSV bytes suitable for attaching to a
// batch completion email.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset, headers first, rows in the order given.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("report needs at least one column")
	}

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, column := range data.Headers {
			record[i] = row[column]
		}
		records = append(records, record)
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode report csv: %w", err)
	}
	return buf.Bytes(), nil
}
