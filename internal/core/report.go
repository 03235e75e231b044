package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// BuildReport joins occurrence counts against the classification index.
// Each declaration code is truncated to CategoryCodeWidth characters before
// lookup; codes whose prefix has no entry get fallback. The report has one row
// per distinct code, in the index's first-occurrence order.
func BuildReport(index ClassificationIndex, counts *OccurrenceIndex, fallback string) []ReportRow {
	rows := make([]ReportRow, 0, counts.Len())
	for _, code := range counts.order {
		category, ok := index[categoryKey(code)]
		if !ok {
			category = fallback
		}
		rows = append(rows, ReportRow{
			Code:     code,
			Count:    counts.counts[code],
			Category: category,
		})
	}
	return rows
}

// categoryKey keeps the first CategoryCodeWidth characters of code.
func categoryKey(code string) string {
	n := 0
	for i := range code {
		if n == CategoryCodeWidth {
			return code[:i]
		}
		n++
	}
	return code
}

// WriteReport serializes rows as tab-delimited lines preceded by ReportHeader.
func WriteReport(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = LogDelimiter
	if err := cw.Write(ReportHeader); err != nil {
		return err
	}
	record := make([]string, len(ReportHeader))
	for _, r := range rows {
		record[0] = r.Code
		record[1] = strconv.Itoa(r.Count)
		record[2] = r.Category
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportFile writes the report to path, replacing any previous file.
func WriteReportFile(path string, rows []ReportRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteReport(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return f.Close()
}

// ReadReport parses a report written by WriteReport.
func ReadReport(r io.Reader, name string) ([]ReportRow, error) {
	cr := newRowReader(r, LogDelimiter)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, rowReadError(name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]ReportRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(ReportHeader) {
			return nil, &RowError{File: name, Line: i + 2, Msg: fmt.Sprintf("row has %d fields, expected %d", len(rec), len(ReportHeader))}
		}
		n, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, &RowError{File: name, Line: i + 2, Msg: fmt.Sprintf("invalid count %q", rec[1])}
		}
		rows = append(rows, ReportRow{Code: rec[0], Count: n, Category: rec[2]})
	}
	return rows, nil
}

// ReadReportFile opens path and parses it.
func ReadReportFile(path string) ([]ReportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	defer f.Close()
	return ReadReport(f, filepath.Base(path))
}
