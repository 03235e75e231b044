package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Declaration log layout: tab-delimited, one header row.
const (
	LogDelimiter = '\t'

	logCodeField = 3
)

// OccurrenceIndex counts declaration codes. Codes are kept in order of first
// occurrence so reports built from the same log are reproducible.
type OccurrenceIndex struct {
	order  []string
	counts map[string]int
	rows   int
}

// NewOccurrenceIndex returns an empty index.
func NewOccurrenceIndex() *OccurrenceIndex {
	return &OccurrenceIndex{counts: make(map[string]int)}
}

// Add increments the count for code, registering it on first sight.
func (o *OccurrenceIndex) Add(code string) {
	n, seen := o.counts[code]
	if !seen {
		o.order = append(o.order, code)
	}
	o.counts[code] = n + 1
	o.rows++
}

// Count returns the occurrences of code, 0 if unseen.
func (o *OccurrenceIndex) Count(code string) int { return o.counts[code] }

// Codes returns the distinct codes in first-occurrence order.
func (o *OccurrenceIndex) Codes() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Len returns the number of distinct codes.
func (o *OccurrenceIndex) Len() int { return len(o.order) }

// Rows returns the number of data rows counted.
func (o *OccurrenceIndex) Rows() int { return o.rows }

// BuildOccurrenceIndex counts the declaration code (fourth field) of every
// data row in the log.
func BuildOccurrenceIndex(r io.Reader, name string) (*OccurrenceIndex, error) {
	cr := newRowReader(r, LogDelimiter)
	if err := skipHeader(cr); err != nil {
		return nil, rowReadError(name, err)
	}

	idx := NewOccurrenceIndex()
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowReadError(name, err)
		}
		if len(row) <= logCodeField {
			line, _ := cr.FieldPos(0)
			return nil, &RowError{
				File: name,
				Line: line,
				Msg:  fmt.Sprintf("row has %d fields, expected at least %d", len(row), logCodeField+1),
			}
		}
		idx.Add(row[logCodeField])
	}
	return idx, nil
}

// BuildOccurrenceIndexFile opens path and counts it.
func BuildOccurrenceIndexFile(path string) (*OccurrenceIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open declaration log: %w", err)
	}
	defer f.Close()
	return BuildOccurrenceIndex(f, filepath.Base(path))
}
