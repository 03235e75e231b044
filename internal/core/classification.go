package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Classification table layout: pipe-delimited, one header row.
const (
	ClassificationDelimiter = '|'

	classGroupField    = 0
	classPositionField = 1
	classLabelField    = 2
	classTerminalField = 4
	classMinFields     = classTerminalField + 1
)

// BuildClassificationIndex reads the classification table and maps each
// terminal code to its label. A row is terminal when its fifth field is empty;
// its code is the concatenation of the first two fields. Later terminal rows
// overwrite earlier ones with the same code.
func BuildClassificationIndex(r io.Reader, name string) (ClassificationIndex, error) {
	cr := newRowReader(r, ClassificationDelimiter)
	if err := skipHeader(cr); err != nil {
		return nil, rowReadError(name, err)
	}

	index := make(ClassificationIndex)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rowReadError(name, err)
		}
		if len(row) < classMinFields {
			line, _ := cr.FieldPos(0)
			return nil, &RowError{
				File: name,
				Line: line,
				Msg:  fmt.Sprintf("row has %d fields, expected at least %d", len(row), classMinFields),
			}
		}
		if row[classTerminalField] != "" {
			continue
		}
		index[row[classGroupField]+row[classPositionField]] = row[classLabelField]
	}
	return index, nil
}

// BuildClassificationIndexFile opens path and indexes it.
func BuildClassificationIndexFile(path string) (ClassificationIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classification table: %w", err)
	}
	defer f.Close()
	return BuildClassificationIndex(f, filepath.Base(path))
}

// rowReadError converts csv reader failures into RowErrors so they match ErrParse.
func rowReadError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{File: name, Line: pe.Line, Msg: pe.Err.Error()}
	}
	return fmt.Errorf("read %s: %w", name, err)
}
