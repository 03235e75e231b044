package core

// streaming.go provides the row readers shared by the classification and log
// parsers. Input files are read row by row; neither file is loaded whole.
//
//   - BOMSkippingReader: removes a UTF-8 BOM written by Windows tools
//   - newRowReader: delimiter-aware csv.Reader over both

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// newRowReader returns a csv.Reader for a delimited file with a variable
// number of fields per row. Quotes are handled leniently because both source
// files contain free-text labels with stray quote characters.
func newRowReader(r io.Reader, comma rune) *csv.Reader {
	cr := csv.NewReader(NewBOMSkippingReader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// skipHeader consumes the header row. An empty input is not an error.
func skipHeader(cr *csv.Reader) error {
	if _, err := cr.Read(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
