package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
)

// sniffDelimiter picks the most frequent of ',', ';' and tab in the header
// line, defaulting to ','.
func sniffDelimiter(headerLine string) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(headerLine, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}

func readCSV(in io.Reader, delim rune) (table, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return table{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if delim == 0 {
		delim = sniffDelimiter(firstLine(data))
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table{}, &common.MalformedInputError{Reason: "file has no header row"}
		}
		return table{}, csvError(err)
	}

	t := table{header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, csvError(err)
		}
		if blank(rec) {
			continue
		}
		line, _ := r.FieldPos(0)
		t.rows = append(t.rows, rec)
		t.rowNums = append(t.rowNums, line)
	}
	return t, nil
}

func csvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &common.MalformedInputError{Row: perr.Line, Reason: perr.Err.Error()}
	}
	return &common.MalformedInputError{Reason: err.Error()}
}
