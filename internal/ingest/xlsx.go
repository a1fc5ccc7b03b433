package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
)

func readXLSX(in io.Reader, sheet string) (table, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return table{}, &common.MalformedInputError{Reason: fmt.Sprintf("not a readable xlsx workbook: %v", err)}
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return table{}, &common.MalformedInputError{Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		return table{}, &common.MalformedInputError{Reason: fmt.Sprintf("sheet %q not found", sheet)}
	}

	// Raw values keep dates as serial numbers and amounts unformatted.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return table{}, &common.MalformedInputError{Reason: fmt.Sprintf("read sheet %q: %v", sheet, err)}
	}

	t := table{serialDates: true}
	for i, row := range rows {
		if t.header == nil {
			if blank(row) {
				continue
			}
			t.header = row
			continue
		}
		if blank(row) {
			continue
		}
		t.rows = append(t.rows, row)
		t.rowNums = append(t.rowNums, i+1)
	}
	if t.header == nil {
		return table{}, &common.MalformedInputError{Reason: "sheet has no header row"}
	}
	return t, nil
}
