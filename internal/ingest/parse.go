package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/common"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// dateLayouts are tried in order for textual purchase dates. Slash dates
// are month first; day first is only tried when that fails (13/01/2024).
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ParseDate parses a textual purchase date. Zone-less values are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseSerialDate converts an Excel serial date number.
func parseSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseAmount parses a purchase amount. NaN and infinities are rejected.
func ParseAmount(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeHeader trims whitespace and a UTF-8 byte order mark.
func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

// columnIndex maps the required ledger columns to their header positions.
type columnIndex struct {
	customer, code, date, value int
}

func resolveColumns(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	for _, col := range constants.LedgerColumns {
		if _, ok := pos[col]; !ok {
			return columnIndex{}, &common.MalformedInputError{Column: col, Reason: "required column is missing"}
		}
	}
	return columnIndex{
		customer: pos[constants.ColCustomerID],
		code:     pos[constants.ColPurchaseCode],
		date:     pos[constants.ColPurchaseDate],
		value:    pos[constants.ColTotalValue],
	}, nil
}

// table is a decoded sheet: a header and its data rows, with the source row
// number of every data row.
type table struct {
	header  []string
	rows    [][]string
	rowNums []int
	// serialDates accepts Excel serial numbers in the date column.
	serialDates bool
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// purchases converts a table into records. The first bad cell aborts the
// whole conversion; no partial ledger is returned.
func (t table) purchases() ([]entity.Purchase, error) {
	idx, err := resolveColumns(t.header)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Purchase, 0, len(t.rows))
	for i, row := range t.rows {
		rowNum := t.rowNums[i]
		required := func(col string, at int) (string, error) {
			v := cell(row, at)
			if v == "" {
				return "", &common.MalformedInputError{Row: rowNum, Column: col, Reason: "value is required"}
			}
			return v, nil
		}

		customer, err := required(constants.ColCustomerID, idx.customer)
		if err != nil {
			return nil, err
		}
		code, err := required(constants.ColPurchaseCode, idx.code)
		if err != nil {
			return nil, err
		}
		rawDate, err := required(constants.ColPurchaseDate, idx.date)
		if err != nil {
			return nil, err
		}
		rawValue, err := required(constants.ColTotalValue, idx.value)
		if err != nil {
			return nil, err
		}

		date, ok := ParseDate(rawDate)
		if !ok && t.serialDates {
			date, ok = parseSerialDate(rawDate)
		}
		if !ok {
			return nil, &common.MalformedInputError{Row: rowNum, Column: constants.ColPurchaseDate, Value: rawDate, Reason: "not a date"}
		}
		value, ok := ParseAmount(rawValue)
		if !ok {
			return nil, &common.MalformedInputError{Row: rowNum, Column: constants.ColTotalValue, Value: rawValue, Reason: "not a number"}
		}

		out = append(out, entity.Purchase{
			CustomerID:   customer,
			PurchaseCode: code,
			PurchaseDate: date,
			TotalValue:   value,
		})
	}
	return out, nil
}
