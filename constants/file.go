package constants

import "strings"

// FileFormat names a supported ledger or result encoding.
type FileFormat string

const (
	CSV  FileFormat = "csv"
	XLSX FileFormat = "xlsx"
)

// AllowedExtensions holds the ledger file extensions accepted for ingestion.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
}

// DefaultResultName is the file name offered for the downloadable result table.
const DefaultResultName = "RFV_Result"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// FormatFromExt maps a file extension to its format. Unknown extensions return "".
func FormatFromExt(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "csv":
		return CSV
	case "xlsx":
		return XLSX
	default:
		return ""
	}
}

// ContentType returns the MIME type served for a result file.
func (f FileFormat) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
