package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/rfv-segments/constants"
)

// AllowedExt checks if a file extension is a supported ledger encoding (csv/xlsx).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
// Excel lock files ("~$book.xlsx") count as hidden too.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
