package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// DiscoverLedgers walks root, skips hidden entries if requested, and returns
// every ledger file with a supported extension in walk order.
func DiscoverLedgers(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var paths []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		// skip our own output so a rerun does not segment a result table
		if strings.HasSuffix(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), resultSuffix) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

const resultSuffix = "_RFV_Result"

// ResultPath names the result workbook written for the ledger at path. The
// ledger's extension stays in the name so march.csv and march.xlsx do not
// share a result. An empty outDir places it next to the ledger; otherwise
// the ledger's directory relative to root is mirrored under outDir.
func ResultPath(path, root, outDir string) string {
	name := filepath.Base(path) + resultSuffix + ".xlsx"
	if outDir == "" {
		return filepath.Join(filepath.Dir(path), name)
	}
	if root != "" {
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.Join(outDir, rel, name)
		}
	}
	return filepath.Join(outDir, name)
}
