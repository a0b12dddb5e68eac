package source

import (
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize caps how large a batch file may be (32MB). Scraper
// output for a whole ministry stays well under this; anything bigger is a
// runaway scrape.
const DefaultMaxFileSize int64 = 32 * 1024 * 1024

// batchExtensions are the file extensions recognized as batch files.
var batchExtensions = []string{".json", ".jsonl"}

// Filter decides which files in the drop directory are source batches.
type Filter struct {
	maxFileSize int64
}

// NewFilter creates a Filter with the given size cap; zero or negative
// means DefaultMaxFileSize.
func NewFilter(maxFileSize int64) *Filter {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Filter{maxFileSize: maxFileSize}
}

// ShouldExclude returns true for hidden files, editor/scraper temp files,
// unrecognized extensions, and oversized files.
func (f *Filter) ShouldExclude(name string, size int64) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".part") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	recognized := false
	for _, e := range batchExtensions {
		if ext == e {
			recognized = true
			break
		}
	}
	if !recognized {
		return true
	}
	return size > f.maxFileSize
}

// MaxFileSize returns the size cap.
func (f *Filter) MaxFileSize() int64 {
	return f.maxFileSize
}
