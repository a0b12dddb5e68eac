// Package source loads raw record batches produced by the per-site
// scraping layer. A batch is a JSON array or JSON-lines file of flat
// record mappings; in-memory batches from the API-triggered path use the
// same Batch shape without a file behind them.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mygovdir/dirsync/internal/content"
)

// Batch is one logical batch of raw records from a single source.
type Batch struct {
	// Source identifies the batch for fingerprinting; for file batches
	// it is the file name.
	Source string
	// Category selects the validator/normalizer pair in the registry.
	Category string
	// Records are raw flat mappings, tolerating extra or missing fields.
	Records []map[string]any
	// Path is the backing file, empty for in-memory batches.
	Path string
	// FileSHA256 is the digest of the raw file bytes, empty for
	// in-memory batches. A byte-identical file lets the pipeline skip
	// the source before validation even runs.
	FileSHA256 string
}

// Load reads a batch from a JSON array or JSON-lines file; the format is
// sniffed from the first non-space byte. The category is taken from the
// file name prefix ("ministry__jpm.json" -> ministry), defaulting to
// "ministry" when the name carries none.
func Load(path string) (Batch, error) {
	digest, err := content.HashFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read batch file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read batch file: %w", err)
	}

	records, err := Parse(data)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	name := filepath.Base(path)
	return Batch{
		Source:     name,
		Category:   categoryFromName(name),
		Records:    records,
		Path:       path,
		FileSHA256: digest,
	}, nil
}

// Parse decodes raw batch bytes in either supported format.
func Parse(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []map[string]any
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return records, nil
	}
	return parseLines(trimmed)
}

func parseLines(data []byte) ([]map[string]any, error) {
	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lines: %w", err)
	}
	return records, nil
}

// LoadDir loads every batch file accepted by the filter from a drop
// directory, in stable name order.
func LoadDir(dir string, filter *Filter) ([]Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if filter.ShouldExclude(entry.Name(), info.Size()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	batches := make([]Batch, 0, len(names))
	for _, name := range names {
		batch, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// categoryFromName extracts the category from a "category__source" file
// name prefix.
func categoryFromName(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if cat, _, found := strings.Cut(name, "__"); found && cat != "" {
		return cat
	}
	return "ministry"
}
