// Package loader reads the raw URL list consumed by a batch run.
package loader

import (
	"fmt"
	"os"
	"strings"
)

// FileSource loads URLs from a text file on demand.
type FileSource struct {
	Path string
}

// Load implements batch.URLSource.
func (s FileSource) Load() ([]string, error) {
	return FromFile(s.Path)
}

// FromFile reads a whitespace-separated URL list and returns the
// deduplicated sequence. Matching is case-sensitive and no normalization is
// applied: two strings differing only by a trailing slash are distinct URLs.
// First-seen order is preserved so runs are deterministic to observe, though
// nothing downstream depends on it.
func FromFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return Dedupe(strings.Fields(string(raw))), nil
}

// Dedupe removes exact-match duplicates, keeping the first occurrence.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
