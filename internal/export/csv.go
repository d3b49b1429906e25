// Package export writes the post-run outcome snapshot.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pgoodall/tagtally/internal/tally"
)

// csvHeader matches the snapshot layout downstream analysis expects.
var csvHeader = []string{"URL", "Script Count", "Status"}

// CSVWriter writes outcome snapshots to a CSV file.
type CSVWriter struct {
	path string
}

// NewCSVWriter builds a writer targeting path.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write dumps all outcomes to the configured file, replacing any previous
// snapshot. Rows are sorted by URL so repeated runs over the same store
// produce byte-identical files. Failed outcomes render an empty count
// column.
func (w *CSVWriter) Write(outcomes []tally.Outcome) error {
	rows := make([]tally.Outcome, len(outcomes))
	copy(rows, outcomes)
	sort.Slice(rows, func(i, j int) bool { return rows[i].URL < rows[j].URL })

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range rows {
		count := ""
		if o.ScriptCount != nil {
			count = strconv.Itoa(*o.ScriptCount)
		}
		if err := cw.Write([]string{o.URL, count, string(o.Status)}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	return nil
}
