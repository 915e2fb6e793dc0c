// Package report writes sweep and verification results in the formats the
// downstream plotting scripts read: CSV tables and a plain-text verify log.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/fxnlabs/gemmbench/internal/sweep"
	"github.com/montanaflynn/stats"
)

// ErrHeaderMismatch is returned when appending to a table written for a
// different set of kernels.
var ErrHeaderMismatch = errors.New("existing table has different columns")

// FormatSeconds renders a timing with the shortest exact representation.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SummaryHeader returns M,K,N, one <label>_time_avg(s) column per label and Faster.
func SummaryHeader(labels []string) []string {
	header := []string{"M", "K", "N"}
	for _, label := range labels {
		header = append(header, label+"_time_avg(s)")
	}
	return append(header, "Faster")
}

// SummaryTable appends summary rows to a CSV file, flushing after every row
// so an interrupted sweep keeps everything already measured.
type SummaryTable struct {
	f       *os.File
	w       *csv.Writer
	labels  []string
	average bool
	seen    map[string][]float64
}

// OpenSummaryTable opens path for appending, writing the header only when
// the file is new or empty. With average set, Close appends an Average row.
func OpenSummaryTable(path string, labels []string, average bool) (*SummaryTable, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	header := SummaryHeader(labels)

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && !slices.Equal(existing, header) {
		return nil, fmt.Errorf("%s: %w", path, ErrHeaderMismatch)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	t := &SummaryTable{
		f:       f,
		w:       csv.NewWriter(f),
		labels:  labels,
		average: average,
		seen:    make(map[string][]float64, len(labels)),
	}
	if existing == nil {
		if err := t.writeRecord(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return t, nil
}

// readHeader returns the first record of path, or nil if it is missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return record, err
}

// Write implements sweep.Sink.
func (t *SummaryTable) Write(row sweep.Row) error {
	record := []string{strconv.Itoa(row.Shape.M), strconv.Itoa(row.Shape.K), strconv.Itoa(row.Shape.N)}
	for _, label := range t.labels {
		r, ok := row.Results[label]
		if !ok || !r.Available {
			record = append(record, sweep.NotAvailable)
			continue
		}
		record = append(record, FormatSeconds(r.Seconds))
		t.seen[label] = append(t.seen[label], r.Seconds)
	}
	record = append(record, row.Verdict)
	return t.writeRecord(record)
}

func (t *SummaryTable) writeRecord(record []string) error {
	if err := t.w.Write(record); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

// Close writes the optional Average row and closes the file. The average of
// a column covers only the rows written through this table.
func (t *SummaryTable) Close() error {
	var err error
	if t.average && len(t.seen) > 0 {
		record := []string{"Average", "", ""}
		for _, label := range t.labels {
			mean, merr := stats.Mean(t.seen[label])
			if merr != nil {
				record = append(record, sweep.NotAvailable)
				continue
			}
			record = append(record, FormatSeconds(mean))
		}
		record = append(record, "")
		err = t.writeRecord(record)
	}
	return errors.Join(err, t.f.Close())
}
