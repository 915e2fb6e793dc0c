package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fxnlabs/gemmbench/internal/aggregate"
	"github.com/fxnlabs/gemmbench/internal/sweep"
)

// WriteTrialTable writes one Run row per completed trial of set, a blank
// line, and an Average row holding each label's trimmed mean.
func WriteTrialTable(w io.Writer, set sweep.SampleSet, labels []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Run"}, labels...)); err != nil {
		return err
	}

	for i, trial := range set.Trials {
		record := []string{strconv.Itoa(trial)}
		for _, label := range labels {
			samples := set.Samples[label]
			if i >= len(samples) || !samples[i].Present {
				record = append(record, sweep.NotAvailable)
				continue
			}
			record = append(record, FormatSeconds(samples[i].Seconds))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write([]string{"Average (no max/min)"}); err != nil {
		return err
	}
	avg := []string{"Average"}
	for _, label := range labels {
		r := aggregate.Aggregate(set.Samples[label])
		if !r.Available {
			avg = append(avg, sweep.NotAvailable)
			continue
		}
		avg = append(avg, FormatSeconds(r.Seconds))
	}
	if err := cw.Write(avg); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
