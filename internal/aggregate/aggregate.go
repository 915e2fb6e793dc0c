// Package aggregate reduces per-trial kernel timings to one representative value.
package aggregate

import (
	"errors"
	"sort"

	"github.com/montanaflynn/stats"
)

// ErrNoSamples is returned by TrimmedMean for an empty input.
var ErrNoSamples = errors.New("no samples")

// Sample is one trial's timing for one kernel. Present is false when the
// kernel was not found in that trial's artifact.
type Sample struct {
	Seconds float64
	Present bool
}

// Of wraps a measured value.
func Of(seconds float64) Sample {
	return Sample{Seconds: seconds, Present: true}
}

// Missing is the sample recorded when a trial had no match.
func Missing() Sample {
	return Sample{}
}

// Result is the aggregate of one (shape, kernel) pair.
type Result struct {
	Seconds   float64
	Available bool
	// Valid is the number of present samples the result was built from.
	Valid int
}

// Values returns the present sample values in trial order.
func Values(samples []Sample) []float64 {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Present {
			values = append(values, s.Seconds)
		}
	}
	return values
}

// Aggregate filters out missing samples and applies TrimmedMean to the rest.
func Aggregate(samples []Sample) Result {
	values := Values(samples)
	mean, err := TrimmedMean(values)
	if err != nil {
		return Result{}
	}
	return Result{Seconds: mean, Available: true, Valid: len(values)}
}

// TrimmedMean averages values after dropping one minimum and one maximum.
// With fewer than three values nothing is dropped. The input is not modified.
func TrimmedMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}
	if len(values) <= 2 {
		return stats.Mean(values)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stats.Mean(sorted[1 : len(sorted)-1])
}
