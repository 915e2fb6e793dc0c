// Package extract scrapes kernel timings out of hipprof pmc artifacts.
//
// An artifact is plain text holding zero or more records. A record starts at
// the marker kernel-name:"<label>" and runs until the next marker or the end
// of the text. Its duration is the first "kernel time <float>(s)" found inside
// the record; the duration does not have to share a line with the label.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	recordMarker = `kernel-name:"`
	wildcard     = "*"
)

var (
	// ErrEmptyPattern is returned when compiling a blank kernel pattern.
	ErrEmptyPattern = errors.New("empty kernel pattern")

	durationRe = regexp.MustCompile(`kernel time\s+([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\(s\)`)
)

// Kernel is a compiled kernel label pattern. The only metacharacter is *,
// which stands for any run of label characters.
type Kernel struct {
	pattern string
	re      *regexp.Regexp
}

// Compile builds a Kernel from a label or wildcard pattern.
func Compile(pattern string) (Kernel, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Kernel{}, ErrEmptyPattern
	}

	pieces := strings.Split(pattern, wildcard)
	for i, p := range pieces {
		pieces[i] = regexp.QuoteMeta(p)
	}
	expr := "^" + strings.Join(pieces, `[^"]*`) + "$"

	re, err := regexp.Compile(expr)
	if err != nil {
		return Kernel{}, fmt.Errorf("compile kernel pattern %q: %w", pattern, err)
	}
	return Kernel{pattern: pattern, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) Kernel {
	k, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return k
}

// CompileAll compiles each pattern in order. A repeated pattern is kept once,
// at its first position.
func CompileAll(patterns []string) ([]Kernel, error) {
	kernels := make([]Kernel, 0, len(patterns))
	for _, p := range patterns {
		k, err := Compile(p)
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, k)
	}
	return Unique(kernels), nil
}

// Unique drops kernels whose pattern already appeared earlier in the list.
func Unique(kernels []Kernel) []Kernel {
	seen := make(map[string]struct{}, len(kernels))
	out := make([]Kernel, 0, len(kernels))
	for _, k := range kernels {
		if _, dup := seen[k.Pattern()]; dup {
			continue
		}
		seen[k.Pattern()] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Pattern returns the source pattern, which doubles as the column label.
func (k Kernel) Pattern() string {
	return k.pattern
}

func (k Kernel) String() string {
	return k.pattern
}

// Matches reports whether a kernel label satisfies the pattern.
func (k Kernel) Matches(label string) bool {
	return k.re != nil && k.re.MatchString(label)
}

// Record is one labeled kernel entry of an artifact.
type Record struct {
	Label   string
	Seconds float64
}

// Records splits text into labeled kernel records. Records lacking a
// parsable duration are dropped.
func Records(text string) []Record {
	var records []Record
	rest := text
	for {
		start := strings.Index(rest, recordMarker)
		if start < 0 {
			return records
		}
		rest = rest[start+len(recordMarker):]

		body := rest
		if next := strings.Index(rest, recordMarker); next >= 0 {
			body = rest[:next]
		}

		end := strings.IndexByte(body, '"')
		if end < 0 {
			continue
		}
		label := body[:end]

		m := durationRe.FindStringSubmatch(body[end+1:])
		if m == nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		records = append(records, Record{Label: label, Seconds: seconds})
	}
}

// Extract returns every duration in text whose record label matches k, in
// artifact order. No match yields an empty slice: the kernel simply did not
// run in this trial.
func Extract(text string, k Kernel) []float64 {
	times := []float64{}
	for _, r := range Records(text) {
		if k.Matches(r.Label) {
			times = append(times, r.Seconds)
		}
	}
	return times
}

// ExtractAll runs Extract for each kernel over a single pass of the records.
func ExtractAll(text string, kernels []Kernel) map[string][]float64 {
	records := Records(text)
	out := make(map[string][]float64, len(kernels))
	for _, k := range kernels {
		times := []float64{}
		for _, r := range records {
			if k.Matches(r.Label) {
				times = append(times, r.Seconds)
			}
		}
		out[k.Pattern()] = times
	}
	return out
}
