// Package sweep drives repeated profiler trials over a list of shapes and
// reduces them to one summary row per shape.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxnlabs/gemmbench/internal/aggregate"
	"github.com/fxnlabs/gemmbench/internal/extract"
	"github.com/fxnlabs/gemmbench/internal/metrics"
	"github.com/fxnlabs/gemmbench/internal/profiler"
	"github.com/fxnlabs/gemmbench/internal/shape"
	"go.uber.org/zap"
)

// NotAvailable is printed wherever an aggregate or verdict cannot be derived.
const NotAvailable = "N/A"

// Options tunes a Driver.
type Options struct {
	// Repeat is the number of trials per shape.
	Repeat int
	// Policy picks one timing when a pattern matches several records in one artifact.
	Policy extract.Policy
	// WorkDir receives consumed artifacts and debug dumps.
	WorkDir string
	// DebugDump writes the raw per-shape samples next to the archived artifacts.
	DebugDump bool
	// Pause is slept after each trial.
	Pause time.Duration
}

// SampleSet holds the samples of one shape. Trials lists the 1-based trial
// numbers that produced an artifact; every Samples entry has one sample per
// element of Trials.
type SampleSet struct {
	Shape   shape.Shape
	Trials  []int
	Samples map[string][]aggregate.Sample
}

// Row is one line of the summary table.
type Row struct {
	Shape   shape.Shape
	Labels  []string
	Results map[string]aggregate.Result
	Verdict string
}

// Sink receives rows as soon as each shape completes.
type Sink interface {
	Write(row Row) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(row Row) error

func (f SinkFunc) Write(row Row) error {
	return f(row)
}

// Stats summarises a sweep for the final report.
type Stats struct {
	Shapes          int
	Trials          int
	Skipped         int
	Rows            int
	RowsWithVerdict int
	Missing         map[string]int
}

// Driver runs trials strictly one after another: concurrent kernel launches
// would skew each other's timings.
type Driver struct {
	invoker profiler.Invoker
	kernels []extract.Kernel
	opts    Options
	log     *zap.Logger
	stats   Stats
}

// New returns a Driver extracting the given kernels from every artifact.
func New(invoker profiler.Invoker, kernels []extract.Kernel, opts Options, log *zap.Logger) (*Driver, error) {
	if len(kernels) == 0 {
		return nil, extract.ErrEmptyKernelList
	}
	if opts.Repeat <= 0 {
		return nil, fmt.Errorf("repeat must be positive, got %d", opts.Repeat)
	}
	if opts.Policy == "" {
		opts.Policy = extract.First
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "temp"
	}
	return &Driver{
		invoker: invoker,
		kernels: extract.Unique(kernels),
		opts:    opts,
		log:     log.Named("sweep"),
		stats:   Stats{Missing: make(map[string]int)},
	}, nil
}

// Labels returns the kernel column labels in configuration order.
func (d *Driver) Labels() []string {
	labels := make([]string, len(d.kernels))
	for i, k := range d.kernels {
		labels[i] = k.Pattern()
	}
	return labels
}

// Stats returns the counters accumulated so far.
func (d *Driver) Stats() Stats {
	s := d.stats
	s.Missing = make(map[string]int, len(d.stats.Missing))
	for k, v := range d.stats.Missing {
		s.Missing[k] = v
	}
	return s
}

// Run measures every shape in order and writes one row per shape to sink.
// Trial failures never stop the sweep. Sink errors are logged and returned
// together once all shapes are done. Cancelling ctx stops between trials.
func (d *Driver) Run(ctx context.Context, shapes []shape.Shape, sink Sink) error {
	d.log.Info("Starting sweep",
		zap.Int("shapes", len(shapes)),
		zap.Int("repeat", d.opts.Repeat),
		zap.Strings("kernels", d.Labels()))

	var sinkErrs []error
	for i, s := range shapes {
		d.log.Info("Running shape", zap.Stringer("shape", s), zap.Int("index", i+1), zap.Int("total", len(shapes)))
		set, err := d.Measure(ctx, s)
		if err != nil {
			return errors.Join(append(sinkErrs, err)...)
		}

		row := d.Summarize(set)
		if err := sink.Write(row); err != nil {
			d.log.Error("failed to write summary row", zap.Stringer("shape", s), zap.Error(err))
			sinkErrs = append(sinkErrs, fmt.Errorf("write row %s: %w", s.Tag(), err))
		}
	}
	return errors.Join(sinkErrs...)
}

// Measure runs the configured number of trials for s. It only fails when ctx
// is done.
func (d *Driver) Measure(ctx context.Context, s shape.Shape) (SampleSet, error) {
	set := SampleSet{
		Shape:   s,
		Samples: make(map[string][]aggregate.Sample, len(d.kernels)),
	}
	d.stats.Shapes++

	for trial := 1; trial <= d.opts.Repeat; trial++ {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		if err := d.trial(ctx, s, trial, &set); err != nil {
			return set, err
		}
		if d.opts.Pause > 0 && trial < d.opts.Repeat {
			select {
			case <-ctx.Done():
				return set, ctx.Err()
			case <-time.After(d.opts.Pause):
			}
		}
	}

	if d.opts.DebugDump {
		if err := WriteDebugDump(d.opts.WorkDir, set, d.Labels()); err != nil {
			d.log.Warn("failed to write debug dump", zap.Stringer("shape", s), zap.Error(err))
		}
	}
	return set, nil
}

func (d *Driver) trial(ctx context.Context, s shape.Shape, trial int, set *SampleSet) error {
	log := d.log.With(zap.Stringer("shape", s), zap.Int("trial", trial), zap.Int("repeat", d.opts.Repeat))
	d.stats.Trials++

	artifact, err := d.invoker.Invoke(ctx, s)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.skip(log, "profiler run produced no artifact, skipping trial", err)
		return nil
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		d.skip(log, "failed to read profiler artifact, skipping trial", err)
		return nil
	}
	found := extract.ExtractAll(string(data), d.kernels)

	set.Trials = append(set.Trials, trial)
	for _, k := range d.kernels {
		label := k.Pattern()
		times := found[label]
		v, ok := extract.Select(times, d.opts.Policy)
		if !ok {
			log.Warn("kernel not found in profiler artifact", zap.String("kernel", label))
			d.stats.Missing[label]++
			metrics.MissingSamplesTotal.WithLabelValues(label).Inc()
			set.Samples[label] = append(set.Samples[label], aggregate.Missing())
			continue
		}
		if len(times) > 1 {
			log.Debug("multiple matches for kernel",
				zap.String("kernel", label),
				zap.Int("matches", len(times)),
				zap.String("policy", string(d.opts.Policy)))
		}
		log.Info("kernel time", zap.String("kernel", label), zap.Float64("seconds", v))
		metrics.KernelTimeSeconds.WithLabelValues(label).Observe(v)
		set.Samples[label] = append(set.Samples[label], aggregate.Of(v))
	}
	metrics.TrialsTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	if _, err := profiler.Archive(artifact.Path, d.opts.WorkDir, archiveName(s, trial, artifact)); err != nil {
		log.Warn("failed to archive profiler artifact", zap.String("path", artifact.Path), zap.Error(err))
	}
	return nil
}

func (d *Driver) skip(log *zap.Logger, msg string, err error) {
	log.Warn(msg, zap.Error(err))
	d.stats.Skipped++
	metrics.TrialsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
}

// Summarize aggregates a sample set into a row. The verdict names the
// fastest kernel and is only given when every kernel has an aggregate.
func (d *Driver) Summarize(set SampleSet) Row {
	row := Row{
		Shape:   set.Shape,
		Labels:  d.Labels(),
		Results: make(map[string]aggregate.Result, len(d.kernels)),
	}
	for _, label := range row.Labels {
		row.Results[label] = aggregate.Aggregate(set.Samples[label])
	}
	row.Verdict = Verdict(row.Labels, row.Results)

	d.stats.Rows++
	if row.Verdict != NotAvailable {
		d.stats.RowsWithVerdict++
	}
	metrics.SummaryRowsTotal.Inc()

	fields := []zap.Field{zap.Stringer("shape", set.Shape), zap.String("faster", row.Verdict)}
	for _, label := range row.Labels {
		if r := row.Results[label]; r.Available {
			fields = append(fields, zap.Float64(label, r.Seconds))
		}
	}
	d.log.Info("Shape summary", fields...)
	return row
}

// Verdict returns the label with the smallest aggregate, the first one on
// ties, or NotAvailable if any label lacks an aggregate.
func Verdict(labels []string, results map[string]aggregate.Result) string {
	best := NotAvailable
	var bestSeconds float64
	for _, label := range labels {
		r, ok := results[label]
		if !ok || !r.Available {
			return NotAvailable
		}
		if best == NotAvailable || r.Seconds < bestSeconds {
			best = label
			bestSeconds = r.Seconds
		}
	}
	return best
}

func archiveName(s shape.Shape, trial int, a profiler.Artifact) string {
	ext := filepath.Ext(a.Path)
	if s.IsZero() {
		return fmt.Sprintf("run%d_%s%s", trial, a.RunID, ext)
	}
	return fmt.Sprintf("%s_t%d_%s%s", s.Tag(), trial, a.RunID, ext)
}
