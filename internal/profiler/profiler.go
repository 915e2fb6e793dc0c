// Package profiler runs the external hipprof profiler around a benchmark
// program and locates the pmc artifact each run leaves behind.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fxnlabs/gemmbench/internal/shape"
	"go.uber.org/zap"
)

var (
	// ErrArtifactTimeout is returned when the artifact did not appear within the poll timeout.
	ErrArtifactTimeout = errors.New("profiler artifact not generated")
	// ErrNoRunID is returned when the profiler output carries no process id.
	ErrNoRunID = errors.New("profiler process id not found")
	// ErrNoArtifact is returned when no file matches the artifact name pattern.
	ErrNoArtifact = errors.New("no profiler artifact found")

	runIDRe = regexp.MustCompile(`HIP_PROF:process id '(\d+)'`)
)

// Correlation selects how a run is tied to its artifact.
type Correlation string

const (
	// ByPID builds the artifact name from the process id the profiler prints.
	ByPID Correlation = "pid"
	// ByMTime picks the most recently modified matching file. Only safe when
	// profiler runs never overlap.
	ByMTime Correlation = "mtime"
)

// Artifact is a completed profiler output file.
type Artifact struct {
	Path  string
	RunID string
}

// Invoker produces one profiler artifact for a shape.
type Invoker interface {
	Invoke(ctx context.Context, s shape.Shape) (Artifact, error)
}

// Options configures a Runner.
type Options struct {
	Command      string
	Flags        []string
	Program      []string
	Dir          string
	Prefix       string
	Suffix       string
	Correlation  Correlation
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultOptions mirrors a plain `hipprof --pmc` setup.
func DefaultOptions() Options {
	return Options{
		Command:      "hipprof",
		Flags:        []string{"--pmc"},
		Program:      []string{"python", "benchGemm.py", "{M}", "{K}", "{N}"},
		Dir:          ".",
		Prefix:       "pmc_results_",
		Suffix:       ".txt",
		Correlation:  ByPID,
		PollInterval: 500 * time.Millisecond,
		PollTimeout:  15 * time.Second,
	}
}

// Runner invokes the profiler as a subprocess, one run at a time.
type Runner struct {
	opts    Options
	log     *zap.Logger
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options, log *zap.Logger) (*Runner, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("profiler command is empty")
	}
	if len(opts.Program) == 0 {
		return nil, fmt.Errorf("profiled program is empty")
	}
	if opts.PollInterval <= 0 || opts.PollTimeout <= 0 {
		return nil, fmt.Errorf("poll interval and timeout must be positive")
	}
	switch opts.Correlation {
	case "":
		opts.Correlation = ByPID
	case ByPID, ByMTime:
	default:
		return nil, fmt.Errorf("unknown artifact correlation: %s", opts.Correlation)
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &Runner{
		opts:    opts,
		log:     log.Named("profiler"),
		command: exec.CommandContext,
	}, nil
}

// Args returns the full argument vector passed to the profiler for s.
func (r *Runner) Args(s shape.Shape) []string {
	args := make([]string, 0, len(r.opts.Flags)+len(r.opts.Program))
	args = append(args, r.opts.Flags...)
	return append(args, ExpandProgram(r.opts.Program, s)...)
}

// Invoke runs the profiler to completion and waits for its artifact. A
// non-zero exit status is logged but the artifact is still looked for.
func (r *Runner) Invoke(ctx context.Context, s shape.Shape) (Artifact, error) {
	args := r.Args(s)
	r.log.Debug("running profiler", zap.String("command", r.opts.Command), zap.Strings("args", args))

	cmd := r.command(ctx, r.opts.Command, args...)
	cmd.Dir = r.opts.Dir
	output, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Artifact{}, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Artifact{}, fmt.Errorf("run %s: %w", r.opts.Command, err)
		}
		r.log.Warn("profiler exited with non-zero status",
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.Stringer("shape", s))
	}

	switch r.opts.Correlation {
	case ByMTime:
		return r.awaitLatest(ctx)
	default:
		return r.awaitByRunID(ctx, string(output))
	}
}

func (r *Runner) awaitByRunID(ctx context.Context, output string) (Artifact, error) {
	runID, ok := ParseRunID(output)
	if !ok {
		r.log.Debug("profiler output without process id", zap.String("output", output))
		return Artifact{}, ErrNoRunID
	}
	path := filepath.Join(r.opts.Dir, r.opts.Prefix+runID+r.opts.Suffix)
	if err := WaitForFile(ctx, path, r.opts.PollInterval, r.opts.PollTimeout); err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	return Artifact{Path: path, RunID: runID}, nil
}

func (r *Runner) awaitLatest(ctx context.Context) (Artifact, error) {
	var path string
	err := poll(ctx, r.opts.PollInterval, r.opts.PollTimeout, func() bool {
		var err error
		path, err = Latest(r.opts.Dir, r.opts.Prefix, r.opts.Suffix)
		return err == nil
	})
	if err != nil {
		return Artifact{}, err
	}
	base := filepath.Base(path)
	runID := strings.TrimSuffix(strings.TrimPrefix(base, r.opts.Prefix), r.opts.Suffix)
	return Artifact{Path: path, RunID: runID}, nil
}

// ParseRunID finds the process id hipprof reports on its output.
func ParseRunID(output string) (string, bool) {
	m := runIDRe.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExpandProgram substitutes {M}, {K} and {N} in each argument.
func ExpandProgram(program []string, s shape.Shape) []string {
	replacer := strings.NewReplacer(
		"{M}", strconv.Itoa(s.M),
		"{K}", strconv.Itoa(s.K),
		"{N}", strconv.Itoa(s.N),
	)
	out := make([]string, len(program))
	for i, arg := range program {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// WaitForFile polls for path until it exists, the timeout elapses or ctx is done.
func WaitForFile(ctx context.Context, path string, interval, timeout time.Duration) error {
	return poll(ctx, interval, timeout, func() bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

func poll(ctx context.Context, interval, timeout time.Duration, done func() bool) error {
	if done() {
		return nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if done() {
				return nil
			}
			return ErrArtifactTimeout
		case <-ticker.C:
			if done() {
				return nil
			}
		}
	}
}
