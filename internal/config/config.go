package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fxnlabs/gemmbench/internal/extract"
	"github.com/fxnlabs/gemmbench/internal/gpu"
	"github.com/fxnlabs/gemmbench/internal/profiler"
	"github.com/fxnlabs/gemmbench/internal/shape"
	"github.com/fxnlabs/gemmbench/internal/verify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Encoding  string `yaml:"encoding"`
	} `yaml:"logger"`
	Profiler ProfilerConfig `yaml:"profiler"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Verify   VerifyConfig   `yaml:"verify"`
	Metrics  struct {
		// Textfile is rewritten with the registry contents on exit.
		Textfile string `yaml:"textfile"`
		// Listen serves /metrics while a command runs; empty disables it.
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

type ProfilerConfig struct {
	Command      string        `yaml:"command"`
	Flags        []string      `yaml:"flags"`
	Program      []string      `yaml:"program"`
	Dir          string        `yaml:"dir"`
	Prefix       string        `yaml:"prefix"`
	Suffix       string        `yaml:"suffix"`
	Correlation  string        `yaml:"correlation"`
	PollInterval time.Duration `yaml:"pollInterval"`
	PollTimeout  time.Duration `yaml:"pollTimeout"`
}

type SweepConfig struct {
	Repeat       int           `yaml:"repeat"`
	KernelsFile  string        `yaml:"kernelsFile"`
	Kernels      []string      `yaml:"kernels"`
	Policy       string        `yaml:"policy"`
	WorkDir      string        `yaml:"workDir"`
	Output       string        `yaml:"output"`
	DebugDump    bool          `yaml:"debugDump"`
	Pause        time.Duration `yaml:"pause"`
	WriteAverage bool          `yaml:"writeAverage"`
	Shapes       ShapesConfig  `yaml:"shapes"`
}

type VerifyConfig struct {
	Atol       float64      `yaml:"atol"`
	Rtol       float64      `yaml:"rtol"`
	Seed       int64        `yaml:"seed"` // 0 seeds from the clock
	Backend    string       `yaml:"backend"`
	Method     string       `yaml:"method"`
	Iterations int          `yaml:"iterations"`
	Log        string       `yaml:"log"`
	Shapes     ShapesConfig `yaml:"shapes"`
}

// ShapesConfig describes a shape list as explicit "MxKxN" entries, a square
// range and a grid, concatenated in that order without duplicates. When all
// three are absent the default power-of-two grid is used.
type ShapesConfig struct {
	List   []string     `yaml:"list"`
	Square *SquareRange `yaml:"square"`
	Grid   *GridConfig  `yaml:"grid"`
}

type SquareRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	Step  int `yaml:"step"`
}

// GridConfig is an M×K×N product. Empty axes take shape.DefaultAxis. A zero
// MaxVolume takes shape.DefaultCutoff; a negative one disables the cutoff.
type GridConfig struct {
	M         []int `yaml:"m"`
	K         []int `yaml:"k"`
	N         []int `yaml:"n"`
	MaxVolume int   `yaml:"maxVolume"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() *Config {
	p := profiler.DefaultOptions()

	var c Config
	c.Logger.Verbosity = "info"
	c.Logger.Encoding = "console"
	c.Profiler = ProfilerConfig{
		Command:      p.Command,
		Flags:        p.Flags,
		Program:      p.Program,
		Dir:          p.Dir,
		Prefix:       p.Prefix,
		Suffix:       p.Suffix,
		Correlation:  string(p.Correlation),
		PollInterval: p.PollInterval,
		PollTimeout:  p.PollTimeout,
	}
	c.Sweep = SweepConfig{
		Repeat:  10,
		Policy:  string(extract.First),
		WorkDir: "temp",
		Output:  "temp/gemm_benchmark.csv",
	}
	c.Verify = VerifyConfig{
		Atol:       verify.DefaultAtol,
		Rtol:       verify.DefaultRtol,
		Backend:    gpu.BackendBlocked,
		Method:     string(verify.Full),
		Iterations: verify.DefaultIterations,
		Log:        "temp/verify_results.txt",
	}
	return &c
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zap.ParseAtomicLevel(c.Logger.Verbosity); err != nil {
		errs = append(errs, fmt.Errorf("logger.verbosity: %w", err))
	}
	switch c.Logger.Encoding {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logger.encoding: unknown encoding %q", c.Logger.Encoding))
	}
	if _, err := profiler.NewRunner(c.ProfilerOptions(), zap.NewNop()); err != nil {
		errs = append(errs, fmt.Errorf("profiler: %w", err))
	}
	if c.Sweep.Repeat <= 0 {
		errs = append(errs, fmt.Errorf("sweep.repeat must be positive, got %d", c.Sweep.Repeat))
	}
	if _, err := extract.ParsePolicy(c.Sweep.Policy); err != nil {
		errs = append(errs, fmt.Errorf("sweep.policy: %w", err))
	}
	if c.Sweep.Pause < 0 {
		errs = append(errs, fmt.Errorf("sweep.pause must not be negative"))
	}
	if c.Verify.Atol < 0 || c.Verify.Rtol < 0 {
		errs = append(errs, fmt.Errorf("verify tolerances must not be negative"))
	}
	if _, err := verify.ParseMethod(c.Verify.Method); err != nil {
		errs = append(errs, fmt.Errorf("verify.method: %w", err))
	}
	if c.Verify.Iterations < 0 {
		errs = append(errs, fmt.Errorf("verify.iterations must not be negative"))
	}
	if c.Verify.Backend != "" && !knownBackend(c.Verify.Backend) {
		errs = append(errs, fmt.Errorf("verify.backend: unknown backend %q (available: %v)", c.Verify.Backend, gpu.Backends()))
	}
	if _, err := c.Sweep.Shapes.Enumerate(); err != nil {
		errs = append(errs, fmt.Errorf("sweep.shapes: %w", err))
	}
	if _, err := c.Verify.Shapes.Enumerate(); err != nil {
		errs = append(errs, fmt.Errorf("verify.shapes: %w", err))
	}
	return errors.Join(errs...)
}

// ProfilerOptions converts the profiler section for profiler.NewRunner.
func (c *Config) ProfilerOptions() profiler.Options {
	p := c.Profiler
	return profiler.Options{
		Command:      p.Command,
		Flags:        p.Flags,
		Program:      p.Program,
		Dir:          p.Dir,
		Prefix:       p.Prefix,
		Suffix:       p.Suffix,
		Correlation:  profiler.Correlation(p.Correlation),
		PollInterval: p.PollInterval,
		PollTimeout:  p.PollTimeout,
	}
}

// CompileKernels resolves the sweep's kernel patterns. A kernels file takes
// precedence over the inline list.
func (s SweepConfig) CompileKernels() ([]extract.Kernel, error) {
	if s.KernelsFile != "" {
		return extract.LoadKernelList(s.KernelsFile)
	}
	if len(s.Kernels) == 0 {
		return nil, extract.ErrEmptyKernelList
	}
	return extract.CompileAll(s.Kernels)
}

// Enumerate expands the configured shapes.
func (sc ShapesConfig) Enumerate() ([]shape.Shape, error) {
	if len(sc.List) == 0 && sc.Square == nil && sc.Grid == nil {
		return shape.Grid(shape.DefaultAxis, shape.DefaultAxis, shape.DefaultAxis, shape.DefaultCutoff), nil
	}

	explicit, err := shape.ParseAll(sc.List)
	if err != nil {
		return nil, err
	}

	var square []shape.Shape
	if r := sc.Square; r != nil {
		if r.Start <= 0 || r.Step <= 0 || r.End < r.Start {
			return nil, fmt.Errorf("invalid square range start=%d end=%d step=%d", r.Start, r.End, r.Step)
		}
		square = shape.Square(r.Start, r.End, r.Step)
	}

	var grid []shape.Shape
	if g := sc.Grid; g != nil {
		maxVolume := g.MaxVolume
		if maxVolume == 0 {
			maxVolume = shape.DefaultCutoff
		}
		grid = shape.Grid(axis(g.M), axis(g.K), axis(g.N), maxVolume)
	}

	return shape.Concat(explicit, square, grid), nil
}

func axis(values []int) []int {
	if len(values) == 0 {
		return shape.DefaultAxis
	}
	return values
}

func knownBackend(name string) bool {
	for _, b := range gpu.Backends() {
		if b == name {
			return true
		}
	}
	return false
}
