// Package verify checks a candidate GEMM against a gonum reference product
// over a list of shapes.
package verify

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fxnlabs/gemmbench/internal/metrics"
	"github.com/fxnlabs/gemmbench/internal/shape"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Default tolerances, matching torch.allclose as used by the kernel's own tests.
const (
	DefaultAtol = 1e-3
	DefaultRtol = 1e-3
)

// Multiplier is the candidate under test: C = A*B with A m×k and B k×n, all
// row-major.
type Multiplier interface {
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)
}

// MultiplierFunc adapts a function to Multiplier.
type MultiplierFunc func(a, b []float32, m, k, n int) ([]float32, error)

func (f MultiplierFunc) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	return f(a, b, m, k, n)
}

// Options configures a Checker.
type Options struct {
	Atol      float64
	Rtol      float64
	Generator Generator
	// Method defaults to Full.
	Method Method
	// Iterations is the number of random vectors per Freivalds check.
	Iterations int
	// Seed drives the inputs and the Freivalds vectors; 0 seeds from the clock.
	Seed int64
}

// Record is the outcome for one shape. Err holds the candidate's error or
// panic text when it failed to produce a result.
type Record struct {
	Shape      shape.Shape
	Pass       bool
	Err        string
	MaxAbsDiff float64
}

// RecordSink receives one record per checked shape.
type RecordSink interface {
	Write(rec Record) error
}

// Checker compares the candidate against the reference product.
type Checker struct {
	candidate Multiplier
	opts      Options
	rng       *rand.Rand
	log       *zap.Logger
}

// DefaultOptions returns Options with the default tolerances.
func DefaultOptions() Options {
	return Options{Atol: DefaultAtol, Rtol: DefaultRtol}
}

// New returns a Checker. Tolerances are used as given, so zero means an
// exact comparison on that term; start from DefaultOptions for 1e-3.
func New(candidate Multiplier, opts Options, log *zap.Logger) *Checker {
	if opts.Method == "" {
		opts.Method = Full
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.Generator == nil {
		opts.Generator = NewHalfNormal(seed)
	}
	return &Checker{
		candidate: candidate,
		opts:      opts,
		rng:       rand.New(rand.NewSource(seed + 1)),
		log:       log.Named("verify"),
	}
}

// Check runs one shape. Candidate errors and panics are turned into a
// failing record rather than propagated.
func (c *Checker) Check(s shape.Shape) (rec Record) {
	rec.Shape = s
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rec.Pass = false
			rec.Err = fmt.Sprint(r)
		}
		metrics.VerifyDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	a := c.opts.Generator.Matrix(s.M, s.K)
	b := c.opts.Generator.Matrix(s.K, s.N)

	got, err := c.candidate.MatrixMultiply(a, b, s.M, s.K, s.N)
	if err != nil {
		rec.Err = err.Error()
		return rec
	}
	if len(got) != s.M*s.N {
		rec.Err = fmt.Sprintf("result size mismatch: expected %d, got %d", s.M*s.N, len(got))
		return rec
	}

	if c.opts.Method == Freivalds {
		rec.Pass, rec.MaxAbsDiff = FreivaldsCheck(a, b, got, s.M, s.K, s.N, c.opts.Iterations, c.opts.Atol, c.opts.Rtol, c.rng)
		return rec
	}
	want := Reference(a, b, s.M, s.K, s.N)
	rec.Pass, rec.MaxAbsDiff = AllClose(got, want, c.opts.Atol, c.opts.Rtol)
	return rec
}

// Run checks every shape in order, writing each record to sink. It stops
// early only when ctx is done.
func (c *Checker) Run(ctx context.Context, shapes []shape.Shape, sink RecordSink) (Summary, error) {
	var summary Summary
	for _, s := range shapes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rec := c.Check(s)
		summary.Add(rec)
		if rec.Pass {
			metrics.VerifyCasesTotal.WithLabelValues("pass").Inc()
			c.log.Info("PASS", zap.Stringer("shape", s), zap.Float64("max_abs_diff", rec.MaxAbsDiff))
		} else {
			metrics.VerifyCasesTotal.WithLabelValues("fail").Inc()
			c.log.Warn("FAIL", zap.Stringer("shape", s), zap.Float64("max_abs_diff", rec.MaxAbsDiff), zap.String("exception", rec.Err))
		}

		if sink != nil {
			if err := sink.Write(rec); err != nil {
				c.log.Error("failed to write verification record", zap.Stringer("shape", s), zap.Error(err))
			}
		}
	}
	return summary, nil
}

// Reference computes A*B in float64 with gonum.
func Reference(a, b []float32, m, k, n int) []float64 {
	am := mat.NewDense(m, k, widen(a))
	bm := mat.NewDense(k, n, widen(b))
	var cm mat.Dense
	cm.Mul(am, bm)
	return cm.RawMatrix().Data
}

// AllClose reports whether |got-want| <= atol + rtol*|want| holds for every
// element, along with the largest absolute difference seen. NaN never
// compares close.
func AllClose(got []float32, want []float64, atol, rtol float64) (bool, float64) {
	if len(got) != len(want) {
		return false, math.Inf(1)
	}
	ok := true
	maxDiff := 0.0
	for i, w := range want {
		g := float64(got[i])
		diff := math.Abs(g - w)
		if math.IsNaN(diff) {
			ok = false
			maxDiff = math.NaN()
			continue
		}
		if diff > maxDiff {
			maxDiff = diff
		}
		if diff > atol+rtol*math.Abs(w) {
			ok = false
		}
	}
	return ok, maxDiff
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
