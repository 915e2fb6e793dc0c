package verify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fxnlabs/gemmbench/internal/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"go.uber.org/zap"
)

// exact multiplies in float64 and rounds once, so it always matches Reference.
var exact = MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
	ref := Reference(a, b, m, k, n)
	out := make([]float32, len(ref))
	for i, v := range ref {
		out[i] = float32(v)
	}
	return out, nil
})

type recordCollector struct {
	records []Record
}

func (c *recordCollector) Write(rec Record) error {
	c.records = append(c.records, rec)
	return nil
}

func TestCheck(t *testing.T) {
	log := zap.NewNop()
	unit := shape.Shape{M: 1, K: 1, N: 1}

	t.Run("matching candidate passes", func(t *testing.T) {
		c := New(exact, Options{Generator: Constant(2)}, log)
		rec := c.Check(unit)
		assert.True(t, rec.Pass)
		assert.Empty(t, rec.Err)
		assert.Equal(t, unit, rec.Shape)
	})

	t.Run("candidate error is recorded", func(t *testing.T) {
		failing := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			return nil, errors.New("unsupported size")
		})
		rec := New(failing, Options{Generator: Constant(2)}, log).Check(unit)
		assert.False(t, rec.Pass)
		assert.Equal(t, "unsupported size", rec.Err)
	})

	t.Run("candidate panic is recorded", func(t *testing.T) {
		panicking := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			panic("illegal memory access")
		})
		rec := New(panicking, Options{Generator: Constant(2)}, log).Check(unit)
		assert.False(t, rec.Pass)
		assert.Equal(t, "illegal memory access", rec.Err)
	})

	t.Run("wrong values fail without exception text", func(t *testing.T) {
		off := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			return []float32{4.5}, nil
		})
		rec := New(off, Options{Generator: Constant(2)}, log).Check(unit)
		assert.False(t, rec.Pass)
		assert.Empty(t, rec.Err)
		assert.InDelta(t, 0.5, rec.MaxAbsDiff, 1e-9)
	})

	t.Run("wrong result size", func(t *testing.T) {
		short := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			return []float32{1}, nil
		})
		rec := New(short, Options{Generator: Constant(1)}, log).Check(shape.Shape{M: 2, K: 2, N: 2})
		assert.False(t, rec.Pass)
		assert.Contains(t, rec.Err, "result size mismatch")
	})

	t.Run("random rectangular inputs", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Generator = NewHalfNormal(1)
		rec := New(exact, opts, log).Check(shape.Shape{M: 3, K: 17, N: 5})
		assert.True(t, rec.Pass)
	})

	t.Run("default options use 1e-3", func(t *testing.T) {
		c := New(exact, DefaultOptions(), log)
		assert.Equal(t, DefaultAtol, c.opts.Atol)
		assert.Equal(t, DefaultRtol, c.opts.Rtol)
		assert.NotNil(t, c.opts.Generator)
	})

	t.Run("zero tolerances are kept", func(t *testing.T) {
		near := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			return []float32{4.0005}, nil
		})
		c := New(near, Options{Generator: Constant(2)}, log)
		assert.Zero(t, c.opts.Atol)
		assert.Zero(t, c.opts.Rtol)
		assert.False(t, c.Check(unit).Pass)

		assert.True(t, New(near, Options{Atol: 1e-3, Generator: Constant(2)}, log).Check(unit).Pass)
		assert.True(t, New(near, Options{Rtol: 1e-3, Generator: Constant(2)}, log).Check(unit).Pass)
	})
}

func TestRun(t *testing.T) {
	shapes := []shape.Shape{{M: 9216, K: 1, N: 1}, {M: 1, K: 9216, N: 1}, {M: 2, K: 2, N: 2}}
	failBig := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
		if m == 2 {
			return nil, errors.New("shape mismatch")
		}
		return exact(a, b, m, k, n)
	})

	sink := &recordCollector{}
	summary, err := New(failBig, Options{Generator: Constant(1)}, zap.NewNop()).Run(context.Background(), shapes, sink)
	require.NoError(t, err)

	require.Len(t, sink.records, 3)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, PerDimensionMax{M: 9216, K: 9216, N: 1}, summary.Max)
	assert.Equal(t, "shape mismatch", sink.records[2].Err)

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(exact, Options{Generator: Constant(1)}, zap.NewNop()).Run(ctx, shapes, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAllClose(t *testing.T) {
	ok, diff := AllClose([]float32{1, 2}, []float64{1, 2}, 1e-3, 1e-3)
	assert.True(t, ok)
	assert.Zero(t, diff)

	// tolerance grows with the reference magnitude
	ok, _ = AllClose([]float32{1000.5}, []float64{1000}, 1e-3, 1e-3)
	assert.True(t, ok)
	ok, _ = AllClose([]float32{1.01}, []float64{1}, 1e-3, 1e-3)
	assert.False(t, ok)

	ok, diff = AllClose([]float32{float32(math.NaN())}, []float64{1}, 1e-3, 1e-3)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(diff))

	ok, _ = AllClose([]float32{1}, []float64{1, 2}, 1e-3, 1e-3)
	assert.False(t, ok)
}

func TestReference(t *testing.T) {
	got := Reference([]float32{1, 2, 3, 4}, []float32{5, 6, 7, 8}, 2, 2, 2)
	assert.Equal(t, []float64{19, 22, 43, 50}, got)
}

func TestHalfNormal(t *testing.T) {
	a := NewHalfNormal(42).Matrix(4, 8)
	b := NewHalfNormal(42).Matrix(4, 8)
	assert.Equal(t, a, b)
	require.Len(t, a, 32)
	for _, v := range a {
		assert.Equal(t, v, float16.Fromfloat32(v).Float32())
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Record{
		{Shape: shape.Shape{M: 4, K: 1, N: 8}, Pass: true},
		{Shape: shape.Shape{M: 9216, K: 9216, N: 9216}, Pass: false},
		{Shape: shape.Shape{M: 1, K: 16, N: 2}, Pass: true},
	})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, PerDimensionMax{M: 4, K: 16, N: 8}, s.Max)
}

func TestFreivalds(t *testing.T) {
	log := zap.NewNop()
	s := shape.Shape{M: 12, K: 40, N: 8}

	t.Run("matching candidate passes", func(t *testing.T) {
		c := New(exact, Options{Atol: DefaultAtol, Rtol: DefaultRtol, Method: Freivalds, Seed: 5}, log)
		assert.Equal(t, DefaultIterations, c.opts.Iterations)
		rec := c.Check(s)
		assert.True(t, rec.Pass)
		assert.Less(t, rec.MaxAbsDiff, 1e-3)
	})

	t.Run("shifted result fails", func(t *testing.T) {
		shifted := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			out, _ := exact(a, b, m, k, n)
			for i := range out {
				out[i]++
			}
			return out, nil
		})
		rec := New(shifted, Options{Atol: DefaultAtol, Rtol: DefaultRtol, Method: Freivalds, Seed: 5}, log).Check(s)
		assert.False(t, rec.Pass)
		assert.Empty(t, rec.Err)
	})

	t.Run("float32 accumulation stays within tolerance", func(t *testing.T) {
		naive := MultiplierFunc(func(a, b []float32, m, k, n int) ([]float32, error) {
			out := make([]float32, m*n)
			for i := 0; i < m; i++ {
				for j := 0; j < n; j++ {
					var sum float32
					for l := 0; l < k; l++ {
						sum += a[i*k+l] * b[l*n+j]
					}
					out[i*n+j] = sum
				}
			}
			return out, nil
		})
		rec := New(naive, Options{Atol: DefaultAtol, Rtol: DefaultRtol, Method: Freivalds, Seed: 9}, log).Check(shape.Shape{M: 16, K: 256, N: 16})
		assert.True(t, rec.Pass)
	})

	t.Run("size mismatch", func(t *testing.T) {
		ok, diff := FreivaldsCheck([]float32{1}, []float32{1}, nil, 1, 1, 1, 1, DefaultAtol, DefaultRtol, nil)
		assert.False(t, ok)
		assert.True(t, math.IsInf(diff, 1))
	})

	t.Run("NaN fails", func(t *testing.T) {
		nan := float32(math.NaN())
		rng := New(exact, Options{Seed: 1}, log).rng
		ok, _ := FreivaldsCheck([]float32{1}, []float32{1}, []float32{nan}, 1, 1, 1, 20, DefaultAtol, DefaultRtol, rng)
		assert.False(t, ok)
	})
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Full, m)

	m, err = ParseMethod("freivalds")
	require.NoError(t, err)
	assert.Equal(t, Freivalds, m)

	_, err = ParseMethod("sampled")
	assert.Error(t, err)
}
