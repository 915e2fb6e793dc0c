package gpu

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func allBackends(t *testing.T) []Backend {
	t.Helper()
	logger := zap.NewNop()
	backends := []Backend{NewCPUBackend(logger), NewBlockedBackend(logger)}
	for _, b := range backends {
		require.NoError(t, b.Initialize())
		t.Cleanup(func() { _ = b.Cleanup() })
	}
	return backends
}

func TestBackend_Lifecycle(t *testing.T) {
	logger := zap.NewNop()
	for _, backend := range []Backend{NewCPUBackend(logger), NewBlockedBackend(logger)} {
		t.Run(backend.Name(), func(t *testing.T) {
			assert.True(t, backend.IsAvailable())

			_, err := backend.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not initialized")

			require.NoError(t, backend.Initialize())
			require.NoError(t, backend.Initialize())

			info := backend.GetDeviceInfo()
			assert.Contains(t, info.Name, "CPU")
			assert.Greater(t, info.TotalMemory, int64(0))
			assert.Equal(t, "N/A", info.ComputeCapability)

			require.NoError(t, backend.Cleanup())
			_, err = backend.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
			assert.Error(t, err)
		})
	}
}

func TestParseMeminfo(t *testing.T) {
	text := "MemTotal:       16318480 kB\nMemFree:         1032592 kB\nMemAvailable:    9729888 kB\nHugePages_Total:       0\nbogus line\n"
	info, err := parseMeminfo(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, int64(16318480*1024), info["MemTotal"])
	assert.Equal(t, int64(9729888*1024), info["MemAvailable"])
	assert.Equal(t, int64(0), info["HugePages_Total"])
	assert.NotContains(t, info, "bogus line")

	_, err = readMeminfo(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestBackend_MatrixMultiply(t *testing.T) {
	testCases := []struct {
		name     string
		m, k, n  int
		a, b     []float32
		expected []float32
	}{
		{
			name: "single element",
			m:    1, k: 1, n: 1,
			a:        []float32{2},
			b:        []float32{3},
			expected: []float32{6},
		},
		{
			name: "simple 2x2",
			m:    2, k: 2, n: 2,
			a:        []float32{1, 2, 3, 4},
			b:        []float32{5, 6, 7, 8},
			expected: []float32{19, 22, 43, 50},
		},
		{
			name: "rectangular 2x3 by 3x2",
			m:    2, k: 3, n: 2,
			a:        []float32{1, 2, 3, 4, 5, 6},
			b:        []float32{7, 8, 9, 10, 11, 12},
			expected: []float32{58, 64, 139, 154},
		},
		{
			name: "row vector times column vector",
			m:    1, k: 3, n: 1,
			a:        []float32{1, 2, 3},
			b:        []float32{4, 5, 6},
			expected: []float32{32},
		},
		{
			name: "column vector times row vector",
			m:    3, k: 1, n: 3,
			a:        []float32{1, 2, 3},
			b:        []float32{4, 5, 6},
			expected: []float32{4, 5, 6, 8, 10, 12, 12, 15, 18},
		},
		{
			name: "negative values",
			m:    2, k: 2, n: 2,
			a:        []float32{-1, 2, -3, 4},
			b:        []float32{5, -6, -7, 8},
			expected: []float32{-19, 22, -43, 50},
		},
	}

	for _, backend := range allBackends(t) {
		for _, tc := range testCases {
			t.Run(backend.Name()+"/"+tc.name, func(t *testing.T) {
				got, err := backend.MatrixMultiply(tc.a, tc.b, tc.m, tc.k, tc.n)
				require.NoError(t, err)
				require.Len(t, got, len(tc.expected))
				for i := range tc.expected {
					assert.InDelta(t, tc.expected[i], got[i], 1e-5)
				}
			})
		}
	}
}

func TestBackend_DimensionErrors(t *testing.T) {
	for _, backend := range allBackends(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			_, err := backend.MatrixMultiply(make([]float32, 5), make([]float32, 6), 2, 3, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "matrix A size mismatch")

			_, err = backend.MatrixMultiply(make([]float32, 6), make([]float32, 5), 2, 3, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "matrix B size mismatch")

			_, err = backend.MatrixMultiply(nil, nil, 0, 3, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid dimensions")
		})
	}
}

func TestBlockedBackend_MatchesNaiveAcrossTileEdges(t *testing.T) {
	logger := zap.NewNop()
	naive := NewCPUBackend(logger)
	blocked := NewBlockedBackend(logger)
	require.NoError(t, naive.Initialize())
	require.NoError(t, blocked.Initialize())

	sizes := [][3]int{
		{BlockM, BlockK, BlockN},
		{BlockM + 1, BlockK + 1, BlockN + 1},
		{70, 33, 65},
		{1, 200, 3},
		{129, 7, 1},
	}
	for _, sz := range sizes {
		m, k, n := sz[0], sz[1], sz[2]
		t.Run(fmt.Sprintf("%dx%dx%d", m, k, n), func(t *testing.T) {
			a := make([]float32, m*k)
			b := make([]float32, k*n)
			for i := range a {
				a[i] = float32(i%13) / 13
			}
			for i := range b {
				b[i] = float32((i+5)%11) / 11
			}

			want, err := naive.MatrixMultiply(a, b, m, k, n)
			require.NoError(t, err)
			got, err := blocked.MatrixMultiply(a, b, m, k, n)
			require.NoError(t, err)

			require.Len(t, got, m*n)
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-4)
			}
		})
	}
}

func TestBackend_ExtremeMagnitudes(t *testing.T) {
	for _, backend := range allBackends(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			a := []float32{1e-10, 1e-10, 1e-10, 1e-10}
			b := []float32{1e10, 1e10, 1e10, 1e10}
			got, err := backend.MatrixMultiply(a, b, 2, 2, 2)
			require.NoError(t, err)
			for _, v := range got {
				assert.False(t, math.IsInf(float64(v), 0))
				assert.False(t, math.IsNaN(float64(v)))
			}
		})
	}
}

func TestManager(t *testing.T) {
	t.Run("defaults to blocked", func(t *testing.T) {
		m, err := NewManager("", nil)
		require.NoError(t, err)
		assert.Equal(t, BackendBlocked, m.GetBackendType())

		got, err := m.MatrixMultiply([]float32{1, 2, 3, 4}, []float32{5, 6, 7, 8}, 2, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []float32{19, 22, 43, 50}, got)
	})

	t.Run("named backend", func(t *testing.T) {
		m, err := NewManager(BackendNaive, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, BackendNaive, m.GetBackendType())
		assert.Contains(t, m.GetDeviceInfo().Name, "CPU")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewManager("rocblas", zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("cleanup", func(t *testing.T) {
		m, err := NewManager(BackendNaive, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, m.Cleanup())
		assert.Equal(t, "none", m.GetBackendType())
		assert.Equal(t, "No backend available", m.GetDeviceInfo().Name)

		_, err = m.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
		assert.Error(t, err)
	})

	assert.Equal(t, []string{BackendBlocked, BackendNaive}, Backends())
}
