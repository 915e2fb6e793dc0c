package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimmedMean(t *testing.T) {
	testCases := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "single value", values: []float64{0.5}, expected: 0.5},
		{name: "two values use plain mean", values: []float64{1, 2}, expected: 1.5},
		{name: "three values keep the middle", values: []float64{3, 1, 2}, expected: 2},
		{name: "outliers dropped", values: []float64{1, 100, 2, 3, -50}, expected: 2},
		{name: "duplicate minimum dropped once", values: []float64{1, 1, 1, 4}, expected: 1},
		{name: "duplicate maximum dropped once", values: []float64{2, 5, 5, 5}, expected: 5},
		{name: "all equal", values: []float64{7, 7, 7}, expected: 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TrimmedMean(tc.values)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, got, 1e-12)
		})
	}

	t.Run("empty input", func(t *testing.T) {
		_, err := TrimmedMean(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("input order is preserved", func(t *testing.T) {
		values := []float64{3, 1, 2}
		_, err := TrimmedMean(values)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 1, 2}, values)
	})

	t.Run("deterministic", func(t *testing.T) {
		values := []float64{0.3, 0.1, 0.7, 0.2, 0.9}
		a, _ := TrimmedMean(values)
		b, _ := TrimmedMean(values)
		assert.Equal(t, a, b)
	})
}

func TestAggregate(t *testing.T) {
	t.Run("no valid samples", func(t *testing.T) {
		r := Aggregate([]Sample{Missing(), Missing()})
		assert.False(t, r.Available)
		assert.Zero(t, r.Valid)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.False(t, Aggregate(nil).Available)
	})

	t.Run("missing samples are filtered before trimming", func(t *testing.T) {
		r := Aggregate([]Sample{Of(1.0), Missing(), Of(2.0), Of(3.0), Missing()})
		require.True(t, r.Available)
		assert.Equal(t, 3, r.Valid)
		assert.InDelta(t, 2.0, r.Seconds, 1e-12)
	})

	t.Run("two valid samples among missing ones", func(t *testing.T) {
		r := Aggregate([]Sample{Missing(), Of(1.0), Of(4.0)})
		require.True(t, r.Available)
		assert.Equal(t, 2, r.Valid)
		assert.InDelta(t, 2.5, r.Seconds, 1e-12)
	})
}

func TestValues(t *testing.T) {
	assert.Equal(t, []float64{1, 3}, Values([]Sample{Of(1), Missing(), Of(3)}))
	assert.Empty(t, Values(nil))
}
