package verify

import (
	"math/rand"

	"github.com/x448/float16"
)

// Generator produces row-major input matrices.
type Generator interface {
	Matrix(rows, cols int) []float32
}

// HalfNormal draws standard normal values and rounds them to IEEE half
// precision, so both products see exactly the fp16 inputs a GPU kernel would.
type HalfNormal struct {
	rng *rand.Rand
}

// NewHalfNormal returns a generator seeded with seed.
func NewHalfNormal(seed int64) *HalfNormal {
	return &HalfNormal{rng: rand.New(rand.NewSource(seed))}
}

func (g *HalfNormal) Matrix(rows, cols int) []float32 {
	out := make([]float32, rows*cols)
	for i := range out {
		out[i] = float16.Fromfloat32(float32(g.rng.NormFloat64())).Float32()
	}
	return out
}

// Constant fills every element with the same value.
type Constant float32

func (c Constant) Matrix(rows, cols int) []float32 {
	out := make([]float32, rows*cols)
	for i := range out {
		out[i] = float32(c)
	}
	return out
}
