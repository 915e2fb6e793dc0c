package verify

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultIterations bounds the false-pass rate of a Freivalds check at 2^-10.
const DefaultIterations = 10

// Method selects how a candidate product is checked.
type Method string

const (
	// Full compares every element against the reference product.
	Full Method = "full"
	// Freivalds compares A(Br) with Cr for random 0/1 vectors r. It costs
	// O(mk+kn+mn) per random vector instead of O(mkn) for the reference product.
	Freivalds Method = "freivalds"
)

// ParseMethod validates a method name. An empty name selects Full.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case "", Full:
		return Full, nil
	case Freivalds:
		return Freivalds, nil
	default:
		return "", fmt.Errorf("unknown verification method: %s", name)
	}
}

// FreivaldsCheck probabilistically checks c = a*b. Each iteration draws a random
// 0/1 vector r and requires |A(Br) - Cr|_i <= sum_j r_j (atol + rtol*|c_ij|),
// the elementwise tolerance summed over the selected columns. It returns the
// largest row difference seen.
func FreivaldsCheck(a, b, c []float32, m, k, n, iterations int, atol, rtol float64, rng *rand.Rand) (bool, float64) {
	if len(a) != m*k || len(b) != k*n || len(c) != m*n {
		return false, math.Inf(1)
	}
	am := mat.NewDense(m, k, widen(a))
	bm := mat.NewDense(k, n, widen(b))
	cm := mat.NewDense(m, n, widen(c))

	var absC mat.Dense
	absC.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, cm)

	r := mat.NewVecDense(n, nil)
	var br, abr, cr, bound mat.VecDense
	maxDiff := 0.0
	for it := 0; it < iterations; it++ {
		ones := 0.0
		for j := 0; j < n; j++ {
			v := float64(rng.Intn(2))
			r.SetVec(j, v)
			ones += v
		}

		br.MulVec(bm, r)
		abr.MulVec(am, &br)
		cr.MulVec(cm, r)
		bound.MulVec(&absC, r)

		for i := 0; i < m; i++ {
			diff := math.Abs(abr.AtVec(i) - cr.AtVec(i))
			if math.IsNaN(diff) {
				return false, math.NaN()
			}
			maxDiff = max(maxDiff, diff)
			if diff > ones*atol+rtol*bound.AtVec(i) {
				return false, maxDiff
			}
		}
	}
	return true, maxDiff
}
