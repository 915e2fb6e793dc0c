package shape

// DefaultCutoff bounds the default grid to triples with M*K*N below 1<<20.
const DefaultCutoff = 1024 * 1024

// DefaultAxis is the per-dimension value ladder of the default grid sweep.
var DefaultAxis = []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 7168, 8192, 9216}

// Grid returns every (m, k, n) drawn from ms, ks and ns, in that nesting order,
// whose volume is strictly below maxVolume. A maxVolume <= 0 disables the cutoff.
func Grid(ms, ks, ns []int, maxVolume int) []Shape {
	var shapes []Shape
	for _, m := range ms {
		for _, k := range ks {
			for _, n := range ns {
				s := Shape{M: m, K: k, N: n}
				if !s.Valid() {
					continue
				}
				if maxVolume > 0 && s.Volume() >= maxVolume {
					continue
				}
				shapes = append(shapes, s)
			}
		}
	}
	return shapes
}

// Square returns (n, n, n) for n = start, start+step, ... up to and including end.
func Square(start, end, step int) []Shape {
	if start <= 0 || step <= 0 || end < start {
		return nil
	}
	shapes := make([]Shape, 0, (end-start)/step+1)
	for n := start; n <= end; n += step {
		shapes = append(shapes, Shape{M: n, K: n, N: n})
	}
	return shapes
}

// Powers returns 1, 2, 4, ... up to and including limit.
func Powers(limit int) []int {
	var values []int
	for v := 1; v <= limit; v *= 2 {
		values = append(values, v)
	}
	return values
}

// Concat joins shape lists and drops repeats, keeping the first occurrence.
func Concat(lists ...[]Shape) []Shape {
	seen := make(map[Shape]struct{})
	var out []Shape
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
