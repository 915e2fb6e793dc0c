package verify

// PerDimensionMax holds the largest passing M, the largest passing K and the
// largest passing N, each taken independently over all passing shapes. It is
// not a shape: the three maxima may come from different cases, so it says
// nothing about whether M×K×N at these values passes.
type PerDimensionMax struct {
	M int
	K int
	N int
}

// Summary counts verification outcomes.
type Summary struct {
	Total  int
	Passed int
	Failed int
	// Max is only meaningful when Passed > 0.
	Max PerDimensionMax
}

// Add folds one record into the summary.
func (s *Summary) Add(rec Record) {
	s.Total++
	if !rec.Pass {
		s.Failed++
		return
	}
	s.Passed++
	s.Max.M = max(s.Max.M, rec.Shape.M)
	s.Max.K = max(s.Max.K, rec.Shape.K)
	s.Max.N = max(s.Max.N, rec.Shape.N)
}

// Summarize builds a summary from records, e.g. ones read back from a log.
func Summarize(records []Record) Summary {
	var s Summary
	for _, rec := range records {
		s.Add(rec)
	}
	return s
}
