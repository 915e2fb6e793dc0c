package extract

import "fmt"

// Policy decides which timing represents a trial when a kernel label
// matches more than one record in one artifact.
type Policy string

const (
	// First keeps the earliest record in the artifact.
	First Policy = "first"
	// Min keeps the fastest record.
	Min Policy = "min"
)

// ParsePolicy validates a policy name. An empty name selects First.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", First:
		return First, nil
	case Min:
		return Min, nil
	default:
		return "", fmt.Errorf("unknown selection policy: %s", name)
	}
}

// Select reduces the matches of one trial to one value. ok is false when
// there were no matches.
func Select(values []float64, policy Policy) (v float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	if policy != Min {
		return values[0], true
	}
	v = values[0]
	for _, x := range values[1:] {
		if x < v {
			v = x
		}
	}
	return v, true
}
