package shape

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is the size of one matrix multiply: A is M×K, B is K×N, C is M×N.
type Shape struct {
	M int `yaml:"m" json:"m"`
	K int `yaml:"k" json:"k"`
	N int `yaml:"n" json:"n"`
}

// String renders the shape the way the verification log expects it.
func (s Shape) String() string {
	return fmt.Sprintf("M=%d, K=%d, N=%d", s.M, s.K, s.N)
}

// Volume returns M*K*N.
func (s Shape) Volume() int {
	return s.M * s.K * s.N
}

// IsZero reports whether s is the zero value, used for runs that are not tied to a shape.
func (s Shape) IsZero() bool {
	return s == Shape{}
}

// Valid reports whether every dimension is positive.
func (s Shape) Valid() bool {
	return s.M > 0 && s.K > 0 && s.N > 0
}

// Tag is a filesystem friendly name such as M1_K7168_N9216.
func (s Shape) Tag() string {
	return fmt.Sprintf("M%d_K%d_N%d", s.M, s.K, s.N)
}

// Parse reads a shape written as MxKxN, e.g. "1x7168x9216".
func Parse(text string) (Shape, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), "x")
	if len(parts) != 3 {
		return Shape{}, fmt.Errorf("invalid shape %q: expected MxKxN", text)
	}

	dims := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Shape{}, fmt.Errorf("invalid shape %q: %w", text, err)
		}
		dims[i] = v
	}

	s := Shape{M: dims[0], K: dims[1], N: dims[2]}
	if !s.Valid() {
		return Shape{}, fmt.Errorf("invalid shape %q: dimensions must be positive", text)
	}
	return s, nil
}

// ParseAll parses every entry with Parse and stops at the first error.
func ParseAll(texts []string) ([]Shape, error) {
	shapes := make([]Shape, 0, len(texts))
	for _, t := range texts {
		s, err := Parse(t)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}
