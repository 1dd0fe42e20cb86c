package matcher

import (
	"fmt"
	"math"

	"artscope/internal/domain"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
// It fails with domain.ErrDimensionMismatch when the lengths differ,
// domain.ErrEmptyQuery for empty vectors and domain.ErrDegenerateVector when
// either vector has zero magnitude or non-finite components.
func CosineSimilarity(a, b domain.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	sa, err := sumSquares(a)
	if err != nil {
		return 0, err
	}
	sb, err := sumSquares(b)
	if err != nil {
		return 0, err
	}
	return cosine(a, sa, b, sb)
}

// sumSquares returns the squared L2 norm accumulated in float64.
func sumSquares(v domain.Embedding) (float64, error) {
	if len(v) == 0 {
		return 0, domain.ErrEmptyQuery
	}
	var s float64
	for _, x := range v {
		f := float64(x)
		s += f * f
	}
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, domain.ErrDegenerateVector
	}
	return s, nil
}

// cosine expects equal lengths and non-zero squared norms. sqrt(sa*sb) keeps
// identical vectors at exactly 1 and the result symmetric in its arguments.
func cosine(a domain.Embedding, sa float64, b domain.Embedding, sb float64) (float64, error) {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	sim := dot / math.Sqrt(sa*sb)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, domain.ErrDegenerateVector
	}
	// rounding noise can push |sim| a hair past 1
	return math.Max(-1, math.Min(1, sim)), nil
}
