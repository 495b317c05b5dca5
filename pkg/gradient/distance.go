package gradient

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

// Distance compares two normalized histograms of equal length. Implementations
// must be symmetric, d(a,b) == d(b,a), so swapping the half-discs of an
// orientation leaves the gradient unchanged.
type Distance func(a, b []float64) float64

// ChiSquared is 0.5 * sum((a-b)^2 / (a+b)) over bins where a+b is nonzero.
func ChiSquared(a, b []float64) float64 {
	sum := 0.0
	for i, av := range a {
		bv := b[i]
		den := av + bv
		if den == 0 {
			continue
		}
		diff := av - bv
		sum += diff * diff / den
	}
	return 0.5 * sum
}

// L1 is the sum of absolute bin differences.
func L1(a, b []float64) float64 { return floats.Distance(a, b, 1) }

// L2 is the Euclidean distance between the histograms.
func L2(a, b []float64) float64 { return floats.Distance(a, b, 2) }

// DistanceByName maps "chi2", "l1" and "l2" to their Distance.
func DistanceByName(name string) (Distance, error) {
	switch strings.ToLower(name) {
	case "chi2", "chisquared", "chi-squared", "":
		return ChiSquared, nil
	case "l1":
		return L1, nil
	case "l2":
		return L2, nil
	}
	return nil, fmt.Errorf("%w: unknown distance %q", grid.ErrInvalidArgument, name)
}
