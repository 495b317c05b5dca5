// Package cluster partitions equal-length feature vectors into k labels.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

// Clusterer assigns each vector a label in [0,k). Implementations must be
// deterministic for a fixed seed.
type Clusterer interface {
	Cluster(vectors [][]float64, k int, seed int64) ([]int, error)
}

// Func adapts a plain function to Clusterer.
type Func func(vectors [][]float64, k int, seed int64) ([]int, error)

func (f Func) Cluster(vectors [][]float64, k int, seed int64) ([]int, error) {
	return f(vectors, k, seed)
}

// KMeans is Lloyd's algorithm with k-means++ seeding.
type KMeans struct {
	MaxIter int // 0 means 100
}

// Cluster implements Clusterer. Every label is in [0,k); a cluster can only
// stay empty when the input has fewer than k distinct vectors.
func (km KMeans) Cluster(vectors [][]float64, k int, seed int64) ([]int, error) {
	if err := check(vectors, k); err != nil {
		return nil, err
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}
	rng := rand.New(rand.NewSource(seed))

	centers := seedCenters(vectors, k, rng)
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}
	counts := make([]int, k)
	for iter := 0; iter < maxIter; iter++ {
		if !assign(vectors, centers, labels) {
			break
		}
		// recompute centroids
		for c := range centers {
			for j := range centers[c] {
				centers[c][j] = 0
			}
			counts[c] = 0
		}
		for i, v := range vectors {
			floats.Add(centers[labels[i]], v)
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centers[c])
				continue
			}
			// re-seed an empty cluster with the point farthest from its centroid
			far, farDist := -1, 0.0
			for i, v := range vectors {
				if counts[labels[i]] < 2 {
					continue
				}
				if d := floats.Distance(v, centers[labels[i]], 2); d > farDist {
					far, farDist = i, d
				}
			}
			if far < 0 {
				continue
			}
			copy(centers[c], vectors[far])
			counts[labels[far]]--
			labels[far] = c
			counts[c] = 1
		}
	}
	return labels, nil
}

func check(vectors [][]float64, k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", grid.ErrInvalidArgument, k)
	}
	if len(vectors) < k {
		return fmt.Errorf("%w: %d vectors cannot form %d clusters", grid.ErrInvalidArgument, len(vectors), k)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: vectors are empty", grid.ErrInvalidArgument)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has length %d, expected %d", grid.ErrShapeMismatch, i, len(v), dim)
		}
	}
	return nil
}

// seedCenters picks k initial centers with the k-means++ rule.
func seedCenters(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	first := vectors[rng.Intn(len(vectors))]
	centers = append(centers, append([]float64(nil), first...))

	d2 := make([]float64, len(vectors))
	for i, v := range vectors {
		d := floats.Distance(v, first, 2)
		d2[i] = d * d
	}
	for len(centers) < k {
		total := floats.Sum(d2)
		next := 0
		if total > 0 {
			r := rng.Float64() * total
			for i, w := range d2 {
				if w == 0 {
					continue
				}
				next = i
				if r -= w; r < 0 {
					break
				}
			}
		} else {
			next = rng.Intn(len(vectors))
		}
		c := append([]float64(nil), vectors[next]...)
		centers = append(centers, c)
		for i, v := range vectors {
			d := floats.Distance(v, c, 2)
			d2[i] = math.Min(d2[i], d*d)
		}
	}
	return centers
}

// assign moves every vector to its nearest center, lowest index on ties, and
// reports whether any label changed.
func assign(vectors, centers [][]float64, labels []int) bool {
	changed := false
	for i, v := range vectors {
		best, bestDist := 0, math.Inf(1)
		for c, ctr := range centers {
			if d := floats.Distance(v, ctr, 2); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}
