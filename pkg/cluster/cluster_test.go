package cluster

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

func blobs(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, []float64{rng.Float64() * 0.1, rng.Float64() * 0.1})
	}
	for i := 0; i < n; i++ {
		out = append(out, []float64{5 + rng.Float64()*0.1, 5 + rng.Float64()*0.1})
	}
	return out
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	vecs := blobs(20, 3)
	labels, err := KMeans{}.Cluster(vecs, 2, 7)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(labels) != len(vecs) {
		t.Fatalf("expected %d labels, got %d", len(vecs), len(labels))
	}
	first, second := labels[0], labels[20]
	if first == second {
		t.Fatalf("blobs share label %d", first)
	}
	for i, l := range labels {
		want := first
		if i >= 20 {
			want = second
		}
		if l != want {
			t.Fatalf("vector %d labelled %d, want %d", i, l, want)
		}
	}
}

func TestKMeansDeterministic(t *testing.T) {
	vecs := blobs(30, 11)
	a, err := KMeans{}.Cluster(vecs, 4, 99)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	b, err := KMeans{}.Cluster(vecs, 4, 99)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("label %d differs between runs with the same seed", i)
		}
		if a[i] < 0 || a[i] >= 4 {
			t.Fatalf("label %d out of range: %d", i, a[i])
		}
	}
}

func TestKMeansDenseLabels(t *testing.T) {
	vecs := [][]float64{{0}, {1}, {2}, {10}, {11}, {20}}
	labels, err := KMeans{}.Cluster(vecs, 6, 1)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	seen := map[int]bool{}
	for _, l := range labels {
		seen[l] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected every distinct vector in its own cluster, got %v", labels)
	}
}

func TestKMeansDuplicateInput(t *testing.T) {
	vecs := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	labels, err := KMeans{}.Cluster(vecs, 2, 5)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	for _, l := range labels {
		if l < 0 || l >= 2 {
			t.Fatalf("label out of range: %v", labels)
		}
	}
}

func TestKMeansErrors(t *testing.T) {
	if _, err := (KMeans{}).Cluster([][]float64{{1}}, 0, 1); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for k=0, got %v", err)
	}
	if _, err := (KMeans{}).Cluster([][]float64{{1}}, 2, 1); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for k > n, got %v", err)
	}
	if _, err := (KMeans{}).Cluster([][]float64{{1, 2}, {1}}, 1, 1); !errors.Is(err, grid.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var c Clusterer = Func(func(v [][]float64, k int, seed int64) ([]int, error) {
		return make([]int, len(v)), nil
	})
	labels, err := c.Cluster([][]float64{{1}, {2}}, 1, 0)
	if err != nil || len(labels) != 2 {
		t.Fatalf("unexpected result %v, %v", labels, err)
	}
}
