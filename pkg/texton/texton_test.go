package texton

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/cluster"
	"github.com/Fepozopo/texgrad/pkg/filterbank"
	"github.com/Fepozopo/texgrad/pkg/grid"
)

func ramp(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, float64(i*cols+j))
		}
	}
	return m
}

func stripes(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := cols / 2; j < cols; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}

func TestConvolveIdentityAndShift(t *testing.T) {
	src := ramp(4, 5)
	id := mat.NewDense(3, 3, nil)
	id.Set(1, 1, 1)
	out, err := Convolve(src, id)
	if err != nil {
		t.Fatalf("convolve: %v", err)
	}
	if !mat.Equal(out, src) {
		t.Fatalf("identity kernel changed the input")
	}

	// a tap above the center pulls values from the row below
	shift := mat.NewDense(3, 3, nil)
	shift.Set(0, 1, 1)
	out, err = Convolve(src, shift)
	if err != nil {
		t.Fatalf("convolve: %v", err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			want := 0.0
			if i+1 < 4 {
				want = src.At(i+1, j)
			}
			if out.At(i, j) != want {
				t.Fatalf("out(%d,%d) = %g, want %g", i, j, out.At(i, j), want)
			}
		}
	}
}

func TestConvolveRejectsEvenKernel(t *testing.T) {
	if _, err := Convolve(ramp(3, 3), mat.NewDense(2, 3, nil)); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAssignShapeAndDeterminism(t *testing.T) {
	bank, err := filterbank.Build(2, filterbank.WithScales(1))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	feature := stripes(16, 16)
	a, err := Assign(context.Background(), feature, 3, bank, 3, WithSeed(4))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.Rows != 10 || a.Cols != 10 {
		t.Fatalf("expected 10x10 labels, got %dx%d", a.Rows, a.Cols)
	}
	for _, l := range a.Data {
		if l < 0 || l >= 3 {
			t.Fatalf("label out of range: %d", l)
		}
	}
	b, err := Assign(context.Background(), feature, 3, bank, 3, WithSeed(4), WithWorkers(1))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("label %d differs between identical runs", i)
		}
	}
}

func TestAssignStacksBankOrder(t *testing.T) {
	bank, err := filterbank.Build(2, filterbank.WithScales(2))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	feature := ramp(30, 30)
	border := 10
	var seen [][]float64
	fake := cluster.Func(func(v [][]float64, k int, seed int64) ([]int, error) {
		seen = v
		if seed != 9 {
			t.Fatalf("seed not forwarded: %d", seed)
		}
		labels := make([]int, len(v))
		for i := range labels {
			labels[i] = i % k
		}
		return labels, nil
	})
	labels, err := Assign(context.Background(), feature, border, bank, 4, WithClusterer(fake), WithSeed(9))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(seen) != 100 || len(seen[0]) != bank.Len() {
		t.Fatalf("expected 100 vectors of %d responses, got %d of %d", bank.Len(), len(seen), len(seen[0]))
	}
	// the response of filter 5 at output pixel (2,3) is the full convolution at (12,13)
	full, err := Convolve(feature, bank.All()[5])
	if err != nil {
		t.Fatalf("convolve: %v", err)
	}
	if got, want := seen[2*10+3][5], full.At(12, 13); got != want {
		t.Fatalf("stacked response %g, want %g", got, want)
	}
	if labels.At(0, 3) != 3 {
		t.Fatalf("labels not passed through: %v", labels.Data[:5])
	}
}

func TestAssignConstantFeature(t *testing.T) {
	bank, err := filterbank.Build(2, filterbank.WithScales(1))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	feature := mat.NewDense(20, 20, nil)
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			feature.Set(i, j, 0.5)
		}
	}
	labels, err := Assign(context.Background(), feature, 6, bank, 1)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	for _, l := range labels.Data {
		if l != 0 {
			t.Fatalf("expected a single texton, got %d", l)
		}
	}
}

func TestAssignErrors(t *testing.T) {
	bank, err := filterbank.Build(1, filterbank.WithScales(1))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	feature := ramp(8, 8)
	ctx := context.Background()
	if _, err := Assign(ctx, feature, 4, bank, 2); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for oversized border, got %v", err)
	}
	if _, err := Assign(ctx, feature, 1, bank, 0); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for k=0, got %v", err)
	}
	if _, err := Assign(ctx, feature, 1, nil, 2); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil bank, got %v", err)
	}
	bad := cluster.Func(func(v [][]float64, k int, seed int64) ([]int, error) {
		out := make([]int, len(v))
		out[0] = k
		return out, nil
	})
	if _, err := Assign(ctx, feature, 1, bank, 2, WithClusterer(bad)); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for out of range label, got %v", err)
	}
	short := cluster.Func(func(v [][]float64, k int, seed int64) ([]int, error) {
		return []int{0}, nil
	})
	if _, err := Assign(ctx, feature, 1, bank, 2, WithClusterer(short)); !errors.Is(err, grid.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch for short label list, got %v", err)
	}
}

func TestAssignCancelled(t *testing.T) {
	bank, err := filterbank.Build(1, filterbank.WithScales(1))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Assign(ctx, ramp(10, 10), 1, bank, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
