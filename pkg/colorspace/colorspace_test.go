package colorspace

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

func makeSolidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func constant(rows, cols int, v float64) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, v)
		}
	}
	return m
}

func TestFromImageChannels(t *testing.T) {
	img := makeSolidNRGBA(3, 2, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
	img.SetNRGBA(2, 1, color.NRGBA{R: 0, G: 0, B: 255, A: 255})
	r, g, b, err := FromImage(img)
	if err != nil {
		t.Fatalf("from image: %v", err)
	}
	if rows, cols := r.Dims(); rows != 2 || cols != 3 {
		t.Fatalf("expected 2x3 channels, got %dx%d", rows, cols)
	}
	if r.At(0, 0) != 1 || g.At(0, 0) != 0.2 || b.At(0, 0) != 0 {
		t.Fatalf("unexpected pixel (%g,%g,%g)", r.At(0, 0), g.At(0, 0), b.At(0, 0))
	}
	if r.At(1, 2) != 0 || b.At(1, 2) != 1 {
		t.Fatalf("pixel x=2,y=1 should land at row 1, column 2")
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(5, 7, 9, 10))
	src.SetGray(5, 7, color.Gray{Y: 255})
	r, g, b, err := FromImage(src)
	if err != nil {
		t.Fatalf("from image: %v", err)
	}
	if rows, cols := r.Dims(); rows != 3 || cols != 4 {
		t.Fatalf("expected 3x4 channels, got %dx%d", rows, cols)
	}
	if r.At(0, 0) != 1 || g.At(0, 0) != 1 || b.At(0, 0) != 1 || r.At(1, 1) != 0 {
		t.Fatalf("gray image not translated to the origin")
	}
	if _, _, _, err := FromImage(nil); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for nil image, got %v", err)
	}
}

func TestGrayscaleWeights(t *testing.T) {
	r, g, b := constant(2, 2, 1), constant(2, 2, 0.5), constant(2, 2, 0)
	gray, err := Grayscale(r, g, b)
	if err != nil {
		t.Fatalf("grayscale: %v", err)
	}
	want := 0.29894 + 0.5*0.58704
	if math.Abs(gray.At(1, 1)-want) > 1e-12 {
		t.Fatalf("got %g, want %g", gray.At(1, 1), want)
	}
	if _, err := Grayscale(r, g, constant(2, 3, 0)); !errors.Is(err, grid.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestRGBToLab(t *testing.T) {
	white := constant(1, 1, 1)
	l, a, b, err := RGBToLab(white, white, white)
	if err != nil {
		t.Fatalf("lab: %v", err)
	}
	if math.Abs(l.At(0, 0)-100) > 1e-3 || math.Abs(a.At(0, 0)) > 0.05 || math.Abs(b.At(0, 0)) > 0.05 {
		t.Fatalf("white should be L=100 a=b=0, got (%g,%g,%g)", l.At(0, 0), a.At(0, 0), b.At(0, 0))
	}
	black := constant(1, 1, 0)
	l, a, b, err = RGBToLab(black, black, black)
	if err != nil {
		t.Fatalf("lab: %v", err)
	}
	if l.At(0, 0) != 0 || a.At(0, 0) != 0 || b.At(0, 0) != 0 {
		t.Fatalf("black should be all zero, got (%g,%g,%g)", l.At(0, 0), a.At(0, 0), b.At(0, 0))
	}
	// pure red has a strongly positive a channel
	_, a, _, err = RGBToLab(constant(1, 1, 1), black, black)
	if err != nil {
		t.Fatalf("lab: %v", err)
	}
	if a.At(0, 0) < 50 {
		t.Fatalf("red should have a > 50, got %g", a.At(0, 0))
	}
}

func TestLabNormalizeClamps(t *testing.T) {
	l := mat.NewDense(1, 3, []float64{-5, 50, 120})
	a := mat.NewDense(1, 3, []float64{-100, -73, 11})
	b := mat.NewDense(1, 3, []float64{95, 200, 0})
	nl, na, nb, err := LabNormalize(l, a, b)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !mat.Equal(nl, mat.NewDense(1, 3, []float64{0, 0.5, 1})) {
		t.Fatalf("unexpected L: %v", mat.Formatted(nl))
	}
	if !mat.Equal(na, mat.NewDense(1, 3, []float64{0, 0, 0.5})) {
		t.Fatalf("unexpected a: %v", mat.Formatted(na))
	}
	if nb.At(0, 0) != 1 || nb.At(0, 1) != 1 || math.Abs(nb.At(0, 2)-73.0/168) > 1e-12 {
		t.Fatalf("unexpected b: %v", mat.Formatted(nb))
	}
}

func TestQuantize(t *testing.T) {
	src := mat.NewDense(1, 6, []float64{0, 0.19, 0.2, 0.99, 1, 1.5})
	labels, err := Quantize(src, 5)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}
	want := []int{0, 0, 1, 4, 4, 4}
	for i, w := range want {
		if labels.Data[i] != w {
			t.Fatalf("value %g: bin %d, want %d", src.At(0, i), labels.Data[i], w)
		}
	}
	if _, err := Quantize(src, 0); !errors.Is(err, grid.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
