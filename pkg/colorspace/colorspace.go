// Package colorspace converts images into the normalized channel maps consumed
// by the gradient packages: grayscale brightness and CIELAB color, each in
// [0,1], and their quantized label maps.
package colorspace

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

// D65 reference white.
const (
	whiteX = 0.950456
	whiteY = 1.0
	whiteZ = 1.088754

	labThreshold = 0.008856

	abMin   = -73.0
	abMax   = 95.0
	abRange = abMax - abMin
)

// ToNRGBA returns a non-premultiplied copy of src with bounds starting at the
// origin.
func ToNRGBA(src image.Image) *image.NRGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// FromImage splits img into red, green and blue channels scaled to [0,1].
// Rows of the result follow image rows (y) and columns follow x.
func FromImage(img image.Image) (r, g, b *mat.Dense, err error) {
	if img == nil {
		return nil, nil, nil, fmt.Errorf("%w: image is nil", grid.ErrInvalidArgument)
	}
	n := ToNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, nil, nil, fmt.Errorf("%w: image is empty", grid.ErrInvalidArgument)
	}
	r = mat.NewDense(h, w, nil)
	g = mat.NewDense(h, w, nil)
	b = mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		rr, gr, br := r.RawRowView(y), g.RawRowView(y), b.RawRowView(y)
		for x := 0; x < w; x++ {
			i := n.PixOffset(x, y)
			rr[x] = float64(n.Pix[i+0]) / 255
			gr[x] = float64(n.Pix[i+1]) / 255
			br[x] = float64(n.Pix[i+2]) / 255
		}
	}
	return r, g, b, nil
}

// Grayscale returns the luma 0.29894 r + 0.58704 g + 0.11402 b.
func Grayscale(r, g, b *mat.Dense) (*mat.Dense, error) {
	if err := grid.SameShape(r, g, b); err != nil {
		return nil, err
	}
	rows, cols := r.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, _ float64) float64 {
		return 0.29894*r.At(i, j) + 0.58704*g.At(i, j) + 0.11402*b.At(i, j)
	}, out)
	return out, nil
}

// RGBToLab converts RGB channels to CIELAB under the D65 white point.
func RGBToLab(r, g, b *mat.Dense) (l, a, bb *mat.Dense, err error) {
	if err := grid.SameShape(r, g, b); err != nil {
		return nil, nil, nil, err
	}
	rows, cols := r.Dims()
	l = mat.NewDense(rows, cols, nil)
	a = mat.NewDense(rows, cols, nil)
	bb = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		lr, ar, br := l.RawRowView(i), a.RawRowView(i), bb.RawRowView(i)
		for j := 0; j < cols; j++ {
			lr[j], ar[j], br[j] = labPixel(r.At(i, j), g.At(i, j), b.At(i, j))
		}
	}
	return l, a, bb, nil
}

func labPixel(r, g, b float64) (l, a, bb float64) {
	x := (0.412453*r + 0.357580*g + 0.180423*b) / whiteX
	y := (0.212671*r + 0.715160*g + 0.072169*b) / whiteY
	z := (0.019334*r + 0.119193*g + 0.950227*b) / whiteZ
	fx, fy, fz := labF(x), labF(y), labF(z)
	if y > labThreshold {
		l = 116*math.Cbrt(y) - 16
	} else {
		l = 903.3 * y
	}
	return l, 500 * (fx - fy), 200 * (fy - fz)
}

func labF(t float64) float64 {
	if t > labThreshold {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

// LabNormalize maps L from [0,100] and a, b from [-73,95] onto [0,1],
// clamping values outside those ranges.
func LabNormalize(l, a, b *mat.Dense) (nl, na, nb *mat.Dense, err error) {
	if err := grid.SameShape(l, a, b); err != nil {
		return nil, nil, nil, err
	}
	scale := func(m *mat.Dense, lo, span float64) *mat.Dense {
		var out mat.Dense
		out.Apply(func(_, _ int, v float64) float64 {
			return clamp01((v - lo) / span)
		}, m)
		return &out
	}
	return scale(l, 0, 100), scale(a, abMin, abRange), scale(b, abMin, abRange), nil
}

// Quantize assigns each value v in [0,1] the bin floor(v*nBins); v == 1 falls
// in the last bin and values outside [0,1] are clamped to the end bins.
func Quantize(src *mat.Dense, nBins int) (*grid.Labels, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is nil", grid.ErrInvalidArgument)
	}
	if nBins <= 0 {
		return nil, fmt.Errorf("%w: bins must be > 0, got %d", grid.ErrInvalidArgument, nBins)
	}
	rows, cols := src.Dims()
	out := grid.NewLabels(rows, cols)
	for i := 0; i < rows; i++ {
		for j, v := range src.RawRowView(i) {
			out.Set(i, j, grid.ClampInt(int(math.Floor(v*float64(nBins))), 0, nBins-1))
		}
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
