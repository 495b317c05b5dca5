// Package kernel generates the 1D Gaussian family kernels that the oriented
// filter bank and the histogram smoothing step are built from.
package kernel

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

// Gaussian returns a Gaussian kernel (deriv 0) or its first or second
// derivative, with support ceil(3*sigma) so the length is 2*support+1.
// With hilbert set the quadrature (Hilbert transformed) variant is returned.
// Derivative kernels have zero mean; every kernel has unit L1 norm unless it
// is all zeros.
func Gaussian(sigma float64, deriv int, hilbert bool) ([]float64, error) {
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("%w: sigma must be positive, got %g", grid.ErrInvalidArgument, sigma)
	}
	return GaussianSupport(sigma, deriv, hilbert, int(math.Ceil(3*sigma)))
}

// GaussianSupport is Gaussian with an explicit support radius.
func GaussianSupport(sigma float64, deriv int, hilbert bool, support int) ([]float64, error) {
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("%w: sigma must be positive, got %g", grid.ErrInvalidArgument, sigma)
	}
	if deriv < 0 || deriv > 2 {
		return nil, fmt.Errorf("%w: only derivatives 0, 1, 2 supported, got %d", grid.ErrInvalidArgument, deriv)
	}
	if support < 0 {
		return nil, fmt.Errorf("%w: support must be >= 0, got %d", grid.ErrInvalidArgument, support)
	}

	// enlarge support so the Hilbert transform runs on a power of two
	supportBig := support
	if hilbert {
		supportBig = 1 << bits.Len(uint(support))
	}

	sigma2Inv := 1 / (sigma * sigma)
	size := 2*supportBig + 1
	m := make([]float64, size)
	for n := range m {
		x := float64(n - supportBig)
		g := math.Exp(-0.5 * x * x * sigma2Inv)
		switch deriv {
		case 0:
			m[n] = g
		case 1:
			m[n] = -x * g
		case 2:
			m[n] = g * (x*x*sigma2Inv - 1)
		}
	}

	if hilbert {
		// transform the power of two prefix, then crop back to the requested support
		h := Hilbert(m[:size-1])
		m = append([]float64(nil), h[supportBig-support:supportBig+support+1]...)
	}

	if deriv > 0 {
		floats.AddConst(-stat.Mean(m, nil), m)
	}
	if sum := floats.Norm(m, 1); sum > 0 {
		floats.Scale(1/sum, m)
	}
	return m, nil
}

// Hilbert returns the imaginary part of the analytic signal of x, the
// discrete Hilbert transform computed in the frequency domain.
func Hilbert(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	fft := fourier.NewCmplxFFT(n)
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeff := fft.Coefficients(nil, seq)

	// keep DC (and Nyquist for even n), double positive frequencies, drop negative ones
	half := (n + 1) / 2
	for i := 1; i < half; i++ {
		coeff[i] *= 2
	}
	start := half
	if n%2 == 0 {
		start = n/2 + 1
	}
	for i := start; i < n; i++ {
		coeff[i] = 0
	}

	analytic := fft.Sequence(nil, coeff)
	scale := 1 / float64(n)
	for i, v := range analytic {
		out[i] = imag(v) * scale
	}
	return out
}
