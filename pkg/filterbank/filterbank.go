// Package filterbank builds the multi-scale bank of elongated, oriented
// even/odd energy filters used to describe local texture.
package filterbank

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Fepozopo/texgrad/pkg/grid"
	"github.com/Fepozopo/texgrad/pkg/kernel"
	"github.com/Fepozopo/texgrad/pkg/logger"
)

// Parity selects the even or odd (quadrature) member of a filter pair.
type Parity int

const (
	Even Parity = 0
	Odd  Parity = 1
)

// Bank is indexed as Filters[2*orientation+parity][scale].
type Bank struct {
	Orientations int
	Scales       int
	Filters      [][]*mat.Dense
}

// At returns the filter for orientation o, parity p and scale s.
func (b *Bank) At(o int, p Parity, s int) *mat.Dense {
	return b.Filters[2*o+int(p)][s]
}

// Len is the number of filters in the bank.
func (b *Bank) Len() int { return 2 * b.Orientations * b.Scales }

// All lists the filters in bank order: orientation, then parity, then scale.
func (b *Bank) All() []*mat.Dense {
	out := make([]*mat.Dense, 0, b.Len())
	for _, row := range b.Filters {
		out = append(out, row...)
	}
	return out
}

// Validate checks the layout and that every filter is odd sized and shares
// the shape of the other filters at its scale.
func (b *Bank) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: filter bank is nil", grid.ErrInvalidArgument)
	}
	if b.Orientations < 1 || b.Scales < 1 {
		return fmt.Errorf("%w: bank has %d orientations and %d scales", grid.ErrInvalidArgument, b.Orientations, b.Scales)
	}
	if len(b.Filters) != 2*b.Orientations {
		return fmt.Errorf("%w: bank has %d filter rows, expected %d", grid.ErrShapeMismatch, len(b.Filters), 2*b.Orientations)
	}
	for i, row := range b.Filters {
		if len(row) != b.Scales {
			return fmt.Errorf("%w: filter row %d has %d scales, expected %d", grid.ErrShapeMismatch, i, len(row), b.Scales)
		}
		for s, f := range row {
			if f == nil {
				return fmt.Errorf("%w: filter (%d,%d) is nil", grid.ErrShapeMismatch, i, s)
			}
			r, c := f.Dims()
			if r%2 == 0 || c%2 == 0 {
				return fmt.Errorf("%w: filter (%d,%d) is %dx%d, dimensions must be odd", grid.ErrShapeMismatch, i, s, r, c)
			}
			r0, c0 := b.Filters[0][s].Dims()
			if r != r0 || c != c0 {
				return fmt.Errorf("%w: filter (%d,%d) is %dx%d, scale %d uses %dx%d", grid.ErrShapeMismatch, i, s, r, c, s, r0, c0)
			}
		}
	}
	return nil
}

type options struct {
	scales     int
	baseSigma  float64
	scaling    float64
	elongation float64
	support    float64
	deriv      int
	log        logger.Logger
}

// Option adjusts Build.
type Option func(*options)

// WithScales sets the number of scales (default 2).
func WithScales(n int) Option { return func(o *options) { o.scales = n } }

// WithBaseSigma sets the sigma of the first scale (default 1).
func WithBaseSigma(s float64) Option { return func(o *options) { o.baseSigma = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *options) { o.log = l } }

// Build returns the texton filter bank for nOri orientations. Scale s
// (0-based) uses sigma = base * sqrt(2)^s, orientation k uses theta = k*pi/nOri.
func Build(nOri int, opts ...Option) (*Bank, error) {
	o := options{
		scales:     2,
		baseSigma:  1,
		scaling:    math.Sqrt2,
		elongation: 2,
		support:    3,
		deriv:      2,
	}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = logger.OrNop(o.log)
	if nOri < 1 {
		return nil, fmt.Errorf("%w: orientations must be >= 1, got %d", grid.ErrInvalidArgument, nOri)
	}
	if o.scales < 1 {
		return nil, fmt.Errorf("%w: scales must be >= 1, got %d", grid.ErrInvalidArgument, o.scales)
	}
	if o.baseSigma <= 0 {
		return nil, fmt.Errorf("%w: base sigma must be positive, got %g", grid.ErrInvalidArgument, o.baseSigma)
	}

	bank := &Bank{Orientations: nOri, Scales: o.scales, Filters: make([][]*mat.Dense, 2*nOri)}
	for i := range bank.Filters {
		bank.Filters[i] = make([]*mat.Dense, o.scales)
	}
	for s := 0; s < o.scales; s++ {
		sigma := o.baseSigma * math.Pow(o.scaling, float64(s))
		for k := 0; k < nOri; k++ {
			theta := float64(k) / float64(nOri) * math.Pi
			even, err := OrientedEnergy(sigma*o.elongation, sigma, o.support, theta, o.deriv, false)
			if err != nil {
				return nil, err
			}
			odd, err := OrientedEnergy(sigma*o.elongation, sigma, o.support, theta, o.deriv, true)
			if err != nil {
				return nil, err
			}
			bank.Filters[2*k][s] = even
			bank.Filters[2*k+1][s] = odd
		}
		size, _ := bank.Filters[0][s].Dims()
		o.log.Debug("filterbank", "built scale", map[string]interface{}{
			"scale": s, "sigma": sigma, "size": size, "orientations": nOri,
		})
	}
	return bank, nil
}

// OrientedEnergy builds a square oriented filter: a Gaussian with sigmaX along
// the filter axis times a derivative-deriv Gaussian (optionally its Hilbert
// transform) with sigmaY across it, rotated by theta. The half-size is
// ceil(support*max(sigmaX, sigmaY)). At theta 0 the filter axis runs along the
// rows, so it responds to edges between columns.
func OrientedEnergy(sigmaX, sigmaY, support, theta float64, deriv int, hilbert bool) (*mat.Dense, error) {
	if sigmaX <= 0 || sigmaY <= 0 {
		return nil, fmt.Errorf("%w: sigmas must be positive, got %g and %g", grid.ErrInvalidArgument, sigmaX, sigmaY)
	}
	if support <= 0 {
		return nil, fmt.Errorf("%w: support must be positive, got %g", grid.ErrInvalidArgument, support)
	}
	half := int(math.Ceil(support * math.Max(sigmaX, sigmaY)))
	// rotated samples reach up to half*sqrt(2) from the center
	reach := int(math.Ceil(float64(half)*math.Sqrt2)) + 1

	along, err := kernel.GaussianSupport(sigmaX, 0, false, reach)
	if err != nil {
		return nil, err
	}
	across, err := kernel.GaussianSupport(sigmaY, deriv, hilbert, reach)
	if err != nil {
		return nil, err
	}

	size := 2*half + 1
	f := mat.NewDense(size, size, nil)
	cos, sin := math.Cos(theta), math.Sin(theta)
	for i := 0; i < size; i++ {
		x := float64(i - half)
		for j := 0; j < size; j++ {
			y := float64(j - half)
			u := x*cos + y*sin
			v := -x*sin + y*cos
			f.Set(i, j, sampleLinear(along, u)*sampleLinear(across, v))
		}
	}

	vals := grid.Values(f)
	if deriv > 0 {
		floats.AddConst(-stat.Mean(vals, nil), vals)
	}
	if sum := floats.Norm(vals, 1); sum > 0 {
		floats.Scale(1/sum, vals)
	}
	return f, nil
}

// sampleLinear interpolates the centered kernel k at offset t, zero outside.
func sampleLinear(k []float64, t float64) float64 {
	c := len(k) / 2
	pos := t + float64(c)
	i0 := int(math.Floor(pos))
	frac := pos - float64(i0)
	at := func(i int) float64 {
		if i < 0 || i >= len(k) {
			return 0
		}
		return k[i]
	}
	return at(i0)*(1-frac) + at(i0+1)*frac
}
