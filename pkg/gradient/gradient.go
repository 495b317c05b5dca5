// Package gradient computes oriented half-disc histogram gradients: at every
// pixel and for every orientation, the distance between the label histograms
// of the two halves of a disc split by a diameter at that orientation.
package gradient

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/grid"
	"github.com/Fepozopo/texgrad/pkg/logger"
	"github.com/Fepozopo/texgrad/pkg/window"
)

// Border selects how pixels closer than the radius to an edge are handled.
type Border int

const (
	// BorderClip clips the disc to the map, so edge pixels compare the
	// (possibly asymmetric) parts of the half-discs that lie inside it.
	BorderClip Border = iota
	// BorderZero leaves edge pixels at 0.
	BorderZero
)

type options struct {
	smoothing []float64
	distance  Distance
	border    Border
	workers   int
	log       logger.Logger
}

// Option adjusts Compute and ComputeHistograms.
type Option func(*options)

// WithSmoothing convolves every half-disc histogram with kernel before the
// comparison. The kernel must have odd length.
func WithSmoothing(kernel []float64) Option {
	return func(o *options) { o.smoothing = kernel }
}

// WithDistance replaces the default ChiSquared metric.
func WithDistance(d Distance) Option { return func(o *options) { o.distance = d } }

// WithBorder sets the edge policy (default BorderClip).
func WithBorder(b Border) Option { return func(o *options) { o.border = b } }

// WithWorkers sets the number of rows processed in parallel (default GOMAXPROCS).
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *options) { o.log = l } }

// Compute returns nOri gradient grids for a label map, each the size of the
// map. Labels are counted as one-hot histograms of length max label + 1.
//
// For orientation o the two half-discs are slices [o, o+nOri) and
// [o+nOri, o+2*nOri) of window.SliceMap, i.e. the halves on either side of the
// diameter at angle o*pi/nOri. Cells lying exactly on that diameter, and the
// center pixel, belong to neither half.
func Compute(ctx context.Context, labels *grid.Labels, radius, nOri int, opts ...Option) ([]*mat.Dense, error) {
	if err := labels.Validate(); err != nil {
		return nil, err
	}
	return compute(ctx, labelSource{labels: labels, bins: labels.Bins()}, radius, nOri, opts)
}

// ComputeHistograms is Compute for a map that already holds a histogram per
// pixel; a half-disc histogram is the sum of the histograms inside it.
func ComputeHistograms(ctx context.Context, hists *grid.Histograms, radius, nOri int, opts ...Option) ([]*mat.Dense, error) {
	if err := hists.Validate(); err != nil {
		return nil, err
	}
	return compute(ctx, histSource{hists: hists}, radius, nOri, opts)
}

type source interface {
	dims() (rows, cols, bins int)
	// add accumulates the histogram of cell (r,c) into dst.
	add(dst []float64, r, c int)
}

type labelSource struct {
	labels *grid.Labels
	bins   int
}

func (s labelSource) dims() (int, int, int) { return s.labels.Rows, s.labels.Cols, s.bins }

func (s labelSource) add(dst []float64, r, c int) { dst[s.labels.At(r, c)]++ }

type histSource struct {
	hists *grid.Histograms
}

func (s histSource) dims() (int, int, int) { return s.hists.Rows, s.hists.Cols, s.hists.Bins }

func (s histSource) add(dst []float64, r, c int) { floats.Add(dst, s.hists.Cell(r, c)) }

func compute(ctx context.Context, src source, radius, nOri int, opts []Option) ([]*mat.Dense, error) {
	o := options{distance: ChiSquared, workers: runtime.GOMAXPROCS(0)}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = logger.OrNop(o.log)
	if nOri <= 0 {
		return nil, fmt.Errorf("%w: orientations must be >= 1, got %d", grid.ErrInvalidArgument, nOri)
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: radius must be >= 0, got %d", grid.ErrInvalidArgument, radius)
	}
	if o.distance == nil {
		return nil, fmt.Errorf("%w: distance is nil", grid.ErrInvalidArgument)
	}
	if o.border != BorderClip && o.border != BorderZero {
		return nil, fmt.Errorf("%w: unknown border policy %d", grid.ErrInvalidArgument, o.border)
	}
	rows, cols, bins := src.dims()
	if n := len(o.smoothing); n > 0 && (n%2 == 0 || n > 2*bins-1) {
		return nil, fmt.Errorf("%w: smoothing kernel of length %d does not fit histograms of length %d", grid.ErrShapeMismatch, n, bins)
	}
	offsets, err := buildOffsets(radius, nOri)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	gradients := make([]*mat.Dense, nOri)
	for i := range gradients {
		gradients[i] = mat.NewDense(rows, cols, nil)
	}

	workers := o.workers
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			sc := newScratch(nOri, bins, o.smoothing, o.distance)
			for r := w; r < rows; r += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				for c := 0; c < cols; c++ {
					if o.border == BorderZero && (r < radius || r >= rows-radius || c < radius || c >= cols-radius) {
						continue
					}
					sc.pixel(src, offsets, r, c, rows, cols)
					for ori, d := range sc.out {
						gradients[ori].RawRowView(r)[c] = d
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.log.Debug("gradient", "computed histogram gradient", map[string]interface{}{
		"rows": rows, "cols": cols, "bins": bins, "radius": radius,
		"orientations": nOri, "offsets": len(offsets), "elapsed": time.Since(start).String(),
	})
	return gradients, nil
}

// offset is one disc cell relative to the center pixel.
type offset struct {
	dx, dy int
	slice  int
	axis   int // orientation whose diameter passes through the cell, -1 if none
	side   int // 0 when slice lies in [axis, axis+nOri), else 1
}

func buildOffsets(radius, nOri int) ([]offset, error) {
	weights, err := window.DiscMask(radius)
	if err != nil {
		return nil, err
	}
	sizeX, sizeY := weights.Dims()
	if sizeX%2 == 0 || sizeY%2 == 0 {
		return nil, fmt.Errorf("%w: dimensions of weight matrix must be odd, got %dx%d", grid.ErrInvalidArgument, sizeX, sizeY)
	}
	slices, err := window.SliceMap(sizeX, sizeY, nOri)
	if err != nil {
		return nil, err
	}
	var out []offset
	for i := 0; i < sizeX; i++ {
		for j := 0; j < sizeY; j++ {
			if weights.At(i, j) == 0 {
				continue
			}
			dx, dy := i-sizeX/2, j-sizeY/2
			if dx == 0 && dy == 0 {
				continue
			}
			off := offset{dx: dx, dy: dy, slice: slices.At(i, j), axis: onDiameter(dx, dy, nOri)}
			if off.axis >= 0 && (off.slice < off.axis || off.slice >= off.axis+nOri) {
				off.side = 1
			}
			out = append(out, off)
		}
	}
	return out, nil
}

// onDiameter returns the orientation whose dividing diameter, at angle
// o*pi/nOri, passes through offset (dx,dy), or -1.
func onDiameter(dx, dy, nOri int) int {
	norm := math.Hypot(float64(dx), float64(dy))
	for o := 0; o < nOri; o++ {
		phi := float64(o) / float64(nOri) * math.Pi
		cross := float64(dx)*math.Sin(phi) - float64(dy)*math.Cos(phi)
		if math.Abs(cross) <= 1e-9*norm {
			return o
		}
	}
	return -1
}

// scratch is the per-worker state for one pixel at a time.
type scratch struct {
	nOri   int
	slices [][]float64 // one histogram per slice
	axis   [][]float64 // diameter cells, indexed 2*orientation+side
	left   []float64
	right  []float64
	a, b   []float64
	sa, sb []float64
	kernel []float64
	dist   Distance
	out    []float64
}

func newScratch(nOri, bins int, kernel []float64, dist Distance) *scratch {
	alloc := func(n int) [][]float64 {
		backing := make([]float64, n*bins)
		out := make([][]float64, n)
		for i := range out {
			out[i] = backing[i*bins : (i+1)*bins]
		}
		return out
	}
	s := &scratch{
		nOri:   nOri,
		slices: alloc(2 * nOri),
		axis:   alloc(2 * nOri),
		left:   make([]float64, bins),
		right:  make([]float64, bins),
		a:      make([]float64, bins),
		b:      make([]float64, bins),
		kernel: kernel,
		dist:   dist,
		out:    make([]float64, nOri),
	}
	if len(kernel) > 0 {
		s.sa = make([]float64, bins)
		s.sb = make([]float64, bins)
	}
	return s
}

// pixel fills s.out with the distance for every orientation at (r,c).
func (s *scratch) pixel(src source, offsets []offset, r, c, rows, cols int) {
	for i := range s.slices {
		clear(s.slices[i])
		clear(s.axis[i])
	}
	for _, off := range offsets {
		rr, cc := r+off.dx, c+off.dy
		if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
			continue
		}
		src.add(s.slices[off.slice], rr, cc)
		if off.axis >= 0 {
			src.add(s.axis[2*off.axis+off.side], rr, cc)
		}
	}

	n := s.nOri
	clear(s.left)
	clear(s.right)
	for k := 0; k < n; k++ {
		floats.Add(s.left, s.slices[k])
		floats.Add(s.right, s.slices[k+n])
	}
	for ori := 0; ori < n; ori++ {
		for i := range s.a {
			s.a[i] = max(s.left[i]-s.axis[2*ori][i], 0)
			s.b[i] = max(s.right[i]-s.axis[2*ori+1][i], 0)
		}
		ha, hb := s.a, s.b
		if len(s.kernel) > 0 {
			smooth(s.sa, s.a, s.kernel)
			smooth(s.sb, s.b, s.kernel)
			ha, hb = s.sa, s.sb
		}
		s.out[ori] = s.compare(ha, hb)

		// rotate both half-discs by one slice
		if ori+1 < n {
			floats.Add(s.left, s.slices[ori+n])
			floats.Sub(s.left, s.slices[ori])
			floats.Add(s.right, s.slices[ori])
			floats.Sub(s.right, s.slices[ori+n])
		}
	}
}

// compare normalizes both histograms in place and returns their distance, or
// 0 when either half is empty.
func (s *scratch) compare(a, b []float64) float64 {
	sumA, sumB := floats.Sum(a), floats.Sum(b)
	if sumA <= 0 || sumB <= 0 {
		return 0
	}
	floats.Scale(1/sumA, a)
	floats.Scale(1/sumB, b)
	return s.dist(a, b)
}

// smooth writes the same-size convolution of h with an odd kernel into dst.
func smooth(dst, h, kernel []float64) {
	half := len(kernel) / 2
	for i := range dst {
		sum := 0.0
		for t := -half; t <= half; t++ {
			j := i - t
			if j < 0 || j >= len(h) {
				continue
			}
			sum += kernel[half+t] * h[j]
		}
		dst[i] = sum
	}
}
