// Package texton turns a feature map into a texton label map: every pixel's
// vector of filter bank responses is clustered into one of k textures.
package texton

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/cluster"
	"github.com/Fepozopo/texgrad/pkg/filterbank"
	"github.com/Fepozopo/texgrad/pkg/grid"
	"github.com/Fepozopo/texgrad/pkg/logger"
)

type options struct {
	clusterer cluster.Clusterer
	seed      int64
	workers   int
	log       logger.Logger
}

// Option adjusts Assign.
type Option func(*options)

// WithClusterer replaces the default k-means clusterer.
func WithClusterer(c cluster.Clusterer) Option { return func(o *options) { o.clusterer = c } }

// WithSeed sets the clustering seed (default 1).
func WithSeed(seed int64) Option { return func(o *options) { o.seed = seed } }

// WithWorkers bounds the number of filters convolved concurrently.
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *options) { o.log = l } }

// Assign convolves feature with every filter of bank, drops border pixels on
// each side and clusters the per-pixel response vectors into k textons. The
// result has 2*border fewer rows and columns than feature.
func Assign(ctx context.Context, feature *mat.Dense, border int, bank *filterbank.Bank, k int, opts ...Option) (*grid.Labels, error) {
	o := options{clusterer: cluster.KMeans{}, seed: 1, workers: runtime.GOMAXPROCS(0)}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = logger.OrNop(o.log)
	if o.clusterer == nil {
		return nil, fmt.Errorf("%w: clusterer is nil", grid.ErrInvalidArgument)
	}
	if feature == nil || feature.IsEmpty() {
		return nil, fmt.Errorf("%w: feature map is empty", grid.ErrInvalidArgument)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", grid.ErrInvalidArgument, k)
	}
	rows, cols := feature.Dims()
	if border < 0 || 2*border >= rows || 2*border >= cols {
		return nil, fmt.Errorf("%w: border %d leaves nothing of %dx%d", grid.ErrInvalidArgument, border, rows, cols)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	outRows, outCols := rows-2*border, cols-2*border
	if outRows*outCols < k {
		return nil, fmt.Errorf("%w: %d pixels cannot form %d textons", grid.ErrInvalidArgument, outRows*outCols, k)
	}

	filters := bank.All()
	maxHalf := 0
	for _, f := range filters {
		if r, _ := f.Dims(); r/2 > maxHalf {
			maxHalf = r / 2
		}
	}
	if border < maxHalf {
		o.log.Warning("texton", "border is smaller than the filter support, edge responses include zero padding", map[string]interface{}{
			"border": border, "support": maxHalf,
		})
	}

	start := time.Now()
	responses := make([]*mat.Dense, len(filters))
	g, gctx := errgroup.WithContext(ctx)
	if o.workers > 0 {
		g.SetLimit(o.workers)
	}
	for i, f := range filters {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			responses[i] = convolve(feature, f, border)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// stack responses per pixel, in bank order
	n := outRows * outCols
	dim := len(filters)
	backing := make([]float64, n*dim)
	vectors := make([][]float64, n)
	for p := range vectors {
		vectors[p] = backing[p*dim : (p+1)*dim]
	}
	for fi, r := range responses {
		vals := grid.Values(r)
		for p, v := range vals {
			vectors[p][fi] = v
		}
	}

	labels, err := o.clusterer.Cluster(vectors, k, o.seed)
	if err != nil {
		return nil, fmt.Errorf("cluster textons: %w", err)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: clusterer returned %d labels for %d vectors", grid.ErrShapeMismatch, len(labels), n)
	}
	out := grid.NewLabels(outRows, outCols)
	for p, l := range labels {
		if l < 0 || l >= k {
			return nil, fmt.Errorf("%w: clusterer returned label %d outside [0,%d)", grid.ErrInvalidArgument, l, k)
		}
		out.Data[p] = l
	}
	o.log.Debug("texton", "assigned textons", map[string]interface{}{
		"rows": outRows, "cols": outCols, "filters": dim, "k": k, "elapsed": time.Since(start).String(),
	})
	return out, nil
}

// Convolve returns the same-size 2D convolution of src with an odd-sized
// kernel, treating values outside src as zero.
func Convolve(src, kern *mat.Dense) (*mat.Dense, error) {
	if src == nil || src.IsEmpty() || kern == nil || kern.IsEmpty() {
		return nil, fmt.Errorf("%w: source or kernel is empty", grid.ErrInvalidArgument)
	}
	if r, c := kern.Dims(); r%2 == 0 || c%2 == 0 {
		return nil, fmt.Errorf("%w: kernel is %dx%d, dimensions must be odd", grid.ErrInvalidArgument, r, c)
	}
	return convolve(src, kern, 0), nil
}

// convolve computes the convolution only for pixels at least border away from
// every edge.
func convolve(src, kern *mat.Dense, border int) *mat.Dense {
	rows, cols := src.Dims()
	kr, kc := kern.Dims()
	hr, hc := kr/2, kc/2
	out := mat.NewDense(rows-2*border, cols-2*border, nil)
	for i := border; i < rows-border; i++ {
		for j := border; j < cols-border; j++ {
			sum := 0.0
			for u := -hr; u <= hr; u++ {
				si := i - u
				if si < 0 || si >= rows {
					continue
				}
				srow := src.RawRowView(si)
				krow := kern.RawRowView(hr + u)
				for v := -hc; v <= hc; v++ {
					sj := j - v
					if sj < 0 || sj >= cols {
						continue
					}
					sum += krow[hc+v] * srow[sj]
				}
			}
			out.Set(i-border, j-border, sum)
		}
	}
	return out
}
