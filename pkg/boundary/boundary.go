// Package boundary runs the local cue stage of a contour detector on an
// in-memory image: oriented brightness, color and texture gradients computed
// with the half-disc histogram operator.
package boundary

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/cluster"
	"github.com/Fepozopo/texgrad/pkg/colorspace"
	"github.com/Fepozopo/texgrad/pkg/config"
	"github.com/Fepozopo/texgrad/pkg/filterbank"
	"github.com/Fepozopo/texgrad/pkg/gradient"
	"github.com/Fepozopo/texgrad/pkg/grid"
	"github.com/Fepozopo/texgrad/pkg/kernel"
	"github.com/Fepozopo/texgrad/pkg/logger"
	"github.com/Fepozopo/texgrad/pkg/texton"
)

// Result holds one gradient per orientation for every cue. Brightness and
// color gradients match the image size; the texture gradient and the texton
// map are smaller by the configured border on each side.
type Result struct {
	Brightness []*mat.Dense
	ColorA     []*mat.Dense
	ColorB     []*mat.Dense
	Texture    []*mat.Dense
	Textons    *grid.Labels
}

// Pipeline is safe for concurrent use; Run keeps all state on the stack.
type Pipeline struct {
	cfg       config.Config
	bank      *filterbank.Bank
	smoothing []float64
	distance  gradient.Distance
	clusterer cluster.Clusterer
	log       logger.Logger
}

// Option adjusts New.
type Option func(*Pipeline)

// WithLogger overrides the logger built from the config.
func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithClusterer replaces the default k-means texton clusterer.
func WithClusterer(c cluster.Clusterer) Option { return func(p *Pipeline) { p.clusterer = c } }

// New validates cfg and builds the filter bank and smoothing kernel once.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", grid.ErrInvalidArgument, err)
	}
	p := &Pipeline{cfg: cfg, clusterer: cluster.KMeans{}}
	for _, fn := range opts {
		fn(p)
	}
	if p.log == nil {
		l, err := cfg.NewLogger(os.Stderr)
		if err != nil {
			return nil, err
		}
		p.log = l
	}
	dist, err := gradient.DistanceByName(cfg.Distance)
	if err != nil {
		return nil, err
	}
	p.distance = dist
	if cfg.SmoothSigma > 0 {
		k, err := kernel.Gaussian(cfg.SmoothSigma, 0, false)
		if err != nil {
			return nil, err
		}
		if len(k) > 2*cfg.Bins-1 {
			return nil, fmt.Errorf("%w: smoothing kernel of %d taps is wider than %d bins allow", grid.ErrShapeMismatch, len(k), cfg.Bins)
		}
		p.smoothing = k
	}
	p.bank, err = filterbank.Build(cfg.Orientations, filterbank.WithLogger(p.log))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Run computes every cue for img. The four gradients run concurrently and the
// first failure cancels the rest.
func (p *Pipeline) Run(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	r, g, b, err := colorspace.FromImage(img)
	if err != nil {
		return nil, err
	}
	gray, err := colorspace.Grayscale(r, g, b)
	if err != nil {
		return nil, err
	}
	l, a, bb, err := colorspace.RGBToLab(r, g, b)
	if err != nil {
		return nil, err
	}
	l, a, bb, err = colorspace.LabNormalize(l, a, bb)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) {
		res.Brightness, err = p.channelGradient(gctx, l)
		return err
	})
	grp.Go(func() (err error) {
		res.ColorA, err = p.channelGradient(gctx, a)
		return err
	})
	grp.Go(func() (err error) {
		res.ColorB, err = p.channelGradient(gctx, bb)
		return err
	})
	grp.Go(func() (err error) {
		res.Textons, res.Texture, err = p.textureGradient(gctx, gray)
		return err
	})
	if err := grp.Wait(); err != nil {
		p.log.Error("boundary", err, nil)
		return nil, err
	}
	rows, cols := gray.Dims()
	p.log.Info("boundary", "computed local cues", map[string]interface{}{
		"rows": rows, "cols": cols, "orientations": p.cfg.Orientations,
		"elapsed": time.Since(start).String(),
	})
	return res, nil
}

func (p *Pipeline) gradientOptions(smoothing []float64) []gradient.Option {
	return []gradient.Option{
		gradient.WithSmoothing(smoothing),
		gradient.WithDistance(p.distance),
		gradient.WithWorkers(p.cfg.WorkerCount()),
		gradient.WithLogger(p.log),
	}
}

// channelGradient quantizes a normalized channel into cfg.Bins bins and
// computes its smoothed half-disc gradient.
func (p *Pipeline) channelGradient(ctx context.Context, ch *mat.Dense) ([]*mat.Dense, error) {
	labels, err := colorspace.Quantize(ch, p.cfg.Bins)
	if err != nil {
		return nil, err
	}
	hists, err := labels.OneHot(p.cfg.Bins)
	if err != nil {
		return nil, err
	}
	return gradient.ComputeHistograms(ctx, hists, p.cfg.Radius, p.cfg.Orientations, p.gradientOptions(p.smoothing)...)
}

func (p *Pipeline) textureGradient(ctx context.Context, gray *mat.Dense) (*grid.Labels, []*mat.Dense, error) {
	labels, err := texton.Assign(ctx, gray, p.cfg.Border, p.bank, p.cfg.Textons,
		texton.WithClusterer(p.clusterer),
		texton.WithSeed(p.cfg.Seed),
		texton.WithWorkers(p.cfg.WorkerCount()),
		texton.WithLogger(p.log),
	)
	if err != nil {
		return nil, nil, err
	}
	grads, err := gradient.Compute(ctx, labels, p.cfg.TextureRadius, p.cfg.Orientations, p.gradientOptions(nil)...)
	if err != nil {
		return nil, nil, err
	}
	return labels, grads, nil
}
