// Package window builds the per-window lookup tables of the half-disc
// gradient: which offsets fall inside the disc and which angular slice each
// offset belongs to.
package window

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Fepozopo/texgrad/pkg/grid"
)

// DiscMask returns a (2r+1)x(2r+1) mask holding 1 where the offset (x,y) from
// the center satisfies x*x+y*y <= r*r and 0 elsewhere.
func DiscMask(r int) (*mat.Dense, error) {
	if r < 0 {
		return nil, fmt.Errorf("%w: radius must be >= 0, got %d", grid.ErrInvalidArgument, r)
	}
	size := 2*r + 1
	weights := mat.NewDense(size, size, nil)
	rSq := r * r
	for x := -r; x <= r; x++ {
		for y := -r; y <= r; y++ {
			if x*x+y*y <= rSq {
				weights.Set(x+r, y+r, 1)
			}
		}
	}
	return weights, nil
}

// Slices assigns every cell of a window to one of 2*N angular slices. Slice i
// and slice (i+N) mod 2N are opposite half-discs.
type Slices struct {
	Rows int
	Cols int
	N    int
	Data []int
}

// At returns the slice index of window cell (i,j).
func (s *Slices) At(i, j int) int { return s.Data[i*s.Cols+j] }

// Offset returns the slice of offset (x,y) from the window center.
func (s *Slices) Offset(x, y int) int { return s.At(x+s.Rows/2, y+s.Cols/2) }

// SliceMap builds the slice lookup for a rows x cols window and nOri
// orientations. Offset (x,y) from the center, x along rows and y along
// columns, gets slice floor((atan2(y,x)+pi) / pi * nOri), clamped to 2*nOri-1.
//
// Offsets with y<0, or y==0 and x<0, instead take the slice of (-x,-y) plus
// nOri, so that opposite offsets always land in opposite slices even when the
// angle sits exactly on a slice boundary. The center falls in slice nOri.
func SliceMap(rows, cols, nOri int) (*Slices, error) {
	if nOri < 1 {
		return nil, fmt.Errorf("%w: orientations must be >= 1, got %d", grid.ErrInvalidArgument, nOri)
	}
	if rows < 1 || cols < 1 || rows%2 == 0 || cols%2 == 0 {
		return nil, fmt.Errorf("%w: window must have odd positive dimensions, got %dx%d", grid.ErrInvalidArgument, rows, cols)
	}
	s := &Slices{Rows: rows, Cols: cols, N: nOri, Data: make([]int, rows*cols)}
	cx, cy := rows/2, cols/2
	for i := 0; i < rows; i++ {
		x := i - cx
		for j := 0; j < cols; j++ {
			y := j - cy
			var idx int
			if y < 0 || (y == 0 && x < 0) {
				idx = (sliceIndex(-x, -y, nOri) + nOri) % (2 * nOri)
			} else {
				idx = sliceIndex(x, y, nOri)
			}
			s.Data[i*cols+j] = idx
		}
	}
	return s, nil
}

func sliceIndex(x, y, nOri int) int {
	ori := math.Atan2(float64(y), float64(x)) + math.Pi
	idx := int(ori / math.Pi * float64(nOri))
	if idx >= 2*nOri {
		idx = 2*nOri - 1
	}
	return idx
}
