// Package grid holds the 2D data containers shared by the texture gradient
// packages: integer label maps, per-pixel histogram maps and helpers for the
// real-valued grids, which are plain gonum *mat.Dense values.
package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidArgument reports a parameter outside its allowed domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrShapeMismatch reports inputs whose dimensions do not agree.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Labels is a row-major map of non-negative integer labels.
type Labels struct {
	Rows int
	Cols int
	Data []int
}

// NewLabels allocates a zeroed label map.
func NewLabels(rows, cols int) *Labels {
	return &Labels{Rows: rows, Cols: cols, Data: make([]int, rows*cols)}
}

// At returns the label at row r, column c.
func (l *Labels) At(r, c int) int { return l.Data[r*l.Cols+c] }

// Set stores v at row r, column c.
func (l *Labels) Set(r, c, v int) { l.Data[r*l.Cols+c] = v }

// Validate checks dimensions and that every label is non-negative.
func (l *Labels) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: label map is nil", ErrInvalidArgument)
	}
	if l.Rows <= 0 || l.Cols <= 0 {
		return fmt.Errorf("%w: label map must be 2D, got %dx%d", ErrInvalidArgument, l.Rows, l.Cols)
	}
	if len(l.Data) != l.Rows*l.Cols {
		return fmt.Errorf("%w: label map has %d values for %dx%d", ErrShapeMismatch, len(l.Data), l.Rows, l.Cols)
	}
	for i, v := range l.Data {
		if v < 0 {
			return fmt.Errorf("%w: negative label %d at index %d", ErrInvalidArgument, v, i)
		}
	}
	return nil
}

// Bins returns the histogram length implied by the map, max label + 1.
func (l *Labels) Bins() int {
	maxv := 0
	for _, v := range l.Data {
		if v > maxv {
			maxv = v
		}
	}
	return maxv + 1
}

// Histograms expands the label map into one-hot histograms of length Bins().
func (l *Labels) Histograms() *Histograms {
	h, _ := l.OneHot(l.Bins())
	return h
}

// OneHot expands the label map into one-hot histograms of a fixed length,
// which must exceed every label.
func (l *Labels) OneHot(bins int) (*Histograms, error) {
	if need := l.Bins(); bins < need {
		return nil, fmt.Errorf("%w: %d bins cannot hold label %d", ErrInvalidArgument, bins, need-1)
	}
	h := NewHistograms(l.Rows, l.Cols, bins)
	for i, v := range l.Data {
		h.Data[i*bins+v] = 1
	}
	return h, nil
}

// Histograms is a row-major map holding Bins non-negative counts per cell.
type Histograms struct {
	Rows int
	Cols int
	Bins int
	Data []float64
}

// NewHistograms allocates a zeroed histogram map.
func NewHistograms(rows, cols, bins int) *Histograms {
	return &Histograms{Rows: rows, Cols: cols, Bins: bins, Data: make([]float64, rows*cols*bins)}
}

// Cell returns the histogram stored at row r, column c. The slice aliases Data.
func (h *Histograms) Cell(r, c int) []float64 {
	off := (r*h.Cols + c) * h.Bins
	return h.Data[off : off+h.Bins]
}

// Validate checks dimensions and that every count is non-negative.
func (h *Histograms) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: histogram map is nil", ErrInvalidArgument)
	}
	if h.Rows <= 0 || h.Cols <= 0 {
		return fmt.Errorf("%w: histogram map must be 2D, got %dx%d", ErrInvalidArgument, h.Rows, h.Cols)
	}
	if h.Bins <= 0 {
		return fmt.Errorf("%w: histogram length must be positive, got %d", ErrInvalidArgument, h.Bins)
	}
	if len(h.Data) != h.Rows*h.Cols*h.Bins {
		return fmt.Errorf("%w: histogram map has %d values for %dx%dx%d", ErrShapeMismatch, len(h.Data), h.Rows, h.Cols, h.Bins)
	}
	for i, v := range h.Data {
		if v < 0 {
			return fmt.Errorf("%w: negative count %g at index %d", ErrInvalidArgument, v, i)
		}
	}
	return nil
}

// BorderTrim returns a copy of m with r rows and columns removed from every side.
func BorderTrim(m *mat.Dense, r int) (*mat.Dense, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: matrix is nil", ErrInvalidArgument)
	}
	rows, cols := m.Dims()
	if r < 0 || 2*r >= rows || 2*r >= cols {
		return nil, fmt.Errorf("%w: border %d leaves nothing of %dx%d", ErrInvalidArgument, r, rows, cols)
	}
	if r == 0 {
		return mat.DenseCopyOf(m), nil
	}
	return mat.DenseCopyOf(m.Slice(r, rows-r, r, cols-r)), nil
}

// SameShape reports ErrShapeMismatch unless every matrix has identical dimensions.
func SameShape(ms ...*mat.Dense) error {
	if len(ms) == 0 {
		return nil
	}
	for i, m := range ms {
		if m == nil {
			return fmt.Errorf("%w: matrix %d is nil", ErrInvalidArgument, i)
		}
	}
	r0, c0 := ms[0].Dims()
	for i, m := range ms[1:] {
		r, c := m.Dims()
		if r != r0 || c != c0 {
			return fmt.Errorf("%w: matrix %d is %dx%d, expected %dx%d", ErrShapeMismatch, i+1, r, c, r0, c0)
		}
	}
	return nil
}

// Values returns the elements of m in row-major order. The result aliases m
// when its storage is contiguous.
func Values(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// ClampInt clamps v to [lo,hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
