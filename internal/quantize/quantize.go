// Package quantize maps a grid of continuous colours onto a paint palette.
//
// Each square region of the input is reduced to its mean colour and one paint
// is drawn at random with probability proportional to exp(-α·d), where d is
// the RGB distance between the mean and the paint's reference colour.
// Neighbouring regions with the same mean colour therefore come out as a
// stippled mix of nearby paints, not a flat block of the closest one.
package quantize

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/raster"
)

// ErrInvalidInput is returned for empty grids, bad region sizes, empty
// palettes and non-positive sharpness.
var ErrInvalidInput = errors.New("invalid quantizer input")

// Options controls region binning and sampling.
type Options struct {
	// RegionSize is the side length, in grid samples, of each square region.
	// Trailing partial regions at the right and bottom edges are dropped.
	RegionSize int
	// Sharpness (α) scales distances before exponentiation. Large values
	// approach nearest-colour matching, values near zero approach uniform.
	Sharpness float64
}

// DefaultOptions matches the settings the plotter is normally run with.
func DefaultOptions() Options {
	return Options{RegionSize: 5, Sharpness: 10}
}

// NewRand returns a seeded source suitable for reproducible quantization.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (o Options) validate() error {
	if o.RegionSize < 1 {
		return fmt.Errorf("%w: region size must be >= 1, got %d", ErrInvalidInput, o.RegionSize)
	}
	if !(o.Sharpness > 0) || math.IsInf(o.Sharpness, 0) {
		return fmt.Errorf("%w: sharpness must be a positive finite number, got %v", ErrInvalidInput, o.Sharpness)
	}
	return nil
}

// Quantize bins grid into regions and draws one palette identifier per
// region. rng is the only source of randomness; the same seed, grid, palette
// and options always produce the same result.
func Quantize(grid *raster.ColorGrid, p palette.Palette, opts Options, rng *rand.Rand) (*IDGrid, error) {
	if grid.Empty() {
		return nil, fmt.Errorf("%w: empty colour grid", ErrInvalidInput)
	}
	if p.Len() < 1 {
		return nil, fmt.Errorf("%w: empty palette", ErrInvalidInput)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidInput)
	}
	rows, cols := grid.Rows/opts.RegionSize, grid.Cols/opts.RegionSize
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d grid is smaller than one %d-sample region",
			ErrInvalidInput, grid.Rows, grid.Cols, opts.RegionSize)
	}

	refs := references(p)
	ids := p.IDs()
	out := &IDGrid{Rows: rows, Cols: cols, IDs: make([]palette.ID, rows*cols)}
	s := newSampler(len(ids))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			mean := s.regionMean(grid, r*opts.RegionSize, c*opts.RegionSize, opts.RegionSize)
			s.weigh(mean[:], refs, opts.Sharpness)
			out.IDs[r*cols+c] = ids[s.draw(rng)]
		}
	}
	return out, nil
}

// RegionMean averages each channel over the size×size block whose top-left
// sample is (row, col).
func RegionMean(grid *raster.ColorGrid, row, col, size int) [3]float64 {
	return channelMeans(grid.Region([3][]float64{}, row, col, size))
}

func channelMeans(ch [3][]float64) [3]float64 {
	return [3]float64{stat.Mean(ch[0], nil), stat.Mean(ch[1], nil), stat.Mean(ch[2], nil)}
}

// Probabilities returns the sampling distribution over p's identifiers (in
// the order of p.IDs) for a region whose mean colour is mean.
func Probabilities(mean [3]float64, p palette.Palette, sharpness float64) []float64 {
	s := newSampler(p.Len())
	s.weigh(mean[:], references(p), sharpness)
	return s.probs
}

func references(p palette.Palette) [][]float64 {
	refs := make([][]float64, p.Len())
	for i := range refs {
		refs[i] = p.RGB(i)
	}
	return refs
}

// sampler reuses its buffers across regions.
type sampler struct {
	dist   []float64
	probs  []float64
	cdf    []float64
	region [3][]float64
}

func newSampler(n int) *sampler {
	return &sampler{
		dist:  make([]float64, n),
		probs: make([]float64, n),
		cdf:   make([]float64, n),
	}
}

func (s *sampler) regionMean(grid *raster.ColorGrid, row, col, size int) [3]float64 {
	s.region = grid.Region(s.region, row, col, size)
	return channelMeans(s.region)
}

// weigh fills probs with the normalized exp(-α·d) weights. Distances are
// shifted by their minimum first; the distribution is unchanged but the
// closest paint always has weight 1, so the total never underflows to zero.
func (s *sampler) weigh(mean []float64, refs [][]float64, alpha float64) {
	for i, ref := range refs {
		s.dist[i] = floats.Distance(mean, ref, 2)
	}
	dmin := floats.Min(s.dist)
	for i, d := range s.dist {
		s.probs[i] = math.Exp(-alpha * (d - dmin))
	}
	floats.Scale(1/floats.Sum(s.probs), s.probs)
}

// draw inverts the cumulative distribution at a uniform variate.
func (s *sampler) draw(rng *rand.Rand) int {
	floats.CumSum(s.cdf, s.probs)
	u := rng.Float64()
	i := sort.Search(len(s.cdf), func(i int) bool { return s.cdf[i] > u })
	if i < len(s.cdf) {
		return i
	}
	// Rounding left the total just below u; use the last paint that
	// carries any weight.
	last := len(s.probs) - 1
	for last > 0 && s.probs[last] == 0 {
		last--
	}
	return last
}
