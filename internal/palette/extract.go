package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Method selects how Extract proposes paint colours from an image.
type Method int

const (
	MethodDominantColor Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ParseMethod accepts the names returned by Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "dominantcolor", "dominant":
		return MethodDominantColor, nil
	case "kmeans":
		return MethodKMeans, nil
	}
	return 0, fmt.Errorf("unknown palette method %q", s)
}

type weightedColor struct {
	col    colorful.Color
	weight float64
}

// Extract proposes a k-paint palette for img. Entries are ordered from
// lightest to darkest and the lightest one becomes the background, which is
// normally the canvas.
func Extract(img image.Image, k int, method Method) (Palette, error) {
	if k < 1 {
		return Palette{}, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	var cols []colorful.Color
	if method == MethodKMeans {
		cols = kmeansColors(img, k)
	}
	if len(cols) == 0 {
		cols = dominantColors(img, k)
	}
	if len(cols) == 0 {
		return Palette{}, fmt.Errorf("%w: no colours found in image", ErrInvalidInput)
	}

	SortByBrightness(cols)
	slices.Reverse(cols)
	entries := make([]Entry, len(cols))
	for i, c := range cols {
		entries[i] = Entry{ID: ID(i), Name: c.Hex(), Color: c}
	}
	return New(entries, 0)
}

// SortByBrightness orders colours from darkest to brightest by relative
// luminance.
func SortByBrightness(cols []colorful.Color) {
	slices.SortStableFunc(cols, func(a, b colorful.Color) int {
		ya, yb := luminance(a), luminance(b)
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		}
		return 0
	})
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func dominantColors(img image.Image, k int) []colorful.Color {
	candidates := dominantcolor.FindWeight(img, max(24, k*8))
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{col: col.Clamped(), weight: c.Weight})
	}
	return selectDiverse(weighted, k)
}

func kmeansColors(img image.Image, k int) []colorful.Color {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	// Subsample so partitioning stays fast on full-size photographs.
	const maxSamples = 12000
	step := 1
	if w*h > maxSamples {
		step = int(math.Sqrt(float64(w*h)/maxSamples)) + 1
	}

	dataset := make(clusters.Observations, 0, min(w*h, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			if c.A == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(c.R) / 0xffff,
				float64(c.G) / 0xffff,
				float64(c.B) / 0xffff,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(max(k*4, k+2), len(dataset)))
	if err != nil || len(cc) == 0 {
		return nil
	}

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{col: col, weight: float64(len(c.Observations))})
	}
	return selectDiverse(weighted, k)
}

// selectDiverse greedily picks k colours, seeded with the heaviest candidate,
// maximising Lab distance to the already selected set scaled by weight.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if len(cands) == 0 {
		return nil
	}
	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, len(cands))
	maxW := 0.0
	for i, c := range cands {
		l, a, b := c.col.Lab()
		w := max(c.weight, 1e-6)
		maxW = max(maxW, w)
		items[i] = item{col: c.col, lab: [3]float64{l, a, b}, w: w}
	}
	k = min(k, len(items))

	seed := 0
	for i := range items {
		if items[i].w > items[seed].w {
			seed = i
		}
	}
	selected := make([]bool, len(items))
	selected[seed] = true
	picked := []int{seed}

	for len(picked) < k {
		bestIdx, bestScore := -1, -1.0
		for i := range items {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range picked {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(items[i].w/maxW))
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		picked = append(picked, bestIdx)
	}

	out := make([]colorful.Color, len(picked))
	for i, idx := range picked {
		out[i] = items[idx].col
	}
	return out
}
