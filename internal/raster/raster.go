// Package raster turns image files into grids of normalized RGB samples.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidInput is returned for empty images or non-positive dimensions.
var ErrInvalidInput = errors.New("invalid raster input")

// ColorGrid holds Rows×Cols normalized RGB triples, row-major and
// interleaved.
type ColorGrid struct {
	Rows, Cols int
	Pix        []float64 // len = Rows*Cols*3
}

// NewColorGrid allocates a zeroed (black) grid.
func NewColorGrid(rows, cols int) (*ColorGrid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidInput, rows, cols)
	}
	return &ColorGrid{Rows: rows, Cols: cols, Pix: make([]float64, rows*cols*3)}, nil
}

// Fill builds a grid of a single colour.
func Fill(rows, cols int, c colorful.Color) (*ColorGrid, error) {
	g, err := NewColorGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			g.Set(r, col, c)
		}
	}
	return g, nil
}

// Empty reports whether the grid holds no samples.
func (g *ColorGrid) Empty() bool {
	return g == nil || g.Rows < 1 || g.Cols < 1 || len(g.Pix) < g.Rows*g.Cols*3
}

func (g *ColorGrid) offset(r, c int) int { return (r*g.Cols + c) * 3 }

// At returns the sample at row r, column c.
func (g *ColorGrid) At(r, c int) [3]float64 {
	i := g.offset(r, c)
	return [3]float64{g.Pix[i], g.Pix[i+1], g.Pix[i+2]}
}

// Color is At as a colorful.Color.
func (g *ColorGrid) Color(r, c int) colorful.Color {
	v := g.At(r, c)
	return colorful.Color{R: v[0], G: v[1], B: v[2]}
}

// Set stores c at row r, column c.
func (g *ColorGrid) Set(r, col int, c colorful.Color) {
	i := g.offset(r, col)
	g.Pix[i], g.Pix[i+1], g.Pix[i+2] = c.R, c.G, c.B
}

// Region appends the samples of the size×size square whose top-left sample
// is (r0, c0) to dst truncated to zero length, one slice per channel in
// row-major order. Rows and columns past the edge of the grid are left
// out. Passing the previous result back in reuses its storage.
func (g *ColorGrid) Region(dst [3][]float64, r0, c0, size int) [3][]float64 {
	for i := range dst {
		dst[i] = dst[i][:0]
	}
	for r := max(r0, 0); r < min(r0+size, g.Rows); r++ {
		for c := max(c0, 0); c < min(c0+size, g.Cols); c++ {
			i := g.offset(r, c)
			dst[0] = append(dst[0], g.Pix[i])
			dst[1] = append(dst[1], g.Pix[i+1])
			dst[2] = append(dst[2], g.Pix[i+2])
		}
	}
	return dst
}

// FromImage samples every pixel of img. Transparent pixels are composited
// over white, the colour of an unpainted canvas.
func FromImage(img image.Image) (*ColorGrid, error) {
	b := img.Bounds()
	g, err := NewColorGrid(b.Dy(), b.Dx())
	if err != nil {
		return nil, err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			a := float64(c.A) / 0xffff
			i := g.offset(y-b.Min.Y, x-b.Min.X)
			g.Pix[i] = float64(c.R)/0xffff*a + (1 - a)
			g.Pix[i+1] = float64(c.G)/0xffff*a + (1 - a)
			g.Pix[i+2] = float64(c.B)/0xffff*a + (1 - a)
		}
	}
	return g, nil
}

// Resize scales img to cols×rows with Catmull-Rom resampling. Non-positive
// dimensions leave img unchanged.
func Resize(img image.Image, rows, cols int) image.Image {
	if rows <= 0 || cols <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == cols && b.Dy() == rows {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Decode reads an image in any registered format, resizes it to rows×cols
// and samples it into a ColorGrid.
func Decode(r io.Reader, rows, cols int) (*ColorGrid, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s image has no pixels", ErrInvalidInput, format)
	}
	return FromImage(Resize(img, rows, cols))
}

// Load is Decode on a file path.
func Load(path string, rows, cols int) (*ColorGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f, rows, cols)
}

// LoadImage decodes path without resampling.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
