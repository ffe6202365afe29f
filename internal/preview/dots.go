// Package preview renders what a painting will look like before any paint
// is used: a raster of dots, an interactive chart in machine coordinates,
// and a plot of the head's travel.
package preview

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/vector"

	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/quantize"
)

// DefaultDot is the dot pitch in pixels used when none is given.
const DefaultDot = 8

// DotImage draws every cell of ids as a round dot of its paint on a canvas
// of the background colour (white without a background). Each cell spans
// dot pixels.
func DotImage(ids *quantize.IDGrid, p palette.Palette, dot int) *image.RGBA {
	if dot < 1 {
		dot = DefaultDot
	}
	img := image.NewRGBA(image.Rect(0, 0, ids.Cols*dot, ids.Rows*dot))

	var bg color.Color = color.White
	if p.Contains(p.Background()) {
		bg = palette.RGBA(p.Color(p.Background()))
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	mask := diskMask(dot)
	for r := 0; r < ids.Rows; r++ {
		for c, id := range ids.Row(r) {
			if id == p.Background() {
				continue
			}
			cell := image.Rect(c*dot, r*dot, (c+1)*dot, (r+1)*dot)
			src := image.NewUniform(palette.RGBA(p.Color(id)))
			draw.DrawMask(img, cell, src, image.Point{}, mask, image.Point{}, draw.Over)
		}
	}
	return img
}

// diskMask is an anti-aliased filled circle inscribed in a size×size
// square. Dots smaller than three pixels fill the whole cell.
func diskMask(size int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	if size < 3 {
		draw.Draw(mask, mask.Bounds(), image.Opaque, image.Point{}, draw.Src)
		return mask
	}
	r := vector.NewRasterizer(size, size)
	c := float32(size) / 2
	rad := c * 0.9
	// Four cubic arcs; k places the control points for a quarter circle.
	k := rad * 0.5523
	r.MoveTo(c+rad, c)
	r.CubeTo(c+rad, c+k, c+k, c+rad, c, c+rad)
	r.CubeTo(c-k, c+rad, c-rad, c+k, c-rad, c)
	r.CubeTo(c-rad, c-k, c-k, c-rad, c, c-rad)
	r.CubeTo(c+k, c-rad, c+rad, c-k, c+rad, c)
	r.ClosePath()
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
