package palette

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
)

// Swatch renders one tile per paint, left to right in ID order.
func Swatch(p Palette, tile int) *image.RGBA {
	if tile <= 0 {
		tile = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, tile*p.Len(), tile))
	for i, e := range p.entries {
		r := image.Rect(i*tile, 0, (i+1)*tile, tile)
		draw.Draw(img, r, &image.Uniform{C: RGBA(e.Color)}, image.Point{}, draw.Src)
	}
	return img
}

// RGBA converts a normalized colour to 8-bit, clamping out of range values.
func RGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
