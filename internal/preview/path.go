package preview

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/palette"
)

// PathPlot draws the head's XY travel as a thin line and each block's
// dispense positions in the block's paint. Paints are matched to p by name;
// unknown names are drawn black.
func PathPlot(prog *gcode.Program, p palette.Palette) (*plot.Plot, error) {
	tr := gcode.TraceLines(prog.Lines)

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("%d dots in %d blocks", len(tr.Dots), len(tr.Paints))
	pl.X.Label.Text = "X (mm)"
	pl.Y.Label.Text = "Y (mm)"
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	if len(tr.Path) > 1 {
		pts := make(plotter.XYs, len(tr.Path))
		for i, pt := range tr.Path {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("travel line: %w", err)
		}
		line.Width = vg.Points(0.5)
		line.Color = color.Gray{Y: 190}
		pl.Add(line)
		pl.Legend.Add("travel", line)
	}

	byName := make(map[string]color.Color)
	for _, e := range p.Entries() {
		byName[e.Name] = palette.RGBA(e.Color)
	}
	for block, name := range tr.Paints {
		var pts plotter.XYs
		for _, d := range tr.Dots {
			if d.Block == block {
				pts = append(pts, plotter.XY{X: d.X, Y: d.Y})
			}
		}
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("dots for %s: %w", name, err)
		}
		col, ok := byName[name]
		if !ok {
			col = color.Black
		}
		sc.GlyphStyle.Color = col
		sc.GlyphStyle.Radius = vg.Points(2)
		pl.Add(sc)
		pl.Legend.Add(name, sc)
	}
	return pl, nil
}

// WritePathPNG renders PathPlot as a PNG of the given size in inches.
func WritePathPNG(w io.Writer, prog *gcode.Program, p palette.Palette, width, height float64) error {
	pl, err := PathPlot(prog, p)
	if err != nil {
		return err
	}
	wt, err := pl.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render path plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePathPlot writes PathPlot to file; the format follows the extension.
func SavePathPlot(file string, prog *gcode.Program, p palette.Palette, width, height float64) error {
	pl, err := PathPlot(prog, p)
	if err != nil {
		return err
	}
	if err := pl.Save(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, file); err != nil {
		return fmt.Errorf("save path plot: %w", err)
	}
	return nil
}
