package preview

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/quantize"
)

// AssetsHost serves the echarts scripts. It can be pointed at a local copy
// for offline use.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Chart plots every dot at its machine position, one series per paint so
// the legend can toggle colours.
func Chart(ids *quantize.IDGrid, p palette.Palette, layout gcode.Layout, title string) *charts.Scatter {
	scatter := charts.NewScatter()
	total := 0
	for block, id := range gcode.Paints(p) {
		var data []opts.ScatterData
		for r := 0; r < ids.Rows; r++ {
			for c, cell := range ids.Row(r) {
				if cell != id {
					continue
				}
				pt := layout.Position(r, c, block)
				data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
			}
		}
		if len(data) == 0 {
			continue
		}
		total += len(data)
		e, _ := p.Entry(id)
		scatter.AddSeries(e.Name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: e.Hex()}))
	}

	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d cells, %d dots", ids.Rows, ids.Cols, total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (mm)", NameLocation: "middle", NameGap: 30}),
	)
	return scatter
}

// RenderChart writes the chart as a standalone HTML page.
func RenderChart(w io.Writer, ids *quantize.IDGrid, p palette.Palette, layout gcode.Layout, title string) error {
	return Chart(ids, p, layout, title).Render(w)
}
