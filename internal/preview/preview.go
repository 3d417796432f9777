// Package preview renders quick top-down views of an aggregated point cloud
// for eyeballing a session before loading the .xyz into a proper viewer.
package preview

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoPoints is returned when asked to render an empty collection.
var ErrNoPoints = errors.New("no points to render")

// MaxHTMLPoints caps the points embedded in an HTML preview; larger clouds
// are strided down.
const MaxHTMLPoints = 20000

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// bounds returns a symmetric half-extent covering every X/Y coordinate and
// the Z range, with a little padding so edge points stay visible.
func bounds(points []r3.Vec) (pad, zMin, zMax float64) {
	maxAbs := 0.0
	zMin, zMax = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
		zMin = math.Min(zMin, p.Z)
		zMax = math.Max(zMax, p.Z)
	}
	pad = maxAbs * 1.05
	if pad == 0 {
		pad = 1
	}
	if zMax == zMin {
		zMax = zMin + 1
	}
	return pad, zMin, zMax
}

// WriteHTML renders an interactive X/Y scatter coloured by Z.
func WriteHTML(w io.Writer, title string, points []r3.Vec) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	stride := 1
	if len(points) > MaxHTMLPoints {
		stride = int(math.Ceil(float64(len(points)) / float64(MaxHTMLPoints)))
	}
	data := make([]opts.ScatterData, 0, len(points)/stride+1)
	for i := 0; i < len(points); i += stride {
		p := points[i]
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
	}
	pad, zMin, zMax := bounds(points)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(zMin),
			Max:        float32(zMax),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WritePNG renders a static top-down X/Y scatter.
func WritePNG(w io.Writer, title string, points []r3.Vec) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	xys := make(plotter.XYs, len(points))
	for i, p := range points {
		xys[i] = plotter.XY{X: p.X, Y: p.Y}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	pad, _, _ := bounds(points)
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	s.GlyphStyle.Radius = vg.Points(1)
	p.Add(s)

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
