package survey

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxHTMLGridNodes caps the heatmap series; larger grids are strided
const maxHTMLGridNodes = 20000

// rdBuRHex is rdBuR as CSS colours for the chart visual maps
func rdBuRHex() []string {
	out := make([]string, len(rdBuR))
	for i, c := range rdBuR {
		out[i] = hexColor(c)
	}
	return out
}

// RenderHTML renders the interactive session figure: the measurement points
// coloured by the normalised field, the masked grid and the voltage profile
// along the walk.
func RenderHTML(s *Session, w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = s.Info.ID
	page.AddCharts(pointsChart(s))
	if !s.Grid.Empty() {
		page.AddCharts(gridChart(s))
	}
	page.AddCharts(profileChart(s))
	return page.Render(w)
}

// WriteHTML writes RenderHTML to path
func WriteHTML(s *Session, path string) error {
	return writeFile(path, func(f *os.File) error {
		return RenderHTML(s, f)
	})
}

func fieldVisualMap(cr ColorRange) opts.VisualMap {
	return opts.VisualMap{
		Show:       opts.Bool(true),
		Calculable: opts.Bool(true),
		Min:        float32(cr.Min),
		Max:        float32(cr.Max),
		Dimension:  "2",
		InRange:    &opts.VisualMapInRange{Color: rdBuRHex()},
	}
}

func pointsChart(s *Session) *charts.Scatter {
	meas := make([]opts.ScatterData, 0, len(s.Points))
	var input []opts.ScatterData
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		switch p.Attribute {
		case AttrMeas:
			if math.IsNaN(p.VoltageNorm) {
				continue
			}
			meas = append(meas, opts.ScatterData{Name: p.ID, Value: []interface{}{p.X, p.Y, p.VoltageNorm}})
		case AttrPlus, AttrMinus:
			input = append(input, opts.ScatterData{Name: string(p.Attribute), Value: []interface{}{p.X, p.Y}})
		}
	}

	subtitle := fmt.Sprintf("%d lines", len(s.Lines))
	if !math.IsNaN(s.RefAngle) {
		subtitle += fmt.Sprintf(", reference %.1f°", s.RefAngle)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Info.ID, Width: "900px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Info.ID, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x [m]", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y [m]", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(fieldVisualMap(s.Colors)),
	)
	scatter.AddSeries("voltage_norm", meas, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	if len(input) > 0 {
		scatter.AddSeries("input", input,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(currentStroke)}))
	}
	return scatter
}

func gridChart(s *Session) *charts.Scatter {
	g := s.Grid
	stride := 1
	if n := g.Len(); n > maxHTMLGridNodes {
		stride = int(math.Ceil(math.Sqrt(float64(n) / maxHTMLGridNodes)))
	}

	nodes := make([]opts.ScatterData, 0, g.Len()/(stride*stride)+1)
	for r := 0; r < g.Rows; r += stride {
		for c := 0; c < g.Cols; c += stride {
			i := r*g.Cols + c
			if math.IsNaN(g.Z[i]) {
				continue
			}
			nodes = append(nodes, opts.ScatterData{Value: []interface{}{g.X[i], g.Y[i], g.Z[i]}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "Interpolated field", Subtitle: fmt.Sprintf("%dx%d nodes, stride %d", g.Cols, g.Rows, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x [m]", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y [m]", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(fieldVisualMap(s.Colors)),
	)
	scatter.AddSeries("grid", nodes, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	return scatter
}

// profileChart plots raw and normalised voltage in recording order
func profileChart(s *Session) *charts.Line {
	var x []int
	var raw, norm []opts.LineData
	for _, p := range s.Points {
		if !p.IsMeas() {
			continue
		}
		x = append(x, p.PointID)
		raw = append(raw, opts.LineData{Value: chartValue(p.VoltageRaw)})
		norm = append(norm, opts.LineData{Value: chartValue(p.VoltageNorm)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Voltage profile"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "point"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "V"}),
	)
	line.SetXAxis(x).
		AddSeries("voltage_raw", raw).
		AddSeries("voltage_norm", norm)
	return line
}

// chartValue maps NaN to "-", which echarts draws as a gap
func chartValue(v float64) interface{} {
	if math.IsNaN(v) {
		return "-"
	}
	return v
}
