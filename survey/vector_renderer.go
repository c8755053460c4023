package survey

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// Colours used on session maps
var (
	footprintFill   = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	footprintStroke = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	lineStroke      = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	currentStroke   = color.RGBA{R: 230, G: 120, B: 0, A: 255}
	refStroke       = color.RGBA{R: 0, G: 140, B: 70, A: 255}
)

// VectorRenderer draws a session map: footprint, walked lines, points
// coloured by the normalised field, electrode spokes and the direction of
// the reference point.
type VectorRenderer struct {
	Session    *Session
	Scale      float64           // canvas millimetres per survey unit
	Padding    float64           // padding in survey units
	Resolution canvas.Resolution // PNG resolution
	PointSize  float64           // marker radius in survey units
	// GridSpacing draws a coordinate grid every GridSpacing survey units; 0 disables
	GridSpacing float64
}

// NewVectorRenderer creates a renderer with default settings
func NewVectorRenderer(s *Session) *VectorRenderer {
	return &VectorRenderer{
		Session:     s,
		Scale:       4,
		Padding:     5,
		Resolution:  canvas.DPI(150),
		PointSize:   0.35,
		GridSpacing: 10,
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the map as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}
	width, height := r.canvasSize(b)

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, b, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the map as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}
	width, height := r.canvasSize(b)

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)
	return png.Encode(w, rast)
}

func (r *VectorRenderer) canvasSize(b orb.Bound) (float64, float64) {
	width := (b.Max[0] - b.Min[0] + 2*r.Padding) * r.Scale
	height := (b.Max[1] - b.Min[1] + 2*r.Padding) * r.Scale
	return width, height
}

// bounds covers the measurement points and the footprint outline
func (r *VectorRenderer) bounds() (orb.Bound, error) {
	s := r.Session
	if s == nil {
		return orb.Bound{}, fmt.Errorf("no session to render")
	}
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	n := 0
	extend := func(p orb.Point) {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			return
		}
		b = b.Extend(p)
		n++
	}
	for _, p := range s.Points {
		if p.Attribute != AttrRef {
			extend(p.Position())
		}
	}
	for _, p := range s.Footprint.Outline() {
		extend(p)
	}
	if n == 0 {
		return orb.Bound{}, fmt.Errorf("session %s has no positions to render", s.Info.ID)
	}
	return b, nil
}

// renderToCanvas renders the session to a canvas renderer (shared logic for SVG and PNG)
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, b orb.Bound, width, height float64) {
	s := r.Session

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p orb.Point) (float64, float64) {
		return (p[0] - b.Min[0] + r.Padding) * r.Scale, (p[1] - b.Min[1] + r.Padding) * r.Scale
	}
	polyline := func(ls []orb.Point, closed bool) *canvas.Path {
		cp := &canvas.Path{}
		for i, p := range ls {
			x, y := toCanvas(p)
			if i == 0 {
				cp.MoveTo(x, y)
			} else {
				cp.LineTo(x, y)
			}
		}
		if closed {
			cp.Close()
		}
		return cp
	}

	// Footprint
	if outline := s.Footprint.Outline(); len(outline) > 2 {
		fpStyle := canvas.DefaultStyle
		fpStyle.Fill = canvas.Paint{Color: footprintFill}
		fpStyle.Stroke = canvas.Paint{Color: footprintStroke}
		fpStyle.StrokeWidth = 0.1 * r.Scale
		renderer.RenderPath(polyline(outline, true), fpStyle, canvas.Identity)
	}

	// Coordinate grid
	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Lightgray}
		gridStyle.StrokeWidth = 0.05 * r.Scale
		gridStyle.Dashes = []float64{r.Scale, r.Scale}

		minX, maxX := b.Min[0]-r.Padding, b.Max[0]+r.Padding
		minY, maxY := b.Min[1]-r.Padding, b.Max[1]+r.Padding
		for x := math.Ceil(minX/r.GridSpacing) * r.GridSpacing; x <= maxX; x += r.GridSpacing {
			renderer.RenderPath(polyline([]orb.Point{{x, minY}, {x, maxY}}, false), gridStyle, canvas.Identity)
		}
		for y := math.Ceil(minY/r.GridSpacing) * r.GridSpacing; y <= maxY; y += r.GridSpacing {
			renderer.RenderPath(polyline([]orb.Point{{minX, y}, {maxX, y}}, false), gridStyle, canvas.Identity)
		}
	}

	// Walked lines
	lnStyle := canvas.DefaultStyle
	lnStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lnStyle.Stroke = canvas.Paint{Color: lineStroke}
	lnStyle.StrokeWidth = 0.08 * r.Scale
	for _, l := range s.Lines {
		if len(l.Geometry) > 1 {
			renderer.RenderPath(polyline(l.Geometry, false), lnStyle, canvas.Identity)
		}
	}

	// Electrode spokes
	if len(s.Current) > 1 {
		curStyle := lnStyle
		curStyle.Stroke = canvas.Paint{Color: currentStroke}
		curStyle.Dashes = []float64{2 * r.Scale, r.Scale}
		renderer.RenderPath(polyline(s.Current, false), curStyle, canvas.Identity)
	}

	// Direction towards the reference point
	c := s.Footprint.Centroid()
	if !math.IsNaN(s.RefAngle) && !math.IsNaN(c[0]) {
		size := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]) / 4
		tip := ReferencePoint(c, s.RefAngle, size)
		refStyle := lnStyle
		refStyle.Stroke = canvas.Paint{Color: refStroke}
		refStyle.StrokeWidth = 0.15 * r.Scale
		renderer.RenderPath(polyline([]orb.Point{c, tip}, false), refStyle, canvas.Identity)
	}

	// Points
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || p.Attribute == AttrRef {
			continue
		}
		ptStyle := canvas.DefaultStyle
		ptStyle.Stroke = canvas.Paint{Color: canvas.Black}
		ptStyle.StrokeWidth = 0.03 * r.Scale
		radius := r.PointSize * r.Scale
		switch p.Attribute {
		case AttrMeas:
			ptStyle.Fill = canvas.Paint{Color: s.Colors.Sample(p.VoltageNorm)}
		case AttrPlus, AttrMinus:
			ptStyle.Fill = canvas.Paint{Color: currentStroke}
			radius *= 2
		default:
			ptStyle.Fill = canvas.Paint{Color: canvas.Gray}
		}
		x, y := toCanvas(p.Position())
		renderer.RenderPath(canvas.Circle(radius).Translate(x, y), ptStyle, canvas.Identity)
	}
}
