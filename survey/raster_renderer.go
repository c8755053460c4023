package survey

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	legendWidth = 110
	legendBarW  = 16
)

// GridRenderer draws the masked grid as a heatmap with a colour legend
type GridRenderer struct {
	Grid   *Grid
	Colors ColorRange
	Title  string
	// CellPixels is the edge length of one grid cell in pixels
	CellPixels int
}

// NewGridRenderer creates a heatmap renderer for a session's grid
func NewGridRenderer(s *Session) *GridRenderer {
	return &GridRenderer{
		Grid:       s.Grid,
		Colors:     s.Colors,
		Title:      s.Info.ID,
		CellPixels: 2,
	}
}

// Render returns the heatmap image. Masked nodes are transparent.
func (r *GridRenderer) Render() (*image.RGBA, error) {
	g := r.Grid
	if g.Len() == 0 {
		return nil, fmt.Errorf("no grid to render")
	}
	cp := r.CellPixels
	if cp < 1 {
		cp = 1
	}

	mapW := g.Cols * cp
	mapH := g.Rows * cp
	height := mapH
	if height < 160 {
		height = 160
	}
	img := image.NewRGBA(image.Rect(0, 0, mapW+legendWidth, height+20))

	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.White)
		}
	}

	for row := 0; row < g.Rows; row++ {
		// row 0 is the southern edge; images grow downwards
		py := 20 + (g.Rows-1-row)*cp
		for col := 0; col < g.Cols; col++ {
			z := g.At(row, col)
			if math.IsNaN(z) {
				continue
			}
			c := r.Colors.Sample(z)
			for dy := 0; dy < cp; dy++ {
				for dx := 0; dx < cp; dx++ {
					img.Set(col*cp+dx, py+dy, c)
				}
			}
		}
	}

	drawText(img, 4, 14, r.Title, color.RGBA{0, 0, 0, 255})
	r.drawLegend(img, mapW+10, 30, height-30)
	return img, nil
}

// drawLegend paints the colour bar with its end values
func (r *GridRenderer) drawLegend(img *image.RGBA, x, y, h int) {
	if h < 20 {
		h = 20
	}
	for i := 0; i < h; i++ {
		t := 1 - float64(i)/float64(h-1)
		v := r.Colors.Min + t*(r.Colors.Max-r.Colors.Min)
		c := r.Colors.Sample(v)
		for dx := 0; dx < legendBarW; dx++ {
			img.Set(x+dx, y+i, c)
		}
	}
	black := color.RGBA{0, 0, 0, 255}
	drawText(img, x+legendBarW+4, y+10, fmt.Sprintf("%.3f", r.Colors.Max), black)
	drawText(img, x+legendBarW+4, y+h/2+4, fmt.Sprintf("%.3f", (r.Colors.Min+r.Colors.Max)/2), black)
	drawText(img, x+legendBarW+4, y+h, fmt.Sprintf("%.3f", r.Colors.Min), black)
	drawText(img, x, y+h+14, "[V]", black)
}

// SavePNG renders and writes the heatmap to path
func (r *GridRenderer) SavePNG(path string) error {
	img, err := r.Render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
