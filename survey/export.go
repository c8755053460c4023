package survey

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tdewolff/canvas"
)

// ErrNothingToExport is returned by a sink when the session has no content
// for its format. The exporter logs it and moves on.
var ErrNothingToExport = errors.New("nothing to export")

// ExportOptions selects the artifacts written for every session
type ExportOptions struct {
	Formats []string
	// GeographicGrid writes the .grd with lon/lat node coordinates
	GeographicGrid bool
	// VectorResolution is the PNG map DPI
	VectorResolution float64
}

// ExportOptionsFromConfig derives the export options from the configuration
func ExportOptionsFromConfig(c *Config) ExportOptions {
	return ExportOptions{
		Formats:          c.Output.Formats,
		GeographicGrid:   c.Processing.Grid.Geographic,
		VectorResolution: c.Output.VectorResolution,
	}
}

// sink writes one artifact for a session
type sink struct {
	suffix string
	write  func(s *Session, path string) error
}

// Exporter writes session artifacts next to each other under the session's
// output prefix.
type Exporter struct {
	opts  ExportOptions
	sinks map[string]sink
}

// NewExporter creates an exporter for the given formats
func NewExporter(opts ExportOptions) *Exporter {
	e := &Exporter{opts: opts}
	e.sinks = map[string]sink{
		FormatXLSX:    {".xlsx", WriteXLSX},
		FormatGRD:     {".grd", e.writeGrid},
		FormatHTML:    {".html", WriteHTML},
		FormatBLN:     {".bln", WriteBLN},
		FormatGeoJSON: {".geojson", WriteGeoJSON},
		FormatSVG:     {".svg", e.writeSVG},
		FormatPNG:     {".png", e.writePNG},
		FormatGridPNG: {"_grid.png", writeGridPNG},
		FormatDiag:    {"_diag.png", SaveSegmentationPlot},
	}
	return e
}

// ArtifactPath returns where format would be written for the session
func (e *Exporter) ArtifactPath(s *Session, format string) (string, bool) {
	sk, ok := e.sinks[format]
	if !ok {
		return "", false
	}
	return s.Info.OutputPath(sk.suffix), true
}

// Export writes every configured format and returns format -> path for the
// artifacts actually written. A failing sink does not stop the others; all
// failures are returned joined.
func (e *Exporter) Export(s *Session) (map[string]string, error) {
	written := make(map[string]string)
	var errs []error
	for _, format := range e.opts.Formats {
		sk, ok := e.sinks[format]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown format %q", format))
			continue
		}
		path := s.Info.OutputPath(sk.suffix)
		err := sk.write(s, path)
		switch {
		case errors.Is(err, ErrNothingToExport):
			log.Printf("[%s] %s not exported: %v", s.Info.ID, format, err)
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", format, err))
		default:
			written[format] = path
		}
	}
	return written, errors.Join(errs...)
}

// writeGrid writes the Surfer grid. An absent or fully masked grid is not an
// error.
func (e *Exporter) writeGrid(s *Session, path string) error {
	if s.Grid == nil {
		return fmt.Errorf("%w: no grid produced", ErrNothingToExport)
	}
	if s.Grid.Empty() {
		log.Println("Grid not exported - masked grid is empty!")
		return fmt.Errorf("%w: masked grid is empty", ErrNothingToExport)
	}
	g := s.Grid
	if e.opts.GeographicGrid {
		g = g.Reproject()
	}
	return WriteSurferGrid(path, g)
}

func (e *Exporter) vectorRenderer(s *Session) *VectorRenderer {
	r := NewVectorRenderer(s)
	if e.opts.VectorResolution > 0 {
		r.Resolution = canvas.DPI(e.opts.VectorResolution)
	}
	return r
}

func (e *Exporter) writeSVG(s *Session, path string) error {
	return writeFile(path, func(f *os.File) error {
		return e.vectorRenderer(s).RenderToSVG(f)
	})
}

func (e *Exporter) writePNG(s *Session, path string) error {
	return writeFile(path, func(f *os.File) error {
		return e.vectorRenderer(s).RenderToPNG(f)
	})
}

func writeGridPNG(s *Session, path string) error {
	if s.Grid.Empty() {
		return fmt.Errorf("%w: no grid values", ErrNothingToExport)
	}
	return NewGridRenderer(s).SavePNG(path)
}

// writeFile creates path and its directory, removing the file again if fill
// fails
func writeFile(path string, fill func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
