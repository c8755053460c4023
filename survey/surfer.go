package survey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Surfer 6 binary grid layout: "DSBB", int16 nx, int16 ny, float64 xlo, xhi,
// ylo, yhi, zlo, zhi, then nx*ny float32 values row by row from ylo upwards.
const (
	surferTag = "DSBB"
	// SurferBlank marks a missing node
	SurferBlank = 1.70141e38
)

// ErrNotSurferGrid is returned when a file does not start with the DSBB tag
var ErrNotSurferGrid = errors.New("not a Surfer 6 binary grid")

// ErrEmptyGrid is returned when a grid has no value left to write
var ErrEmptyGrid = errors.New("grid has no unmasked values")

type surferHeader struct {
	Tag      [4]byte
	NX, NY   int16
	XLo, XHi float64
	YLo, YHi float64
	ZLo, ZHi float64
}

// SurferGrid is the decoded content of a DSBB file
type SurferGrid struct {
	Cols, Rows int
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
	// Values is row-major, NaN for blanked nodes
	Values []float64
}

// EncodeSurferGrid writes g as a Surfer 6 binary grid
func EncodeSurferGrid(w io.Writer, g *Grid) error {
	if g.Len() == 0 {
		return ErrEmptyGrid
	}
	if g.Cols > math.MaxInt16 || g.Rows > math.MaxInt16 {
		return fmt.Errorf("grid %dx%d exceeds Surfer 6 limits", g.Cols, g.Rows)
	}

	b := g.Bounds()
	zlo, zhi := g.ZRange()
	h := surferHeader{
		NX: int16(g.Cols), NY: int16(g.Rows),
		XLo: b.Min[0], XHi: b.Max[0],
		YLo: b.Min[1], YHi: b.Max[1],
		ZLo: zlo, ZHi: zhi,
	}
	copy(h.Tag[:], surferTag)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := make([]float32, len(g.Z))
	for i, z := range g.Z {
		if math.IsNaN(z) {
			values[i] = SurferBlank
			continue
		}
		values[i] = float32(z)
	}
	if err := binary.Write(w, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("write values: %w", err)
	}
	return nil
}

// DecodeSurferGrid reads a Surfer 6 binary grid
func DecodeSurferGrid(r io.Reader) (*SurferGrid, error) {
	var h surferHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(h.Tag[:]) != surferTag {
		return nil, ErrNotSurferGrid
	}
	if h.NX < 0 || h.NY < 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", h.NX, h.NY)
	}

	raw := make([]float32, int(h.NX)*int(h.NY))
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	sg := &SurferGrid{
		Cols: int(h.NX), Rows: int(h.NY),
		XMin: h.XLo, XMax: h.XHi,
		YMin: h.YLo, YMax: h.YHi,
		ZMin: h.ZLo, ZMax: h.ZHi,
		Values: make([]float64, len(raw)),
	}
	for i, v := range raw {
		if v >= SurferBlank {
			sg.Values[i] = math.NaN()
			continue
		}
		sg.Values[i] = float64(v)
	}
	return sg, nil
}

// WriteSurferGrid writes g to path, creating parent directories. A grid whose
// mask removed every value is not written and yields ErrEmptyGrid.
func WriteSurferGrid(path string, g *Grid) error {
	if g.Empty() {
		return ErrEmptyGrid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create grid file: %w", err)
	}
	if err := EncodeSurferGrid(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSurferGrid reads a Surfer 6 binary grid from path
func ReadSurferGrid(path string) (*SurferGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid file: %w", err)
	}
	defer f.Close()
	return DecodeSurferGrid(f)
}
