package survey

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func normPoints(values ...float64) []Point {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = newPoint()
		points[i].Attribute = AttrMeas
		points[i].VoltageNorm = v
		points[i].VoltageRaw = v
	}
	return points
}

func TestComputeColorRange(t *testing.T) {
	points := normPoints(-1, 0, 1, 2, 3, math.NaN())
	// q40 = 0.6, q60 = 1.4 over the five values
	got := ComputeColorRange(points, nil)
	assert.InDelta(t, -1.4, got.Min, 1e-9)
	assert.InDelta(t, 1.4, got.Max, 1e-9)
	assert.False(t, got.FromHeader)
}

func TestComputeColorRange_Header(t *testing.T) {
	header := &ColorRange{Min: -0.2, Max: 0.7, FromHeader: true}
	assert.Equal(t, *header, ComputeColorRange(normPoints(5, 6, 7), header))
}

func TestComputeColorRange_NoValues(t *testing.T) {
	header := &ColorRange{Min: -3, Max: 3, FromHeader: true}
	assert.Equal(t, DefaultColorRange, ComputeColorRange(normPoints(math.NaN()), header))
	assert.Equal(t, DefaultColorRange, ComputeColorRange(nil, nil))

	// non-measurement rows do not count
	input := normPoints(1, 2)
	input[0].Attribute = AttrPlus
	input[1].Attribute = AttrRef
	assert.Equal(t, DefaultColorRange, ComputeColorRange(input, nil))
}

func TestColorRange_Sample(t *testing.T) {
	cr := ColorRange{Min: -1, Max: 1}

	assert.Equal(t, rdBuR[0], cr.Sample(-1))
	assert.Equal(t, rdBuR[0], cr.Sample(-50), "clamped below")
	assert.Equal(t, rdBuR[len(rdBuR)-1], cr.Sample(1))
	assert.Equal(t, rdBuR[len(rdBuR)-1], cr.Sample(50), "clamped above")
	assert.Equal(t, rdBuR[5], cr.Sample(0))
	assert.Equal(t, MissingColor, cr.Sample(math.NaN()))

	flat := ColorRange{Min: 2, Max: 2}
	assert.Equal(t, rdBuR[5], flat.Sample(100))
}

func TestColorRange_SampleInterpolates(t *testing.T) {
	cr := ColorRange{Min: 0, Max: 10}
	// halfway between the first two stops
	got := cr.Sample(0.5)
	assert.Equal(t, color.RGBA{R: 19, G: 75, B: 135, A: 255}, got)
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#053061", hexColor(rdBuR[0]))
	assert.Equal(t, "#ff00ff", hexColor(MissingColor))
	assert.Equal(t, "#67001f", ColorRange{Min: 0, Max: 1}.Hex(1))
}

func TestAssignColors(t *testing.T) {
	points := normPoints(-1, 1, math.NaN())
	points[0].VoltageRaw = 1

	got := AssignColors(points, ColorRange{Min: -1, Max: 1})
	assert.Equal(t, "#053061", got[0].ColorNorm)
	assert.Equal(t, "#67001f", got[0].ColorRaw)
	assert.Equal(t, "#ff00ff", got[2].ColorNorm)
	assert.Empty(t, points[0].ColorNorm, "input untouched")
}
