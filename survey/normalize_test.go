package survey

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facingPoints(facing float64, raw ...float64) []Point {
	points := make([]Point, len(raw))
	for i, v := range raw {
		points[i] = newPoint()
		points[i].Attribute = AttrMeas
		points[i].VoltageRaw = v
		points[i].RefFacing = facing
	}
	return points
}

func normOf(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.VoltageNorm
	}
	return out
}

func TestNormalizeField_FacingAway(t *testing.T) {
	got, flipped := NormalizeField(facingPoints(180, 1, 2, 3))

	assert.False(t, flipped)
	assert.Equal(t, []float64{1, 2, 3}, normOf(got))
	for _, p := range got {
		assert.Equal(t, 1.0, p.VoltageK)
	}
}

func TestNormalizeField_FacingTowardsFlipsBack(t *testing.T) {
	got, flipped := NormalizeField(facingPoints(0, 1, 2, 3))

	// per-point pass gives -1,-2,-3; the negative median flips the column
	assert.True(t, flipped)
	assert.Equal(t, []float64{1, 2, 3}, normOf(got))
	for _, p := range got {
		assert.Equal(t, 1.0, p.VoltageK)
	}
}

func TestNormalizeField_GlobalSignInvariant(t *testing.T) {
	a, _ := NormalizeField(facingPoints(180, 0.5, -0.2, 1.5, 2))
	b, _ := NormalizeField(facingPoints(180, -0.5, 0.2, -1.5, -2))
	assert.Equal(t, normOf(a), normOf(b))
}

func TestApplyFacingPolarity_NegatedInputInverts(t *testing.T) {
	points := facingPoints(180, 0.5, -0.2, 1.5, 2)
	points[2].RefFacing = 20
	negated := facingPoints(180, -0.5, 0.2, -1.5, -2)
	negated[2].RefFacing = 20

	a := normOf(applyFacingPolarity(points))
	b := normOf(applyFacingPolarity(negated))
	for i := range a {
		assert.Equal(t, -a[i], b[i], "point %d", i)
	}
}

func TestNormalizeField_ZeroMedianKeepsSign(t *testing.T) {
	a, flippedA := NormalizeField(facingPoints(180, -1, 0, 1))
	b, flippedB := NormalizeField(facingPoints(180, 1, 0, -1))

	assert.False(t, flippedA)
	assert.False(t, flippedB)
	assert.Equal(t, []float64{-1, 0, 1}, normOf(a))
	assert.Equal(t, []float64{1, 0, -1}, normOf(b))
}

func TestNormalizeField_MixedFacing(t *testing.T) {
	points := facingPoints(180, 1, 1, 1, 1)
	points[1].RefFacing = 10
	points[2].RefFacing = -170

	got, flipped := NormalizeField(points)
	assert.False(t, flipped)
	assert.Equal(t, []float64{1, -1, 1, 1}, normOf(got))
}

func TestNormalizeField_RoundsAndKeepsNaN(t *testing.T) {
	got, _ := NormalizeField(facingPoints(180, 1.23456, math.NaN(), 2))
	require.Len(t, got, 3)
	assert.Equal(t, 1.235, got[0].VoltageNorm)
	assert.True(t, math.IsNaN(got[1].VoltageNorm))
}

func TestNormalizeField_DoesNotModifyInput(t *testing.T) {
	points := facingPoints(0, 1, 2, 3)
	NormalizeField(points)
	for _, p := range points {
		assert.True(t, math.IsNaN(p.VoltageNorm))
	}
}
