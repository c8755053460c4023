package survey

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentedJump(t *testing.T) []Point {
	t.Helper()
	points := walk(
		[2]float64{0, 0}, [2]float64{1, 0}, [2]float64{2, 0},
		[2]float64{10, 0}, [2]float64{11, 0}, [2]float64{12, 0},
	)
	for i := range points {
		points[i].Compass = 80
	}
	return Segment(points, DefaultSegmentConfig())
}

func TestBuildLines(t *testing.T) {
	lines := BuildLines("S", segmentedJump(t))
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "S_000", first.ID)
	assert.Equal(t, []int{0, 1, 2}, first.Members)
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {2, 0}}, first.Geometry)
	assert.Equal(t, 2.0, first.Length)
	assert.Equal(t, 90.0, first.Heading)
	assert.InDelta(t, 80.0, first.Compass, 1e-9)
	assert.Equal(t, 90.0, first.Angle)

	second := lines[1]
	assert.Equal(t, "S_001", second.ID)
	assert.Equal(t, []int{3, 4, 5}, second.Members)
	assert.Equal(t, 90.0, second.Heading, "trailing NaN heading is ignored")
}

func TestBuildLines_SkipsUnassignedAndPadsSingles(t *testing.T) {
	points := walk([2]float64{0, 0}, [2]float64{1, 1}, [2]float64{5, 5}, [2]float64{9, 9})
	points[0].Line = 0
	points[1].Line = 0
	points[2].Line = 1
	// points[3] keeps NoLine

	lines := BuildLines("S", points)
	require.Len(t, lines, 2)

	single := lines[1]
	assert.Equal(t, []int{2}, single.Members)
	assert.Equal(t, orb.LineString{{5, 5}, {5, 5}}, single.Geometry)
	assert.Equal(t, 0.0, single.Length)
	assert.True(t, math.IsNaN(single.Angle), "zero-length line has no orientation")
}

func TestBuildLines_Empty(t *testing.T) {
	assert.Empty(t, BuildLines("S", nil))
	assert.Empty(t, BuildLines("S", walk([2]float64{0, 0})))
}

func TestLineAngle(t *testing.T) {
	tests := []struct {
		name string
		ls   orb.LineString
		want float64
	}{
		{"east", orb.LineString{{0, 0}, {1, 0}}, 90},
		{"west folds onto east", orb.LineString{{1, 0}, {0, 0}}, 90},
		{"north", orb.LineString{{0, 0}, {0, 3}}, 0},
		{"south-west", orb.LineString{{0, 0}, {-1, -1}}, 45},
		{"north-west", orb.LineString{{0, 0}, {-1, 1}}, 135},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, lineAngle(tt.ls), 1e-9)
		})
	}
	assert.True(t, math.IsNaN(lineAngle(nil)))
}

func TestMergeLineData(t *testing.T) {
	points := segmentedJump(t)
	lines := BuildLines("S", points)

	merged := MergeLineData(points, lines)
	require.Len(t, merged, len(points))

	for i, p := range merged {
		want := "S_000"
		if i >= 3 {
			want = "S_001"
		}
		assert.Equal(t, want, p.LineID, "point %d", i)
		assert.Equal(t, 90.0, p.LineHeading)
		assert.InDelta(t, 10.0, p.LineHeadingDiff, 1e-9)
	}
	assert.Equal(t, 2.0, merged[0].LineLength)

	// the source slice is untouched
	assert.Empty(t, points[0].LineID)
	assert.True(t, math.IsNaN(points[0].LineHeading))
}
