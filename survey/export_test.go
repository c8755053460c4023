package survey

import (
	"bufio"
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// processedInto runs the fixture with its artifacts rooted at dir
func processedInto(t *testing.T, dir string, rows []fixtureRow) *Session {
	t.Helper()
	path := writeSessionFile(t, t.TempDir(), fixtureName, buildLog("", rows))
	s, err := NewPipeline(testProcessConfig()).Process(path, PassthroughResolver{}, dir)
	require.NoError(t, err)
	return s
}

func TestExporter_AllFormats(t *testing.T) {
	s := processedInto(t, t.TempDir(), append(serpentine(4, 20), electrodes()...))
	e := NewExporter(ExportOptions{Formats: AllFormats, GeographicGrid: true, VectorResolution: 50})

	written, err := e.Export(s)
	require.NoError(t, err)
	require.Len(t, written, len(AllFormats))

	for _, format := range AllFormats {
		path, ok := e.ArtifactPath(s, format)
		require.True(t, ok, format)
		assert.Equal(t, path, written[format])
		info, err := os.Stat(path)
		if assert.NoError(t, err, format) {
			assert.Positive(t, info.Size(), format)
		}
		assert.True(t, strings.HasPrefix(path, s.Info.OutputPrefix), "%s written to %s", format, path)
	}

	sg, err := ReadSurferGrid(written[FormatGRD])
	require.NoError(t, err)
	assert.Equal(t, s.Grid.Cols, sg.Cols)
	assert.InDelta(t, 16.37, sg.XMin, 0.05, "geographic grid holds longitudes")

	for _, format := range []string{FormatPNG, FormatGridPNG, FormatDiag} {
		f, err := os.Open(written[format])
		require.NoError(t, err)
		_, err = png.Decode(f)
		f.Close()
		assert.NoError(t, err, "%s is not a PNG", format)
	}
}

func TestExporter_ProjectedGrid(t *testing.T) {
	s := processedInto(t, t.TempDir(), serpentine(3, 10))
	written, err := NewExporter(ExportOptions{Formats: []string{FormatGRD}}).Export(s)
	require.NoError(t, err)

	sg, err := ReadSurferGrid(written[FormatGRD])
	require.NoError(t, err)
	b := s.Grid.Bounds()
	assert.Equal(t, b.Min[0], sg.XMin)
	assert.Equal(t, b.Max[1], sg.YMax)
}

func TestExporter_NoGrid(t *testing.T) {
	rows := []fixtureRow{
		{X: 0, Y: 0, Voltage: 0.2, Attr: AttrMeas, Compass: 90},
		{X: 1, Y: 0, Voltage: 0.3, Attr: AttrMeas, Compass: 90},
	}
	s := processedInto(t, t.TempDir(), rows)
	e := NewExporter(ExportOptions{Formats: []string{FormatGRD, FormatGridPNG, FormatXLSX}})

	written, err := e.Export(s)
	require.NoError(t, err, "a session without grid is not an export failure")
	assert.NotContains(t, written, FormatGRD)
	assert.NotContains(t, written, FormatGridPNG)
	assert.Contains(t, written, FormatXLSX)

	path, _ := e.ArtifactPath(s, FormatGRD)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExporter_MaskedGridIsEmpty(t *testing.T) {
	s := processedInto(t, t.TempDir(), serpentine(3, 10))
	masked := *s.Grid
	masked.Z = make([]float64, len(s.Grid.Z))
	for i := range masked.Z {
		masked.Z[i] = math.NaN()
	}
	s.Grid = &masked

	e := NewExporter(ExportOptions{Formats: []string{FormatGRD}})
	err := e.writeGrid(s, filepath.Join(t.TempDir(), "g.grd"))
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Contains(t, err.Error(), "masked grid is empty")
}

func TestExporter_Errors(t *testing.T) {
	s := processedInto(t, t.TempDir(), serpentine(3, 10))

	_, err := NewExporter(ExportOptions{Formats: []string{"pdf"}}).Export(s)
	assert.ErrorContains(t, err, `unknown format "pdf"`)

	e := NewExporter(ExportOptions{Formats: []string{FormatBLN, FormatGeoJSON}})
	boom := errors.New("disk full")
	e.sinks[FormatBLN] = sink{".bln", func(*Session, string) error { return boom }}
	written, err := e.Export(s)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, written, FormatGeoJSON, "other formats are still written")
	assert.NotContains(t, written, FormatBLN)

	_, ok := e.ArtifactPath(s, "pdf")
	assert.False(t, ok)
}

func TestExportOptionsFromConfig(t *testing.T) {
	c := DefaultConfig()
	c.Output.VectorResolution = 72
	opts := ExportOptionsFromConfig(c)
	assert.Equal(t, c.Output.Formats, opts.Formats)
	assert.True(t, opts.GeographicGrid)
	assert.Equal(t, 72.0, opts.VectorResolution)
}

func TestWriteFile_RemovesOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.txt")
	err := writeFile(path, func(f *os.File) error { return errors.New("fail") })
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteXLSX(t *testing.T) {
	s := processedFixture(t)
	path := filepath.Join(t.TempDir(), "s.xlsx")
	require.NoError(t, WriteXLSX(s, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"meas", "anomaly", "area", "input"}, f.GetSheetList())

	meas, err := f.GetRows("meas")
	require.NoError(t, err)
	require.Len(t, meas, 81, "header plus 80 measurements")
	assert.Equal(t, "ID", meas[0][0])
	assert.Equal(t, "voltage_norm", meas[0][12])
	assert.Equal(t, s.Points[0].ID, meas[1][0])

	input, err := f.GetRows("input")
	require.NoError(t, err)
	require.Len(t, input, 3)
	assert.Equal(t, "minus", input[1][2])
	assert.Equal(t, "plus", input[2][2])

	anomaly, err := f.GetRows("anomaly")
	require.NoError(t, err)
	assert.Len(t, anomaly, 1, "empty sheets keep the header")
}

func TestWriteBLN(t *testing.T) {
	s := processedFixture(t)
	path := filepath.Join(t.TempDir(), "s.bln")
	require.NoError(t, WriteBLN(s, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())

	outline := s.Footprint.Outline()
	require.Len(t, lines, len(outline)+1)
	assert.Equal(t, strconv.Itoa(len(outline))+",0", lines[0])
	assert.Equal(t, lines[1], lines[len(lines)-1], "ring is closed")
	assert.Len(t, strings.Split(lines[1], ","), 2)

	err = WriteBLN(NewSession(SessionInfo{ID: "E"}, nil), filepath.Join(t.TempDir(), "e.bln"))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestSessionFeatures(t *testing.T) {
	s := processedFixture(t)
	fc := SessionFeatures(s)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	assert.Equal(t, 1, kinds["footprint"])
	assert.Equal(t, 4, kinds["line"])
	assert.Equal(t, 1, kinds["current"])
	assert.Equal(t, 83, kinds["point"])

	// everything is in lon/lat
	b := fc.Features[0].Geometry.Bound()
	assert.InDelta(t, 16.37, b.Min[0], 0.05)
	assert.InDelta(t, 48.2, b.Min[1], 0.1)

	// the session is not reprojected in place
	assert.Greater(t, s.Lines[0].Geometry[0][0], 1e6)
	assert.Greater(t, s.Footprint.Outline()[0][0], 1e6)
}

func TestWriteGeoJSON(t *testing.T) {
	s := processedFixture(t)
	path := filepath.Join(t.TempDir(), "out", "s.geojson")
	require.NoError(t, WriteGeoJSON(s, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	var point *geojson.Feature
	for _, f := range fc.Features {
		if f.ID == s.Points[5].ID {
			point = f
		}
	}
	require.NotNil(t, point, "point features carry the point id")
	assert.Equal(t, "meas", point.Properties.MustString("attribute"))
	assert.Equal(t, s.Points[5].LineID, point.Properties.MustString("ID_line"))
	assert.InDelta(t, s.Points[5].VoltageNorm, point.Properties.MustFloat64("voltage_norm"), 1e-12)
}

func TestRenderHTML(t *testing.T) {
	s := processedFixture(t)
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(s, &buf))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, s.Info.ID)
	assert.Contains(t, html, "Interpolated field")
	assert.Contains(t, html, "Voltage profile")

	path := filepath.Join(t.TempDir(), "s.html")
	require.NoError(t, WriteHTML(s, path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestRenderHTML_WithoutGrid(t *testing.T) {
	s := processedFixture(t)
	s.Grid = nil
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(s, &buf))
	assert.NotContains(t, buf.String(), "Interpolated field")
}

func TestChartValue(t *testing.T) {
	assert.Equal(t, "-", chartValue(math.NaN()))
	assert.Equal(t, 1.5, chartValue(1.5))
}

func TestSaveSegmentationPlot(t *testing.T) {
	s := processedFixture(t)
	path := filepath.Join(t.TempDir(), "diag", "s_diag.png")
	require.NoError(t, SaveSegmentationPlot(s, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestLineColors(t *testing.T) {
	colors := lineColors(4)
	require.Len(t, colors, 4)
	seen := map[[3]uint32]bool{}
	for _, c := range colors {
		r, g, b, _ := c.RGBA()
		seen[[3]uint32{r, g, b}] = true
	}
	assert.Len(t, seen, 4, "distinct hues")

	r, g, b := hslToRGB(0, 1, 0.5)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
}
