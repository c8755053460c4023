package survey

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const logHeader = "long,lat,voltage,point_id,attribute,attribute_counter,date,time," +
	"compass_x,compass_y,compass_z,lat_int,long_int,hdop,gnss_status,gnss_fix,firmware,serial_number"

// fixtureName follows the logger naming: 39 character session id with the
// datetime tag at 22..39
const fixtureName = "0123456789_ABCDEFGHIJ_2023-05-04_101530_x.csv"

// fixtureOrigin is an EPSG:3857 position near Vienna
var fixtureOrigin = orb.Point{1822000, 6141000}

var fixtureStart = time.Date(2023, 5, 4, 10, 15, 30, 0, time.UTC)

type fixtureRow struct {
	X, Y    float64 // metres from fixtureOrigin
	Voltage float64
	Attr    Attribute
	Compass float64
}

// magAxes returns raw magnetometer readings that ComputeCompass maps back to
// compass, provided the session covers opposite headings.
func magAxes(compass float64) (float64, float64) {
	r := deg2rad(compass - 90)
	return 100 + 50*math.Cos(r), 200 + 50*math.Sin(r)
}

func fieldAt(x, y float64) float64 {
	return math.Exp(-((x-10)*(x-10) + (y-3)*(y-3)) / 10)
}

// serpentine walks n east-west lines of perLine 1 m steps, 2 m apart. The
// instrument reads the field with a polarity that follows the walking
// direction, as a real dipole would.
func serpentine(n, perLine int) []fixtureRow {
	var rows []fixtureRow
	for l := 0; l < n; l++ {
		y := float64(2 * l)
		for i := 0; i < perLine; i++ {
			x := float64(i)
			compass := 90.0
			polarity := -1.0
			if l%2 == 1 {
				x = float64(perLine - 1 - i)
				compass = 270
				polarity = 1
			}
			rows = append(rows, fixtureRow{X: x, Y: y, Voltage: polarity * fieldAt(x, y), Attr: AttrMeas, Compass: compass})
		}
	}
	return rows
}

func electrodes() []fixtureRow {
	return []fixtureRow{
		{X: -20, Y: 3, Voltage: math.NaN(), Attr: AttrMinus, Compass: 90},
		{X: 40, Y: 3, Voltage: math.NaN(), Attr: AttrPlus, Compass: 90},
	}
}

func logRow(id int, r fixtureRow) string {
	ll := project.Mercator.ToWGS84(orb.Point{fixtureOrigin[0] + r.X, fixtureOrigin[1] + r.Y})
	cx, cy := magAxes(r.Compass)
	ts := fixtureStart.Add(time.Duration(id) * time.Second)
	voltage := "nan"
	if !math.IsNaN(r.Voltage) {
		voltage = fmt.Sprintf("%.6f", r.Voltage)
	}
	return fmt.Sprintf("%.10f,%.10f,%s,%d,%s,%d,%s,%s,%.4f,%.4f,%.4f,%.0f,%.0f,0.8,1,3,v1.4,SN0042",
		ll[0], ll[1], voltage, id, r.Attr, id, ts.Format("2006-01-02"), ts.Format("15:04:05"),
		cx, cy, 10.0, ll[1]*1e7, ll[0]*1e7)
}

// buildLog renders a session log. colorHeader, when not empty, is written as
// the leading "cmin,cmax" line.
func buildLog(colorHeader string, rows []fixtureRow) []byte {
	var b strings.Builder
	if colorHeader != "" {
		b.WriteString(colorHeader + "\n")
	}
	b.WriteString(logHeader + "\n")
	for i, r := range rows {
		b.WriteString(logRow(i, r) + "\n")
	}
	return []byte(b.String())
}

func writeSessionFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// testProcessConfig is the default configuration on a coarser lattice
func testProcessConfig() ProcessConfig {
	cfg := DefaultProcessConfig()
	cfg.Grid.CellSize = 1
	cfg.Grid.Margin = 2
	return cfg
}

// processedFixture runs the full pipeline over a 4-line serpentine with
// electrodes
func processedFixture(t *testing.T) *Session {
	t.Helper()
	rows := append(serpentine(4, 20), electrodes()...)
	path := writeSessionFile(t, t.TempDir(), fixtureName, buildLog("", rows))
	s, err := NewPipeline(testProcessConfig()).Process(path, PassthroughResolver{}, t.TempDir())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return s
}
