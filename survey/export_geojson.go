package survey

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

// lineSimplifyTolerance is the Douglas-Peucker tolerance for exported lines,
// in survey units
const lineSimplifyTolerance = 0.05

// SessionFeatures builds a WGS84 feature collection with the footprint, the
// walked lines, the electrode spokes and every positioned point.
func SessionFeatures(s *Session) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	toWGS := func(g orb.Geometry) orb.Geometry {
		return project.Geometry(g, project.Mercator.ToWGS84)
	}

	if ring := s.Footprint.Outline(); len(ring) > 3 {
		f := geojson.NewFeature(toWGS(orb.Polygon{ring.Clone()}))
		f.Properties["kind"] = "footprint"
		f.Properties["ID"] = s.Info.ID
		setNumber(f.Properties, "cmin", s.Colors.Min)
		setNumber(f.Properties, "cmax", s.Colors.Max)
		setNumber(f.Properties, "ref_angle", s.RefAngle)
		if !s.Footprint.Start.IsZero() {
			f.Properties["start"] = s.Footprint.Start.Format("2006-01-02T15:04:05")
			f.Properties["end"] = s.Footprint.End.Format("2006-01-02T15:04:05")
		}
		fc.Append(f)
	}

	for _, l := range s.Lines {
		if len(l.Geometry) < 2 {
			continue
		}
		ls, ok := simplify.DouglasPeucker(lineSimplifyTolerance).Simplify(l.Geometry.Clone()).(orb.LineString)
		if !ok || len(ls) < 2 {
			ls = l.Geometry.Clone()
		}
		f := geojson.NewFeature(toWGS(ls))
		f.Properties["kind"] = "line"
		f.Properties["ID_line"] = l.ID
		f.Properties["line"] = l.Index
		setNumber(f.Properties, "line_heading", l.Heading)
		setNumber(f.Properties, "line_compass", l.Compass)
		setNumber(f.Properties, "line_length", l.Length)
		fc.Append(f)
	}

	if len(s.Current) > 1 {
		f := geojson.NewFeature(toWGS(s.Current.Clone()))
		f.Properties["kind"] = "current"
		fc.Append(f)
	}

	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		f := geojson.NewFeature(toWGS(p.Position()))
		f.ID = p.ID
		f.Properties["kind"] = "point"
		f.Properties["attribute"] = string(p.Attribute)
		if p.Line != NoLine {
			f.Properties["ID_line"] = p.LineID
		}
		setNumber(f.Properties, "voltage_raw", p.VoltageRaw)
		setNumber(f.Properties, "voltage_norm", p.VoltageNorm)
		setNumber(f.Properties, "ref_facing", p.RefFacing)
		if p.ColorNorm != "" {
			f.Properties["color"] = p.ColorNorm
		}
		fc.Append(f)
	}
	return fc
}

// setNumber stores v unless it is NaN, which JSON cannot carry
func setNumber(props geojson.Properties, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	props[key] = v
}

// WriteGeoJSON writes SessionFeatures to path
func WriteGeoJSON(s *Session, path string) error {
	data, err := SessionFeatures(s).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling features: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
