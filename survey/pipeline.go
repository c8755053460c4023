package survey

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ProcessConfig gathers the tunables of every derivation stage
type ProcessConfig struct {
	Segment         SegmentConfig   `yaml:"segmentation" json:"segmentation"`
	Footprint       FootprintConfig `yaml:"footprint" json:"footprint"`
	ReferenceOffset float64         `yaml:"referenceOffset" json:"referenceOffset"`
	Grid            GridConfig      `yaml:"grid" json:"grid"`
	// SkipGrid disables the interpolation stage entirely
	SkipGrid bool `yaml:"skipGrid" json:"skipGrid"`
}

// DefaultProcessConfig returns the field processing defaults
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Segment:         DefaultSegmentConfig(),
		Footprint:       DefaultFootprintConfig(),
		ReferenceOffset: DefaultReferenceOffset,
		Grid:            DefaultGridConfig(),
	}
}

// Stage derives a new session snapshot from the previous one. A stage never
// modifies its input.
type Stage struct {
	Name string
	Run  func(*Session) (*Session, error)
}

// Pipeline runs the derivation stages of one session in their fixed order
type Pipeline struct {
	cfg    ProcessConfig
	stages []Stage
}

// NewPipeline builds the standard stage sequence
func NewPipeline(cfg ProcessConfig) *Pipeline {
	p := &Pipeline{cfg: cfg}
	p.stages = []Stage{
		{"compass", p.compassStage},
		{"footprint", p.footprintStage},
		{"current", p.currentStage},
		{"path", p.pathStage},
		{"reference", p.referenceStage},
		{"ref_bearing", p.refBearingStage},
		{"hdg_avg", p.hdgAvgStage},
		{"ref_facing", p.refFacingStage},
		{"normalize", p.normalizeStage},
		{"crange", p.colorRangeStage},
		{"colors", p.colorsStage},
		{"grid", p.gridStage},
	}
	return p
}

// Stages lists the stage names in execution order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run applies every stage in order. The input snapshot is left untouched; on
// error no partial session is returned.
func (p *Pipeline) Run(s *Session) (*Session, error) {
	cur := s
	for _, st := range p.stages {
		next, err := st.Run(cur)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		cur = next
	}
	return cur, nil
}

// Process parses one session file and runs the full pipeline on it
func (p *Pipeline) Process(path string, resolver SensorResolver, outputRoot string) (*Session, error) {
	info := NewSessionInfo(path, resolver, outputRoot)
	sl, err := ParseSessionFile(path, info.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p.Run(NewSession(info, sl))
}

func (p *Pipeline) compassStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Points = ComputeCompass(s.Points)
	return next, nil
}

// footprintStage hulls the measurement points that carry a reading
func (p *Pipeline) footprintStage(s *Session) (*Session, error) {
	next := s.clone()
	var positions []orb.Point
	var start, end time.Time
	for _, pt := range s.Points {
		if !pt.IsMeas() || math.IsNaN(pt.VoltageRaw) {
			continue
		}
		positions = append(positions, pt.Position())
		if pt.Time.IsZero() {
			continue
		}
		if start.IsZero() || pt.Time.Before(start) {
			start = pt.Time
		}
		if end.IsZero() || pt.Time.After(end) {
			end = pt.Time
		}
	}
	fp := NewFootprint(positions, p.cfg.Footprint)
	fp.Start, fp.End = start, end
	if fp.Empty() {
		next.notice("footprint is empty")
	}
	next.Footprint = fp
	return next, nil
}

func (p *Pipeline) currentStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Current = CurrentPath(s.Points, s.Footprint)
	return next, nil
}

// pathStage segments the measurement points into lines. Below the minimum
// point count the session keeps zero lines.
func (p *Pipeline) pathStage(s *Session) (*Session, error) {
	next := s.clone()
	idx := s.MeasIndices()
	if len(idx) < p.cfg.Segment.MinPoints {
		next.Lines = nil
		next.notice(fmt.Sprintf("%d measurement points, segmentation skipped", len(idx)))
		return next, nil
	}

	meas := make([]Point, len(idx))
	for i, j := range idx {
		meas[i] = s.Points[j]
	}
	meas = Segment(meas, p.cfg.Segment)
	for i, j := range idx {
		next.Points[j] = meas[i]
	}

	next.Lines = BuildLines(s.Info.ID, next.Points)
	next.Points = MergeLineData(next.Points, next.Lines)
	return next, nil
}

// referenceStage places the reference point and appends it as a "ref" row
func (p *Pipeline) referenceStage(s *Session) (*Session, error) {
	next := s.clone()
	next.RefAngle = ReferenceAngle(s.Lines)
	next.RefPoint = ReferencePoint(s.Footprint.Centroid(), next.RefAngle, p.cfg.ReferenceOffset)

	ref := newPoint()
	ref.ID = s.Info.ID + "_ref"
	ref.Attribute = AttrRef
	ref.VoltageRaw = math.NaN()
	ref.Lon, ref.Lat = math.NaN(), math.NaN()
	ref.CompassX, ref.CompassY, ref.CompassZ = math.NaN(), math.NaN(), math.NaN()
	ref.HDOP = math.NaN()
	ref.X, ref.Y = next.RefPoint[0], next.RefPoint[1]
	if !math.IsNaN(ref.X) && !math.IsNaN(ref.Y) {
		ll := project.Mercator.ToWGS84(next.RefPoint)
		ref.Lon, ref.Lat = ll[0], ll[1]
	}
	next.Points = append(next.Points, ref)
	return next, nil
}

func (p *Pipeline) refBearingStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Points = ComputeRefBearing(s.Points, s.RefPoint)
	return next, nil
}

func (p *Pipeline) hdgAvgStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Points = ComputeHdgAvg(s.Points, len(s.Lines) > 0)
	return next, nil
}

func (p *Pipeline) refFacingStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Points = ComputeRefFacing(s.Points)
	return next, nil
}

func (p *Pipeline) normalizeStage(s *Session) (*Session, error) {
	next := s.clone()
	pts, flipped := NormalizeField(s.Points)
	next.Points = pts
	if flipped {
		next.notice("polarity flipped to positive median")
	}
	return next, nil
}

func (p *Pipeline) colorRangeStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Colors = ComputeColorRange(s.Points, s.Header)
	return next, nil
}

func (p *Pipeline) colorsStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Points = AssignColors(s.Points, s.Colors)
	return next, nil
}

// gridStage krigs the normalised field. No usable value means no grid, which
// is a valid outcome and not an error.
func (p *Pipeline) gridStage(s *Session) (*Session, error) {
	next := s.clone()
	next.Grid = nil
	if p.cfg.SkipGrid {
		next.SkipGrid = true
		return next, nil
	}

	var positions []orb.Point
	var values []float64
	for _, pt := range s.Points {
		if pt.IsMeas() && !math.IsNaN(pt.VoltageNorm) {
			positions = append(positions, pt.Position())
			values = append(values, pt.VoltageNorm)
		}
	}
	if len(values) == 0 {
		next.SkipGrid = true
		next.notice("no grid produced: no field values")
		return next, nil
	}

	g, err := Interpolate(positions, values, s.Footprint, p.cfg.Grid)
	if errors.Is(err, ErrNoSamples) {
		next.SkipGrid = true
		next.notice("no grid produced: no field values")
		return next, nil
	}
	if err != nil {
		return nil, err
	}
	if g.Empty() {
		next.notice("masked grid is empty")
	}
	next.SkipGrid = false
	next.Grid = g
	return next, nil
}
