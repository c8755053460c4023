package survey

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

// Session file names look like
// <sensor>_<...>_<datetime>_<...>.csv where the first 39 characters form the
// session id and characters 22..39 are the datetime tag.
const (
	sessionIDLen     = 39
	dateTimeTagStart = 22
)

// NewSessionInfo derives the session identity and output location from the
// source file name. The raw sensor id inside the session id is replaced by
// its resolved short form. Names shorter than the standard layout fall back
// to the file stem.
func NewSessionInfo(path string, resolver SensorResolver, outputRoot string) SessionInfo {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	sensorLong := strings.SplitN(name, "_", 2)[0]
	sensor := sensorLong
	if resolver != nil {
		sensor = resolver.Resolve(sensorLong)
	}

	id, tag := stem, stem
	if len(name) >= sessionIDLen {
		id = name[:sessionIDLen]
		tag = name[dateTimeTagStart:sessionIDLen]
	} else if i := strings.Index(stem, "_"); i >= 0 {
		tag = stem[i+1:]
	}
	if sensorLong != "" {
		id = strings.ReplaceAll(id, sensorLong, sensor)
	}

	dir := filepath.Join(outputRoot, sensor, tag)
	return SessionInfo{
		SourcePath:   path,
		ID:           id,
		SensorLong:   sensorLong,
		Sensor:       sensor,
		DateTimeTag:  tag,
		OutputDir:    dir,
		OutputPrefix: filepath.Join(dir, fmt.Sprintf("%s_%s", sensor, tag)),
	}
}

// OutputPath returns the artifact path for the given suffix, e.g. ".grd"
func (i SessionInfo) OutputPath(suffix string) string {
	return i.OutputPrefix + suffix
}

// NewSession wraps a parsed log into an underived session snapshot
func NewSession(info SessionInfo, log *SessionLog) *Session {
	s := &Session{
		Info:     info,
		RefAngle: math.NaN(),
		RefPoint: orb.Point{math.NaN(), math.NaN()},
	}
	if log != nil {
		s.Points = append([]Point(nil), log.Points...)
		s.Header = log.Colors
	}
	return s
}

// Summary is the compact description of a processed session used by the
// database, the publisher and the HTTP viewer.
type Summary struct {
	ID          string   `json:"id"`
	Sensor      string   `json:"sensor"`
	DateTime    string   `json:"dateTime"`
	Source      string   `json:"source"`
	Points      int      `json:"points"`
	MeasPoints  int      `json:"measPoints"`
	Lines       int      `json:"lines"`
	RefAngle    *float64 `json:"refAngle,omitempty"`
	CMin        float64  `json:"cmin"`
	CMax        float64  `json:"cmax"`
	GridRows    int      `json:"gridRows"`
	GridCols    int      `json:"gridCols"`
	GridWritten bool     `json:"gridWritten"`
	Notices     []string `json:"notices,omitempty"`
}

// Summarize builds the session summary
func (s *Session) Summarize() Summary {
	sum := Summary{
		ID:         s.Info.ID,
		Sensor:     s.Info.Sensor,
		DateTime:   s.Info.DateTimeTag,
		Source:     s.Info.SourcePath,
		Points:     len(s.Points),
		MeasPoints: len(s.MeasIndices()),
		Lines:      len(s.Lines),
		CMin:       s.Colors.Min,
		CMax:       s.Colors.Max,
		Notices:    s.Notices,
	}
	if !math.IsNaN(s.RefAngle) {
		a := s.RefAngle
		sum.RefAngle = &a
	}
	if s.Grid != nil {
		sum.GridRows = s.Grid.Rows
		sum.GridCols = s.Grid.Cols
		sum.GridWritten = !s.Grid.Empty()
	}
	return sum
}
