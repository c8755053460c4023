package survey

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Attribute tags a sampled row with its role in the survey
type Attribute string

const (
	AttrMeas     Attribute = "meas"
	AttrPlus     Attribute = "plus"
	AttrMinus    Attribute = "minus"
	AttrPosition Attribute = "position"
	AttrRef      Attribute = "ref"
	AttrArea     Attribute = "area"
	AttrAnomaly  Attribute = "anomaly"
)

// NoLine marks a point that does not belong to any walking line
const NoLine = -1

// Point is one sampled reading plus every derived column. Derived values that
// could not be computed are NaN.
type Point struct {
	// Raw columns from the session log
	ID               string    `json:"id"`
	PointID          int       `json:"pointId"`
	Attribute        Attribute `json:"attribute"`
	AttributeCounter int       `json:"attributeCounter"`
	Lon              float64   `json:"lon"`
	Lat              float64   `json:"lat"`
	X                float64   `json:"x"` // EPSG:3857 easting
	Y                float64   `json:"y"` // EPSG:3857 northing
	Time             time.Time `json:"time"`
	VoltageRaw       float64   `json:"voltageRaw"`
	CompassX         float64   `json:"compassX"`
	CompassY         float64   `json:"compassY"`
	CompassZ         float64   `json:"compassZ"`
	LatInt           string    `json:"latInt,omitempty"`
	LonInt           string    `json:"lonInt,omitempty"`
	HDOP             float64   `json:"hdop"`
	GNSSStatus       string    `json:"gnssStatus,omitempty"`
	GNSSFix          string    `json:"gnssFix,omitempty"`
	Firmware         string    `json:"firmware,omitempty"`
	SerialNumber     string    `json:"serialNumber,omitempty"`

	// Orientation from the magnetometer axes
	Compass float64 `json:"compass"`

	// Trajectory segmentation
	HdgFwd float64 `json:"hdgFwd"`
	DstFwd float64 `json:"dstFwd"`
	HdgBck float64 `json:"hdgBck"`
	DstBck float64 `json:"dstBck"`
	DHdg   float64 `json:"dHdg"`
	DDst   float64 `json:"dDst"`
	SplitK float64 `json:"splitK"`
	Split  int     `json:"split"`
	Line   int     `json:"line"`
	LineID string  `json:"lineId,omitempty"`

	// Line aggregates merged back onto the point
	LineHeading     float64 `json:"lineHeading"`
	LineCompass     float64 `json:"lineCompass"`
	LineLength      float64 `json:"lineLength"`
	LineHeadingDiff float64 `json:"lineHeadingDiff"`

	// Facing relative to the reference point
	RefDist    float64 `json:"refDist"`
	RefBearing float64 `json:"refBearing"`
	HdgAvg     float64 `json:"hdgAvg"`
	DAngle     float64 `json:"dAngle"`
	RefFacing  float64 `json:"refFacing"`

	// Normalised field
	VoltageK    float64 `json:"voltageK"`
	VoltageNorm float64 `json:"voltageNorm"`

	ColorRaw  string `json:"colorRaw,omitempty"`
	ColorNorm string `json:"colorNorm,omitempty"`
}

// newPoint returns a point whose derived columns are all NaN
func newPoint() Point {
	nan := math.NaN()
	return Point{
		Compass: nan,
		HdgFwd:  nan, DstFwd: nan, HdgBck: nan, DstBck: nan,
		DHdg: nan, DDst: nan, SplitK: nan,
		Line:        NoLine,
		LineHeading: nan, LineCompass: nan, LineLength: nan, LineHeadingDiff: nan,
		RefDist: nan, RefBearing: nan, HdgAvg: nan, DAngle: nan, RefFacing: nan,
		VoltageK: nan, VoltageNorm: nan,
	}
}

// Position returns the planar position of the point
func (p Point) Position() orb.Point {
	return orb.Point{p.X, p.Y}
}

// IsMeas reports whether the point is a measurement sample
func (p Point) IsMeas() bool {
	return p.Attribute == AttrMeas
}

// Line is one contiguous walked pass
type Line struct {
	Index    int            `json:"index"`
	ID       string         `json:"id"`
	Members  []int          `json:"members"` // indices into Session.Points, in walking order
	Geometry orb.LineString `json:"-"`
	Heading  float64        `json:"heading"`
	Compass  float64        `json:"compass"`
	Length   float64        `json:"length"`
	// Angle is the end-to-end orientation of the line, mod 180
	Angle float64 `json:"angle"`
}

// ColorRange is the value interval mapped onto the colour scale
type ColorRange struct {
	Min float64 `json:"cmin"`
	Max float64 `json:"cmax"`
	// FromHeader is true when the session log supplied the range
	FromHeader bool `json:"fromHeader"`
}

// SessionInfo identifies a session from its source file name
type SessionInfo struct {
	SourcePath   string `json:"sourcePath"`
	ID           string `json:"id"`
	SensorLong   string `json:"sensorLong"`
	Sensor       string `json:"sensor"`
	DateTimeTag  string `json:"dateTime"`
	OutputDir    string `json:"outputDir,omitempty"`
	OutputPrefix string `json:"outputPrefix,omitempty"`
}

// Session is one fully or partially derived survey log. Stages never mutate a
// Session in place; they return a new snapshot (see pipeline.go).
type Session struct {
	Info   SessionInfo
	Points []Point
	Lines  []Line

	// Header is the colour range given by the log itself, if any
	Header *ColorRange

	RefAngle  float64
	RefPoint  orb.Point
	Footprint *Footprint
	Current   orb.LineString
	Colors    ColorRange
	Grid      *Grid

	// SkipGrid is true when no field values were available for interpolation
	SkipGrid bool
	Notices  []string
}

// clone returns a copy that can be modified without touching s
func (s *Session) clone() *Session {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	c.Lines = make([]Line, len(s.Lines))
	copy(c.Lines, s.Lines)
	c.Notices = append([]string(nil), s.Notices...)
	return &c
}

// MeasIndices returns the indices of measurement points in recording order
func (s *Session) MeasIndices() []int {
	var idx []int
	for i, p := range s.Points {
		if p.IsMeas() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Filter returns copies of the points carrying any of the given attributes
func (s *Session) Filter(attrs ...Attribute) []Point {
	var out []Point
	for _, p := range s.Points {
		for _, a := range attrs {
			if p.Attribute == a {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// notice records a non-fatal diagnostic on the session
func (s *Session) notice(msg string) {
	s.Notices = append(s.Notices, msg)
}
