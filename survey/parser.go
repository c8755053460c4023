package survey

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

var (
	// ErrEmptyLog is returned for a session file without content
	ErrEmptyLog = errors.New("empty session log")
	// ErrMalformedHeader is returned when the colour-range line cannot be read
	ErrMalformedHeader = errors.New("malformed session header")
	// ErrMissingColumns is returned when a row is shorter than the log layout
	ErrMissingColumns = errors.New("missing required columns")
)

// Column layout of a session log once ':' has been turned into ','.
const (
	colLon = iota
	colLat
	colVoltage
	colPointID
	colAttribute
	colAttributeCounter
	colDate
	colHour
	colMinute
	colSecond
	colCompassX
	colCompassY
	colCompassZ
	colLatInt
	colLonInt
	colHDOP
	colGNSSStatus
	colGNSSFix
	colFirmware
	colSerial
	numColumns
)

// dateLayouts are tried in order on the date column
var dateLayouts = []string{"2006-01-02", "2006/01/02", "02.01.2006", "02/01/2006", "20060102"}

// SessionLog is the raw content of one session file
type SessionLog struct {
	Points []Point
	// Colors is set when the file starts with a "cmin,cmax" line
	Colors *ColorRange
}

// ParseSessionFile reads and parses a session log from disk
func ParseSessionFile(path, sessionID string) (*SessionLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseSessionLog(data, sessionID)
}

// ParseSessionLog parses session log bytes. The first line is either the
// column header (starting with "long") or a "cmin,cmax" colour range followed
// by the header. Point IDs are "<sessionID>_<point index>".
func ParseSessionLog(data []byte, sessionID string) (*SessionLog, error) {
	text := strings.ReplaceAll(string(data), ":", ",")
	lines := strings.SplitN(text, "\n", 2)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyLog
	}

	sl := &SessionLog{}
	body := text
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "long") {
		cr, err := parseColorHeader(first)
		if err != nil {
			return nil, err
		}
		sl.Colors = cr
		if len(lines) < 2 {
			return nil, ErrEmptyLog
		}
		body = lines[1]
	}

	r := csv.NewReader(bytes.NewBufferString(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	// column header
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyLog
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	for row := 1; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		p, err := parseRow(rec, sessionID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		sl.Points = append(sl.Points, p)
	}
	return sl, nil
}

func parseColorHeader(line string) (*ColorRange, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	cmin, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	cmax, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || math.IsNaN(cmin) || math.IsNaN(cmax) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}
	return &ColorRange{Min: cmin, Max: cmax, FromHeader: true}, nil
}

func parseRow(rec []string, sessionID string) (Point, error) {
	if len(rec) < numColumns {
		return Point{}, fmt.Errorf("%w: got %d of %d", ErrMissingColumns, len(rec), numColumns)
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	p := newPoint()
	p.Lon = parseFloat(rec[colLon])
	p.Lat = parseFloat(rec[colLat])
	p.VoltageRaw = parseFloat(rec[colVoltage])
	p.PointID = parseInt(rec[colPointID])
	p.ID = fmt.Sprintf("%s_%d", sessionID, p.PointID)
	p.Attribute = Attribute(rec[colAttribute])
	if p.Attribute == "" {
		p.Attribute = AttrMeas
	}
	p.AttributeCounter = parseInt(rec[colAttributeCounter])
	p.Time = parseTime(rec[colDate], rec[colHour], rec[colMinute], rec[colSecond])
	p.CompassX = parseFloat(rec[colCompassX])
	p.CompassY = parseFloat(rec[colCompassY])
	p.CompassZ = parseFloat(rec[colCompassZ])
	p.LatInt = rec[colLatInt]
	p.LonInt = rec[colLonInt]
	p.HDOP = parseFloat(rec[colHDOP])
	p.GNSSStatus = rec[colGNSSStatus]
	p.GNSSFix = rec[colGNSSFix]
	p.Firmware = rec[colFirmware]
	p.SerialNumber = rec[colSerial]

	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
		p.X, p.Y = math.NaN(), math.NaN()
	} else {
		m := project.WGS84.ToMercator(orb.Point{p.Lon, p.Lat})
		p.X, p.Y = m[0], m[1]
	}
	return p, nil
}

// parseFloat reads a numeric cell; empty and "nan" cells are NaN
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		f := parseFloat(s)
		if math.IsNaN(f) {
			return 0
		}
		return int(f)
	}
	return v
}

// parseTime combines the date column with the split time columns. An
// unreadable date gives the zero time.
func parseTime(date, hour, minute, second string) time.Time {
	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		day, err = time.Parse(layout, date)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}
	}
	sec := parseFloat(second)
	if math.IsNaN(sec) {
		sec = 0
	}
	return day.Add(time.Duration(parseInt(hour))*time.Hour +
		time.Duration(parseInt(minute))*time.Minute +
		time.Duration(sec*float64(time.Second)))
}
