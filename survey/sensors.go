package survey

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// SensorResolver maps a raw logger identifier to its short 3-digit form
type SensorResolver interface {
	Resolve(raw string) string
}

// SensorTable is a read-only orig -> new sensor number table. Rows keep file
// order so unknown identifiers can be extrapolated from the last entries.
type SensorTable struct {
	orig []string
	num  []int
}

// LoadSensorTable reads a tab-separated table with an "orig\tnew" header
func LoadSensorTable(path string) (*SensorTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sensor table: %w", err)
	}
	defer f.Close()
	return ReadSensorTable(f)
}

// ReadSensorTable parses a sensor table from r
func ReadSensorTable(r io.Reader) (*SensorTable, error) {
	t := &SensorTable{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if line == 1 && strings.EqualFold(strings.TrimSpace(fields[0]), "orig") {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("sensor table line %d: expected 2 columns", line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("sensor table line %d: %w", line, err)
		}
		t.orig = append(t.orig, strings.TrimSpace(fields[0]))
		t.num = append(t.num, n)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading sensor table: %w", err)
	}
	return t, nil
}

// NewSensorTable builds a table from parallel slices
func NewSensorTable(orig []string, num []int) *SensorTable {
	return &SensorTable{orig: append([]string(nil), orig...), num: append([]int(nil), num...)}
}

// Len is the number of known sensors
func (t *SensorTable) Len() int {
	return len(t.orig)
}

// Lookup returns the number assigned to raw, if any
func (t *SensorTable) Lookup(raw string) (int, bool) {
	for i, o := range t.orig {
		if o == raw {
			return t.num[i], true
		}
	}
	return 0, false
}

// Resolve returns the known number for raw, zero padded to 3 digits. An
// unknown identifier is treated as the next row of the table and gets the
// number linearly extrapolated from the last two rows. The table itself is
// not changed.
func (t *SensorTable) Resolve(raw string) string {
	if n, ok := t.Lookup(raw); ok {
		return padSensor(n)
	}
	switch len(t.num) {
	case 0:
		return padSensor(0)
	case 1:
		return padSensor(t.num[0] + 1)
	}
	last := t.num[len(t.num)-1]
	prev := t.num[len(t.num)-2]
	return padSensor(last + (last - prev))
}

func padSensor(n int) string {
	return fmt.Sprintf("%03d", n)
}

// PassthroughResolver keeps the raw identifier, zero padded when numeric
type PassthroughResolver struct{}

// Resolve implements SensorResolver
func (PassthroughResolver) Resolve(raw string) string {
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) {
		return padSensor(int(f))
	}
	return raw
}
