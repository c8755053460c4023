package survey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overwrite modes for the accumulated database
const (
	OverwriteFull  = "full"
	OverwriteLast  = "last"
	OverwriteFirst = "first"
)

// Export formats
const (
	FormatXLSX    = "xlsx"
	FormatHTML    = "html"
	FormatGRD     = "grd"
	FormatBLN     = "bln"
	FormatGeoJSON = "geojson"
	FormatSVG     = "svg"
	FormatPNG     = "png"
	FormatGridPNG = "grid-png"
	FormatDiag    = "diag"
)

// AllFormats lists every export format in write order
var AllFormats = []string{FormatXLSX, FormatGRD, FormatHTML, FormatBLN, FormatGeoJSON, FormatSVG, FormatPNG, FormatGridPNG, FormatDiag}

// Config represents the full configuration file
type Config struct {
	Input      InputConfig   `yaml:"input" json:"input"`
	Output     OutputConfig  `yaml:"output" json:"output"`
	Processing ProcessConfig `yaml:"processing" json:"processing"`
	MQTT       MQTTConfig    `yaml:"mqtt" json:"mqtt"`
}

// InputConfig locates session logs
type InputConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	Ext         string `yaml:"ext" json:"ext"`
	SensorTable string `yaml:"sensorTable,omitempty" json:"sensorTable,omitempty"` // Optional orig/new TSV
}

// OutputConfig controls artifacts and the accumulated database
type OutputConfig struct {
	Dir       string   `yaml:"dir" json:"dir"`
	Formats   []string `yaml:"formats" json:"formats"`
	Database  string   `yaml:"database,omitempty" json:"database,omitempty"` // sqlite path; empty disables
	Overwrite string   `yaml:"overwrite" json:"overwrite"`
	// VectorResolution is the PNG map DPI
	VectorResolution float64 `yaml:"vectorResolution,omitempty" json:"vectorResolution,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	QoS           byte   `yaml:"qos" json:"qos"`       // 0, 1 or 2
	Retain        bool   `yaml:"retain" json:"retain"` // broker keeps the last summary per topic
}

// DefaultConfig returns a configuration that processes raw/*.csv into output/
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{Dir: "raw", Ext: ".csv"},
		Output: OutputConfig{
			Dir:              "output",
			Formats:          []string{FormatXLSX, FormatGRD, FormatHTML, FormatBLN},
			Overwrite:        OverwriteFull,
			VectorResolution: 150,
		},
		Processing: DefaultProcessConfig(),
		MQTT:       MQTTConfig{PublishPrefix: "mobsurvey", ClientID: "mobsurvey", QoS: 1, Retain: true},
	}
}

// LoadConfig loads the configuration from a YAML file. Keys absent from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	p := c.Processing
	if p.Segment.SplitScore <= 0 {
		return fmt.Errorf("processing.segmentation.splitScore must be positive")
	}
	if p.Segment.MaxStep <= 0 {
		return fmt.Errorf("processing.segmentation.maxStep must be positive")
	}
	if p.Segment.MinPoints < 1 {
		return fmt.Errorf("processing.segmentation.minPoints must be at least 1")
	}
	if p.Footprint.HullRatio < 0 || p.Footprint.HullRatio > 1 {
		return fmt.Errorf("processing.footprint.hullRatio must be within [0, 1]")
	}
	if p.Footprint.Buffer < 0 {
		return fmt.Errorf("processing.footprint.buffer must not be negative")
	}
	if p.Grid.CellSize <= 0 {
		return fmt.Errorf("processing.grid.cellSize must be positive")
	}
	if p.Grid.Margin < 0 {
		return fmt.Errorf("processing.grid.margin must not be negative")
	}

	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
	}

	switch c.Output.Overwrite {
	case OverwriteFull, OverwriteLast, OverwriteFirst:
	default:
		return fmt.Errorf("output.overwrite must be one of full, last, first (got %q)", c.Output.Overwrite)
	}

	for i, f := range c.Output.Formats {
		if !knownFormat(f) {
			return fmt.Errorf("output.formats[%d]: unknown format %q", i, f)
		}
	}
	return nil
}

func knownFormat(f string) bool {
	for _, k := range AllFormats {
		if k == f {
			return true
		}
	}
	return false
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
