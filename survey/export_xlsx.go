package survey

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// xlsxColumn is one spreadsheet column and how to read it from a point
type xlsxColumn struct {
	Name  string
	Value func(p Point) interface{}
}

func xlsxNum(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// xlsxColumns is the column order of every sheet
var xlsxColumns = []xlsxColumn{
	{"ID", func(p Point) interface{} { return p.ID }},
	{"point_id", func(p Point) interface{} { return p.PointID }},
	{"attribute", func(p Point) interface{} { return string(p.Attribute) }},
	{"attribute_counter", func(p Point) interface{} { return p.AttributeCounter }},
	{"datetime", func(p Point) interface{} {
		if p.Time.IsZero() {
			return nil
		}
		return p.Time.Format("2006-01-02 15:04:05")
	}},
	{"long", func(p Point) interface{} { return xlsxNum(p.Lon) }},
	{"lat", func(p Point) interface{} { return xlsxNum(p.Lat) }},
	{"x", func(p Point) interface{} { return xlsxNum(p.X) }},
	{"y", func(p Point) interface{} { return xlsxNum(p.Y) }},
	{"hdop", func(p Point) interface{} { return xlsxNum(p.HDOP) }},
	{"voltage_raw", func(p Point) interface{} { return xlsxNum(p.VoltageRaw) }},
	{"voltage_k", func(p Point) interface{} { return xlsxNum(p.VoltageK) }},
	{"voltage_norm", func(p Point) interface{} { return xlsxNum(p.VoltageNorm) }},
	{"compass", func(p Point) interface{} { return xlsxNum(p.Compass) }},
	{"line", func(p Point) interface{} {
		if p.Line == NoLine {
			return nil
		}
		return p.Line
	}},
	{"ID_line", func(p Point) interface{} { return p.LineID }},
	{"split_k", func(p Point) interface{} { return xlsxNum(p.SplitK) }},
	{"line_heading", func(p Point) interface{} { return xlsxNum(p.LineHeading) }},
	{"line_length", func(p Point) interface{} { return xlsxNum(p.LineLength) }},
	{"ref_bearing", func(p Point) interface{} { return xlsxNum(p.RefBearing) }},
	{"ref_dist", func(p Point) interface{} { return xlsxNum(p.RefDist) }},
	{"hdg_avg", func(p Point) interface{} { return xlsxNum(p.HdgAvg) }},
	{"ref_facing", func(p Point) interface{} { return xlsxNum(p.RefFacing) }},
	{"gnss_status", func(p Point) interface{} { return p.GNSSStatus }},
	{"gnss_fix", func(p Point) interface{} { return p.GNSSFix }},
	{"firmware", func(p Point) interface{} { return p.Firmware }},
	{"serial_number", func(p Point) interface{} { return p.SerialNumber }},
}

// xlsxSheets maps each sheet to the attributes it lists
var xlsxSheets = []struct {
	Name  string
	Attrs []Attribute
}{
	{"meas", []Attribute{AttrMeas}},
	{"anomaly", []Attribute{AttrAnomaly}},
	{"area", []Attribute{AttrArea}},
	{"input", []Attribute{AttrMinus, AttrPlus}},
}

// WriteXLSX writes the session table to a workbook with one sheet per
// point role. Sheets without rows still carry the header.
func WriteXLSX(s *Session, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range xlsxSheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}
		if err := writeSheet(f, sheet.Name, s.Filter(sheet.Attrs...)); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, points []Point) error {
	header := make([]interface{}, len(xlsxColumns))
	for i, c := range xlsxColumns {
		header[i] = c.Name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, p := range points {
		row := make([]interface{}, len(xlsxColumns))
		for i, c := range xlsxColumns {
			row[i] = c.Value(p)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
