// Package export writes building lists as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/poku-e/invisible-city/internal/city"
)

const SheetName = "Buildings"

var Header = []string{
	"id", "type", "label", "icon", "description", "timestamp", "x_position", "y_position",
}

func row(b city.Building) []string {
	ts := ""
	if !b.CreatedAt.IsZero() {
		ts = b.CreatedAt.UTC().Format(city.TimeLayout)
	}
	return []string{
		strconv.FormatInt(b.ID, 10),
		b.Type,
		city.Label(b.Type),
		city.IconFor(b.Type),
		b.Description,
		ts,
		strconv.Itoa(b.X),
		strconv.Itoa(b.Y),
	}
}

func WriteCSV(w io.Writer, bs []city.Building) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, b := range bs {
		if err := cw.Write(row(b)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one sheet with a styled header row. Numeric columns
// are stored as numbers.
func WriteXLSX(w io.Writer, bs []city.Building) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#C6F2E6"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	// StreamWriter keeps memory flat on large cities
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(5, 5, 40); err != nil {
		return err
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, b := range bs {
		r := row(b)
		cells := []interface{}{
			b.ID, r[1], r[2], r[3], r[4], r[5], b.X, b.Y,
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(addr, cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
