// Package export renders drill-down tables as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ndewijer/portfolio-dashboard/internal/drilldown"
)

// indent is prefixed once per level to the name cell of nested rows.
const indent = "    "

// WriteXLSX writes view to w as a single-sheet workbook: the header row, every visible row with
// nested rows indented under their parent, and the summary row last.
func WriteXLSX(w io.Writer, view drilldown.View) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := view.Table
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	line := 1
	if len(view.Headers) > 0 {
		header := make([]any, len(view.Headers))
		for i, h := range view.Headers {
			header[i] = h
		}
		if err := setRow(f, sheet, line, header); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(header), line)
		if err != nil {
			return fmt.Errorf("failed to resolve header range: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		line++
	}

	for _, r := range view.Rows {
		if err := setRow(f, sheet, line, cells(strings.Repeat(indent, r.Level)+r.Name, r.Cells)); err != nil {
			return err
		}
		line++
	}
	if view.Summary != nil {
		if err := setRow(f, sheet, line, cells(view.Summary.Name, view.Summary.Cells)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cells(name string, values []string) []any {
	out := make([]any, 0, len(values)+1)
	out = append(out, name)
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func setRow(f *excelize.File, sheet string, line int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return fmt.Errorf("failed to resolve row %d: %w", line, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", line, err)
	}
	return nil
}
