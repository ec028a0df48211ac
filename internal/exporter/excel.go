package exporter

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"muniquery/pkg/contracts/domain"
)

// Sheet is one workbook sheet: a name and the tabular data behind it.
type Sheet struct {
	Name string
	Data *domain.ResultSet
}

// WriteWorkbook writes the given sheets into one Excel workbook in the
// reports directory, one analysis per sheet, header row first.
func (w *CSVWriter) WriteWorkbook(filename string, sheets []Sheet) error {
	fullPath := w.resolvePath(filename)

	slog.Info("Writing Excel workbook",
		slog.String("file_path", fullPath),
		slog.Int("sheet_count", len(sheets)))

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name := sanitizeSheetName(sheet.Name)
		if i == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("failed to create sheet %s: %w", name, err)
			}
		}

		header := make([]interface{}, len(sheet.Data.Columns))
		for j, col := range sheet.Data.Columns {
			header[j] = col
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header row: %w", err)
		}

		for rowIdx, record := range sheet.Data.Records() {
			cells := make([]interface{}, len(record))
			for j, v := range record {
				cells[j] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := f.SetSheetRow(name, cell, &cells); err != nil {
				return fmt.Errorf("failed to write row %d: %w", rowIdx, err)
			}
		}
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// sanitizeSheetName truncates to the 31-character Excel sheet limit.
func sanitizeSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
