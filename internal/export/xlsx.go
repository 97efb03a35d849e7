package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/jsonxl/internal/table"
)

// DefaultSheetName is the sheet written when none is configured
const DefaultSheetName = "Data"

// XLSXExporter writes a single-sheet workbook with sized columns
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter creates a workbook exporter writing to the named sheet
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &XLSXExporter{sheet: sheet}
}

func (e *XLSXExporter) Name() string {
	return string(XLSX)
}

// Export writes the header row, then one row per table row. Every cell is
// written as text.
func (e *XLSXExporter) Export(path string, t *table.Table) (err error) {
	if len(t.Columns) > excelize.MaxColumns {
		return fmt.Errorf("table has %d columns, sheet limit is %d", len(t.Columns), excelize.MaxColumns)
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(e.sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	// Widths must be set before the first row is streamed.
	for i, col := range t.Columns {
		width := float64(col.Width)
		if width > excelize.MaxColumnWidth {
			width = excelize.MaxColumnWidth
		}
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return fmt.Errorf("set width of column %q: %w", col.Name, err)
		}
	}

	if err := writeRow(sw, 1, t.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range t.Rows {
		if err := writeRow(sw, i+2, t.Values(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRow(sw *excelize.StreamWriter, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return sw.SetRow(cell, cells)
}
