package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/jsonxl/internal/table"
)

// CSVExporter writes comma-separated text. Column widths do not apply.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Name() string {
	return string(CSV)
}

func (e *CSVExporter) Export(path string, t *table.Table) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return WriteCSV(file, t)
}

// WriteCSV writes the header and rows of t to w
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	for i := range t.Rows {
		if err := cw.Write(t.Values(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
