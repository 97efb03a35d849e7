// Package export writes planned tables to spreadsheet documents.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/jsonxl/internal/table"
)

// ErrUnsupportedFormat is returned for an unknown output format
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format names an output document type
type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

var formats = []Format{XLSX, CSV}

// String returns the format name.
func (f Format) String() string { return string(f) }

// Formats returns all supported output formats
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// ParseFormat parses a format name. The empty string is accepted and means
// "decide from the output path".
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return "", nil
	}
	for _, f := range formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Exporter persists a table to path
type Exporter interface {
	Name() string
	Export(path string, t *table.Table) error
}

// ForPath returns the exporter for an explicit format, or for the extension
// of path when format is empty. Unknown extensions fall back to xlsx.
func ForPath(path string, format Format, sheet string) (Exporter, error) {
	if format == "" {
		format = XLSX
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = CSV
		}
	}

	switch format {
	case XLSX:
		return NewXLSXExporter(sheet), nil
	case CSV:
		return NewCSVExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Extension returns the file extension, with dot, for format
func Extension(format Format) string {
	if format == CSV {
		return ".csv"
	}
	return ".xlsx"
}
