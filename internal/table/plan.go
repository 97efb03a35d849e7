// Package table assembles flattened records into text rows and plans the
// columns of the output sheet.
package table

import (
	"fmt"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// WidthMode selects how cell text is measured
type WidthMode string

const (
	// WidthRunes counts characters
	WidthRunes WidthMode = "runes"
	// WidthDisplay counts terminal cells, so wide CJK characters count twice
	WidthDisplay WidthMode = "display"
)

// ParseWidthMode validates a width mode name. The empty string selects WidthRunes.
func ParseWidthMode(s string) (WidthMode, error) {
	switch WidthMode(s) {
	case "", WidthRunes:
		return WidthRunes, nil
	case WidthDisplay:
		return WidthDisplay, nil
	default:
		return "", fmt.Errorf("unknown width mode %q (want %q or %q)", s, WidthRunes, WidthDisplay)
	}
}

// Measure returns the width of s under mode
func (m WidthMode) Measure(s string) int {
	if m == WidthDisplay {
		return runewidth.StringWidth(s)
	}
	return utf8.RuneCountInString(s)
}

// DefaultPadding is added to every computed column width
const DefaultPadding = 2

// Options configures assembly and column planning
type Options struct {
	Default    string // text for null and missing values
	RootColumn string // column name for top-level primitive records
	Padding    int
	WidthMode  WidthMode
}

// DefaultOptions returns an empty default, padding 2 and rune widths
func DefaultOptions() Options {
	return Options{
		Default:    "",
		RootColumn: "value",
		Padding:    DefaultPadding,
		WidthMode:  WidthRunes,
	}
}

// Column is one planned output column
type Column struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// Plan computes the ordered column set of rows and the width of each column:
// the widest of the name and every row's value (missing values count as the
// default text), plus padding.
func Plan(rows []Row, opts Options) []Column {
	var columns []Column
	position := make(map[string]int)

	for _, row := range rows {
		for _, key := range row.Keys() {
			if _, ok := position[key]; ok {
				continue
			}
			position[key] = len(columns)
			columns = append(columns, Column{Name: key})
		}
	}

	defaultWidth := opts.WidthMode.Measure(opts.Default)
	for i := range columns {
		widest := opts.WidthMode.Measure(columns[i].Name)
		for _, row := range rows {
			w := defaultWidth
			if text, ok := row.Get(columns[i].Name); ok {
				w = opts.WidthMode.Measure(text)
			}
			if w > widest {
				widest = w
			}
		}
		columns[i].Width = widest + opts.Padding
	}

	return columns
}

// Table is the planned output: rows plus the columns they are written under
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	Default string   `json:"default"`
}

// Build plans the columns for rows
func Build(rows []Row, opts Options) *Table {
	return &Table{
		Columns: Plan(rows, opts),
		Rows:    rows,
		Default: opts.Default,
	}
}

// Header returns the column names in order
func (t *Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Values returns row i aligned to the columns, filling missing cells with
// the default text
func (t *Table) Values(i int) []string {
	row := t.Rows[i]
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		if text, ok := row.Get(c.Name); ok {
			out[j] = text
		} else {
			out[j] = t.Default
		}
	}
	return out
}
