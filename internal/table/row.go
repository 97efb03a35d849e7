package table

import (
	"encoding/json"

	"github.com/ppiankov/jsonxl/internal/flatten"
	"github.com/ppiankov/jsonxl/internal/value"
)

// Cell is one text value of an assembled row
type Cell struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Row is an assembled row: ordered text cells with key lookup
type Row struct {
	cells []Cell
	index map[string]int
}

// NewRow builds a row from cells. A repeated key overwrites the earlier cell.
func NewRow(cells ...Cell) Row {
	r := Row{index: make(map[string]int, len(cells))}
	for _, c := range cells {
		if i, ok := r.index[c.Key]; ok {
			r.cells[i] = c
			continue
		}
		r.index[c.Key] = len(r.cells)
		r.cells = append(r.cells, c)
	}
	return r
}

// Len returns the number of cells
func (r Row) Len() int { return len(r.cells) }

// Cells returns the cells in order
func (r Row) Cells() []Cell { return append([]Cell{}, r.cells...) }

// Keys returns the cell keys in order
func (r Row) Keys() []string {
	keys := make([]string, len(r.cells))
	for i, c := range r.cells {
		keys[i] = c.Key
	}
	return keys
}

// Get returns the text held for key
func (r Row) Get(key string) (string, bool) {
	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.cells[i].Value, true
}

// MarshalJSON encodes the row as an ordered list of cells
func (r Row) MarshalJSON() ([]byte, error) {
	if r.cells == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.cells)
}

// UnmarshalJSON decodes a list of cells and rebuilds the key index
func (r *Row) UnmarshalJSON(data []byte) error {
	var cells []Cell
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	*r = NewRow(cells...)
	return nil
}

// Assemble converts a flattened row to text. Null leaves become the default
// text; everything else uses its canonical text form. The empty key of a
// top-level primitive is renamed to RootColumn when one is set.
func Assemble(flat *flatten.Row, opts Options) Row {
	entries := flat.Entries()
	cells := make([]Cell, 0, len(entries))
	for _, e := range entries {
		key := e.Key
		if key == "" && opts.RootColumn != "" {
			key = opts.RootColumn
		}

		text := opts.Default
		if e.Value.Kind() != value.KindNull {
			text = e.Value.String()
		}
		cells = append(cells, Cell{Key: key, Value: text})
	}
	return NewRow(cells...)
}
