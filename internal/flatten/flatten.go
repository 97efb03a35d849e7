// Package flatten reduces nested JSON values to single-level rows keyed by
// hierarchical names such as "user.tags[0]".
package flatten

import (
	"strconv"

	"github.com/ppiankov/jsonxl/internal/value"
)

// Options controls key synthesis and the literals used for empty containers
type Options struct {
	Separator   string // between an object key and its parent
	ArrayPrefix string // before an array index
	ArraySuffix string // after an array index
	EmptyArray  string // stored for an empty array
	EmptyObject string // stored for an empty object
}

// DefaultOptions returns dot separators, bracketed indices and "[]" / "{}"
// sentinels
func DefaultOptions() Options {
	return Options{
		Separator:   ".",
		ArrayPrefix: "[",
		ArraySuffix: "]",
		EmptyArray:  "[]",
		EmptyObject: "{}",
	}
}

// Entry is one flattened leaf
type Entry struct {
	Key   string
	Value value.Value // never an array or object

	// Empty marks a sentinel standing in for an empty container
	Empty bool
}

// Row is an ordered set of entries with unique keys
type Row struct {
	entries []Entry
	index   map[string]int
}

func newRow() *Row {
	return &Row{index: make(map[string]int)}
}

// set assigns key. Re-assigning an existing key keeps its position.
func (r *Row) set(e Entry) {
	if i, ok := r.index[e.Key]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.Key] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Len returns the number of entries
func (r *Row) Len() int { return len(r.entries) }

// Entries returns the entries in depth-first order
func (r *Row) Entries() []Entry {
	return append([]Entry{}, r.entries...)
}

// Keys returns the entry keys in order
func (r *Row) Keys() []string {
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the entry stored under key
func (r *Row) Get(key string) (Entry, bool) {
	i, ok := r.index[key]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Flattener turns values into Rows
type Flattener struct {
	opts Options
}

// NewFlattener creates a flattener with the given options
func NewFlattener(opts Options) *Flattener {
	return &Flattener{opts: opts}
}

// Flatten flattens v with an empty parent key. A primitive v yields a single
// entry under the empty key.
func (f *Flattener) Flatten(v value.Value) *Row {
	return f.FlattenUnder(v, "")
}

// FlattenUnder flattens v with every key prefixed by parent.
// Empty objects below the root contribute nothing. When nothing at all was
// produced (v is {} or holds only empty objects) the row gets a single
// placeholder under parent so that every record keeps at least one column.
func (f *Flattener) FlattenUnder(v value.Value, parent string) *Row {
	row := newRow()
	f.walk(row, v, parent)
	if row.Len() == 0 {
		placeholder := f.opts.EmptyObject
		if v.Kind() == value.KindArray {
			placeholder = f.opts.EmptyArray
		}
		row.set(Entry{Key: parent, Value: value.String(placeholder), Empty: true})
	}
	return row
}

func (f *Flattener) walk(row *Row, v value.Value, parent string) {
	switch v.Kind() {
	case value.KindObject:
		for _, m := range v.Members() {
			f.walk(row, m.Value, f.objectKey(parent, m.Key))
		}
	case value.KindArray:
		items := v.Items()
		if len(items) == 0 {
			row.set(Entry{Key: parent, Value: value.String(f.opts.EmptyArray), Empty: true})
			return
		}
		for i, item := range items {
			f.walk(row, item, f.indexKey(parent, i))
		}
	default:
		row.set(Entry{Key: parent, Value: v})
	}
}

func (f *Flattener) objectKey(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + f.opts.Separator + key
}

func (f *Flattener) indexKey(parent string, i int) string {
	return parent + f.opts.ArrayPrefix + strconv.Itoa(i) + f.opts.ArraySuffix
}
