package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/jsonxl/internal/value"
)

// ErrInvalidDocument is returned when the whole corpus cannot be parsed as
// JSON and no markers were given
var ErrInvalidDocument = errors.New("no extractable structured data found")

// DefaultPreviewLength is the number of characters kept in a Diagnostic preview
const DefaultPreviewLength = 50

// Markers are the literal patterns that open and close one embedded record.
// Both markers are part of the record text.
type Markers struct {
	Start string `yaml:"start" mapstructure:"start"`
	End   string `yaml:"end" mapstructure:"end"`
}

// Enabled reports whether marker-mode extraction applies
func (m Markers) Enabled() bool {
	return m.Start != "" && m.End != ""
}

// Diagnostic describes a carved record that failed to parse
type Diagnostic struct {
	Start   int    `json:"start"` // byte offset of the start marker
	End     int    `json:"end"`   // byte offset just past the end marker
	Detail  string `json:"detail"`
	Preview string `json:"preview"` // leading characters of the record text
}

// Message renders the diagnostic line reported to the user
func (d Diagnostic) Message() string {
	return fmt.Sprintf("error parsing at offset %d-%d: %s", d.Start, d.End, d.Detail)
}

// Result is the outcome of one extraction run
type Result struct {
	Records     []value.Value
	Diagnostics []Diagnostic

	// Carved counts marker-delimited substrings, parsed or not
	Carved int

	// Truncated is set when a start marker had no end marker after it.
	// Everything from TruncatedAt onwards was not examined.
	Truncated   bool
	TruncatedAt int
}

// RecordExtractor carves JSON records out of a text corpus
type RecordExtractor struct {
	markers    Markers
	previewLen int
}

// NewRecordExtractor creates a record extractor. A non-positive previewLen
// selects DefaultPreviewLength.
func NewRecordExtractor(markers Markers, previewLen int) *RecordExtractor {
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}
	return &RecordExtractor{
		markers:    markers,
		previewLen: previewLen,
	}
}

// Extract returns the records found in corpus. In marker mode malformed
// records become diagnostics and never fail the run; without markers the
// whole corpus must be one JSON document.
func (e *RecordExtractor) Extract(corpus string) (*Result, error) {
	if e.markers.Enabled() {
		return e.scan(corpus), nil
	}
	return e.whole(corpus)
}

// whole parses corpus as a single document. A top-level array yields one
// record per element.
func (e *RecordExtractor) whole(corpus string) (*Result, error) {
	doc, err := value.ParseString(corpus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	result := &Result{}
	if doc.Kind() == value.KindArray {
		result.Records = doc.Items()
	} else {
		result.Records = []value.Value{doc}
	}
	return result, nil
}

// span is a half-open byte range [start, end) of the corpus
type span struct {
	start, end int
}

// scanStep is the outcome of looking for the next record from a cursor.
// When stop is false, rec is valid and next is the advanced cursor.
type scanStep struct {
	rec       span
	next      int
	stop      bool
	unbounded bool // stop caused by a start marker without an end marker
}

func (e *RecordExtractor) step(corpus string, cursor int) scanStep {
	rel := strings.Index(corpus[cursor:], e.markers.Start)
	if rel < 0 {
		return scanStep{stop: true}
	}
	start := cursor + rel

	// The end marker is searched from the start marker position, so a marker
	// pair may overlap.
	relEnd := strings.Index(corpus[start:], e.markers.End)
	if relEnd < 0 {
		return scanStep{rec: span{start: start, end: len(corpus)}, stop: true, unbounded: true}
	}
	end := start + relEnd + len(e.markers.End)

	return scanStep{rec: span{start: start, end: end}, next: end}
}

func (e *RecordExtractor) scan(corpus string) *Result {
	result := &Result{}
	cursor := 0

	for {
		st := e.step(corpus, cursor)
		if st.stop {
			if st.unbounded {
				result.Truncated = true
				result.TruncatedAt = st.rec.start
			}
			return result
		}
		cursor = st.next
		result.Carved++

		text := corpus[st.rec.start:st.rec.end]
		v, err := value.ParseString(text)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Start:   st.rec.start,
				End:     st.rec.end,
				Detail:  err.Error(),
				Preview: Preview(text, e.previewLen),
			})
			continue
		}
		result.Records = append(result.Records, v)
	}
}

// Preview returns the first n characters of s, with "..." appended when s
// was cut
func Preview(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
