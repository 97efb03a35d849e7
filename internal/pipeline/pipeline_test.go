package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/jsonxl/internal/cache"
	"github.com/ppiankov/jsonxl/internal/extract"
	"github.com/ppiankov/jsonxl/internal/model"
)

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	return cfg
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ---------------------------------------------------------------------------
// Tabulate
// ---------------------------------------------------------------------------

func TestTabulate_WholeDocumentExample(t *testing.T) {
	p := NewPipeline(testConfig(), nil)

	tab, err := p.Tabulate(`[{"a": 1, "b": {"c": [2,3]}}, {"a": 4}]`)
	require.NoError(t, err)

	assert.Equal(t, 2, tab.Records)
	assert.Equal(t, []string{"a", "b.c[0]", "b.c[1]"}, tab.Table.Header())
	assert.Equal(t, []string{"1", "2", "3"}, tab.Table.Values(0))
	assert.Equal(t, []string{"4", "", ""}, tab.Table.Values(1))
	assert.False(t, tab.Cached)
}

func TestTabulate_MarkerModeReportsDiagnostics(t *testing.T) {
	cfg := testConfig()
	cfg.Markers = extract.Markers{Start: `{"id"`, End: `"end": true}`}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := NewPipeline(cfg, logger)

	corpus := `noise {"id": 1, "end": true} junk {"id": 2, broken "end": true} {"id": 3, "end": true}`
	tab, err := p.Tabulate(corpus)
	require.NoError(t, err)

	assert.Equal(t, 2, tab.Records)
	assert.Equal(t, 3, tab.Carved)
	require.Len(t, tab.Diagnostics, 1)
	assert.Equal(t, []string{"1", "true"}, tab.Table.Values(0))
	assert.Equal(t, []string{"3", "true"}, tab.Table.Values(1))

	assert.Contains(t, logs.String(), "error parsing at offset")
	assert.Contains(t, logs.String(), "problem_in_string")
}

func TestTabulate_TruncationIsLogged(t *testing.T) {
	cfg := testConfig()
	cfg.Markers = extract.Markers{Start: "{", End: "}"}

	var logs bytes.Buffer
	p := NewPipeline(cfg, slog.New(slog.NewTextHandler(&logs, nil)))

	tab, err := p.Tabulate(`{"a":1} {"b":`)
	require.NoError(t, err)
	assert.True(t, tab.Truncated)
	assert.Equal(t, 8, tab.TruncatedAt)
	assert.Contains(t, logs.String(), "no end marker")
}

func TestTabulate_InvalidDocument(t *testing.T) {
	p := NewPipeline(testConfig(), nil)
	_, err := p.Tabulate("")
	assert.ErrorIs(t, err, extract.ErrInvalidDocument)
}

func TestTabulate_UsesCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	p := NewPipeline(testConfig(), nil, WithCache(mem))

	first, err := p.Tabulate(`{"k": [1, 2]}`)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, mem.Len())

	second, err := p.Tabulate(`{"k": [1, 2]}`)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Table.Header(), second.Table.Header())
	assert.Equal(t, first.Table.Columns, second.Table.Columns)
	assert.Equal(t, first.Table.Values(0), second.Table.Values(0))
}

func TestTabulate_CacheKeyIncludesOptions(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)

	cfg := testConfig()
	_, err := NewPipeline(cfg, nil, WithCache(mem)).Tabulate(`{"a": {"b": 1}}`)
	require.NoError(t, err)

	other := testConfig()
	other.Format.Separator = "_"
	tab, err := NewPipeline(other, nil, WithCache(mem)).Tabulate(`{"a": {"b": 1}}`)
	require.NoError(t, err)

	assert.False(t, tab.Cached)
	assert.Equal(t, []string{"a_b"}, tab.Table.Header())
}

func TestTabulate_CorruptCacheEntryIsRecomputed(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	p := NewPipeline(testConfig(), nil, WithCache(mem))

	corpus := `{"a": 1}`
	require.NoError(t, mem.Set(cache.Key(corpus, p.fingerprint()), []byte("garbage"), 0))

	tab, err := p.Tabulate(corpus)
	require.NoError(t, err)
	assert.False(t, tab.Cached)
	assert.Equal(t, []string{"a"}, tab.Table.Header())
}

// ---------------------------------------------------------------------------
// Convert
// ---------------------------------------------------------------------------

func TestConvert_WritesWorkbook(t *testing.T) {
	input := writeInput(t, "records.json", `[{"a": 1, "b": {"c": [2,3]}}, {"a": 4}]`)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	p := NewPipeline(testConfig(), nil)
	res, err := p.Convert(context.Background(), input, output)
	require.NoError(t, err)
	assert.Equal(t, output, res.Output)
	assert.Equal(t, "xlsx", res.Exporter)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b.c[0]", "b.c[1]"}, rows[0])

	w, err := f.GetColWidth("Data", "B")
	require.NoError(t, err)
	assert.Equal(t, float64(len("b.c[0]")+2), w)
}

func TestConvert_DefaultOutputPath(t *testing.T) {
	input := writeInput(t, "dump.txt", `{"x": "y"}`)
	cfg := testConfig()
	cfg.Output.Format = "csv"

	res, err := NewPipeline(cfg, nil).Convert(context.Background(), input, "")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(input, ".txt")+".csv", res.Output)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "x\ny\n", string(data))
}

func TestConvert_NothingToExport(t *testing.T) {
	input := writeInput(t, "empty.json", `[]`)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	_, err := NewPipeline(testConfig(), nil).Convert(context.Background(), input, output)
	require.ErrorIs(t, err, ErrNothingToExport)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "no document should be written")
}

func TestConvert_NoMarkersMatched(t *testing.T) {
	cfg := testConfig()
	cfg.Markers = extract.Markers{Start: "BEGIN", End: "END"}
	input := writeInput(t, "plain.txt", "nothing interesting here")

	_, err := NewPipeline(cfg, nil).Convert(context.Background(), input, filepath.Join(t.TempDir(), "o.xlsx"))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestConvert_InvalidDocument(t *testing.T) {
	input := writeInput(t, "bad.json", `{"a": `)
	_, err := NewPipeline(testConfig(), nil).Convert(context.Background(), input, filepath.Join(t.TempDir(), "o.xlsx"))
	assert.ErrorIs(t, err, extract.ErrInvalidDocument)
}

func TestConvert_MissingInput(t *testing.T) {
	_, err := NewPipeline(testConfig(), nil).Convert(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestConvert_Stdio(t *testing.T) {
	var out bytes.Buffer
	p := NewPipeline(testConfig(), nil, WithStdio(strings.NewReader(`[{"a":1},{"b":2}]`), &out))

	res, err := p.Convert(context.Background(), StdioPath, StdioPath)
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Exporter)
	assert.Equal(t, "a,b\n1,\n,2\n", out.String())
}

func TestConvert_StdoutRejectsXLSX(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Format = "xlsx"
	p := NewPipeline(cfg, nil, WithStdio(strings.NewReader(`{"a":1}`), &bytes.Buffer{}))

	_, err := p.Convert(context.Background(), StdioPath, StdioPath)
	assert.Error(t, err)
}

func TestConvert_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(testConfig(), nil).Convert(ctx, "irrelevant", "")
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Reader helpers
// ---------------------------------------------------------------------------

func TestReadCorpus_RejectsInvalidUTF8(t *testing.T) {
	_, err := ReadCorpus(StdioPath, bytes.NewReader([]byte{0xff, 0xfe, '{', '}'}))
	assert.Error(t, err)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "in.xlsx"), DefaultOutputPath(filepath.Join("dir", "in.json"), "", ""))
	assert.Equal(t, filepath.Join("out", "in.csv"), DefaultOutputPath(filepath.Join("dir", "in.json"), "out", "csv"))
	assert.Equal(t, filepath.Join("out", "stdin.xlsx"), DefaultOutputPath(StdioPath, "out", ""))
	assert.Equal(t, filepath.Join("dir", "book.flat.xlsx"), DefaultOutputPath(filepath.Join("dir", "book.xlsx"), "", ""))
}
