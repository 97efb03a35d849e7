package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/jsonxl/internal/cache"
	"github.com/ppiankov/jsonxl/internal/export"
	"github.com/ppiankov/jsonxl/internal/extract"
	"github.com/ppiankov/jsonxl/internal/flatten"
	"github.com/ppiankov/jsonxl/internal/model"
	"github.com/ppiankov/jsonxl/internal/table"
)

// ErrNothingToExport is returned when a run produced no rows. No output
// document is written in that case.
var ErrNothingToExport = errors.New("nothing to export")

// Pipeline orchestrates one conversion: read, extract, flatten, assemble,
// plan, export. A Pipeline holds no per-run state and may be shared by
// concurrent conversions.
type Pipeline struct {
	extractor *extract.RecordExtractor
	flattener *flatten.Flattener
	tableOpts table.Options
	cache     cache.Cache // nil when disabled
	config    *model.Config
	logger    *slog.Logger
	stdin     io.Reader
	stdout    io.Writer
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithCache replaces the cache built from the configuration
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithStdio sets the streams used for the "-" input and output paths
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(p *Pipeline) {
		p.stdin = in
		p.stdout = out
	}
}

// NewPipeline creates a pipeline with the given configuration. A nil logger
// discards log output.
func NewPipeline(cfg *model.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	p := &Pipeline{
		extractor: extract.NewRecordExtractor(cfg.Markers, cfg.Output.PreviewLength),
		flattener: flatten.NewFlattener(cfg.FlattenOptions()),
		tableOpts: cfg.TableOptions(),
		cache:     c,
		config:    cfg,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tabulation is the table computed from one corpus together with what the
// extractor reported along the way
type Tabulation struct {
	Table       *table.Table         `json:"table"`
	Records     int                  `json:"records"`
	Carved      int                  `json:"carved"`
	Diagnostics []extract.Diagnostic `json:"diagnostics,omitempty"`
	Truncated   bool                 `json:"truncated"`
	TruncatedAt int                  `json:"truncated_at"`
	Cached      bool                 `json:"-"`
}

// Tabulate runs extraction, flattening, assembly and column planning over
// corpus. Results are served from the cache when one is configured.
func (p *Pipeline) Tabulate(corpus string) (*Tabulation, error) {
	key := cache.Key(corpus, p.fingerprint())
	if tab, ok := p.cached(key); ok {
		p.report(tab)
		return tab, nil
	}

	result, err := p.extractor.Extract(corpus)
	if err != nil {
		return nil, err
	}

	rows := make([]table.Row, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, table.Assemble(p.flattener.Flatten(record), p.tableOpts))
	}

	tab := &Tabulation{
		Table:       table.Build(rows, p.tableOpts),
		Records:     len(result.Records),
		Carved:      result.Carved,
		Diagnostics: result.Diagnostics,
		Truncated:   result.Truncated,
		TruncatedAt: result.TruncatedAt,
	}
	p.store(key, tab)
	p.report(tab)
	return tab, nil
}

// ConvertResult summarises a finished conversion
type ConvertResult struct {
	Input      string
	Output     string
	Exporter   string
	Tabulation *Tabulation
	Duration   time.Duration
}

// Convert reads input, tabulates it and writes the document to output. An
// empty output derives the path from the input; "-" writes CSV to stdout.
func (p *Pipeline) Convert(ctx context.Context, input, output string) (*ConvertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	format, err := export.ParseFormat(p.config.Output.Format)
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = DefaultOutputPath(input, "", format)
	}

	corpus, err := ReadCorpus(input, p.stdin)
	if err != nil {
		return nil, err
	}

	tab, err := p.Tabulate(corpus)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	if len(tab.Table.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", input, ErrNothingToExport)
	}

	exporterName, err := p.write(output, format, tab.Table)
	if err != nil {
		return nil, err
	}

	p.logger.Info(fmt.Sprintf("data saved to %s with auto-sized columns", output),
		"rows", len(tab.Table.Rows),
		"columns", len(tab.Table.Columns),
		"cached", tab.Cached)

	return &ConvertResult{
		Input:      input,
		Output:     output,
		Exporter:   exporterName,
		Tabulation: tab,
		Duration:   time.Since(start),
	}, nil
}

func (p *Pipeline) write(output string, format export.Format, t *table.Table) (string, error) {
	if output == StdioPath {
		if format == export.XLSX {
			return "", fmt.Errorf("%w: xlsx cannot be written to stdout", export.ErrUnsupportedFormat)
		}
		if err := export.WriteCSV(p.stdout, t); err != nil {
			return "", fmt.Errorf("write stdout: %w", err)
		}
		return string(export.CSV), nil
	}

	output = cache.ExpandHome(output)
	exporter, err := export.ForPath(output, format, p.config.Output.SheetName)
	if err != nil {
		return "", err
	}
	if err := exporter.Export(output, t); err != nil {
		return "", fmt.Errorf("export %s: %w", exporter.Name(), err)
	}
	return exporter.Name(), nil
}

// report logs the extractor diagnostics of a tabulation
func (p *Pipeline) report(tab *Tabulation) {
	for _, d := range tab.Diagnostics {
		p.logger.Warn(d.Message(), "problem_in_string", d.Preview)
	}
	if tab.Truncated {
		p.logger.Info("scan stopped at a start marker with no end marker", "offset", tab.TruncatedAt)
	}
}

// fingerprint identifies every setting that changes a Tabulation
func (p *Pipeline) fingerprint() string {
	return fmt.Sprintf("%#v|%#v|%#v|%d", p.config.Markers, p.config.Format, p.config.Layout, p.config.Output.PreviewLength)
}

func (p *Pipeline) cached(key string) (*Tabulation, bool) {
	if p.cache == nil {
		return nil, false
	}
	data, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}

	var tab Tabulation
	if err := json.Unmarshal(data, &tab); err != nil || tab.Table == nil {
		p.logger.Debug("discarding unreadable cache entry", "key", key, "error", err)
		_ = p.cache.Delete(key)
		return nil, false
	}
	tab.Cached = true
	p.logger.Debug("cache hit", "key", key)
	return &tab, true
}

func (p *Pipeline) store(key string, tab *Tabulation) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(tab)
	if err != nil {
		p.logger.Debug("cache encode failed", "error", err)
		return
	}
	if err := p.cache.Set(key, data, 0); err != nil {
		// A cache write failure never fails the conversion.
		p.logger.Warn("cache write failed", "error", err)
	}
}
