package model

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ppiankov/jsonxl/internal/export"
	"github.com/ppiankov/jsonxl/internal/extract"
	"github.com/ppiankov/jsonxl/internal/flatten"
	"github.com/ppiankov/jsonxl/internal/table"
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete jsonxl configuration.
// It is built once per run and handed to every stage; nothing reads
// formatting constants from package state.
type Config struct {
	Markers     extract.Markers   `yaml:"markers" mapstructure:"markers"`
	Format      FormatConfig      `yaml:"format" mapstructure:"format"`
	Layout      LayoutConfig      `yaml:"layout" mapstructure:"layout"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// FormatConfig controls flattened key names and cell text
type FormatConfig struct {
	Separator    string `yaml:"separator" mapstructure:"separator"`         // between parent and child keys
	ArrayPrefix  string `yaml:"array_prefix" mapstructure:"array_prefix"`   // before an array index
	ArraySuffix  string `yaml:"array_suffix" mapstructure:"array_suffix"`   // after an array index
	EmptyArray   string `yaml:"empty_array" mapstructure:"empty_array"`     // cell text for []
	EmptyObject  string `yaml:"empty_object" mapstructure:"empty_object"`   // cell text for {}
	DefaultValue string `yaml:"default_value" mapstructure:"default_value"` // null and missing cells
	RootColumn   string `yaml:"root_column" mapstructure:"root_column"`     // column for bare primitive records
}

// LayoutConfig controls column sizing
type LayoutConfig struct {
	Padding   int    `yaml:"padding" mapstructure:"padding"`
	WidthMode string `yaml:"width_mode" mapstructure:"width_mode"` // runes or display
}

// OutputConfig controls the written document and diagnostics
type OutputConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	Format        string `yaml:"format" mapstructure:"format"` // xlsx, csv, or empty for by-extension
	SheetName     string `yaml:"sheet_name" mapstructure:"sheet_name"`
	PreviewLength int    `yaml:"preview_length" mapstructure:"preview_length"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// CacheConfig controls the extraction result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch conversion
type ConcurrencyConfig struct {
	Workers int     `yaml:"workers" mapstructure:"workers"` // 0 for the number of CPUs
	Rate    float64 `yaml:"rate" mapstructure:"rate"` // conversions started per second, 0 for unlimited
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	fo := flatten.DefaultOptions()
	to := table.DefaultOptions()
	return &Config{
		Format: FormatConfig{
			Separator:    fo.Separator,
			ArrayPrefix:  fo.ArrayPrefix,
			ArraySuffix:  fo.ArraySuffix,
			EmptyArray:   fo.EmptyArray,
			EmptyObject:  fo.EmptyObject,
			DefaultValue: to.Default,
			RootColumn:   to.RootColumn,
		},
		Layout: LayoutConfig{
			Padding:   to.Padding,
			WidthMode: string(to.WidthMode),
		},
		Output: OutputConfig{
			SheetName:     export.DefaultSheetName,
			PreviewLength: extract.DefaultPreviewLength,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.jsonxl/cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Burst: 1,
		},
	}
}

// WorkerCount resolves Workers, where zero or less means one worker per CPU
func (c ConcurrencyConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Validate checks values that would otherwise fail late, mid-export
func (c *Config) Validate() error {
	if c.Layout.Padding < 0 {
		return fmt.Errorf("%w: layout.padding must not be negative, got %d", ErrInvalidConfig, c.Layout.Padding)
	}
	if _, err := table.ParseWidthMode(c.Layout.WidthMode); err != nil {
		return fmt.Errorf("%w: layout.width_mode: %v", ErrInvalidConfig, err)
	}
	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("%w: output.format: %v", ErrInvalidConfig, err)
	}
	if err := validateSheetName(c.Output.SheetName); err != nil {
		return fmt.Errorf("%w: output.sheet_name: %v", ErrInvalidConfig, err)
	}
	if (c.Markers.Start == "") != (c.Markers.End == "") {
		return fmt.Errorf("%w: markers.start and markers.end must be set together", ErrInvalidConfig)
	}
	if c.Concurrency.Rate < 0 {
		return fmt.Errorf("%w: concurrency.rate must not be negative", ErrInvalidConfig)
	}
	return nil
}

// validateSheetName applies Excel's sheet naming rules
func validateSheetName(name string) error {
	if name == "" {
		return nil
	}
	if n := len([]rune(name)); n > 31 {
		return fmt.Errorf("%q is %d characters, the limit is 31", name, n)
	}
	if strings.ContainsAny(name, `:\/?*[]`) {
		return fmt.Errorf("%q contains one of : \\ / ? * [ ]", name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%q must not start or end with an apostrophe", name)
	}
	return nil
}

// FlattenOptions returns the key synthesis options
func (c *Config) FlattenOptions() flatten.Options {
	return flatten.Options{
		Separator:   c.Format.Separator,
		ArrayPrefix: c.Format.ArrayPrefix,
		ArraySuffix: c.Format.ArraySuffix,
		EmptyArray:  c.Format.EmptyArray,
		EmptyObject: c.Format.EmptyObject,
	}
}

// TableOptions returns the assembly and planning options.
// Call Validate first; an unknown width mode falls back to runes here.
func (c *Config) TableOptions() table.Options {
	mode, err := table.ParseWidthMode(c.Layout.WidthMode)
	if err != nil {
		mode = table.WidthRunes
	}
	return table.Options{
		Default:    c.Format.DefaultValue,
		RootColumn: c.Format.RootColumn,
		Padding:    c.Layout.Padding,
		WidthMode:  mode,
	}
}
