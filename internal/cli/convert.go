package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/jsonxl/internal/model"
	"github.com/ppiankov/jsonxl/internal/pipeline"
)

// flagKeys maps conversion flags to their config keys
var flagKeys = map[string]string{
	"start":      "markers.start",
	"end":        "markers.end",
	"format":     "output.format",
	"sheet":      "output.sheet_name",
	"padding":    "layout.padding",
	"width-mode": "layout.width_mode",
	"default":    "format.default_value",
	"separator":  "format.separator",
}

// addConversionFlags registers the flags shared by convert and batch
func addConversionFlags(flags *pflag.FlagSet) {
	flags.String("start", "", "literal start marker of embedded records")
	flags.String("end", "", "literal end marker of embedded records")
	flags.String("format", "", "output format: xlsx or csv (default: by output extension)")
	flags.String("sheet", "Data", "worksheet name")
	flags.Int("padding", 2, "extra characters added to every column width")
	flags.String("width-mode", "runes", "column width measure: runes or display")
	flags.String("default", "", "cell text for null and missing values")
	flags.String("separator", ".", "separator between nested keys")
	flags.Bool("no-cache", false, "disable the result cache")
}

// bindConversionFlags binds the running command's flags to viper. Binding
// happens at run time because convert and batch share keys.
func bindConversionFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// conversionConfig loads the configuration and applies flags that do not
// map one to one onto a config key
func conversionConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert one JSON file or text dump into a spreadsheet",
	Long: `Convert reads a single input and writes one spreadsheet row per record.

Without markers the whole input must be one JSON document: an array yields
one row per element, anything else yields a single row. With --start and
--end every substring from a start marker through the next end marker is
parsed as its own record; records that fail to parse are reported and
skipped.

Every cell is written as text. Numbers keep their JSON spelling (1.50 and
1e5 are not normalised) and booleans are written as true/false. A record
that is a bare value, not an object, goes to the "value" column
(format.root_column), which it shares with any object key of that name.

Use "-" as input to read stdin and "-o -" to write CSV to stdout.

Example:
  jsonxl convert records.json
  jsonxl convert tweets.log --start '{"created_at"' --end '"lang": "und"}'
  jsonxl convert dump.txt -o report.csv --default n/a`,
	Args:    cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error { return bindConversionFlags(cmd) },
	RunE:    runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("output", "o", "", "output path (default: input path with .xlsx or .csv)")
	addConversionFlags(convertCmd.Flags())
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := conversionConfig(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Output.Path
	}

	logger := newLogger(cfg.Output.Verbose)
	p := pipeline.NewPipeline(cfg, logger, pipeline.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout()))

	stderr := cmd.ErrOrStderr()
	if cfg.Output.Verbose {
		fmt.Fprintf(stderr, "Converting: %s\n", args[0])
		if cfg.Markers.Enabled() {
			fmt.Fprintf(stderr, "Markers: %q ... %q\n", cfg.Markers.Start, cfg.Markers.End)
		}
		fmt.Fprintf(stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(stderr)
	}

	result, err := p.Convert(context.Background(), args[0], output)
	if errors.Is(err, pipeline.ErrNothingToExport) {
		fmt.Fprintln(stderr, "nothing to export")
		return nil
	}
	if err != nil {
		return fmt.Errorf("convert failed: %w", err)
	}

	if result.Output != pipeline.StdioPath {
		printSummary(stderr, result)
	}
	return nil
}

// printSummary writes the run summary of one conversion
func printSummary(w io.Writer, res *pipeline.ConvertResult) {
	tab := res.Tabulation
	fmt.Fprintf(w, "✓ %s → %s (%s)\n", res.Input, res.Output, res.Exporter)
	fmt.Fprintf(w, "  Records:    %d\n", tab.Records)
	if len(tab.Diagnostics) > 0 {
		fmt.Fprintf(w, "  Malformed:  %d\n", len(tab.Diagnostics))
	}
	fmt.Fprintf(w, "  Rows:       %d\n", len(tab.Table.Rows))
	fmt.Fprintf(w, "  Columns:    %d\n", len(tab.Table.Columns))
	if tab.Truncated {
		fmt.Fprintf(w, "  Truncated:  at offset %d (start marker without end marker)\n", tab.TruncatedAt)
	}
	if tab.Cached {
		fmt.Fprintf(w, "  Cache:      hit\n")
	}
	fmt.Fprintf(w, "  Duration:   %v\n", res.Duration.Round(time.Millisecond))
}
