package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/jsonxl/internal/cache"
	"github.com/ppiankov/jsonxl/internal/export"
	"github.com/ppiankov/jsonxl/internal/pipeline"
	"github.com/ppiankov/jsonxl/internal/worker"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Convert many inputs listed in a file in parallel",
	Long: `Batch converts every input listed in a file:
- One input path per line; blank lines and # comments are skipped
- Repeated paths are converted once
- Inputs are converted in parallel with a configurable worker count
- Every input gets its own document in the output directory

Example:
  jsonxl batch inputs.txt
  jsonxl batch inputs.txt --concurrency 8 --output-dir ./sheets
  jsonxl batch inputs.txt --rate 2 --format csv`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindConversionFlags(cmd); err != nil {
			return err
		}
		for name, key := range map[string]string{
			"concurrency": "concurrency.workers",
			"rate":        "concurrency.rate",
			"burst":       "concurrency.burst",
		} {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
		return nil
	},
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of concurrent workers (default: number of CPUs)")
	batchCmd.Flags().Float64("rate", 0, "conversions started per second, 0 for unlimited")
	batchCmd.Flags().Int("burst", 1, "conversions allowed to start at once when rate limited")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./jsonxl-output", "output directory for documents")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	addConversionFlags(batchCmd.Flags())
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := conversionConfig(cmd)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  jsonxl Batch Conversion\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.WorkerCount())
	if cfg.Concurrency.Rate > 0 {
		fmt.Fprintf(os.Stderr, "  Rate:         %.2f/s (burst %d)\n", cfg.Concurrency.Rate, cfg.Concurrency.Burst)
	}
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	dir := cache.ExpandHome(outputDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p := pipeline.NewPipeline(cfg, newLogger(cfg.Output.Verbose))
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.WorkerCount(), cfg.Concurrency.Rate, cfg.Concurrency.Burst, dir, format)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	emptyCount := 0
	failureCount := 0

	for _, result := range results {
		switch {
		case result.Error == nil:
			successCount++
			printSummary(os.Stderr, result.Result)
		case errors.Is(result.Error, pipeline.ErrNothingToExport):
			emptyCount++
			fmt.Fprintf(os.Stderr, "- %s: nothing to export\n", result.Input)
		default:
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Input, result.Error)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d inputs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Empty:     %d\n", emptyCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d conversions failed", failureCount, len(results))
	}
	return nil
}
