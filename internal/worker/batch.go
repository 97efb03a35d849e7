package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ppiankov/jsonxl/internal/cache"
	"github.com/ppiankov/jsonxl/internal/export"
	"github.com/ppiankov/jsonxl/internal/pipeline"
)

// Converter defines the interface for converting one input
type Converter interface {
	Convert(ctx context.Context, input, output string) (*pipeline.ConvertResult, error)
}

// ConvertJob represents one input to convert
type ConvertJob struct {
	Input     string
	Output    string
	Converter Converter
	Limiter   *Limiter
}

// Execute executes the conversion job
func (j *ConvertJob) Execute(ctx context.Context) *BatchResult {
	res := &BatchResult{Input: j.Input, Output: j.Output}
	if err := j.Limiter.Wait(ctx); err != nil {
		res.Error = err
		return res
	}

	converted, err := j.Converter.Convert(ctx, j.Input, j.Output)
	if err != nil {
		res.Error = err
		return res
	}
	res.Result = converted
	return res
}

// BatchResult represents the result of a conversion job
type BatchResult struct {
	Input  string
	Output string
	Result *pipeline.ConvertResult
	Error  error
}

// BatchProcessor converts multiple inputs concurrently
type BatchProcessor struct {
	converter   Converter
	concurrency int
	limiter     *Limiter
	outputDir   string
	format      export.Format
}

// NewBatchProcessor creates a new batch processor. A non-positive
// concurrency runs one worker per CPU and a non-positive rate disables
// throttling. An empty outputDir writes each document next to its
// input.
func NewBatchProcessor(converter Converter, concurrency int, perSecond float64, burst int, outputDir string, format export.Format) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &BatchProcessor{
		converter:   converter,
		concurrency: concurrency,
		limiter:     NewLimiter(perSecond, burst),
		outputDir:   outputDir,
		format:      format,
	}
}

// ProcessInputs converts every input and returns one result per input, in
// input order
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*BatchResult {
	if len(inputs) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool[*BatchResult](ctx, b.concurrency)
	pool.Start()

	outputs := b.outputPaths(inputs)
	for i, input := range inputs {
		job := &ConvertJob{
			Input:     input,
			Output:    outputs[i],
			Converter: b.converter,
			Limiter:   b.limiter,
		}
		if !pool.Submit(job.Execute) {
			break
		}
	}

	done := pool.Wait()
	results := make([]*BatchResult, len(inputs))
	for i := range inputs {
		if i < len(done) && done[i] != nil {
			results[i] = done[i]
			continue
		}
		// Never ran
		results[i] = &BatchResult{Input: inputs[i], Output: outputs[i], Error: context.Canceled}
		if err := ctx.Err(); err != nil {
			results[i].Error = err
		}
	}
	return results
}

// ProcessFile reads input paths from a file and converts them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// outputPaths assigns every input a distinct output path. Inputs sharing a
// base name in the same output directory get a numeric suffix.
func (b *BatchProcessor) outputPaths(inputs []string) []string {
	used := make(map[string]bool, len(inputs))
	outputs := make([]string, len(inputs))

	for i, input := range inputs {
		out := pipeline.DefaultOutputPath(input, b.outputDir, b.format)
		if used[out] {
			ext := filepath.Ext(out)
			stem := strings.TrimSuffix(out, ext)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
				if !used[candidate] {
					out = candidate
					break
				}
			}
		}
		used[out] = true
		outputs[i] = out
	}
	return outputs
}

// ReadInputsFromFile reads input paths from a file (one per line). Blank
// lines and lines starting with # are skipped; repeated paths are kept once.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(cache.ExpandHome(filePath))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			inputs = append(inputs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
