package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/jsonxl/internal/cache"
	"github.com/ppiankov/jsonxl/internal/export"
)

// StdioPath selects stdin as input or stdout as output
const StdioPath = "-"

// ReadCorpus reads the whole input as UTF-8 text. A leading "~" is expanded.
func ReadCorpus(path string, stdin io.Reader) (string, error) {
	if path == StdioPath {
		return readAll(stdin, "stdin")
	}

	path = cache.ExpandHome(path)
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = file.Close() }()

	return readAll(file, path)
}

func readAll(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: input is not valid UTF-8", name)
	}
	return string(data), nil
}

// DefaultOutputPath derives the output document path for input: the input's
// base name with its extension replaced, placed in dir (or next to the input
// when dir is empty)
func DefaultOutputPath(input, dir string, format export.Format) string {
	if input == StdioPath {
		input = "stdin"
	}
	input = cache.ExpandHome(input)
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	out := filepath.Join(dir, base+export.Extension(format))
	if out == filepath.Clean(input) {
		out = filepath.Join(dir, base+".flat"+export.Extension(format))
	}
	return out
}
