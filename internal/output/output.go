package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// outputFilePermissions is the mode used when the runner has not created the
// output file yet.
const outputFilePermissions = 0600

// Writer publishes step outputs. Inside GitHub Actions it appends name=value
// lines to the file named by GITHUB_OUTPUT; outside it falls back to the
// given writer so local runs stay inspectable.
type Writer struct {
	fs       afero.Fs
	path     string
	fallback io.Writer
}

// NewWriter creates a Writer bound to the GITHUB_OUTPUT file of the current
// job step, falling back to stdout.
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs, path: os.Getenv("GITHUB_OUTPUT"), fallback: os.Stdout}
}

// NewFileWriter creates a Writer for an explicit output file. An empty path
// sends everything to the fallback writer.
func NewFileWriter(fs afero.Fs, path string, fallback io.Writer) *Writer {
	return &Writer{fs: fs, path: path, fallback: fallback}
}

// Set publishes one output. Multi-line values use the heredoc form with a
// random delimiter, as the runner requires.
func (w *Writer) Set(name, value string) error {
	if name == "" {
		return fmt.Errorf("output name cannot be empty")
	}
	var line string
	if strings.Contains(value, "\n") {
		delimiter := "ghadelimiter_" + uuid.NewString()
		if strings.Contains(value, delimiter) {
			return fmt.Errorf("output value for %s contains its own delimiter", name)
		}
		line = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
	} else {
		line = fmt.Sprintf("%s=%s\n", name, value)
	}
	if w.path == "" {
		_, err := io.WriteString(w.fallback, line)
		return err
	}
	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, line); err != nil {
		return fmt.Errorf("failed to write output %s: %w", name, err)
	}
	return nil
}

// SetAll publishes outputs in the order given, stopping at the first error.
func (w *Writer) SetAll(pairs [][2]string) error {
	for _, p := range pairs {
		if err := w.Set(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}
