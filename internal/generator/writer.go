package generator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Feed file names written by WriteFeeds.
const (
	BatchFile  = "batch_log.json"
	StreamFile = "stream_log.json"
)

// WriteFeeds writes the dataset as newline-delimited JSON into BatchFile and
// StreamFile under dir.
func WriteFeeds(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeLines(filepath.Join(dir, BatchFile), dataset.Batch); err != nil {
		return err
	}
	return writeLines(filepath.Join(dir, StreamFile), dataset.Stream)
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}
