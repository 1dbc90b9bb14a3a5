package events

import (
	"bufio"
	"bytes"
	"io"
)

const maxLineSize = 1 << 20

// Reader yields the non-blank lines of a feed together with their 1-based
// line numbers.
type Reader struct {
	scanner *bufio.Scanner
	lineNo  int
	line    []byte
}

// NewReader wraps r for line-by-line iteration.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next advances to the next non-blank line.
func (r *Reader) Next() bool {
	for r.scanner.Scan() {
		r.lineNo++
		line := r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		r.line = line
		return true
	}
	return false
}

// Line returns the current line. The slice is only valid until the next call to Next.
func (r *Reader) Line() []byte { return r.line }

// LineNumber returns the 1-based number of the current line.
func (r *Reader) LineNumber() int { return r.lineNo }

// Err returns the first non-EOF error encountered while reading.
func (r *Reader) Err() error { return r.scanner.Err() }
