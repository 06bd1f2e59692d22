package parser

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// SampleSize is the number of non-empty leading lines used for detection.
const SampleSize = 20

// maxLineSize bounds a single log line (1MB).
const maxLineSize = 1024 * 1024

// OpenLog opens a log file for reading. Gzip and bzip2 content is
// decompressed transparently, recognized by its magic bytes so that the
// file name does not matter.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(3)
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip reader: %w", err)
		}
		return &stackedReader{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case bytes.HasPrefix(magic, bzip2Magic):
		return &stackedReader{Reader: bzip2.NewReader(br), closers: []io.Closer{f}}, nil
	default:
		return &stackedReader{Reader: br, closers: []io.Closer{f}}, nil
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
)

// stackedReader closes a decompressor together with its underlying file.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// eachLine calls fn for every non-empty line of r, trimmed and with invalid
// UTF-8 dropped. n is the 1-based physical line number.
func eachLine(r io.Reader, fn func(n int, line string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(strings.ToValidUTF8(scanner.Text(), ""))
		if line == "" {
			continue
		}
		if !fn(n, line) {
			return nil
		}
	}
	return scanner.Err()
}

// ReadSample returns up to n non-empty leading lines of r.
func ReadSample(r io.Reader, n int) ([]string, error) {
	var lines []string
	if n <= 0 {
		return lines, nil
	}
	err := eachLine(r, func(_ int, line string) bool {
		lines = append(lines, line)
		return len(lines) < n
	})
	return lines, err
}
