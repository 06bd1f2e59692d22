package parser

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
)

var (
	// ErrUndeterminedType is returned when no detection heuristic matches.
	ErrUndeterminedType = errors.New("could not determine log type")

	// ErrUnsupportedType is returned when asked to parse an unknown dialect.
	ErrUnsupportedType = errors.New("unsupported log type")

	// ErrNoMatch is returned by a line parser when a line has no usable structure.
	ErrNoMatch = errors.New("line does not match")
)

// Parser wraps dialect-aware file parsing. A Parser created for "auto"
// detects the dialect of every file; otherwise the configured dialect is
// used as-is. A Parser holds no per-file state and is safe for concurrent use.
type Parser struct {
	logType LogType
}

// NewParser creates a Parser for the given dialect name.
// Valid values: "auto", "apache_access", "apache_error", "ftp_log",
// "ftp_transfer" and their short aliases. Unknown values mean auto.
func NewParser(logType string) *Parser {
	t, ok := ParseLogType(logType)
	if !ok {
		t = TypeAuto
	}
	return &Parser{logType: t}
}

// Type returns the configured dialect, TypeAuto when detecting.
func (p *Parser) Type() LogType {
	return p.logType
}

// DetectFile returns the configured dialect, or detects it from path.
func (p *Parser) DetectFile(path string) (LogType, error) {
	if p.logType != TypeAuto {
		return p.logType, nil
	}
	return DetectFile(path)
}

// DetectFileAs is DetectFile for content stored under a different name.
func (p *Parser) DetectFileAs(path, name string) (LogType, error) {
	if p.logType != TypeAuto {
		return p.logType, nil
	}
	return DetectFileAs(path, name)
}

// ParseFile detects (when auto) and parses a whole file.
func (p *Parser) ParseFile(path string) (*Result, error) {
	t, err := p.DetectFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(path, t)
}

// Parse parses every line of r as the given dialect. Lines that cannot be
// parsed are skipped and counted in Result.Stats.
func Parse(r io.Reader, t LogType) (*Result, error) {
	res := &Result{Type: t}
	var err error

	switch t {
	case TypeApacheAccess:
		res.Access, res.Stats, err = ParseAccessLog(r)
	case TypeApacheError:
		res.Errors, res.Stats, err = ParseErrorLog(r)
	case TypeFTPLog:
		res.Events, res.Stats, err = ParseFTPLog(r)
	case TypeFTPTransfer:
		res.Transfers, res.Stats, err = ParseTransferLog(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}

	if err != nil {
		// Keep what was read before the failure.
		log.Printf("parser: read stopped after %d lines: %v", res.Stats.Lines, err)
	}
	return res, nil
}

// ParseFile parses the file at path as the given dialect. A file that cannot
// be opened yields an empty result, not an error.
func ParseFile(path string, t LogType) (*Result, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}

	f, err := OpenLog(path)
	if err != nil {
		log.Printf("parser: cannot read %s: %v", filepath.Base(path), err)
		return &Result{Type: t}, nil
	}
	defer f.Close()

	return Parse(f, t)
}

// parseLines runs parse over every non-empty line of r, keeping successes
// in input order.
func parseLines[T any](r io.Reader, parse func(string) (T, error)) ([]T, Stats, error) {
	var (
		out   []T
		stats Stats
	)
	err := eachLine(r, func(n int, line string) bool {
		stats.Lines++
		rec, err := parse(line)
		if err != nil {
			stats.Skipped++
			log.Printf("parser: skipping line %d: %v", n, err)
			return true
		}
		stats.Parsed++
		out = append(out, rec)
		return true
	})
	return out, stats, err
}

// firstOf composes line parsers; the first one that succeeds wins.
func firstOf[T any](parsers ...func(string) (T, error)) func(string) (T, error) {
	return func(line string) (T, error) {
		var zero T
		err := ErrNoMatch
		for _, parse := range parsers {
			rec, perr := parse(line)
			if perr == nil {
				return rec, nil
			}
			err = perr
		}
		return zero, err
	}
}
