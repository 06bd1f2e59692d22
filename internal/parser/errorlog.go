package parser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	// [Sat May 10 00:02:52.587159 2025] [core:error] [pid 1234:tid 5678] message
	errorRegex = regexp.MustCompile(`^\[(.*?)\] \[([^:\]]+):([^\]]+)\] \[(?:pid (\d+)(?::tid (\d+))?)?\] (.+)$`)

	sourceRefRegex = regexp.MustCompile(`\b(?:in|at) ([^:\s]+):(\d+)`)
	errorCodeRegex = regexp.MustCompile(`AH\d+`)
	clientRegex    = regexp.MustCompile(`\[client ([^\]]+)\]`)
	bracketRegex   = regexp.MustCompile(`\[(.*?)\]`)
	ipv4Regex      = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

var parseError = firstOf(parseErrorStrict, parseErrorFallback)

// ParseErrorLine parses one Apache error log line. Lines that do not match
// the 2.4 layout still produce a record with the whole line as message.
func ParseErrorLine(line string) (ErrorRecord, error) {
	return parseError(line)
}

// ParseErrorLog parses every line of an Apache error log.
func ParseErrorLog(r io.Reader) ([]ErrorRecord, Stats, error) {
	return parseLines(r, parseError)
}

func parseErrorStrict(line string) (ErrorRecord, error) {
	m := errorRegex.FindStringSubmatch(line)
	if m == nil {
		return ErrorRecord{}, fmt.Errorf("error log: %w [date] [module:level] [pid] layout", ErrNoMatch)
	}

	message := m[6]
	rec := ErrorRecord{
		Timestamp: ParseErrorTime(m[1]),
		Module:    m[2],
		Level:     normalizeLevel(m[3]),
		PID:       coerceInt(m[4]),
		TID:       m[5],
		Message:   message,
		ErrorCode: errorCodeRegex.FindString(message),
	}

	if ref := sourceRefRegex.FindStringSubmatch(message); ref != nil {
		rec.SourceFile = ref[1]
		rec.SourceLine = coerceInt(ref[2])
	}
	if c := clientRegex.FindStringSubmatch(message); c != nil {
		rec.ClientIP = stripPort(c[1])
	}

	return rec, nil
}

// parseErrorFallback reads whatever bracketed groups the line has: the first
// is taken as the timestamp, the second as module:level.
func parseErrorFallback(line string) (ErrorRecord, error) {
	rec := ErrorRecord{
		Level:   "unknown",
		Message: line,
	}

	groups := bracketRegex.FindAllStringSubmatch(line, -1)
	if len(groups) > 0 {
		rec.Timestamp = ParseErrorTime(groups[0][1])
	} else {
		rec.Timestamp = now()
	}
	if len(groups) > 1 {
		if module, level, ok := strings.Cut(groups[1][1], ":"); ok {
			rec.Module = module
			rec.Level = normalizeLevel(level)
		}
	}

	rec.ClientIP = ipv4Regex.FindString(line)
	return rec, nil
}

// normalizeLevel folds Apache LogLevel names into
// notice/error/warn/info/debug/crit, or "unknown".
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch {
	case level == "notice", level == "error", level == "warn",
		level == "info", level == "debug", level == "crit":
		return level
	case level == "warning":
		return "warn"
	case level == "emerg", level == "alert":
		return "crit"
	case strings.HasPrefix(level, "trace"):
		return "debug"
	default:
		return "unknown"
	}
}

// stripPort drops a trailing :port from "1.2.3.4:5678". Bare IPv6
// addresses are returned unchanged.
func stripPort(addr string) string {
	host, port, ok := strings.Cut(addr, ":")
	if !ok || strings.Contains(port, ":") {
		if i := strings.LastIndex(addr, "]:"); strings.HasPrefix(addr, "[") && i > 0 {
			return addr[1:i]
		}
		return addr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return addr
	}
	return host
}
