package parser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Compiled regex for the Apache Combined log format
// Format: IP IDENT USER [DATE:TIME ZONE] "METHOD PATH PROTOCOL" STATUS BYTES "REFERER" "UA" [optional: response time]
var accessRegex = regexp.MustCompile(
	`^(\S+) ` + // IP
		`\S+ \S+ ` + // ident, auth user
		`\[([^:\]]+):(\d+:\d+:\d+)(?: ([^\]]+))?\] ` + // date, time, zone
		`"(\S+) (.*?) (\S+)" ` + // method path protocol
		`(\S+) ` + // status (digits or -)
		`(\S+) ` + // bytes (digits or -)
		`"([^"]*)" ` + // referer
		`"([^"]*)"` + // user-agent
		`(?:\s+(\S+))?`, // optional: response time
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

var parseAccess = firstOf(parseAccessStrict, parseAccessFallback)

// ParseAccessLine parses one access log line, trying the strict Combined
// format first and a token scan second.
func ParseAccessLine(line string) (AccessRecord, error) {
	return parseAccess(line)
}

// ParseAccessLog parses every line of an Apache access log.
func ParseAccessLog(r io.Reader) ([]AccessRecord, Stats, error) {
	return parseLines(r, parseAccess)
}

func parseAccessStrict(line string) (AccessRecord, error) {
	m := accessRegex.FindStringSubmatch(line)
	if m == nil {
		return AccessRecord{}, fmt.Errorf("access: %w combined format", ErrNoMatch)
	}

	return AccessRecord{
		ClientIP:       m[1],
		Timestamp:      ParseAccessTime(m[2], m[3], m[4]),
		Method:         m[5],
		Path:           m[6],
		Protocol:       m[7],
		StatusCode:     coerceStatus(m[8]),
		BytesSent:      coerceInt64(m[9]),
		Referer:        m[10],
		UserAgent:      m[11],
		ResponseTimeMs: coerceFloat(m[12]),
	}, nil
}

// parseAccessFallback salvages what it can from a line that is not in
// Combined format. Fields it cannot find get defaults, so any non-blank
// line yields a record.
func parseAccessFallback(line string) (AccessRecord, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return AccessRecord{}, fmt.Errorf("access: %w (blank line)", ErrNoMatch)
	}

	rec := AccessRecord{
		ClientIP: parts[0],
		Method:   "UNKNOWN",
		Path:     "/",
		Protocol: "HTTP/1.1",
	}

	rec.Timestamp = now()
	for i, part := range parts {
		if !strings.HasPrefix(part, "[") {
			continue
		}
		stamp := strings.Trim(part, "[]")
		zone := ""
		if !strings.HasSuffix(part, "]") && i+1 < len(parts) && strings.HasSuffix(parts[i+1], "]") {
			zone = strings.TrimSuffix(parts[i+1], "]")
		}
		rec.Timestamp = ParseAccessTime(stamp, "", zone)
		break
	}

	for i, part := range parts {
		method := strings.TrimPrefix(part, `"`)
		if !httpMethods[method] {
			continue
		}
		rec.Method = method
		if i+1 < len(parts) {
			rec.Path = strings.Trim(parts[i+1], `"`)
		}
		if i+2 < len(parts) {
			rec.Protocol = strings.Trim(parts[i+2], `"`)
		}
		break
	}

	for _, part := range parts {
		if len(part) == 3 && isDigits(part) {
			rec.StatusCode = coerceStatus(part)
			break
		}
	}

	return rec, nil
}

// coerceStatus returns the HTTP status in s, or 0 for "-", garbage or
// values outside 100-599.
func coerceStatus(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 100 || n > 599 {
		return 0
	}
	return n
}

func coerceInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func coerceInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func coerceFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
