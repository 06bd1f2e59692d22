package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// apacheSampleSize is how many non-empty lines the scored detector reads.
const apacheSampleSize = 10

var (
	moduleLevelRegex = regexp.MustCompile(`\[.*?\] \[.*?:.*?\]`)
	pidTagRegex      = regexp.MustCompile(`\[pid \d+`)
	colonTagRegex    = regexp.MustCompile(`\[.*?:.*?\]`)
	dottedQuadRegex  = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
)

// DetectApache scores up to ten lines as Apache error or access log lines.
// The higher score wins and a tie goes to error. With no score at all the
// sample is checked for [pid N] or [x:y] tags before giving up.
func DetectApache(lines []string) (LogType, error) {
	var sample []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			sample = append(sample, line)
		}
		if len(sample) == apacheSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return "", fmt.Errorf("%w: empty sample", ErrUndeterminedType)
	}

	errorScore, accessScore := 0, 0
	for _, line := range sample {
		if strings.HasPrefix(line, "[") && strings.Contains(line, "]") {
			switch {
			case moduleLevelRegex.MatchString(line):
				errorScore += 2
			case containsAny(strings.ToLower(line), severityWords):
				errorScore++
			case errorCodeRegex.MatchString(line):
				errorScore++
			}
		}

		switch {
		case containsAny(line, []string{`"GET`, `"POST`, `"PUT`, `"DELETE`}):
			accessScore += 2
		case containsAny(line, []string{" 200 ", " 404 ", " 500 "}):
			accessScore++
		case dottedQuadRegex.MatchString(line) && strings.Contains(line, `"`):
			accessScore++
		}
	}

	switch {
	case errorScore > accessScore:
		return TypeApacheError, nil
	case accessScore > errorScore:
		return TypeApacheAccess, nil
	case errorScore > 0:
		return TypeApacheError, nil
	}

	content := strings.Join(sample, "\n")
	if pidTagRegex.MatchString(content) || colonTagRegex.MatchString(content) {
		return TypeApacheError, nil
	}
	return "", fmt.Errorf("%w: no apache signal", ErrUndeterminedType)
}
