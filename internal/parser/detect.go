package parser

import (
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// Mon Jan  1 00:00:01 2024 3 host 1024 /path b _ o r user ftp 0 *
	xferlogShapeRegex = regexp.MustCompile(
		`(?m)^\w{3} \w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2} \d{4} \d+ \S+ \d+ \S+ [A-Za-z] _ [A-Za-z] \S+`)
	// Same prefix without the type/flag/direction letters.
	xferlogLooseRegex = regexp.MustCompile(
		`(?m)^\w{3} \w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2} \d{4} \d+ \S+ \d+ \S+`)

	transferPhraseRegex = regexp.MustCompile(`(?i)bytes sent|bytes received|transfer complete`)
	transferCmdRegex    = regexp.MustCompile(`\b(?:STOR|RETR)\b[^\n]*?\b\d+\b`)
	ftpCommandRegex     = regexp.MustCompile(`\b(?:STOR|RETR|DELE|MKD|RMD|CWD|USER|PASS|QUIT)\b`)
	httpRequestRegex    = regexp.MustCompile(`"(?:GET|POST|PUT|DELETE|HEAD|OPTIONS|PATCH) .+? HTTP/\d`)
	syslogFTPRegex      = regexp.MustCompile(`(?i)\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}.*?ftp`)
)

var (
	apacheModulePrefixes = []string{"mpm_", "core:", "ssl:", "auth"}
	severityWords        = []string{"notice", "error", "warn", "info", "debug", "crit"}
	sessionWords         = []string{"login", "user", "session", "connection", "failed", "anonymous"}
	transferNamePatterns = []string{"*xfer*.log", "*transfer*.log"}
)

// sample is the detector's view of a file's leading lines.
type sample struct {
	lines    []string
	text     string
	lower    string
	filename string // lower-cased base name
}

func newSample(lines []string, filename string) *sample {
	text := strings.Join(lines, "\n")
	return &sample{
		lines:    lines,
		text:     text,
		lower:    strings.ToLower(text),
		filename: strings.ToLower(filepath.Base(filename)),
	}
}

// detectRule is one stage of the detection cascade. Rules run in table
// order and the first that reports ok decides the type.
type detectRule struct {
	name  string
	match func(s *sample) (LogType, bool)
}

// Order matters: signals overlap, so an explicit xferlog shape must beat a
// generic FTP keyword, and FTP keywords must beat bracket heuristics.
var detectRules = []detectRule{
	{"xferlog-shape", func(s *sample) (LogType, bool) {
		return TypeFTPTransfer, xferlogShapeRegex.MatchString(s.text)
	}},
	{"xferlog-filename", func(s *sample) (LogType, bool) {
		return TypeFTPTransfer, isTransferFilename(s.filename) && xferlogLooseRegex.MatchString(s.text)
	}},
	{"ftp-keyword", func(s *sample) (LogType, bool) {
		if !strings.Contains(s.lower, "vsftpd") && !strings.Contains(s.lower, "ftp") {
			return "", false
		}
		if transferPhraseRegex.MatchString(s.text) && transferCmdRegex.MatchString(s.text) {
			return TypeFTPTransfer, true
		}
		return TypeFTPLog, true
	}},
	{"ftp-command", func(s *sample) (LogType, bool) {
		return TypeFTPLog, ftpCommandRegex.MatchString(s.text)
	}},
	{"http-request", func(s *sample) (LogType, bool) {
		return TypeApacheAccess, httpRequestRegex.MatchString(s.text)
	}},
	{"apache-error-brackets", func(s *sample) (LogType, bool) {
		if !strings.Contains(s.text, "[") || !strings.Contains(s.text, "]") {
			return "", false
		}
		ok := containsAny(s.text, apacheModulePrefixes) ||
			containsAny(s.lower, severityWords) ||
			errorCodeRegex.MatchString(s.text)
		return TypeApacheError, ok
	}},
	{"syslog-ftp", func(s *sample) (LogType, bool) {
		return TypeFTPLog, syslogFTPRegex.MatchString(s.text)
	}},
	{"ip-session", func(s *sample) (LogType, bool) {
		return TypeFTPLog, ipv4Regex.MatchString(s.text) && containsAny(s.lower, sessionWords)
	}},
	{"bracket-colon", func(s *sample) (LogType, bool) {
		if !strings.HasPrefix(s.text, "[") {
			return "", false
		}
		for _, line := range s.lines {
			if !strings.Contains(line, ":") {
				return "", false
			}
		}
		return TypeApacheError, true
	}},
}

// DetectionRules returns the names of the cascade stages in order, followed
// by the two last-resort stages.
func DetectionRules() []string {
	names := make([]string, 0, len(detectRules)+2)
	for _, r := range detectRules {
		names = append(names, r.name)
	}
	return append(names, "apache-score", "filename")
}

// Detect returns the dialect of a file given its leading non-empty lines and
// its name. It fails with ErrUndeterminedType only when every heuristic is
// exhausted. Detect is a pure function of its inputs.
func Detect(lines []string, filename string) (LogType, error) {
	t, _, err := DetectWithRule(lines, filename)
	return t, err
}

// DetectWithRule is Detect that also reports which stage decided.
func DetectWithRule(lines []string, filename string) (LogType, string, error) {
	s := newSample(lines, filename)
	for _, r := range detectRules {
		if t, ok := r.match(s); ok {
			return t, r.name, nil
		}
	}

	if t, err := DetectApache(lines); err == nil {
		return t, "apache-score", nil
	}
	if t, ok := typeFromFilename(s.filename); ok {
		return t, "filename", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUndeterminedType, filepath.Base(filename))
}

// DetectFile samples the first SampleSize non-empty lines of path and runs
// Detect. When the file cannot be read, only the file name is used.
func DetectFile(path string) (LogType, error) {
	return DetectFileAs(path, path)
}

// DetectFileAs is DetectFile for content stored under a different name,
// such as an upload spooled to a temporary file. name drives the filename
// rules.
func DetectFileAs(path, name string) (LogType, error) {
	lines, err := readSampleFile(path)
	if err != nil {
		log.Printf("parser: cannot sample %s: %v", filepath.Base(name), err)
		if t, ok := typeFromFilename(strings.ToLower(filepath.Base(name))); ok {
			return t, nil
		}
		return "", fmt.Errorf("%w: %v", ErrUndeterminedType, err)
	}
	return Detect(lines, name)
}

func readSampleFile(path string) ([]string, error) {
	f, err := OpenLog(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSample(f, SampleSize)
}

// typeFromFilename infers a dialect from substrings of a lower-cased name.
func typeFromFilename(name string) (LogType, bool) {
	switch {
	case strings.Contains(name, "ftp"), strings.Contains(name, "vsftpd"):
		return TypeFTPLog, true
	case strings.Contains(name, "access"):
		return TypeApacheAccess, true
	case strings.Contains(name, "error"):
		return TypeApacheError, true
	default:
		return "", false
	}
}

func isTransferFilename(name string) bool {
	if strings.Contains(name, "xferlog") {
		return true
	}
	for _, pattern := range transferNamePatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
