package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

const anonymousUser = "anonymous"

// minFTPFields is the fewest whitespace tokens an event line needs; the date
// alone takes five.
const minFTPFields = 4

var (
	// Tue Jun 15 10:23:45 2023 alice (10.0.0.5): details
	ftpUserHostRegex = regexp.MustCompile(`^(\w{3} \w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2} \d{4}) (\S+) \((\S+)\): (.+)$`)

	ftpClientRegex   = regexp.MustCompile(`Client "([^"]+)"`)
	ftpPIDRegex      = regexp.MustCompile(`\[pid [^\]]*\]`)
	ftpTransferRegex = regexp.MustCompile(`"[^"]*", "([^"]*)"`)
)

// ftpActions is checked in order; the first key contained in the line wins.
var ftpActions = []struct {
	key      string
	action   FTPAction
	fileArg  bool // the word after key names the target file
	quoteArg bool // the target is the second quoted string of the line
}{
	{"CONNECT:", ActionConnect, false, false},
	{"OK LOGIN:", ActionLogin, false, false},
	{"FAIL LOGIN:", ActionLoginFailed, false, false},
	{"OK UPLOAD:", ActionUpload, false, true},
	{"OK DOWNLOAD:", ActionDownload, false, true},
	{"STOR ", ActionStor, true, false},
	{"RETR ", ActionRetr, true, false},
	{"DELE ", ActionDelete, true, false},
	{"MKD ", ActionMkdir, true, false},
	{"RMD ", ActionRmdir, true, false},
	{"CWD ", ActionCwd, true, false},
	{"LIST", ActionList, false, false},
	{"USER ", ActionUser, false, false},
	{"PASS ", ActionPass, false, false},
	{"QUIT", ActionQuit, false, false},
}

// FTPSession carries the user and client address of a vsftpd session
// across lines that omit them. Use one session per file.
type FTPSession struct {
	User     string
	ClientIP string
}

// NewFTPSession returns an empty session.
func NewFTPSession() *FTPSession {
	return &FTPSession{}
}

// ParseFTPLog parses every line of a vsftpd event log with a fresh session.
func ParseFTPLog(r io.Reader) ([]FTPEventRecord, Stats, error) {
	return parseLines(r, NewFTPSession().ParseLine)
}

// ParseLine parses one vsftpd event line, filling in user and client IP
// from earlier lines of the session when the line lacks them.
func (s *FTPSession) ParseLine(line string) (FTPEventRecord, error) {
	if len(strings.Fields(line)) < minFTPFields {
		return FTPEventRecord{}, fmt.Errorf("ftp: %w event layout", ErrNoMatch)
	}

	legacy := ftpUserHostRegex.FindStringSubmatch(line)

	rec := FTPEventRecord{
		Timestamp: ParseFTPTime(ftpTimeText(line, legacy)),
		Action:    ActionUnknown,
	}

	userTag, user := ftpUserTag(line)
	switch {
	case user != "":
	case legacy != nil:
		user = legacy[2]
	default:
		user = ftpUserCommand(line)
	}
	if user == "" {
		user = s.User
	}
	if user == "" {
		user = anonymousUser
	}
	if user != anonymousUser {
		s.User = user
	}
	rec.User = user

	ip := ""
	if m := ftpClientRegex.FindStringSubmatch(line); m != nil {
		ip = strings.TrimPrefix(m[1], "::ffff:")
	} else if legacy != nil {
		ip = legacy[3]
	}
	if ip == "" {
		ip = s.ClientIP
	}
	s.ClientIP = ip
	rec.ClientIP = ip

	for _, a := range ftpActions {
		idx := strings.Index(line, a.key)
		if idx < 0 {
			continue
		}
		rec.Action = a.action
		switch {
		case a.fileArg:
			rec.FileTarget = firstArg(line[idx+len(a.key):])
		case a.quoteArg:
			if m := ftpTransferRegex.FindStringSubmatch(line); m != nil {
				rec.FileTarget = m[1]
			}
		}
		break
	}

	details := ftpPIDRegex.ReplaceAllString(line, "")
	if userTag != "" {
		details = strings.Replace(details, userTag, "", 1)
	}
	rec.RawDetails = collapseSpaces(details)

	return rec, nil
}

// ftpTimeText returns the timestamp portion of an event line.
func ftpTimeText(line string, legacy []string) string {
	if idx := strings.Index(line, "[pid"); idx > 0 {
		return line[:idx]
	}
	if legacy != nil {
		return legacy[1]
	}
	fields := strings.Fields(line)
	if len(fields) > 5 {
		fields = fields[:5]
	}
	return strings.Join(fields, " ")
}

// ftpUserTag finds the first bracketed group that is not the [pid ...] tag.
// It returns the whole tag and the user inside it.
func ftpUserTag(line string) (tag, user string) {
	for _, m := range bracketRegex.FindAllStringSubmatch(line, -1) {
		inner := strings.TrimSpace(m[1])
		if inner == "" || strings.HasPrefix(inner, "pid") {
			continue
		}
		return m[0], inner
	}
	return "", ""
}

// ftpUserCommand returns the argument of a USER command in the line.
func ftpUserCommand(line string) string {
	idx := strings.Index(line, "USER ")
	if idx < 0 {
		return ""
	}
	return firstArg(line[idx+len("USER "):])
}

// firstArg returns the quoted string at the start of s, or its first word
// without surrounding quotes and commas.
func firstArg(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		if end := strings.Index(s[1:], `"`); end >= 0 {
			return s[1 : end+1]
		}
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `",`)
}
