package parser

import (
	"strings"
	"time"
)

// LogType identifies one of the recognized log dialects.
type LogType string

const (
	TypeAuto         LogType = "auto"
	TypeApacheAccess LogType = "apache_access"
	TypeApacheError  LogType = "apache_error"
	TypeFTPLog       LogType = "ftp_log"
	TypeFTPTransfer  LogType = "ftp_transfer"
)

// Types lists the concrete dialects in a stable order.
var Types = []LogType{TypeApacheAccess, TypeApacheError, TypeFTPLog, TypeFTPTransfer}

// ParseLogType maps a config or CLI value to a LogType.
// Empty and "auto" return TypeAuto.
func ParseLogType(s string) (LogType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return TypeAuto, true
	case "apache_access", "access":
		return TypeApacheAccess, true
	case "apache_error", "error":
		return TypeApacheError, true
	case "ftp_log", "ftp", "vsftpd":
		return TypeFTPLog, true
	case "ftp_transfer", "xferlog", "transfer":
		return TypeFTPTransfer, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the four concrete dialects.
func (t LogType) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// AccessRecord is one parsed Apache access log line.
type AccessRecord struct {
	ClientIP       string    `json:"client_ip"`
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	Protocol       string    `json:"protocol"`
	StatusCode     int       `json:"status_code"`
	BytesSent      int64     `json:"bytes_sent"`
	Referer        string    `json:"referer"`
	UserAgent      string    `json:"user_agent"`
	ResponseTimeMs float64   `json:"response_time_ms"`
}

// ErrorRecord is one parsed Apache error log line.
type ErrorRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Module     string    `json:"module"`
	Level      string    `json:"level"`
	PID        int       `json:"pid"`
	TID        string    `json:"tid"`
	ErrorCode  string    `json:"error_code"`
	Message    string    `json:"message"`
	SourceFile string    `json:"source_file"`
	SourceLine int       `json:"source_line"`
	ClientIP   string    `json:"client_ip"`
}

// FTPAction is the normalized action of a vsftpd event line.
type FTPAction string

const (
	ActionConnect     FTPAction = "CONNECT"
	ActionLogin       FTPAction = "LOGIN"
	ActionLoginFailed FTPAction = "LOGIN_FAILED"
	ActionUpload      FTPAction = "UPLOAD"
	ActionDownload    FTPAction = "DOWNLOAD"
	ActionStor        FTPAction = "STOR"
	ActionRetr        FTPAction = "RETR"
	ActionDelete      FTPAction = "DELETE"
	ActionMkdir       FTPAction = "MKDIR"
	ActionRmdir       FTPAction = "RMDIR"
	ActionCwd         FTPAction = "CWD"
	ActionList        FTPAction = "LIST"
	ActionUser        FTPAction = "USER"
	ActionPass        FTPAction = "PASS"
	ActionQuit        FTPAction = "QUIT"
	ActionUnknown     FTPAction = "unknown"
)

// FTPEventRecord is one parsed vsftpd event log line.
type FTPEventRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user"`
	ClientIP   string    `json:"client_ip"`
	Action     FTPAction `json:"action"`
	FileTarget string    `json:"file_target"`
	RawDetails string    `json:"raw_details"`
}

// Transfer directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// Transfer types. Unrecognized codes are kept as-is, upper-cased.
const (
	TransferASCII  = "A"
	TransferBinary = "B"
)

// FTPTransferRecord is one parsed xferlog line.
type FTPTransferRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	DurationSeconds   int       `json:"duration_seconds"`
	ServerHost        string    `json:"server_host"`
	RemoteIP          string    `json:"remote_ip"`
	FileSizeBytes     int64     `json:"file_size_bytes"`
	FilePath          string    `json:"file_path"`
	TransferType      string    `json:"transfer_type"`
	SpecialAction     string    `json:"special_action"`
	Direction         string    `json:"direction"`
	AuthenticatedUser string    `json:"authenticated_user"`
	Service           string    `json:"service"`
	AuthMethod        string    `json:"auth_method"`
	UserID            string    `json:"user_id"`
}

// Stats counts what happened to the lines of one parse pass.
type Stats struct {
	Lines   int `json:"lines"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

// Result holds the ordered records of a single file. Only the slice
// matching Type is populated.
type Result struct {
	Type      LogType             `json:"type"`
	Access    []AccessRecord      `json:"access,omitempty"`
	Errors    []ErrorRecord       `json:"errors,omitempty"`
	Events    []FTPEventRecord    `json:"events,omitempty"`
	Transfers []FTPTransferRecord `json:"transfers,omitempty"`
	Stats     Stats               `json:"stats"`
}

// Len returns the number of records in the result.
func (r *Result) Len() int {
	switch r.Type {
	case TypeApacheAccess:
		return len(r.Access)
	case TypeApacheError:
		return len(r.Errors)
	case TypeFTPLog:
		return len(r.Events)
	case TypeFTPTransfer:
		return len(r.Transfers)
	}
	return 0
}

// Sample returns up to n records of the result as a generic slice,
// in input order.
func (r *Result) Sample(n int) []any {
	if n < 0 {
		n = 0
	}
	out := make([]any, 0, n)
	add := func(v any) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, v)
		return true
	}
	switch r.Type {
	case TypeApacheAccess:
		for _, v := range r.Access {
			if !add(v) {
				break
			}
		}
	case TypeApacheError:
		for _, v := range r.Errors {
			if !add(v) {
				break
			}
		}
	case TypeFTPLog:
		for _, v := range r.Events {
			if !add(v) {
				break
			}
		}
	case TypeFTPTransfer:
		for _, v := range r.Transfers {
			if !add(v) {
				break
			}
		}
	}
	return out
}
