package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidFilter is returned for an unknown period or a malformed bound.
var ErrInvalidFilter = errors.New("invalid filter")

// Period selects a reporting window relative to the current time.
type Period string

const (
	PeriodAll   Period = ""
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodRange Period = "range"
)

var periodNames = map[string]Period{
	"":        PeriodAll,
	"all":     PeriodAll,
	"day":     PeriodDay,
	"daily":   PeriodDay,
	"today":   PeriodDay,
	"week":    PeriodWeek,
	"weekly":  PeriodWeek,
	"month":   PeriodMonth,
	"monthly": PeriodMonth,
	"range":   PeriodRange,
}

// Filter narrows record queries. Query matches case-insensitively as a
// substring of the type's text columns. From and To bound the record
// timestamp as [From, To); a zero bound is open.
type Filter struct {
	Query string
	From  time.Time
	To    time.Time
}

// NewFilter builds a Filter from request values. Day, week and month are
// the calendar day, Monday-based week and month containing now. For range
// (or no period) from and to are used as given; a date-only to covers that
// whole day.
func NewFilter(q, period, from, to string, now time.Time) (Filter, error) {
	p, ok := periodNames[strings.ToLower(strings.TrimSpace(period))]
	if !ok {
		return Filter{}, fmt.Errorf("%w: unknown period %q", ErrInvalidFilter, period)
	}

	f := Filter{Query: strings.TrimSpace(q)}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch p {
	case PeriodDay:
		f.From, f.To = today, today.AddDate(0, 0, 1)
	case PeriodWeek:
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		f.From, f.To = monday, monday.AddDate(0, 0, 7)
	case PeriodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		f.From, f.To = first, first.AddDate(0, 1, 0)
	default:
		var err error
		if f.From, err = parseBound(from, false, loc); err != nil {
			return Filter{}, err
		}
		if f.To, err = parseBound(to, true, loc); err != nil {
			return Filter{}, err
		}
		if p == PeriodRange && f.From.IsZero() && f.To.IsZero() {
			return Filter{}, fmt.Errorf("%w: range needs from or to", ErrInvalidFilter)
		}
		if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
			return Filter{}, fmt.Errorf("%w: from must be before to", ErrInvalidFilter)
		}
	}
	return f, nil
}

const dateLayout = "2006-01-02"

var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	dateLayout,
}

func parseBound(s string, upper bool, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range boundLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if upper && layout == dateLayout {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidFilter, s)
}

// searchColumns lists what Filter.Query is matched against, per table.
var searchColumns = map[string][]string{
	"access_logs": {
		"client_ip", "method", "path", "protocol", "CAST(status_code AS TEXT)",
		"referer", "user_agent", "country",
	},
	"error_logs": {
		"level", "module", "client_ip", "message", "source_file",
		"CAST(source_line AS TEXT)", "error_code",
	},
	"ftp_logs": {
		"user", "client_ip", "action", "file_target", "raw_details",
	},
	"ftp_transfers": {
		"authenticated_user", "remote_ip", "server_host", "file_path", "transfer_type",
		"special_action", "direction", "service", "auth_method", "user_id",
	},
}

// ftpAlertWords mark a vsftpd event as a failure when they appear in its
// action or details.
var ftpAlertWords = []string{"fail", "refused", "denied", "530", "incorrect", "error", "crit", "alert", "emerg"}

// alertConditions select the records of each table that report a failure.
// Every error log record is one.
var alertConditions = map[string]string{
	"access_logs":   "status_code >= 400",
	"error_logs":    "1 = 1",
	"ftp_logs":      likeAny([]string{"action", "raw_details"}, ftpAlertWords),
	"ftp_transfers": likeAny([]string{"special_action"}, []string{"error", "fail"}),
}

func likeAny(cols, words []string) string {
	var parts []string
	for _, col := range cols {
		for _, w := range words {
			parts = append(parts, fmt.Sprintf("%s LIKE '%%%s%%'", col, w))
		}
	}
	return strings.Join(parts, " OR ")
}

// where renders the WHERE clause for table combining f with extra
// conditions. It returns "" when nothing restricts the query.
func (f Filter) where(table string, conds ...string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, c := range conds {
		if c != "" {
			clauses = append(clauses, "("+c+")")
		}
	}
	if f.Query != "" {
		pattern := "%" + escapeLike(f.Query) + "%"
		cols := searchColumns[table]
		like := make([]string, len(cols))
		for i, col := range cols {
			like[i] = col + ` LIKE ? ESCAPE '\'`
			args = append(args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(like, " OR ")+")")
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, formatTime(f.To))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
