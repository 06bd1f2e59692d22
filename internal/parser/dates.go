package parser

import (
	"strconv"
	"strings"
	"time"
)

// now is the fallback clock for timestamps that cannot be parsed.
// Tests replace it to get deterministic values.
var now = time.Now

// Error log timestamps, tried in order:
// [Sat May 10 00:02:52.587159 2025], [Sat May 10 00:02:52 2025], ISO variants.
var errorTimeLayouts = []string{
	"Mon Jan 2 15:04:05.000000 2006",
	"Mon Jan 2 15:04:05 2006",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// Access log timestamps: 10/Oct/2023:13:55:36 (zone supplied separately).
var accessTimeLayouts = []string{
	"02/Jan/2006:15:04:05",
	"02/Jan/2006 15:04:05",
}

// vsftpd and xferlog timestamps.
var ftpTimeLayouts = []string{
	"Mon Jan 2 15:04:05 2006",
	"2006-01-02 15:04:05",
	"02/Jan/2006:15:04:05",
}

var monthNumbers = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseErrorTime parses the bracketed timestamp of an Apache error log line.
// It never fails: unparsable input yields the current time.
func ParseErrorTime(text string) time.Time {
	if t, ok := parseLayouts(errorTimeLayouts, collapseSpaces(text), time.UTC); ok {
		return t
	}
	return now()
}

// ParseAccessTime parses an access log date ("10/Oct/2023") with its clock
// ("13:55:36") and optional numeric zone ("-0700"). A date that already
// carries the clock ("10/Oct/2023:13:55:36") is accepted with an empty clock.
// It never fails: unparsable input yields the current time.
func ParseAccessTime(date, clock, zone string) time.Time {
	loc := zoneLocation(zone)

	text := date
	if clock != "" && !strings.Contains(date, ":") {
		text = date + ":" + clock
	}
	if t, ok := parseLayouts(accessTimeLayouts, text, loc); ok {
		return t
	}
	if t, ok := parseAccessManual(date, clock, loc); ok {
		return t
	}
	return now()
}

// ParseFTPTime parses vsftpd and xferlog timestamps.
// It never fails: unparsable input yields the current time.
func ParseFTPTime(text string) time.Time {
	if t, ok := parseLayouts(ftpTimeLayouts, collapseSpaces(text), time.UTC); ok {
		return t
	}
	return now()
}

func parseLayouts(layouts []string, text string, loc *time.Location) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAccessManual splits "DD/Mon/YYYY" and "HH:MM:SS" by hand. Unknown
// month names map to January.
func parseAccessManual(date, clock string, loc *time.Location) (time.Time, bool) {
	datePart, rest, hasClock := strings.Cut(date, ":")
	if clock == "" && hasClock {
		clock = rest
	}
	if clock == "" || !strings.Contains(datePart, "/") {
		return time.Time{}, false
	}

	dmy := strings.Split(datePart, "/")
	hms := strings.Split(clock, ":")
	if len(dmy) != 3 || len(hms) != 3 {
		return time.Time{}, false
	}

	month, ok := monthNumbers[dmy[1]]
	if !ok {
		month = time.January
	}
	nums := make([]int, 0, 5)
	for _, s := range []string{dmy[0], dmy[2], hms[0], hms[1], hms[2]} {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, false
		}
		nums = append(nums, n)
	}
	day, year, hour, minute, second := nums[0], nums[1], nums[2], nums[3], nums[4]
	return time.Date(year, month, day, hour, minute, second, 0, loc), true
}

// zoneLocation turns "-0700" into a fixed zone. Anything else is UTC.
func zoneLocation(zone string) *time.Location {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.UTC
	}
	t, err := time.Parse("-0700", zone)
	if err != nil {
		return time.UTC
	}
	return t.Location()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
