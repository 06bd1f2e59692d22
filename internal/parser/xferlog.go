package parser

import (
	"fmt"
	"io"
	"net/netip"
	"regexp"
	"strings"
)

// xferlog date prefix: "Mon Jan  1 00:00:01 2024"
const xferDate = `(\w{3} \w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2} \d{4})`

var (
	// Standard xferlog:
	// DATE DURATION HOST BYTES FILE TYPE SPECIAL DIRECTION MODE USER SERVICE AUTH USERID [STATUS]
	xferlogRegex = regexp.MustCompile(
		`^` + xferDate + ` ` +
			`(\d+) ` + // transfer time in seconds
			`(\S+) ` + // remote host
			`(\d+) ` + // file size
			`(\S+) ` + // file name
			`([A-Za-z]) ` + // transfer type
			`(\S+) ` + // special action flag
			`([A-Za-z]) ` + // direction
			`(\S+) ` + // access mode
			`(\S+) ` + // user name
			`(\S+) ` + // service name
			`(\S+)` + // authentication method
			`(?:\s+(.*))?$`, // authenticated user id and completion status
	)

	// Variant with separate server and remote IP fields and a free-form file.
	transferRegex = regexp.MustCompile(
		`^` + xferDate + ` (\d+) (\S+) (\S+) (\d+) (.+) (\w+) (\S+) (\w+) (\S+) (\S+) (\S+) (\S+)`,
	)
)

// minTransferFields is the fewest tokens the positional fallback accepts.
const minTransferFields = 12

var parseTransfer = firstOf(parseXferlogStrict, parseTransferVariant, parseTransferFields)

// ParseTransferLine parses one xferlog transfer line.
func ParseTransferLine(line string) (FTPTransferRecord, error) {
	return parseTransfer(line)
}

// ParseTransferLog parses every line of an xferlog file.
func ParseTransferLog(r io.Reader) ([]FTPTransferRecord, Stats, error) {
	return parseLines(r, parseTransfer)
}

func parseXferlogStrict(line string) (FTPTransferRecord, error) {
	m := xferlogRegex.FindStringSubmatch(line)
	if m == nil {
		return FTPTransferRecord{}, fmt.Errorf("xferlog: %w standard layout", ErrNoMatch)
	}

	rec := FTPTransferRecord{
		Timestamp:         ParseFTPTime(m[1]),
		DurationSeconds:   coerceInt(m[2]),
		ServerHost:        m[3],
		FileSizeBytes:     coerceInt64(m[4]),
		FilePath:          m[5],
		TransferType:      normalizeTransferType(m[6]),
		SpecialAction:     m[7],
		Direction:         normalizeDirection(m[8]),
		AuthenticatedUser: m[10],
		Service:           m[11],
		AuthMethod:        m[12],
	}
	if rest := strings.Fields(m[13]); len(rest) > 0 {
		rec.UserID = rest[0]
	}
	if isIP(m[3]) {
		rec.RemoteIP = m[3]
	}
	return rec, nil
}

func parseTransferVariant(line string) (FTPTransferRecord, error) {
	m := transferRegex.FindStringSubmatch(line)
	if m == nil {
		return FTPTransferRecord{}, fmt.Errorf("xferlog: %w remote-ip layout", ErrNoMatch)
	}

	return FTPTransferRecord{
		Timestamp:         ParseFTPTime(m[1]),
		DurationSeconds:   coerceInt(m[2]),
		ServerHost:        m[3],
		RemoteIP:          m[4],
		FileSizeBytes:     coerceInt64(m[5]),
		FilePath:          m[6],
		TransferType:      normalizeTransferType(m[7]),
		SpecialAction:     m[8],
		Direction:         normalizeDirection(m[9]),
		AuthenticatedUser: m[10],
		Service:           m[11],
		AuthMethod:        m[12],
		UserID:            m[13],
	}, nil
}

// parseTransferFields reads a whitespace-split line by position. The date
// takes the first five tokens.
func parseTransferFields(line string) (FTPTransferRecord, error) {
	parts := strings.Fields(line)
	if len(parts) < minTransferFields {
		return FTPTransferRecord{}, fmt.Errorf("xferlog: %w (%d fields)", ErrNoMatch, len(parts))
	}

	field := func(i int, def string) string {
		if i < len(parts) {
			return parts[i]
		}
		return def
	}

	rec := FTPTransferRecord{
		Timestamp:         ParseFTPTime(strings.Join(parts[:5], " ")),
		DurationSeconds:   coerceInt(parts[5]),
		ServerHost:        parts[6],
		FileSizeBytes:     coerceInt64(parts[7]),
		FilePath:          parts[8],
		TransferType:      normalizeTransferType(parts[9]),
		SpecialAction:     parts[10],
		Direction:         normalizeDirection(parts[11]),
		AuthenticatedUser: field(13, anonymousUser),
		Service:           field(14, "ftp"),
		AuthMethod:        field(15, ""),
	}
	rec.UserID = field(16, rec.AuthenticatedUser)

	for _, p := range parts {
		if ipv4Regex.MatchString(p) && isIP(p) {
			rec.RemoteIP = p
			break
		}
	}
	return rec, nil
}

// normalizeTransferType upper-cases the type code: "a" -> "A", "b" -> "B".
func normalizeTransferType(code string) string {
	return strings.ToUpper(code)
}

// normalizeDirection maps "i" (incoming) to IN and everything else to OUT.
func normalizeDirection(code string) string {
	if strings.HasPrefix(strings.ToLower(code), "i") {
		return DirectionIn
	}
	return DirectionOut
}

func isIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}
