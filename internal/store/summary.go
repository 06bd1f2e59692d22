package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/vilfredos/logviewer/internal/bot"
	"github.com/vilfredos/logviewer/internal/parser"
)

// DefaultTopN bounds each summary group when the caller passes no limit.
const DefaultTopN = 10

// Bucket is one row of a grouped count.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Summary holds grouped counts over the stored records of one type that
// match a filter.
type Summary struct {
	Type   parser.LogType      `json:"log_type"`
	Total  int64               `json:"total"`
	Groups map[string][]Bucket `json:"groups"`
	Totals map[string]float64  `json:"totals,omitempty"`
}

// group is one GROUP BY over a log table. When byKey is set the result is
// chronological and unbounded, otherwise the top entries by count.
type group struct {
	name  string
	expr  string
	where string
	byKey bool
}

var summaryGroups = map[parser.LogType][]group{
	parser.TypeApacheAccess: {
		{name: "by_day", expr: "substr(timestamp, 1, 10)", byKey: true},
		{name: "status_classes", expr: `CASE
				WHEN status_code >= 200 AND status_code < 300 THEN '2xx'
				WHEN status_code >= 300 AND status_code < 400 THEN '3xx'
				WHEN status_code >= 400 AND status_code < 500 THEN '4xx'
				WHEN status_code >= 500 AND status_code < 600 THEN '5xx'
				ELSE 'other'
			END`, byKey: true},
		{name: "status_codes", expr: "CAST(status_code AS TEXT)"},
		{name: "methods", expr: "method"},
		{name: "paths", expr: "path"},
		{name: "client_ips", expr: "client_ip"},
		{name: "referers", expr: "referer", where: "referer NOT IN ('', '-')"},
		{name: "countries", expr: "country", where: "country != ''"},
	},
	parser.TypeApacheError: {
		{name: "by_day", expr: "substr(timestamp, 1, 10)", byKey: true},
		{name: "levels", expr: "level"},
		{name: "modules", expr: "module", where: "module != ''"},
		{name: "error_codes", expr: "error_code", where: "error_code != ''"},
		{name: "messages", expr: "substr(message, 1, 120)"},
		{name: "client_ips", expr: "client_ip", where: "client_ip != ''"},
		{name: "source_files", expr: "source_file", where: "source_file != ''"},
	},
	parser.TypeFTPLog: {
		{name: "by_day", expr: "substr(timestamp, 1, 10)", byKey: true},
		{name: "actions", expr: "action"},
		{name: "users", expr: "user"},
		{name: "client_ips", expr: "client_ip", where: "client_ip != ''"},
		{name: "files", expr: "file_target", where: "file_target != ''"},
		{name: "countries", expr: "country", where: "country != ''"},
	},
	parser.TypeFTPTransfer: {
		{name: "by_day", expr: "substr(timestamp, 1, 10)", byKey: true},
		{name: "directions", expr: "direction"},
		{name: "transfer_types", expr: "transfer_type"},
		{name: "services", expr: "service"},
		{name: "users", expr: "authenticated_user"},
		{name: "remote_ips", expr: "remote_ip", where: "remote_ip != ''"},
		{name: "files", expr: "file_path"},
	},
}

// Summary computes grouped counts for the records of type t matching f.
// Each top-N group holds at most limit buckets.
func (s *Store) Summary(ctx context.Context, t parser.LogType, f Filter, limit int) (*Summary, error) {
	table, err := TableFor(t)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopN
	}

	where, args := f.where(table)
	total, err := s.count(ctx, table, where, args)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Type: t, Total: total, Groups: make(map[string][]Bucket)}
	for _, g := range summaryGroups[t] {
		buckets, err := s.groupCounts(ctx, table, f, g, limit)
		if err != nil {
			return nil, fmt.Errorf("summary %s: %w", g.name, err)
		}
		sum.Groups[g.name] = buckets
	}

	switch t {
	case parser.TypeApacheAccess:
		if err := s.agentGroups(ctx, sum, where, args, limit); err != nil {
			return nil, err
		}
		sum.Totals, err = s.totals(ctx, `
			SELECT COALESCE(SUM(bytes_sent), 0), COALESCE(AVG(response_time_ms), 0)
			FROM access_logs
			`+where, args, "bytes_sent", "avg_response_time_ms")
	case parser.TypeFTPTransfer:
		sum.Totals, err = s.totals(ctx, `
			SELECT
				COALESCE(SUM(CASE WHEN direction = 'IN' THEN file_size_bytes ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN direction = 'OUT' THEN file_size_bytes ELSE 0 END), 0),
				COALESCE(AVG(duration_seconds), 0)
			FROM ftp_transfers
			`+where, args, "bytes_in", "bytes_out", "avg_duration_seconds")
	}
	if err != nil {
		return nil, err
	}

	return sum, nil
}

func (s *Store) groupCounts(ctx context.Context, table string, f Filter, g group, limit int) ([]Bucket, error) {
	where, args := f.where(table, g.where)
	order := "n DESC, k"
	tail := ""
	if g.byKey {
		order = "k"
	} else {
		tail = "LIMIT ?"
		args = append(args, limit)
	}

	query := fmt.Sprintf(`
		SELECT %s AS k, COUNT(*) AS n
		FROM %s
		%s
		GROUP BY k
		ORDER BY %s
		%s
	`, g.expr, table, where, order, tail)

	return queryRows(ctx, s.db, query, args, func(rows *sql.Rows) (Bucket, error) {
		var b Bucket
		err := rows.Scan(&b.Key, &b.Count)
		return b, err
	})
}

// agentGroups folds distinct user agents into traffic, agent, browser and
// OS buckets.
func (s *Store) agentGroups(ctx context.Context, sum *Summary, where string, args []any, limit int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_agent, COUNT(*)
		FROM access_logs
		`+where+`
		GROUP BY user_agent
	`, args...)
	if err != nil {
		return fmt.Errorf("summary user agents: %w", err)
	}
	defer rows.Close()

	traffic := make(map[string]int64)
	agents := make(map[string]int64)
	browsers := make(map[string]int64)
	systems := make(map[string]int64)
	for rows.Next() {
		var (
			ua string
			n  int64
		)
		if err := rows.Scan(&ua, &n); err != nil {
			return err
		}
		traffic[bot.Classify(ua)] += n
		agents[bot.Agent(ua)] += n
		browsers[bot.Browser(ua)] += n
		systems[bot.OS(ua)] += n
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sum.Groups["traffic"] = topBuckets(traffic, 0)
	sum.Groups["agents"] = topBuckets(agents, limit)
	sum.Groups["browsers"] = topBuckets(browsers, limit)
	sum.Groups["os"] = topBuckets(systems, limit)
	return nil
}

func (s *Store) totals(ctx context.Context, query string, args []any, names ...string) (map[string]float64, error) {
	vals := make([]float64, len(names))
	dest := make([]any, len(names))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return nil, fmt.Errorf("summary totals: %w", err)
	}
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = vals[i]
	}
	return out, nil
}

// topBuckets sorts counts descending, ties by key. limit <= 0 keeps all.
func topBuckets(counts map[string]int64, limit int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, Bucket{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
