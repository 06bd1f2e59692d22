// Package store persists parsed log records in SQLite, one table per
// dialect, and reads them back for the API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vilfredos/logviewer/internal/db"
	"github.com/vilfredos/logviewer/internal/parser"
)

var (
	// ErrUnknownType is returned for a log type that has no table.
	ErrUnknownType = errors.New("unknown log type")

	// ErrDuplicate is returned by SaveNew when the file was stored before.
	ErrDuplicate = errors.New("duplicate upload")
)

const (
	// DefaultPerPage is used when a caller passes a non-positive page size.
	DefaultPerPage = 50
	// MaxPerPage caps the page size.
	MaxPerPage = 1000
	// MaxPage caps the page number so the row offset stays in range.
	MaxPage = 1_000_000
)

// Locator resolves a client address to a country code. Implementations
// return "" when the address is unknown.
type Locator interface {
	Country(ip string) string
}

// Store wraps database access for log records.
type Store struct {
	db  *sql.DB
	geo Locator
	now func() time.Time
}

// New creates a Store. geo may be nil.
func New(database *sql.DB, geo Locator) *Store {
	return &Store{db: database, geo: geo, now: time.Now}
}

// Upload is one ingested file.
type Upload struct {
	ID          int64          `json:"id"`
	Filename    string         `json:"filename"`
	Type        parser.LogType `json:"log_type"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Records     int            `json:"records"`
	Skipped     int            `json:"skipped"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AccessLog is a stored access record.
type AccessLog struct {
	ID       int64  `json:"id"`
	UploadID int64  `json:"upload_id"`
	Country  string `json:"country,omitempty"`
	parser.AccessRecord
}

// ErrorLog is a stored error record.
type ErrorLog struct {
	ID       int64 `json:"id"`
	UploadID int64 `json:"upload_id"`
	parser.ErrorRecord
}

// FTPLog is a stored vsftpd event.
type FTPLog struct {
	ID       int64  `json:"id"`
	UploadID int64  `json:"upload_id"`
	Country  string `json:"country,omitempty"`
	parser.FTPEventRecord
}

// FTPTransfer is a stored xferlog record.
type FTPTransfer struct {
	ID       int64 `json:"id"`
	UploadID int64 `json:"upload_id"`
	parser.FTPTransferRecord
}

// Page is one page of stored records, newest first.
type Page struct {
	Type       parser.LogType `json:"log_type"`
	Items      any            `json:"logs"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// TableFor returns the table holding records of type t.
func TableFor(t parser.LogType) (string, error) {
	switch t {
	case parser.TypeApacheAccess:
		return "access_logs", nil
	case parser.TypeApacheError:
		return "error_logs", nil
	case parser.TypeFTPLog:
		return "ftp_logs", nil
	case parser.TypeFTPTransfer:
		return "ftp_transfers", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the number of stored records of type t.
func (s *Store) Count(ctx context.Context, t parser.LogType) (int64, error) {
	table, err := TableFor(t)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, table, "", nil)
}

func (s *Store) count(ctx context.Context, table, where string, args []any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// HasFingerprint reports whether a file with this fingerprint was stored.
func (s *Store) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM uploads WHERE fingerprint = ? LIMIT 1", fingerprint,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Uploads returns up to limit uploads, newest first.
func (s *Store) Uploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = DefaultPerPage
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, log_type, fingerprint, records, skipped, created_at
		FROM uploads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Upload
	for rows.Next() {
		var (
			u       Upload
			created string
		)
		if err := rows.Scan(&u.ID, &u.Filename, &u.Type, &u.Fingerprint, &u.Records, &u.Skipped, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(created)
		results = append(results, u)
	}
	return results, rows.Err()
}

// Clear deletes every stored record and upload.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range append(db.LogTables, "uploads") {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// PruneBefore deletes records and uploads ingested before cutoff. It returns
// the number of rows removed per table.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	stamp := formatTime(cutoff)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleted := make(map[string]int64)
	for _, table := range append(db.LogTables, "uploads") {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", stamp)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		deleted[table] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return deleted, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(db.TimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
