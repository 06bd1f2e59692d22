package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vilfredos/logviewer/internal/parser"
)

// Save records an upload and all of its parsed records in one
// transaction. On success up.ID, up.Type, up.Records, up.Skipped and
// up.CreatedAt are filled in.
func (s *Store) Save(ctx context.Context, up *Upload, res *parser.Result) error {
	return s.save(ctx, up, res, false)
}

// SaveNew is Save for a file not stored before: it returns ErrDuplicate
// and stores nothing when an upload with the same fingerprint exists.
// The check and the insert are one statement, so concurrent callers
// store a file once.
func (s *Store) SaveNew(ctx context.Context, up *Upload, res *parser.Result) error {
	return s.save(ctx, up, res, true)
}

func (s *Store) save(ctx context.Context, up *Upload, res *parser.Result, unique bool) error {
	if _, err := TableFor(res.Type); err != nil {
		return err
	}

	created := s.now().UTC()
	stamp := formatTime(created)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx, `
		INSERT INTO uploads (filename, log_type, fingerprint, records, skipped, created_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE ? = 0 OR ? = '' OR NOT EXISTS (SELECT 1 FROM uploads WHERE fingerprint = ?)
	`, up.Filename, string(res.Type), up.Fingerprint, res.Len(), res.Stats.Skipped, stamp,
		boolInt(unique), up.Fingerprint, up.Fingerprint)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	if n, err := r.RowsAffected(); err != nil {
		return fmt.Errorf("insert upload: %w", err)
	} else if n == 0 {
		return ErrDuplicate
	}
	uploadID, err := r.LastInsertId()
	if err != nil {
		return fmt.Errorf("upload id: %w", err)
	}

	switch res.Type {
	case parser.TypeApacheAccess:
		err = s.insertAccessLogs(ctx, tx, uploadID, stamp, res.Access)
	case parser.TypeApacheError:
		err = insertErrorLogs(ctx, tx, uploadID, stamp, res.Errors)
	case parser.TypeFTPLog:
		err = s.insertFTPLogs(ctx, tx, uploadID, stamp, res.Events)
	case parser.TypeFTPTransfer:
		err = insertFTPTransfers(ctx, tx, uploadID, stamp, res.Transfers)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	up.ID = uploadID
	up.Type = res.Type
	up.Records = res.Len()
	up.Skipped = res.Stats.Skipped
	up.CreatedAt = created
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) country(ip string) string {
	if s.geo == nil || ip == "" {
		return ""
	}
	return s.geo.Country(ip)
}

func (s *Store) insertAccessLogs(ctx context.Context, tx *sql.Tx, uploadID int64, stamp string, recs []parser.AccessRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO access_logs (upload_id, client_ip, timestamp, method, path, protocol,
			status_code, bytes_sent, referer, user_agent, response_time_ms, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare access insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx, uploadID, r.ClientIP, formatTime(r.Timestamp), r.Method, r.Path, r.Protocol,
			r.StatusCode, r.BytesSent, r.Referer, r.UserAgent, r.ResponseTimeMs, s.country(r.ClientIP), stamp)
		if err != nil {
			return fmt.Errorf("insert access log: %w", err)
		}
	}
	return nil
}

func insertErrorLogs(ctx context.Context, tx *sql.Tx, uploadID int64, stamp string, recs []parser.ErrorRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO error_logs (upload_id, timestamp, module, level, pid, tid, error_code,
			message, source_file, source_line, client_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare error insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx, uploadID, formatTime(r.Timestamp), r.Module, r.Level, r.PID, r.TID, r.ErrorCode,
			r.Message, r.SourceFile, r.SourceLine, r.ClientIP, stamp)
		if err != nil {
			return fmt.Errorf("insert error log: %w", err)
		}
	}
	return nil
}

func (s *Store) insertFTPLogs(ctx context.Context, tx *sql.Tx, uploadID int64, stamp string, recs []parser.FTPEventRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ftp_logs (upload_id, timestamp, user, client_ip, action, file_target,
			raw_details, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare ftp insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx, uploadID, formatTime(r.Timestamp), r.User, r.ClientIP, string(r.Action), r.FileTarget,
			r.RawDetails, s.country(r.ClientIP), stamp)
		if err != nil {
			return fmt.Errorf("insert ftp log: %w", err)
		}
	}
	return nil
}

func insertFTPTransfers(ctx context.Context, tx *sql.Tx, uploadID int64, stamp string, recs []parser.FTPTransferRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ftp_transfers (upload_id, timestamp, duration_seconds, server_host, remote_ip,
			file_size_bytes, file_path, transfer_type, special_action, direction,
			authenticated_user, service, auth_method, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare transfer insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx, uploadID, formatTime(r.Timestamp), r.DurationSeconds, r.ServerHost, r.RemoteIP,
			r.FileSizeBytes, r.FilePath, r.TransferType, r.SpecialAction, r.Direction,
			r.AuthenticatedUser, r.Service, r.AuthMethod, r.UserID, stamp)
		if err != nil {
			return fmt.Errorf("insert ftp transfer: %w", err)
		}
	}
	return nil
}

// List returns one page of records of type t matching f, newest first.
// page is 1-based; values below 1 mean the first page.
func (s *Store) List(ctx context.Context, t parser.LogType, f Filter, page, perPage int) (*Page, error) {
	return s.list(ctx, t, f, false, page, perPage)
}

// Alerts is List restricted to records that report a failure: access
// requests answered with 4xx or 5xx, every error log record, vsftpd events
// that mention a failure, and transfers whose special action does.
func (s *Store) Alerts(ctx context.Context, t parser.LogType, f Filter, page, perPage int) (*Page, error) {
	return s.list(ctx, t, f, true, page, perPage)
}

func (s *Store) list(ctx context.Context, t parser.LogType, f Filter, alerts bool, page, perPage int) (*Page, error) {
	table, err := TableFor(t)
	if err != nil {
		return nil, err
	}
	cond := ""
	if alerts {
		cond = alertConditions[table]
	}
	where, args := f.where(table, cond)

	total, err := s.count(ctx, table, where, args)
	if err != nil {
		return nil, err
	}
	page, perPage, _ = bounds(page, perPage)

	var items any
	switch t {
	case parser.TypeApacheAccess:
		items, err = s.listAccess(ctx, where, args, page, perPage)
	case parser.TypeApacheError:
		items, err = s.listErrors(ctx, where, args, page, perPage)
	case parser.TypeFTPLog:
		items, err = s.listFTPEvents(ctx, where, args, page, perPage)
	case parser.TypeFTPTransfer:
		items, err = s.listTransfers(ctx, where, args, page, perPage)
	}
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	if totalPages < 1 {
		totalPages = 1
	}

	return &Page{
		Type:       t,
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// ListAccess returns stored access records, newest first.
func (s *Store) ListAccess(ctx context.Context, page, perPage int) ([]AccessLog, error) {
	return s.listAccess(ctx, "", nil, page, perPage)
}

// ListErrors returns stored error records, newest first.
func (s *Store) ListErrors(ctx context.Context, page, perPage int) ([]ErrorLog, error) {
	return s.listErrors(ctx, "", nil, page, perPage)
}

// ListFTPEvents returns stored vsftpd events, newest first.
func (s *Store) ListFTPEvents(ctx context.Context, page, perPage int) ([]FTPLog, error) {
	return s.listFTPEvents(ctx, "", nil, page, perPage)
}

// ListTransfers returns stored xferlog records, newest first.
func (s *Store) ListTransfers(ctx context.Context, page, perPage int) ([]FTPTransfer, error) {
	return s.listTransfers(ctx, "", nil, page, perPage)
}

func (s *Store) listAccess(ctx context.Context, where string, args []any, page, perPage int) ([]AccessLog, error) {
	return queryRows(ctx, s.db, `
		SELECT id, upload_id, client_ip, timestamp, method, path, protocol, status_code,
			bytes_sent, referer, user_agent, response_time_ms, country
		FROM access_logs
		`+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs(args, page, perPage), func(rows *sql.Rows) (AccessLog, error) {
		var (
			r  AccessLog
			ts string
		)
		err := rows.Scan(&r.ID, &r.UploadID, &r.ClientIP, &ts, &r.Method, &r.Path, &r.Protocol, &r.StatusCode,
			&r.BytesSent, &r.Referer, &r.UserAgent, &r.ResponseTimeMs, &r.Country)
		r.Timestamp = parseTime(ts)
		return r, err
	})
}

func (s *Store) listErrors(ctx context.Context, where string, args []any, page, perPage int) ([]ErrorLog, error) {
	return queryRows(ctx, s.db, `
		SELECT id, upload_id, timestamp, module, level, pid, tid, error_code, message,
			source_file, source_line, client_ip
		FROM error_logs
		`+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs(args, page, perPage), func(rows *sql.Rows) (ErrorLog, error) {
		var (
			r  ErrorLog
			ts string
		)
		err := rows.Scan(&r.ID, &r.UploadID, &ts, &r.Module, &r.Level, &r.PID, &r.TID, &r.ErrorCode, &r.Message,
			&r.SourceFile, &r.SourceLine, &r.ClientIP)
		r.Timestamp = parseTime(ts)
		return r, err
	})
}

func (s *Store) listFTPEvents(ctx context.Context, where string, args []any, page, perPage int) ([]FTPLog, error) {
	return queryRows(ctx, s.db, `
		SELECT id, upload_id, timestamp, user, client_ip, action, file_target, raw_details, country
		FROM ftp_logs
		`+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs(args, page, perPage), func(rows *sql.Rows) (FTPLog, error) {
		var (
			r  FTPLog
			ts string
		)
		err := rows.Scan(&r.ID, &r.UploadID, &ts, &r.User, &r.ClientIP, &r.Action, &r.FileTarget, &r.RawDetails, &r.Country)
		r.Timestamp = parseTime(ts)
		return r, err
	})
}

func (s *Store) listTransfers(ctx context.Context, where string, args []any, page, perPage int) ([]FTPTransfer, error) {
	return queryRows(ctx, s.db, `
		SELECT id, upload_id, timestamp, duration_seconds, server_host, remote_ip, file_size_bytes,
			file_path, transfer_type, special_action, direction, authenticated_user, service,
			auth_method, user_id
		FROM ftp_transfers
		`+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs(args, page, perPage), func(rows *sql.Rows) (FTPTransfer, error) {
		var (
			r  FTPTransfer
			ts string
		)
		err := rows.Scan(&r.ID, &r.UploadID, &ts, &r.DurationSeconds, &r.ServerHost, &r.RemoteIP, &r.FileSizeBytes,
			&r.FilePath, &r.TransferType, &r.SpecialAction, &r.Direction, &r.AuthenticatedUser, &r.Service,
			&r.AuthMethod, &r.UserID)
		r.Timestamp = parseTime(ts)
		return r, err
	})
}

// bounds clamps paging input to [1, MaxPage] and [1, MaxPerPage] and
// returns the row offset.
func bounds(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

// pageArgs appends LIMIT and OFFSET values to the filter arguments.
func pageArgs(args []any, page, perPage int) []any {
	_, limit, offset := bounds(page, perPage)
	out := make([]any, 0, len(args)+2)
	out = append(out, args...)
	return append(out, limit, offset)
}

func queryRows[T any](ctx context.Context, db *sql.DB, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}
