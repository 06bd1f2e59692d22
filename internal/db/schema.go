package db

import (
	"database/sql"
	"fmt"
)

// TimeFormat is how instants are stored: fixed-width UTC so that text
// ordering matches time ordering.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

const (
	createUploadsTable = `
CREATE TABLE IF NOT EXISTS uploads (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    filename    TEXT    NOT NULL,
    log_type    TEXT    NOT NULL,
    fingerprint TEXT    NOT NULL DEFAULT '',
    records     INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT    NOT NULL
)`

	createAccessLogsTable = `
CREATE TABLE IF NOT EXISTS access_logs (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id        INTEGER REFERENCES uploads(id) ON DELETE CASCADE,
    client_ip        TEXT    NOT NULL DEFAULT '',
    timestamp        TEXT    NOT NULL,
    method           TEXT    NOT NULL DEFAULT '',
    path             TEXT    NOT NULL DEFAULT '',
    protocol         TEXT    NOT NULL DEFAULT '',
    status_code      INTEGER NOT NULL DEFAULT 0,
    bytes_sent       INTEGER NOT NULL DEFAULT 0,
    referer          TEXT    NOT NULL DEFAULT '',
    user_agent       TEXT    NOT NULL DEFAULT '',
    response_time_ms REAL    NOT NULL DEFAULT 0,
    country          TEXT    NOT NULL DEFAULT '',
    created_at       TEXT    NOT NULL
)`

	createErrorLogsTable = `
CREATE TABLE IF NOT EXISTS error_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id   INTEGER REFERENCES uploads(id) ON DELETE CASCADE,
    timestamp   TEXT    NOT NULL,
    module      TEXT    NOT NULL DEFAULT '',
    level       TEXT    NOT NULL DEFAULT 'unknown',
    pid         INTEGER NOT NULL DEFAULT 0,
    tid         TEXT    NOT NULL DEFAULT '',
    error_code  TEXT    NOT NULL DEFAULT '',
    message     TEXT    NOT NULL DEFAULT '',
    source_file TEXT    NOT NULL DEFAULT '',
    source_line INTEGER NOT NULL DEFAULT 0,
    client_ip   TEXT    NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
)`

	createFTPLogsTable = `
CREATE TABLE IF NOT EXISTS ftp_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id   INTEGER REFERENCES uploads(id) ON DELETE CASCADE,
    timestamp   TEXT    NOT NULL,
    user        TEXT    NOT NULL DEFAULT 'anonymous',
    client_ip   TEXT    NOT NULL DEFAULT '',
    action      TEXT    NOT NULL DEFAULT 'unknown',
    file_target TEXT    NOT NULL DEFAULT '',
    raw_details TEXT    NOT NULL DEFAULT '',
    country     TEXT    NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
)`

	createFTPTransfersTable = `
CREATE TABLE IF NOT EXISTS ftp_transfers (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id          INTEGER REFERENCES uploads(id) ON DELETE CASCADE,
    timestamp          TEXT    NOT NULL,
    duration_seconds   INTEGER NOT NULL DEFAULT 0,
    server_host        TEXT    NOT NULL DEFAULT '',
    remote_ip          TEXT    NOT NULL DEFAULT '',
    file_size_bytes    INTEGER NOT NULL DEFAULT 0,
    file_path          TEXT    NOT NULL DEFAULT '',
    transfer_type      TEXT    NOT NULL DEFAULT '',
    special_action     TEXT    NOT NULL DEFAULT '',
    direction          TEXT    NOT NULL DEFAULT '',
    authenticated_user TEXT    NOT NULL DEFAULT '',
    service            TEXT    NOT NULL DEFAULT '',
    auth_method        TEXT    NOT NULL DEFAULT '',
    user_id            TEXT    NOT NULL DEFAULT '',
    created_at         TEXT    NOT NULL
)`

	createUploadsFingerprintIndex = `CREATE INDEX IF NOT EXISTS idx_uploads_fingerprint ON uploads(fingerprint)`
	createUploadsCreatedIndex     = `CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at)`
	createAccessTimeIndex         = `CREATE INDEX IF NOT EXISTS idx_access_logs_timestamp ON access_logs(timestamp)`
	createAccessCreatedIndex      = `CREATE INDEX IF NOT EXISTS idx_access_logs_created ON access_logs(created_at)`
	createErrorTimeIndex          = `CREATE INDEX IF NOT EXISTS idx_error_logs_timestamp ON error_logs(timestamp)`
	createErrorCreatedIndex       = `CREATE INDEX IF NOT EXISTS idx_error_logs_created ON error_logs(created_at)`
	createFTPTimeIndex            = `CREATE INDEX IF NOT EXISTS idx_ftp_logs_timestamp ON ftp_logs(timestamp)`
	createFTPCreatedIndex         = `CREATE INDEX IF NOT EXISTS idx_ftp_logs_created ON ftp_logs(created_at)`
	createTransferTimeIndex       = `CREATE INDEX IF NOT EXISTS idx_ftp_transfers_timestamp ON ftp_transfers(timestamp)`
	createTransferCreatedIndex    = `CREATE INDEX IF NOT EXISTS idx_ftp_transfers_created ON ftp_transfers(created_at)`
)

// LogTables lists the per-dialect record tables.
var LogTables = []string{"access_logs", "error_logs", "ftp_logs", "ftp_transfers"}

// Migrate creates all tables and indexes if they don't exist.
func Migrate(db *sql.DB) error {
	statements := []string{
		createUploadsTable,
		createAccessLogsTable,
		createErrorLogsTable,
		createFTPLogsTable,
		createFTPTransfersTable,
		createUploadsFingerprintIndex,
		createUploadsCreatedIndex,
		createAccessTimeIndex,
		createAccessCreatedIndex,
		createErrorTimeIndex,
		createErrorCreatedIndex,
		createFTPTimeIndex,
		createFTPCreatedIndex,
		createTransferTimeIndex,
		createTransferCreatedIndex,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
