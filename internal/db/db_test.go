package db

import (
	"path/filepath"
	"testing"
)

func TestOpen_CreatesTables(t *testing.T) {
	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	for _, table := range append([]string{"uploads"}, LogTables...) {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "logviewer.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	database.Close()

	// Migrations are idempotent.
	database, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	database.Close()
}

func TestMigrate_CascadeDelete(t *testing.T) {
	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	res, err := database.Exec(
		"INSERT INTO uploads (filename, log_type, created_at) VALUES ('a.log', 'ftp_log', '2024-01-01T00:00:00.000000Z')")
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	if _, err := database.Exec(
		"INSERT INTO ftp_logs (upload_id, timestamp, created_at) VALUES (?, '2024-01-01T00:00:00.000000Z', '2024-01-01T00:00:00.000000Z')", id); err != nil {
		t.Fatal(err)
	}

	if _, err := database.Exec("DELETE FROM uploads WHERE id = ?", id); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM ftp_logs").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("ftp_logs rows = %d after deleting upload, want 0", n)
	}
}
