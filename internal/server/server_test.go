package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/vilfredos/logviewer/internal/config"
	"github.com/vilfredos/logviewer/internal/db"
	"github.com/vilfredos/logviewer/internal/ingest"
	"github.com/vilfredos/logviewer/internal/parser"
	"github.com/vilfredos/logviewer/internal/store"
)

const (
	accessLine = `192.168.1.1 - frank [10/Jan/2026:13:55:36 -0800] "GET /index.html HTTP/1.1" 200 2326 "-" "Mozilla/5.0 (X11; Linux x86_64)"`
	xferLine   = `Mon Jan 01 00:00:01 2024 3 host.example.com 1024 /path/file.txt b _ o r alice ftp 0 alice c`
)

func setupTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.Default()
	cfg.UploadDir = t.TempDir()
	cfg.PageSize = 2

	st := store.New(database, nil)
	svc := ingest.NewService(st, parser.NewParser(cfg.LogType), cfg.SkipDuplicates)
	return New(cfg, st, svc), st
}

// uploadRequest builds a multipart POST with the file under "logfile" and
// any extra form fields.
func uploadRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile(uploadField, filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func doJSON(t *testing.T, s *Server, req *http.Request, wantStatus int, out any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", req.Method, req.URL.Path, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decoding %s: %v", body, err)
		}
	}
}

func lines(line string, n int) string {
	return strings.Repeat(line+"\n", n)
}

func TestUpload_AndList(t *testing.T) {
	s, _ := setupTestServer(t)

	var rep ingest.Report
	doJSON(t, s, uploadRequest(t, "/upload", "access.log", lines(accessLine, 3), nil), http.StatusOK, &rep)
	if rep.Type != parser.TypeApacheAccess || rep.Records != 3 || rep.Filename != "access.log" {
		t.Errorf("report = %+v", rep)
	}

	var page struct {
		Logs       []map[string]any `json:"logs"`
		Page       int              `json:"page"`
		Total      int              `json:"total"`
		TotalPages int              `json:"total_pages"`
	}
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/logs/apache_access?page=2", nil), http.StatusOK, &page)
	if page.Total != 3 || page.TotalPages != 2 || page.Page != 2 || len(page.Logs) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Logs[0]["path"] != "/index.html" {
		t.Errorf("log = %v", page.Logs[0])
	}

	// Aliases resolve to the same table.
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/logs/access", nil), http.StatusOK, &page)
	if page.Total != 3 {
		t.Errorf("alias total = %d", page.Total)
	}
}

func TestUpload_LeavesNoSpooledFiles(t *testing.T) {
	s, _ := setupTestServer(t)
	doJSON(t, s, uploadRequest(t, "/upload", "xferlog.log", lines(xferLine, 2), nil), http.StatusOK, nil)

	entries, err := os.ReadDir(s.config.UploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover files", len(entries))
	}
}

func TestUpload_Duplicate(t *testing.T) {
	s, st := setupTestServer(t)
	req := func() *http.Request { return uploadRequest(t, "/upload", "x.log", lines(xferLine, 2), nil) }

	doJSON(t, s, req(), http.StatusOK, nil)
	var rep ingest.Report
	doJSON(t, s, req(), http.StatusOK, &rep)
	if !rep.Duplicate {
		t.Errorf("second upload report = %+v, want duplicate", rep)
	}
	if n, _ := st.Count(t.Context(), parser.TypeFTPTransfer); n != 2 {
		t.Errorf("stored %d transfers, want 2", n)
	}
}

func TestUpload_Errors(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no file", uploadRequest(t, "/upload", "", "", nil), http.StatusBadRequest},
		{"bad extension", uploadRequest(t, "/upload", "evil.exe", "x", nil), http.StatusBadRequest},
		{"bad forced type", uploadRequest(t, "/upload", "a.log", accessLine, map[string]string{"log_type": "syslog"}), http.StatusBadRequest},
		{"undetermined", uploadRequest(t, "/upload", "notes.txt", "just some text\n", nil), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			doJSON(t, s, tt.req, tt.status, &body)
			if body["error"] == "" {
				t.Errorf("missing error message")
			}
		})
	}
}

func TestUpload_ForcedType(t *testing.T) {
	s, _ := setupTestServer(t)
	var rep ingest.Report
	req := uploadRequest(t, "/upload", "notes.txt", "just some text\n", map[string]string{"log_type": "access"})
	doJSON(t, s, req, http.StatusOK, &rep)
	if rep.Type != parser.TypeApacheAccess || rep.Records != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestTestParser(t *testing.T) {
	s, st := setupTestServer(t)

	var preview struct {
		Type   parser.LogType   `json:"type"`
		Count  int              `json:"count"`
		Sample []map[string]any `json:"sample"`
	}
	doJSON(t, s, uploadRequest(t, "/api/test-parser", "xferlog.txt", lines(xferLine, 8), nil), http.StatusOK, &preview)
	if preview.Type != parser.TypeFTPTransfer || preview.Count != 8 || len(preview.Sample) != ingest.PreviewSize {
		t.Errorf("preview = %+v", preview)
	}
	if preview.Sample[0]["direction"] != "OUT" {
		t.Errorf("sample[0] = %v", preview.Sample[0])
	}
	if n, _ := st.Count(t.Context(), parser.TypeFTPTransfer); n != 0 {
		t.Errorf("test-parser stored %d records", n)
	}
}

func TestLogs_UnknownType(t *testing.T) {
	s, _ := setupTestServer(t)
	for _, path := range []string{"/api/logs/syslog", "/api/logs/auto", "/api/summary/nope"} {
		doJSON(t, s, httptest.NewRequest(http.MethodGet, path, nil), http.StatusBadRequest, nil)
	}
}

type pageBody struct {
	Logs  []map[string]any `json:"logs"`
	Page  int              `json:"page"`
	Total int              `json:"total"`
}

func TestLogs_FilterAndAlerts(t *testing.T) {
	s, _ := setupTestServer(t)
	content := strings.Join([]string{
		accessLine,
		`10.1.1.1 - - [11/Jan/2026:08:00:00 +0000] "GET /missing.php HTTP/1.1" 404 0 "-" "curl/8.0"`,
		`10.1.1.2 - - [12/Jan/2026:08:00:00 +0000] "POST /api/items HTTP/1.1" 500 12 "-" "curl/8.0"`,
	}, "\n") + "\n"
	doJSON(t, s, uploadRequest(t, "/upload", "access.log", content, nil), http.StatusOK, nil)

	tests := []struct {
		name      string
		target    string
		wantTotal int
	}{
		{"text", "/api/logs/apache_access?q=missing", 1},
		{"user agent text", "/api/logs/apache_access?q=curl", 2},
		{"from date", "/api/logs/apache_access?from=2026-01-11", 2},
		{"single day", "/api/logs/apache_access?from=2026-01-11&to=2026-01-11", 1},
		{"range period", "/api/logs/apache_access?period=range&from=2026-01-10&to=2026-01-10", 1},
		{"alerts", "/api/alerts/apache_access", 2},
		{"alerts with text", "/api/alerts/apache_access?q=items", 1},
		{"alerts by alias", "/api/alerts/access?to=2026-01-11", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var page pageBody
			doJSON(t, s, httptest.NewRequest(http.MethodGet, tt.target, nil), http.StatusOK, &page)
			if page.Total != tt.wantTotal || len(page.Logs) != tt.wantTotal {
				t.Errorf("total = %d, logs = %d, want %d", page.Total, len(page.Logs), tt.wantTotal)
			}
		})
	}

	var sum store.Summary
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/summary/apache_access?q=curl", nil), http.StatusOK, &sum)
	if sum.Total != 2 {
		t.Errorf("filtered summary total = %d, want 2", sum.Total)
	}

	for _, target := range []string{
		"/api/logs/apache_access?period=yearly",
		"/api/summary/apache_access?from=bogus",
		"/api/alerts/apache_access?period=range",
		"/api/alerts/syslog",
	} {
		doJSON(t, s, httptest.NewRequest(http.MethodGet, target, nil), http.StatusBadRequest, nil)
	}
}

func TestLogs_HugePageIsClamped(t *testing.T) {
	s, _ := setupTestServer(t)
	doJSON(t, s, uploadRequest(t, "/upload", "access.log", lines(accessLine, 3), nil), http.StatusOK, nil)

	var page pageBody
	target := fmt.Sprintf("/api/logs/apache_access?page=%d", int64(math.MaxInt64))
	doJSON(t, s, httptest.NewRequest(http.MethodGet, target, nil), http.StatusOK, &page)
	if page.Page != store.MaxPage || len(page.Logs) != 0 || page.Total != 3 {
		t.Errorf("page = %d, logs = %d, total = %d", page.Page, len(page.Logs), page.Total)
	}
}

func TestSummaryUploadsClear(t *testing.T) {
	s, st := setupTestServer(t)
	doJSON(t, s, uploadRequest(t, "/upload", "access.log", lines(accessLine, 2), nil), http.StatusOK, nil)

	var sum store.Summary
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/summary/apache_access?limit=3", nil), http.StatusOK, &sum)
	if sum.Total != 2 || len(sum.Groups["methods"]) != 1 || sum.Groups["methods"][0].Key != "GET" {
		t.Errorf("summary = %+v", sum)
	}

	var ups struct {
		Uploads []store.Upload `json:"uploads"`
	}
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/uploads", nil), http.StatusOK, &ups)
	if len(ups.Uploads) != 1 || ups.Uploads[0].Filename != "access.log" {
		t.Errorf("uploads = %+v", ups)
	}

	doJSON(t, s, httptest.NewRequest(http.MethodPost, "/api/clear", nil), http.StatusOK, nil)
	if n, _ := st.Count(t.Context(), parser.TypeApacheAccess); n != 0 {
		t.Errorf("access rows = %d after clear", n)
	}
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/uploads", nil), http.StatusOK, &ups)
	if len(ups.Uploads) != 0 {
		t.Errorf("uploads after clear = %+v", ups.Uploads)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := setupTestServer(t)

	var health map[string]string
	doJSON(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil), http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "logviewer_files_ingested_total") {
		t.Errorf("metrics status %d, body lacks logviewer counters", resp.StatusCode)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"access.log":           "access.log",
		"../../etc/passwd.log": "passwd.log",
		`C:\logs\error.log`:    "error.log",
		"my access log.txt":    "my_access_log.txt",
		".hidden.log":          "hidden.log",
		"ñandú.log":            "and.log",
		"..":                   "",
		"":                     "",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
