package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vilfredos/logviewer/internal/ingest"
	"github.com/vilfredos/logviewer/internal/metrics"
)

type fakeIngester struct {
	mu    sync.Mutex
	names []string
	calls chan string
	err   error
}

func newFakeIngester() *fakeIngester {
	return &fakeIngester{calls: make(chan string, 16)}
}

func (f *fakeIngester) IngestFile(ctx context.Context, path, name string) (*ingest.Report, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	f.calls <- name
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Report{Filename: name}, nil
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, calls <-chan string, want string) {
	t.Helper()
	select {
	case got := <-calls:
		if got != want {
			t.Fatalf("ingested %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestScan_OldestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(dir, "access.log"), base.Add(3*time.Hour))
	touch(t, filepath.Join(dir, "access.log.1"), base.Add(2*time.Hour))
	touch(t, filepath.Join(dir, "access.log.2.gz"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "vsftpd.log"), base)
	touch(t, filepath.Join(dir, "README.md"), base)
	if err := os.Mkdir(filepath.Join(dir, "sub.log"), 0o755); err != nil {
		t.Fatal(err)
	}

	w := New(dir, []string{"*.log", "*.log.*", "*.gz"}, newFakeIngester())
	got, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var names []string
	for _, p := range got {
		names = append(names, filepath.Base(p))
	}
	want := []string{"access.log.2.gz", "access.log.1", "vsftpd.log", "access.log"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Scan() = %v, want %v", names, want)
	}
}

func TestRotationIndex(t *testing.T) {
	tests := map[string]int{
		"access.log":       0,
		"access.log.1":     1,
		"access.log.12.gz": 12,
		"xferlog.3.bz2":    3,
		"report.txt":       0,
		"xferlog":          0,
	}
	for name, want := range tests {
		if got := rotationIndex(name); got != want {
			t.Errorf("rotationIndex(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestMatches(t *testing.T) {
	w := New("/inbox", []string{"*.log", "*xferlog*", "ftp/**/*.txt"}, nil)
	tests := map[string]bool{
		"/inbox/a.log":          true,
		"/inbox/xferlog.1":      true,
		"/inbox/ftp/2024/x.txt": true,
		"/inbox/notes.md":       false,
		"/elsewhere/a.log":      false,
	}
	for path, want := range tests {
		if got := w.matches(path); got != want {
			t.Errorf("matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSettled(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"b": now.Add(-3 * time.Second),
		"a": now.Add(-2 * time.Second),
		"c": now.Add(-time.Second),
	}
	got := settled(pending, now, 2*time.Second)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("settled = %v", got)
	}
}

func TestRun_ScanThenWatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "existing.log"), time.Now())

	ing := newFakeIngester()
	w := New(dir, []string{"*.log"}, ing)
	w.Quiet = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, ing.calls, "existing.log")

	if err := os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dropped.log"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ing.calls, "dropped.log")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.names) != 2 {
		t.Errorf("ingested %v, want two files", ing.names)
	}
}

func TestRun_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "bad.log"), time.Now())

	ing := newFakeIngester()
	ing.err = errors.New("boom")
	before := testutil.ToFloat64(metrics.InboxEvents.WithLabelValues("failed"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(dir, []string{"*.log"}, ing)
	go w.Run(ctx)

	waitFor(t, ing.calls, "bad.log")
	cancel()

	// The counter is bumped right after the ingester returns.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(metrics.InboxEvents.WithLabelValues("failed")) == before+1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("inbox failed counter not incremented")
}
