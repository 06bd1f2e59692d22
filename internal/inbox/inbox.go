// Package inbox watches a drop directory and ingests the log files placed
// in it.
package inbox

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/vilfredos/logviewer/internal/ingest"
	"github.com/vilfredos/logviewer/internal/metrics"
)

// DefaultQuiet is how long a file must go without writes before it is
// ingested.
const DefaultQuiet = 2 * time.Second

// Ingester stores one file.
type Ingester interface {
	IngestFile(ctx context.Context, path, name string) (*ingest.Report, error)
}

// Watcher ingests files matching its patterns, first those already in the
// directory and then new ones as they settle.
type Watcher struct {
	dir      string
	patterns []string
	ingester Ingester

	// Quiet overrides DefaultQuiet when positive.
	Quiet time.Duration
}

// New creates a Watcher for dir. Patterns are doublestar globs matched
// against paths relative to dir.
func New(dir string, patterns []string, ing Ingester) *Watcher {
	return &Watcher{dir: dir, patterns: patterns, ingester: ing}
}

// Run scans the directory once, then watches it until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox %s: %w", w.dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	// Watch before scanning; a file seen by both is skipped as a duplicate.
	files, err := w.Scan()
	if err != nil {
		log.Printf("inbox: initial scan: %v", err)
	}
	for _, path := range files {
		if ctx.Err() != nil {
			return nil
		}
		w.ingest(ctx, path)
	}

	quiet := w.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	tick := time.NewTicker(quiet / 4)
	defer tick.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(pending, ev.Name)
				}
				continue
			}
			if w.matches(ev.Name) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("inbox: watcher error: %v", err)
		case now := <-tick.C:
			for _, path := range settled(pending, now, quiet) {
				delete(pending, path)
				w.ingest(ctx, path)
			}
		}
	}
}

// Scan returns the files in the directory that match the patterns, oldest
// first: rotated files by descending rotation number, then by mod time.
func (w *Watcher) Scan() ([]string, error) {
	fsys := os.DirFS(w.dir)
	seen := make(map[string]bool)
	var files []scanned

	for _, pattern := range w.patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			log.Printf("inbox: bad pattern %q: %v", pattern, err)
			continue
		}
		for _, rel := range matches {
			if seen[rel] {
				continue
			}
			seen[rel] = true
			info, err := fs.Stat(fsys, rel)
			if err != nil {
				continue
			}
			files = append(files, scanned{
				path:     filepath.Join(w.dir, filepath.FromSlash(rel)),
				rotation: rotationIndex(filepath.Base(rel)),
				modTime:  info.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.rotation != b.rotation {
			return a.rotation > b.rotation
		}
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.Before(b.modTime)
		}
		return a.path < b.path
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

type scanned struct {
	path     string
	rotation int
	modTime  time.Time
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	rep, err := w.ingester.IngestFile(ctx, path, filepath.Base(path))
	switch {
	case err != nil:
		metrics.InboxEvents.WithLabelValues("failed").Inc()
		log.Printf("inbox: %s: %v", filepath.Base(path), err)
	case rep.Duplicate:
		metrics.InboxEvents.WithLabelValues("duplicate").Inc()
	default:
		metrics.InboxEvents.WithLabelValues("ingested").Inc()
	}
}

// settled returns the pending paths untouched for at least quiet, sorted.
func settled(pending map[string]time.Time, now time.Time, quiet time.Duration) []string {
	var out []string
	for path, last := range pending {
		if now.Sub(last) >= quiet {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// rotationIndex returns N for logrotate names like "access.log.N" or
// "access.log.N.gz", and 0 otherwise.
func rotationIndex(name string) int {
	for _, ext := range []string{".gz", ".bz2"} {
		name = strings.TrimSuffix(name, ext)
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(name[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
