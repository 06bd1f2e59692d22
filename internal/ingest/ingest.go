// Package ingest turns log files into stored records: fingerprint,
// duplicate check, type detection, parsing and storage.
package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/vilfredos/logviewer/internal/metrics"
	"github.com/vilfredos/logviewer/internal/parser"
	"github.com/vilfredos/logviewer/internal/store"
)

// PreviewSize is the number of records returned by Preview.
const PreviewSize = 5

// Report describes the outcome of ingesting one file.
type Report struct {
	UploadID    int64          `json:"upload_id,omitempty"`
	Filename    string         `json:"filename"`
	Type        parser.LogType `json:"log_type,omitempty"`
	Lines       int            `json:"lines"`
	Records     int            `json:"records"`
	Skipped     int            `json:"skipped"`
	Duplicate   bool           `json:"duplicate"`
	Fingerprint string         `json:"fingerprint"`
}

// Preview is a parse of one file that stores nothing.
type Preview struct {
	Filename string         `json:"filename"`
	Type     parser.LogType `json:"type"`
	Count    int            `json:"count"`
	Skipped  int            `json:"skipped"`
	Sample   []any          `json:"sample"`
}

// Service ingests files into a store.
type Service struct {
	store          *store.Store
	parser         *parser.Parser
	skipDuplicates bool
}

// NewService creates a Service. p decides whether the type is detected or
// forced; when skipDuplicates is set a file whose fingerprint is already
// stored is not ingested again.
func NewService(st *store.Store, p *parser.Parser, skipDuplicates bool) *Service {
	return &Service{store: st, parser: p, skipDuplicates: skipDuplicates}
}

// IngestFile stores the records of the file at path. name is the
// user-facing file name and defaults to the base of path.
func (s *Service) IngestFile(ctx context.Context, path, name string) (*Report, error) {
	return s.IngestAs(ctx, path, name, parser.TypeAuto)
}

// IngestAs is IngestFile with an explicit type. TypeAuto defers to the
// service's parser.
func (s *Service) IngestAs(ctx context.Context, path, name string, t parser.LogType) (*Report, error) {
	start := time.Now()
	if name == "" {
		name = filepath.Base(path)
	}

	fp, err := Fingerprint(path)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", name, err)
	}
	report := &Report{Filename: name, Fingerprint: fp}

	if s.skipDuplicates {
		seen, err := s.store.HasFingerprint(ctx, fp)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if seen {
			return s.duplicate(report), nil
		}
	}

	res, err := s.parse(path, name, t)
	if err != nil {
		return nil, err
	}

	// The early check only saves a parse. SaveNew decides, since another
	// caller may have stored the same file in the meantime.
	up := &store.Upload{Filename: name, Fingerprint: fp}
	save := s.store.Save
	if s.skipDuplicates {
		save = s.store.SaveNew
	}
	if err := save(ctx, up, res); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.duplicate(report), nil
		}
		return nil, fmt.Errorf("store %s: %w", name, err)
	}

	label := string(res.Type)
	metrics.FilesIngested.WithLabelValues(label).Inc()
	metrics.LinesParsed.WithLabelValues(label).Add(float64(res.Stats.Parsed))
	metrics.LinesSkipped.WithLabelValues(label).Add(float64(res.Stats.Skipped))
	metrics.IngestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	report.UploadID = up.ID
	report.Type = res.Type
	report.Lines = res.Stats.Lines
	report.Records = up.Records
	report.Skipped = up.Skipped
	log.Printf("ingest: %s as %s: %d records, %d skipped", name, res.Type, report.Records, report.Skipped)
	return report, nil
}

func (s *Service) duplicate(report *Report) *Report {
	metrics.DuplicateUploads.Inc()
	log.Printf("ingest: %s already ingested, skipping", report.Filename)
	report.Duplicate = true
	return report
}

// Preview parses the file at path and returns the first PreviewSize
// records without storing anything.
func (s *Service) Preview(path, name string) (*Preview, error) {
	if name == "" {
		name = filepath.Base(path)
	}
	res, err := s.parse(path, name, parser.TypeAuto)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Filename: name,
		Type:     res.Type,
		Count:    res.Len(),
		Skipped:  res.Stats.Skipped,
		Sample:   res.Sample(PreviewSize),
	}, nil
}

func (s *Service) parse(path, name string, t parser.LogType) (*parser.Result, error) {
	if t == parser.TypeAuto {
		var err error
		t, err = s.parser.DetectFileAs(path, name)
		if err != nil {
			if errors.Is(err, parser.ErrUndeterminedType) {
				metrics.DetectionFailures.Inc()
			}
			return nil, err
		}
	}
	return parser.ParseFile(path, t)
}

// Fingerprint returns the hex BLAKE2b-256 digest of the raw file bytes.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
