package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	FilesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logviewer_files_ingested_total",
		Help: "Log files stored, by detected type",
	}, []string{"log_type"})

	LinesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logviewer_lines_parsed_total",
		Help: "Lines that produced a record, by log type",
	}, []string{"log_type"})

	LinesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logviewer_lines_skipped_total",
		Help: "Lines dropped as unparsable, by log type",
	}, []string{"log_type"})

	DetectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logviewer_detection_failures_total",
		Help: "Files whose log type could not be determined",
	})

	DuplicateUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logviewer_duplicate_uploads_total",
		Help: "Files skipped because an identical file was already ingested",
	})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logviewer_ingest_duration_seconds",
		Help:    "Time to detect, parse and store one file",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
	}, []string{"log_type"})

	// Retention
	RetentionDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logviewer_retention_deleted_rows_total",
		Help: "Rows removed by the retention cleaner, by table",
	}, []string{"table"})

	// Inbox
	InboxEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logviewer_inbox_files_total",
		Help: "Inbox files handled, by outcome",
	}, []string{"outcome"})
)

func init() {
	// Pre-initialize Vec metrics so they appear in /metrics output before first use.
	for _, t := range []string{"apache_access", "apache_error", "ftp_log", "ftp_transfer"} {
		FilesIngested.WithLabelValues(t)
		LinesParsed.WithLabelValues(t)
		LinesSkipped.WithLabelValues(t)
	}
	for _, table := range []string{"uploads", "access_logs", "error_logs", "ftp_logs", "ftp_transfers"} {
		RetentionDeleted.WithLabelValues(table)
	}
	for _, outcome := range []string{"ingested", "duplicate", "failed"} {
		InboxEvents.WithLabelValues(outcome)
	}
}
