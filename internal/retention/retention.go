package retention

import (
	"context"
	"log"
	"time"

	"github.com/vilfredos/logviewer/internal/metrics"
)

// Pruner deletes stored rows ingested before a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (map[string]int64, error)
}

type Cleaner struct {
	store         Pruner
	retentionDays int
	interval      time.Duration
	now           func() time.Time
}

// New creates a new retention cleaner with a default interval of 1 hour.
func New(store Pruner, retentionDays int) *Cleaner {
	return &Cleaner{
		store:         store,
		retentionDays: retentionDays,
		interval:      time.Hour,
		now:           time.Now,
	}
}

// Run starts the retention cleanup job. It runs cleanup immediately on start,
// then repeats every interval. It respects context cancellation.
func (c *Cleaner) Run(ctx context.Context) error {
	if _, err := c.cleanup(ctx); err != nil {
		log.Printf("retention: initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.cleanup(ctx); err != nil {
				log.Printf("retention: cleanup failed: %v", err)
			}
		}
	}
}

// cleanup removes uploads and records ingested more than retentionDays ago.
// Log timestamps are historical, so ingestion time decides.
func (c *Cleaner) cleanup(ctx context.Context) (int64, error) {
	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays).Truncate(time.Hour)

	deleted, err := c.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var total int64
	for table, n := range deleted {
		metrics.RetentionDeleted.WithLabelValues(table).Add(float64(n))
		total += n
	}

	log.Printf("retention: deleted %d uploads, %d access, %d error, %d ftp, %d transfer rows ingested before %s",
		deleted["uploads"], deleted["access_logs"], deleted["error_logs"], deleted["ftp_logs"], deleted["ftp_transfers"],
		cutoff.Format("2006-01-02"))

	return total, nil
}
