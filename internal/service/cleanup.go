package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/nottranslate-api/internal/jobs"
	"github.com/MimeLyc/nottranslate-api/internal/persistence"
	"github.com/MimeLyc/nottranslate-api/internal/storage"
	"github.com/MimeLyc/nottranslate-api/pkg/icron"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

// CleanupStore is the part of the database the cleanup touches
type CleanupStore interface {
	ListExpiredFiles(ctx context.Context, before time.Time) ([]persistence.FileRecord, error)
	MarkFileDeleted(ctx context.Context, id string) error
	DeleteStatusBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActiveJobs reports the queue position of a job, -1 when it is not queued or running
type ActiveJobs interface {
	Position(id string) int
}

type sweeper interface {
	Sweep(ctx context.Context, prefix string, olderThan time.Time, keep func(key string) bool) (int, error)
}

// CleanupReport counts what one run removed
type CleanupReport struct {
	Files    int
	Evicted  int
	Statuses int64
	Swept    int
}

// Cleaner periodically removes documents, statuses and tracker records past the retention.
type Cleaner struct {
	cron      *cron.Cron
	cronExpr  string
	retention time.Duration
	storage   storage.ObjectStorage
	db        CleanupStore
	tracker   *jobs.Tracker
	active    ActiveJobs
	now       func() time.Time

	group singleflight.Group
}

func NewCleaner(
	c *cron.Cron,
	cronExpr string,
	retention time.Duration,
	store storage.ObjectStorage,
	db CleanupStore,
	tracker *jobs.Tracker,
	active ActiveJobs,
) *Cleaner {
	return &Cleaner{
		cron:      c,
		cronExpr:  cronExpr,
		retention: retention,
		storage:   store,
		db:        db,
		tracker:   tracker,
		active:    active,
		now:       time.Now,
	}
}

// Schedule registers the cleanup on the cron. Overlapping triggers collapse into one run.
func (c *Cleaner) Schedule(ctx context.Context) error {
	_, err := c.cron.AddFunc(c.cronExpr, func() {
		if _, err := c.Run(ctx); err != nil {
			log.Error("Cleanup failed: %v", err)
		}
		c.logNext()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	c.logNext()
	return nil
}

func (c *Cleaner) logNext() {
	info, err := icron.GetTriggerInfo(c.cronExpr, c.now())
	if err != nil {
		log.Warn("Failed to compute next cleanup: %v", err)
		return
	}
	log.Info("Next cleanup at %s (in %s)", info.Next.Format(time.RFC3339), info.TimeUntilNext.Round(time.Second))
}

// Run performs one cleanup pass unless one is already in flight, in which case it
// waits for and shares that pass's result.
func (c *Cleaner) Run(ctx context.Context) (CleanupReport, error) {
	v, err, _ := c.group.Do("cleanup", func() (any, error) {
		return c.run(ctx)
	})
	if err != nil {
		return CleanupReport{}, err
	}
	return v.(CleanupReport), nil
}

func (c *Cleaner) run(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	cutoff := c.now().Add(-c.retention)

	expired, err := c.db.ListExpiredFiles(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to list expired files: %w", err)
	}
	for _, f := range expired {
		if c.isActive(f.ID) {
			continue
		}
		if err := c.deleteObjects(ctx, f.ID); err != nil {
			log.Warn("Failed to delete objects of %s: %v", f.ID, err)
			continue
		}
		if err := c.db.MarkFileDeleted(ctx, f.ID); err != nil {
			log.Warn("Failed to mark %s deleted: %v", f.ID, err)
			continue
		}
		report.Files++
	}

	report.Evicted = c.tracker.Evict(cutoff)

	report.Statuses, err = c.db.DeleteStatusBefore(ctx, cutoff)
	if err != nil {
		return report, fmt.Errorf("failed to delete archived statuses: %w", err)
	}

	if sw, ok := c.storage.(sweeper); ok {
		keep := func(key string) bool { return c.isActive(jobIDFromKey(key)) }
		for _, prefix := range []string{storage.SourcePrefix, storage.ResultPrefix} {
			n, err := sw.Sweep(ctx, prefix, cutoff, keep)
			if err != nil {
				log.Warn("Failed to sweep %s: %v", prefix, err)
				continue
			}
			report.Swept += n
		}
	}

	log.Info("Cleanup removed %d files, %d tracker records, %d archived statuses, %d orphaned objects",
		report.Files, report.Evicted, report.Statuses, report.Swept)
	return report, nil
}

func (c *Cleaner) deleteObjects(ctx context.Context, id string) error {
	for _, key := range []string{storage.SourceKey(id), storage.ResultKey(id)} {
		if err := c.storage.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cleaner) isActive(id string) bool {
	return c.active != nil && id != "" && c.active.Position(id) >= 0
}

// jobIDFromKey maps "source/<id>.ass" or "translated/<id>.ass" back to <id>
func jobIDFromKey(key string) string {
	for _, prefix := range []string{storage.SourcePrefix, storage.ResultPrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			return strings.TrimSuffix(rest, ".ass")
		}
	}
	return ""
}
