package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"aida/internal/domain"
)

const referenceBatch = 500

// Janitor deletes stored files that no data source references. Files
// younger than the grace period are left alone so an upload between Stored
// and SourceRecorded is never swept.
type Janitor struct {
	store   domain.BlobStore
	sources domain.DataSourceRepository
	grace   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewJanitor creates a Janitor.
func NewJanitor(store domain.BlobStore, sources domain.DataSourceRepository, grace time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:   store,
		sources: sources,
		grace:   grace,
		now:     time.Now,
		logger:  logger.With("component", "janitor"),
	}
}

// Sweep runs one pass and returns the number of files deleted.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	blobs, err := j.store.List(ctx)
	if err != nil {
		return 0, domain.ErrIO("list stored files", err)
	}
	cutoff := j.now().Add(-j.grace)
	var candidates []string
	for _, b := range blobs {
		if b.ModTime.Before(cutoff) {
			candidates = append(candidates, b.Location)
		}
	}

	deleted := 0
	for start := 0; start < len(candidates); start += referenceBatch {
		batch := candidates[start:min(start+referenceBatch, len(candidates))]
		refs, err := j.sources.ReferencedLocations(ctx, batch)
		if err != nil {
			return deleted, domain.ErrPersistence("check references", err)
		}
		for _, loc := range batch {
			if refs[loc] {
				continue
			}
			if err := j.store.Delete(ctx, loc); err != nil {
				j.logger.WarnContext(ctx, "failed to delete orphan", "location", loc, "error", err)
				continue
			}
			j.logger.InfoContext(ctx, "orphan deleted", "location", loc)
			deleted++
		}
	}
	return deleted, nil
}

// Run sweeps on schedule until ctx is done. An empty schedule returns
// immediately.
func (j *Janitor) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		j.logger.Info("janitor disabled")
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		n, err := j.Sweep(ctx)
		if err != nil {
			j.logger.Error("janitor sweep failed", "error", err)
			return
		}
		j.logger.Debug("janitor sweep finished", "deleted", n)
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	c.Start()
	j.logger.Info("janitor started", "schedule", schedule, "grace", j.grace)

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("janitor stopped")
	return nil
}
