package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"olt-pricewatch/internal/models"
	"olt-pricewatch/internal/repository"
)

// TruncateToHourUTC maps any instant to the top of its UTC hour. It is the
// identity for already-truncated values.
func TruncateToHourUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// AcquireOutcome is the result of trying to take the hour lock.
type AcquireOutcome int

const (
	// Acquired means this caller owns the hour and must run the poll.
	Acquired AcquireOutcome = iota
	// AlreadyRan means a finished run exists for the hour; nothing to do.
	AlreadyRan
	// AlreadyRunning means another unfinished, non-stale run holds the lock.
	AlreadyRunning
)

func (o AcquireOutcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case AlreadyRan:
		return "already_ran"
	case AlreadyRunning:
		return "already_running"
	default:
		return "unknown"
	}
}

// RunStore is the slice of the repository the coordinator needs.
type RunStore interface {
	InsertRun(ctx context.Context, run models.PollerRun) error
	GetRun(ctx context.Context, hourBucket time.Time) (*models.PollerRun, error)
	ReclaimStaleRun(ctx context.Context, hourBucket, staleBefore, now time.Time, batchSize int) (bool, error)
}

// Coordinator implements single-writer-per-hour semantics on top of the
// poller_runs unique key.
type Coordinator struct {
	store      RunStore
	staleAfter time.Duration
	batchSize  int
}

func NewCoordinator(store RunStore, staleAfter time.Duration, batchSize int) *Coordinator {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Coordinator{store: store, staleAfter: staleAfter, batchSize: batchSize}
}

// Acquire attempts to take the lock for now's hour bucket. Exactly one
// concurrent caller gets Acquired; the rest observe AlreadyRunning, or
// AlreadyRan once a finished row exists. An unfinished row older than the
// stale window is reclaimed by exactly one caller.
func (c *Coordinator) Acquire(ctx context.Context, now time.Time) (time.Time, AcquireOutcome, error) {
	bucket := TruncateToHourUTC(now)

	err := c.store.InsertRun(ctx, models.PollerRun{
		HourBucket: bucket,
		Status:     models.RunStatusStarted,
		BatchSize:  c.batchSize,
		StartedAt:  now.UTC(),
	})
	if err == nil {
		return bucket, Acquired, nil
	}
	if !errors.Is(err, repository.ErrRunExists) {
		return bucket, AlreadyRunning, fmt.Errorf("acquire hour lock: %w", err)
	}

	existing, err := c.store.GetRun(ctx, bucket)
	if err != nil {
		return bucket, AlreadyRunning, fmt.Errorf("read existing run: %w", err)
	}
	if existing == nil {
		// Row vanished between insert and read; treat as contended.
		return bucket, AlreadyRunning, nil
	}
	if existing.FinishedAt != nil {
		return bucket, AlreadyRan, nil
	}

	staleBefore := now.UTC().Add(-c.staleAfter)
	if existing.StartedAt.Before(staleBefore) {
		won, err := c.store.ReclaimStaleRun(ctx, bucket, staleBefore, now.UTC(), c.batchSize)
		if err != nil {
			return bucket, AlreadyRunning, fmt.Errorf("reclaim stale run: %w", err)
		}
		if won {
			return bucket, Acquired, nil
		}
	}
	return bucket, AlreadyRunning, nil
}
