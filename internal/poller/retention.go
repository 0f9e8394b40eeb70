package poller

import (
	"context"
	"time"
)

// RetentionStore is the slice of the repository retention needs.
type RetentionStore interface {
	PruneHourlyForEndedEvents(ctx context.Context, now, cutoff time.Time) (endedEvents int, deletedRows int64, err error)
}

// Retention prunes hourly rows for ended events beyond the configured
// horizon. Daily rollups are the survivors; hourly detail past the horizon
// only costs storage.
type Retention struct {
	store RetentionStore
	days  int
}

// RetentionSummary is recorded in the run's debug blob and returned by the
// daily job.
type RetentionSummary struct {
	RetentionDays     int       `json:"retention_days"`
	Cutoff            time.Time `json:"cutoff"`
	EndedEventCount   int       `json:"ended_event_count"`
	DeletedHourlyRows int64     `json:"deleted_hourly_rows"`
}

func NewRetention(store RetentionStore, days int) *Retention {
	if days < 0 {
		days = 7
	}
	return &Retention{store: store, days: days}
}

// Enforce deletes hourly rows older than now minus the horizon for ended
// events. Idempotent: a second call with the same clock deletes nothing.
func (r *Retention) Enforce(ctx context.Context, now time.Time) (*RetentionSummary, error) {
	cutoff := now.UTC().AddDate(0, 0, -r.days)
	ended, deleted, err := r.store.PruneHourlyForEndedEvents(ctx, now.UTC(), cutoff)
	if err != nil {
		return nil, err
	}
	return &RetentionSummary{
		RetentionDays:     r.days,
		Cutoff:            cutoff,
		EndedEventCount:   ended,
		DeletedHourlyRows: deleted,
	}, nil
}
