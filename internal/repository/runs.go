package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"olt-pricewatch/internal/models"
)

// ErrRunExists signals that a poller_runs row already holds the hour lock.
// The coordinator inspects the existing row to decide what to do next.
var ErrRunExists = fmt.Errorf("poller run already exists for hour bucket")

// InsertRun attempts to take the hour lock by inserting the run row.
func (r *Repository) InsertRun(ctx context.Context, run models.PollerRun) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO poller_runs (hour_bucket, status, batch_size, events_total, events_processed, events_succeeded, events_failed, events_skipped, started_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, $4)`,
		run.HourBucket, run.Status, run.BatchSize, run.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRunExists
		}
		return fmt.Errorf("failed to insert poller run: %w", err)
	}
	return nil
}

const runColumns = `hour_bucket, status, batch_size, events_total, events_processed, events_succeeded, events_failed, events_skipped, started_at, finished_at, error_sample, debug`

func (r *Repository) GetRun(ctx context.Context, hourBucket time.Time) (*models.PollerRun, error) {
	var run models.PollerRun
	err := r.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM poller_runs WHERE hour_bucket = $1`, hourBucket).Scan(
		&run.HourBucket, &run.Status, &run.BatchSize, &run.EventsTotal, &run.EventsProcessed,
		&run.EventsSucceeded, &run.EventsFailed, &run.EventsSkipped,
		&run.StartedAt, &run.FinishedAt, &run.ErrorSample, &run.Debug,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ReclaimStaleRun takes over an unfinished run whose started_at predates
// staleBefore. The conditional UPDATE guarantees exactly one caller wins.
// finished_at stays null on purpose: if the reclaiming run also crashes, a
// later run can reclaim again.
func (r *Repository) ReclaimStaleRun(ctx context.Context, hourBucket, staleBefore, now time.Time, batchSize int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE poller_runs SET
			status = $3,
			error_sample = $4,
			started_at = $5,
			batch_size = $6,
			events_total = 0,
			events_processed = 0,
			events_succeeded = 0,
			events_failed = 0,
			events_skipped = 0
		WHERE hour_bucket = $1
		  AND finished_at IS NULL
		  AND started_at < $2`,
		hourBucket, staleBefore, models.RunStatusFailed, "stale_lock_timeout", now, batchSize,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reclaim stale run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) UpdateRunTotals(ctx context.Context, hourBucket time.Time, eventsTotal int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE poller_runs SET events_total = $2 WHERE hour_bucket = $1`,
		hourBucket, eventsTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to update run totals: %w", err)
	}
	return nil
}

func (r *Repository) UpdateRunProcessed(ctx context.Context, hourBucket time.Time, eventsProcessed int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE poller_runs SET events_processed = $2 WHERE hour_bucket = $1`,
		hourBucket, eventsProcessed,
	)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

// FinalizeRun writes the terminal state of a run: status, counters, first
// error sample and the debug blob.
func (r *Repository) FinalizeRun(ctx context.Context, run models.PollerRun, debug map[string]interface{}) error {
	var debugJSON []byte
	if debug != nil {
		debugJSON, _ = json.Marshal(debug)
	}
	_, err := r.db.Exec(ctx, `
		UPDATE poller_runs SET
			status = $2,
			events_total = $3,
			events_processed = $4,
			events_succeeded = $5,
			events_failed = $6,
			events_skipped = $7,
			finished_at = $8,
			error_sample = $9,
			debug = $10
		WHERE hour_bucket = $1`,
		run.HourBucket, run.Status, run.EventsTotal, run.EventsProcessed,
		run.EventsSucceeded, run.EventsFailed, run.EventsSkipped,
		time.Now().UTC(), run.ErrorSample, debugJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	return nil
}

// UpsertRunEvent records the per-event outcome within a run.
func (r *Repository) UpsertRunEvent(ctx context.Context, re models.PollerRunEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO poller_run_events (hour_bucket, te_event_id, status, listing_count, min_price, avg_price, max_price, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (hour_bucket, te_event_id) DO UPDATE SET
			status = EXCLUDED.status,
			listing_count = EXCLUDED.listing_count,
			min_price = EXCLUDED.min_price,
			avg_price = EXCLUDED.avg_price,
			max_price = EXCLUDED.max_price,
			error = EXCLUDED.error`,
		re.HourBucket, re.TEEventID, re.Status, re.ListingCount, re.MinPrice, re.AvgPrice, re.MaxPrice, re.Error, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run event %d: %w", re.TEEventID, err)
	}
	return nil
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.PollerRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+runColumns+` FROM poller_runs ORDER BY hour_bucket DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.PollerRun
	for rows.Next() {
		var run models.PollerRun
		err := rows.Scan(
			&run.HourBucket, &run.Status, &run.BatchSize, &run.EventsTotal, &run.EventsProcessed,
			&run.EventsSucceeded, &run.EventsFailed, &run.EventsSkipped,
			&run.StartedAt, &run.FinishedAt, &run.ErrorSample, &run.Debug,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Repository) GetRunEvents(ctx context.Context, hourBucket time.Time) ([]models.PollerRunEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT hour_bucket, te_event_id, status, listing_count, min_price, avg_price, max_price, error
		FROM poller_run_events
		WHERE hour_bucket = $1
		ORDER BY te_event_id`, hourBucket)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.PollerRunEvent
	for rows.Next() {
		var re models.PollerRunEvent
		err := rows.Scan(&re.HourBucket, &re.TEEventID, &re.Status, &re.ListingCount, &re.MinPrice, &re.AvgPrice, &re.MaxPrice, &re.Error)
		if err != nil {
			return nil, err
		}
		events = append(events, re)
	}
	return events, rows.Err()
}
