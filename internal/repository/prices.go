package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"olt-pricewatch/internal/models"
)

// UpsertHourlyPrice writes one (event, hour) aggregate. Re-running a poll
// for the same hour overwrites the previous capture.
func (r *Repository) UpsertHourlyPrice(ctx context.Context, p models.HourlyPrice) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_price_hourly (te_event_id, captured_at_hour, min_price, avg_price, max_price, listing_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (te_event_id, captured_at_hour) DO UPDATE SET
			min_price = EXCLUDED.min_price,
			avg_price = EXCLUDED.avg_price,
			max_price = EXCLUDED.max_price,
			listing_count = EXCLUDED.listing_count`,
		p.TEEventID, p.CapturedAtHour, p.MinPrice, p.AvgPrice, p.MaxPrice, p.ListingCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert hourly price for event %d: %w", p.TEEventID, err)
	}
	return nil
}

// GetLatestHourlyBefore returns the most recent capture strictly before the
// given bucket, or nil when the event has no prior history.
func (r *Repository) GetLatestHourlyBefore(ctx context.Context, teEventID int64, bucket time.Time) (*models.HourlyPrice, error) {
	var p models.HourlyPrice
	err := r.db.QueryRow(ctx, `
		SELECT te_event_id, captured_at_hour, min_price, avg_price, max_price, listing_count, created_at
		FROM event_price_hourly
		WHERE te_event_id = $1 AND captured_at_hour < $2
		ORDER BY captured_at_hour DESC
		LIMIT 1`, teEventID, bucket).Scan(
		&p.TEEventID, &p.CapturedAtHour, &p.MinPrice, &p.AvgPrice, &p.MaxPrice, &p.ListingCount, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetHourlyPrices(ctx context.Context, teEventID int64, from, to time.Time, limit int) ([]models.HourlyPrice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT te_event_id, captured_at_hour, min_price, avg_price, max_price, listing_count, created_at
		FROM event_price_hourly
		WHERE te_event_id = $1 AND captured_at_hour >= $2 AND captured_at_hour < $3
		ORDER BY captured_at_hour ASC
		LIMIT $4`, teEventID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []models.HourlyPrice
	for rows.Next() {
		var p models.HourlyPrice
		if err := rows.Scan(&p.TEEventID, &p.CapturedAtHour, &p.MinPrice, &p.AvgPrice, &p.MaxPrice, &p.ListingCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (r *Repository) GetDailyPrices(ctx context.Context, teEventID int64, from, to time.Time) ([]models.DailyPrice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT te_event_id, date, min_price, avg_price, max_price, samples
		FROM event_price_daily
		WHERE te_event_id = $1 AND date >= $2 AND date < $3
		ORDER BY date ASC`, teEventID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []models.DailyPrice
	for rows.Next() {
		var p models.DailyPrice
		if err := rows.Scan(&p.TEEventID, &p.Date, &p.MinPrice, &p.AvgPrice, &p.MaxPrice, &p.Samples); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// GetCurrentPrice returns the newest hourly capture for an event.
func (r *Repository) GetCurrentPrice(ctx context.Context, teEventID int64) (*models.HourlyPrice, error) {
	return r.GetLatestHourlyBefore(ctx, teEventID, time.Now().UTC().Add(time.Hour))
}

// Get24hChange returns the newest capture and the capture closest to 24
// hours before it. Either may be nil when history is missing.
func (r *Repository) Get24hChange(ctx context.Context, teEventID int64) (current, prior *models.HourlyPrice, err error) {
	current, err = r.GetCurrentPrice(ctx, teEventID)
	if err != nil || current == nil {
		return current, nil, err
	}
	prior, err = r.GetLatestHourlyBefore(ctx, teEventID, current.CapturedAtHour.Add(-23*time.Hour))
	if err != nil {
		return current, nil, err
	}
	return current, prior, nil
}

// RollupHourlyToDaily folds hourly rows into daily rows: min of mins, max of
// maxes, mean of the hourly means, and the sampled-hour count. Idempotent;
// re-running refreshes the affected dates in place.
func (r *Repository) RollupHourlyToDaily(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO event_price_daily (te_event_id, date, min_price, avg_price, max_price, samples)
		SELECT
			te_event_id,
			DATE(captured_at_hour) AS date,
			MIN(min_price),
			ROUND(AVG(avg_price)::numeric, 2),
			MAX(max_price),
			COUNT(*) FILTER (WHERE listing_count IS NOT NULL AND listing_count > 0)
		FROM event_price_hourly
		GROUP BY te_event_id, DATE(captured_at_hour)
		ON CONFLICT (te_event_id, date) DO UPDATE SET
			min_price = EXCLUDED.min_price,
			avg_price = EXCLUDED.avg_price,
			max_price = EXCLUDED.max_price,
			samples = EXCLUDED.samples`)
	if err != nil {
		return 0, fmt.Errorf("failed to roll up hourly prices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PruneHourlyForEndedEvents deletes hourly rows older than cutoff for events
// that have ended (ended_at set, or ends_at already past). Daily rows are
// never touched. Returns the ended-event count and deleted-row count.
func (r *Repository) PruneHourlyForEndedEvents(ctx context.Context, now, cutoff time.Time) (endedEvents int, deletedRows int64, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM events
		WHERE ended_at IS NOT NULL OR (ended_at IS NULL AND ends_at < $1)`, now).Scan(&endedEvents)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count ended events: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM event_price_hourly
		WHERE captured_at_hour < $2
		  AND te_event_id IN (
			SELECT te_event_id FROM events
			WHERE ended_at IS NOT NULL OR (ended_at IS NULL AND ends_at < $1)
		  )`, now, cutoff)
	if err != nil {
		return endedEvents, 0, fmt.Errorf("failed to prune hourly prices: %w", err)
	}
	return endedEvents, tag.RowsAffected(), nil
}
