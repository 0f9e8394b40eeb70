package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"olt-pricewatch/internal/models"
)

// UpsertEvent inserts or refreshes an event row keyed by te_event_id.
// ended_at is only ever set, never cleared (GREATEST-style via COALESCE on
// the existing value).
func (r *Repository) UpsertEvent(ctx context.Context, ev models.Event) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO events (te_event_id, title, starts_at, ends_at, ended_at, polling_enabled, olt_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (te_event_id) DO UPDATE SET
			title = EXCLUDED.title,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			ended_at = COALESCE(events.ended_at, EXCLUDED.ended_at),
			polling_enabled = EXCLUDED.polling_enabled,
			olt_url = COALESCE(EXCLUDED.olt_url, events.olt_url),
			updated_at = EXCLUDED.updated_at`,
		ev.TEEventID, ev.Title, ev.StartsAt, ev.EndsAt, ev.EndedAt, ev.PollingEnabled, ev.OltURL, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %d: %w", ev.TEEventID, err)
	}
	return nil
}

// UpdateEventMetadata applies the refresher's full proposed field set.
func (r *Repository) UpdateEventMetadata(ctx context.Context, ev models.Event) error {
	_, err := r.db.Exec(ctx, `
		UPDATE events SET
			title = $2,
			starts_at = $3,
			ends_at = $4,
			ended_at = $5,
			polling_enabled = $6,
			olt_url = $7,
			updated_at = $8
		WHERE te_event_id = $1`,
		ev.TEEventID, ev.Title, ev.StartsAt, ev.EndsAt, ev.EndedAt, ev.PollingEnabled, ev.OltURL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", ev.TEEventID, err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var ev models.Event
	err := row.Scan(
		&ev.TEEventID, &ev.Title, &ev.StartsAt, &ev.EndsAt, &ev.EndedAt,
		&ev.PollingEnabled, &ev.OltURL, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

const eventColumns = `te_event_id, title, starts_at, ends_at, ended_at, polling_enabled, olt_url, created_at, updated_at`

func (r *Repository) GetEvent(ctx context.Context, teEventID int64) (*models.Event, error) {
	ev, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE te_event_id = $1`, teEventID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return ev, err
}

func (r *Repository) ListEvents(ctx context.Context, limit, offset int) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY starts_at DESC NULLS LAST
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// GetActiveEvents returns the poll set: polling enabled, not ended, and
// either open-ended or ending in the future.
func (r *Repository) GetActiveEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE polling_enabled = TRUE
		  AND ended_at IS NULL
		  AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY te_event_id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// GetEventsByIDs returns the stored rows for a subset of ids; missing ids
// are simply absent from the result.
func (r *Repository) GetEventsByIDs(ctx context.Context, ids []int64) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE te_event_id = ANY($1)
		ORDER BY te_event_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// GetAllEvents returns every tracked event, for refresh-all runs.
func (r *Repository) GetAllEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY te_event_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var ev models.Event
		err := rows.Scan(
			&ev.TEEventID, &ev.Title, &ev.StartsAt, &ev.EndsAt, &ev.EndedAt,
			&ev.PollingEnabled, &ev.OltURL, &ev.CreatedAt, &ev.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
