package refresher

import (
	"context"
	"fmt"
	"log"
	"time"

	"olt-pricewatch/internal/models"
)

// EventDuration is the fixed window assumed for every event; ends_at is
// always starts_at plus this.
const EventDuration = 4 * time.Hour

// Store is the slice of the repository the refresher needs.
type Store interface {
	GetAllEvents(ctx context.Context) ([]models.Event, error)
	GetEventsByIDs(ctx context.Context, ids []int64) ([]models.Event, error)
	UpdateEventMetadata(ctx context.Context, ev models.Event) error
}

// EventClient fetches a single TE event.
type EventClient interface {
	GetEvent(ctx context.Context, eventID int64) (*models.TEEvent, error)
}

// URLBuilder derives the SEO URL for an event payload.
type URLBuilder interface {
	Build(ev *models.TEEvent, quantity int) (string, error)
}

// Refresher reconciles stored event metadata against TE. URL regeneration is
// fail-closed: if the builder errors, none of that event's fields change.
type Refresher struct {
	store   Store
	client  EventClient
	builder URLBuilder
}

func New(store Store, client EventClient, builder URLBuilder) *Refresher {
	return &Refresher{store: store, client: client, builder: builder}
}

// Per-event refresh statuses.
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusError     = "error"
)

// EventResult reports one event's outcome.
type EventResult struct {
	TEEventID int64    `json:"te_event_id"`
	Status    string   `json:"status"`
	Changes   []string `json:"changes,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Summary is the refresh response.
type Summary struct {
	DryRun    bool          `json:"dry_run"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Errors    int           `json:"errors"`
	Events    []EventResult `json:"events"`
}

// Refresh reconciles the given event ids (nil means every tracked event).
// With dryRun true, the diff is computed and reported but nothing is written.
func (r *Refresher) Refresh(ctx context.Context, ids []int64, dryRun bool) (*Summary, error) {
	var (
		events []models.Event
		err    error
	)
	if len(ids) == 0 {
		events, err = r.store.GetAllEvents(ctx)
	} else {
		events, err = r.store.GetEventsByIDs(ctx, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	summary := &Summary{DryRun: dryRun}
	now := time.Now().UTC()

	for _, stored := range events {
		result := r.refreshOne(ctx, stored, now, dryRun)
		switch result.Status {
		case StatusUpdated:
			summary.Updated++
		case StatusUnchanged:
			summary.Unchanged++
		default:
			summary.Errors++
		}
		summary.Events = append(summary.Events, result)
	}
	return summary, nil
}

func (r *Refresher) refreshOne(ctx context.Context, stored models.Event, now time.Time, dryRun bool) EventResult {
	result := EventResult{TEEventID: stored.TEEventID}

	teEv, err := r.client.GetEvent(ctx, stored.TEEventID)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	proposed, err := r.propose(stored, teEv, now)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	changes := diff(stored, proposed)
	if len(changes) == 0 {
		result.Status = StatusUnchanged
		return result
	}
	changes = append(changes, "updated_at")
	result.Status = StatusUpdated
	result.Changes = changes

	if dryRun {
		return result
	}
	if err := r.store.UpdateEventMetadata(ctx, proposed); err != nil {
		result.Status = StatusError
		result.Changes = nil
		result.Error = err.Error()
		return result
	}
	log.Printf("[Refresher] event %d updated: %v", stored.TEEventID, changes)
	return result
}

// propose derives the full target field set. ended_at is monotonic and
// polling is never re-enabled once the event has ended.
func (r *Refresher) propose(stored models.Event, teEv *models.TEEvent, now time.Time) (models.Event, error) {
	startsAt, err := parseOccursAt(teEv.OccursAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %d: %w", stored.TEEventID, err)
	}
	endsAt := startsAt.Add(EventDuration)
	hasEnded := now.After(endsAt)

	proposed := stored
	proposed.Title = teEv.Name
	proposed.StartsAt = &startsAt
	proposed.EndsAt = &endsAt

	if hasEnded {
		proposed.PollingEnabled = false
	}
	if stored.EndedAt == nil && hasEnded {
		endedAt := now
		proposed.EndedAt = &endedAt
	}

	needsURL := stored.OltURL == nil || *stored.OltURL == "" ||
		stored.Title != proposed.Title ||
		!timesEqual(stored.StartsAt, proposed.StartsAt) ||
		!timesEqual(stored.EndsAt, proposed.EndsAt)
	if needsURL {
		u, err := r.builder.Build(teEv, 2)
		if err != nil {
			return models.Event{}, fmt.Errorf("event %d: regenerate url: %w", stored.TEEventID, err)
		}
		proposed.OltURL = &u
	}
	return proposed, nil
}

func parseOccursAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad occurs_at %q: %w", s, err)
	}
	return t.UTC(), nil
}

func diff(stored, proposed models.Event) []string {
	var changes []string
	if stored.Title != proposed.Title {
		changes = append(changes, "title")
	}
	if !timesEqual(stored.StartsAt, proposed.StartsAt) {
		changes = append(changes, "starts_at")
	}
	if !timesEqual(stored.EndsAt, proposed.EndsAt) {
		changes = append(changes, "ends_at")
	}
	if !timesEqual(stored.EndedAt, proposed.EndedAt) {
		changes = append(changes, "ended_at")
	}
	if stored.PollingEnabled != proposed.PollingEnabled {
		changes = append(changes, "polling_enabled")
	}
	if !stringsEqual(stored.OltURL, proposed.OltURL) {
		changes = append(changes, "olt_url")
	}
	return changes
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func stringsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
