package refresher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"olt-pricewatch/internal/models"
)

type memStore struct {
	events  map[int64]models.Event
	written []models.Event
	loadErr error
}

func newMemStore(events ...models.Event) *memStore {
	s := &memStore{events: make(map[int64]models.Event)}
	for _, ev := range events {
		s.events[ev.TEEventID] = ev
	}
	return s
}

func (s *memStore) GetAllEvents(context.Context) ([]models.Event, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out, nil
}

func (s *memStore) GetEventsByIDs(_ context.Context, ids []int64) ([]models.Event, error) {
	var out []models.Event
	for _, id := range ids {
		if ev, ok := s.events[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) UpdateEventMetadata(_ context.Context, ev models.Event) error {
	s.written = append(s.written, ev)
	s.events[ev.TEEventID] = ev
	return nil
}

type stubEventClient struct {
	events map[int64]*models.TEEvent
	errs   map[int64]error
}

func (c *stubEventClient) GetEvent(_ context.Context, id int64) (*models.TEEvent, error) {
	if err, ok := c.errs[id]; ok {
		return nil, err
	}
	if ev, ok := c.events[id]; ok {
		return ev, nil
	}
	return nil, errors.New("not found")
}

type stubBuilder struct {
	err   error
	calls int
}

func (b *stubBuilder) Build(ev *models.TEEvent, quantity int) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return fmt.Sprintf("https://example.com/events/%d?quantity=%d", ev.ID, quantity), nil
}

// Refresh reads the real clock, so fixtures hang off it too. Truncated to
// seconds because occurs_at round-trips through RFC3339.
var refNow = time.Now().UTC().Truncate(time.Second)

func futureStart() time.Time { return refNow.Add(48 * time.Hour) }

func storedEvent(id int64) models.Event {
	starts := futureStart()
	ends := starts.Add(EventDuration)
	u := fmt.Sprintf("https://example.com/events/%d?quantity=2", id)
	return models.Event{
		TEEventID:      id,
		Title:          "Stored Title",
		StartsAt:       &starts,
		EndsAt:         &ends,
		PollingEnabled: true,
		OltURL:         &u,
	}
}

func teEvent(id int64, name string, occurs time.Time) *models.TEEvent {
	return &models.TEEvent{
		ID:       id,
		Name:     name,
		OccursAt: occurs.Format(time.RFC3339),
	}
}

func TestRefreshUnchanged(t *testing.T) {
	t.Parallel()

	stored := storedEvent(1)
	store := newMemStore(stored)
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "Stored Title", futureStart()),
	}}
	r := New(store, client, &stubBuilder{})

	summary, err := r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Unchanged != 1 || summary.Updated != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.written) != 0 {
		t.Errorf("unchanged event was written: %+v", store.written)
	}
}

func TestRefreshDetectsTitleAndTimeChange(t *testing.T) {
	t.Parallel()

	store := newMemStore(storedEvent(1))
	newStart := futureStart().Add(2 * time.Hour)
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "New Title", newStart),
	}}
	builder := &stubBuilder{}
	r := New(store, client, builder)

	summary, err := r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	got := summary.Events[0]
	wantChanges := map[string]bool{"title": true, "starts_at": true, "ends_at": true, "updated_at": true}
	for _, c := range got.Changes {
		if !wantChanges[c] && c != "olt_url" {
			t.Errorf("unexpected change %q", c)
		}
	}
	if builder.calls == 0 {
		t.Error("metadata change must regenerate the URL")
	}

	written := store.written[0]
	if written.Title != "New Title" {
		t.Errorf("title = %q", written.Title)
	}
	if !written.StartsAt.Equal(newStart) {
		t.Errorf("starts_at = %v, want %v", written.StartsAt, newStart)
	}
	if want := newStart.Add(EventDuration); !written.EndsAt.Equal(want) {
		t.Errorf("ends_at = %v, want %v", written.EndsAt, want)
	}
}

func TestRefreshDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	store := newMemStore(storedEvent(1))
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "New Title", futureStart()),
	}}
	r := New(store, client, &stubBuilder{})

	summary, err := r.Refresh(context.Background(), []int64{1}, true)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !summary.DryRun {
		t.Error("summary must flag dry run")
	}
	if summary.Updated != 1 {
		t.Errorf("dry run must still report the diff: %+v", summary)
	}
	if len(store.written) != 0 {
		t.Errorf("dry run wrote: %+v", store.written)
	}
}

func TestRefreshURLFailureIsFailClosed(t *testing.T) {
	t.Parallel()

	// Builder failure must leave every field untouched, including the ones
	// that did change upstream.
	store := newMemStore(storedEvent(1))
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "New Title", futureStart()),
	}}
	r := New(store, client, &stubBuilder{err: errors.New("missing venue")})

	summary, err := r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Errors != 1 || summary.Updated != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.written) != 0 {
		t.Errorf("fail-closed violated, wrote: %+v", store.written)
	}
}

func TestRefreshMarksEndedEvents(t *testing.T) {
	t.Parallel()

	// Event started long ago; the refresher must disable polling and stamp
	// ended_at exactly once.
	past := refNow.Add(-72 * time.Hour)
	stored := storedEvent(1)
	stored.StartsAt = &past
	ends := past.Add(EventDuration)
	stored.EndsAt = &ends
	store := newMemStore(stored)
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "Stored Title", past),
	}}
	r := New(store, client, &stubBuilder{})

	summary, err := r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	written := store.written[0]
	if written.PollingEnabled {
		t.Error("polling must be disabled for ended events")
	}
	if written.EndedAt == nil {
		t.Fatal("ended_at not set")
	}
	firstEndedAt := *written.EndedAt

	// A second pass must not move ended_at.
	summary, err = r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("second pass should be unchanged: %+v", summary)
	}
	if got := store.events[1].EndedAt; got == nil || !got.Equal(firstEndedAt) {
		t.Errorf("ended_at moved: %v vs %v", got, firstEndedAt)
	}
}

func TestRefreshMissingURLRegenerated(t *testing.T) {
	t.Parallel()

	stored := storedEvent(1)
	stored.OltURL = nil
	store := newMemStore(stored)
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "Stored Title", futureStart()),
	}}
	builder := &stubBuilder{}
	r := New(store, client, builder)

	summary, err := r.Refresh(context.Background(), []int64{1}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.events[1].OltURL == nil {
		t.Error("url not regenerated")
	}
}

func TestRefreshFetchErrorCountsAsError(t *testing.T) {
	t.Parallel()

	store := newMemStore(storedEvent(1), storedEvent(2))
	client := &stubEventClient{
		events: map[int64]*models.TEEvent{2: teEvent(2, "Stored Title", futureStart())},
		errs:   map[int64]error{1: errors.New("te status: 503")},
	}
	r := New(store, client, &stubBuilder{})

	summary, err := r.Refresh(context.Background(), []int64{1, 2}, false)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if summary.Errors != 1 || summary.Unchanged != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRefreshAllWhenNoIDs(t *testing.T) {
	t.Parallel()

	store := newMemStore(storedEvent(1), storedEvent(2), storedEvent(3))
	client := &stubEventClient{events: map[int64]*models.TEEvent{
		1: teEvent(1, "Stored Title", futureStart()),
		2: teEvent(2, "Stored Title", futureStart()),
		3: teEvent(3, "Stored Title", futureStart()),
	}}
	r := New(store, client, &stubBuilder{})

	summary, err := r.Refresh(context.Background(), nil, true)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(summary.Events) != 3 {
		t.Errorf("expected all 3 events, got %d", len(summary.Events))
	}
}
