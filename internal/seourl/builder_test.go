package seourl

import (
	"strings"
	"testing"

	"olt-pricewatch/internal/models"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Taylor Swift", "taylor-swift"},
		{"AC & DC", "ac-and-dc"},
		{"Panic! (At The Disco)", "panic-(at-the-disco)"},
		{"Florence + The Machine", "florence-the-machine"},
		{"New York", "new-york"},
		{"Eras Tour - Night Two", "eras-tour---night-two"},
		{"Red Rocks - Morrison", "red-rocks---morrison"},
		{"  padded  ", "padded"},
		{"", ""},
		{"100 gecs", "100-gecs"},
		{"Señorita", "se-orita"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func testEvent() *models.TEEvent {
	return &models.TEEvent{
		ID:       12345,
		Name:     "Taylor Swift",
		OccursAt: "2026-12-25T19:30:00",
		Venue: &models.TEVenue{
			Name:      "Madison Square Garden",
			City:      "New York",
			StateCode: "NY",
			TimeZone:  "America/New_York",
		},
		Category: &models.TECategory{ShortName: "Concert"},
	}
}

func TestBuildFullURL(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder("https://www.onelastticket.com", "America/Chicago")
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	got, err := b.Build(testEvent(), 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "https://www.onelastticket.com/events/" +
		"taylor-swift-tickets_new-york-ny_madison-square-garden_friday-25-december-at-7:30-pm_concert" +
		"/12345?listingsType=event&orderListBy=retail_price%20asc&quantity=2"
	if got != want {
		t.Errorf("Build() =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	b, _ := NewBuilder("https://www.onelastticket.com", "")
	first, err := b.Build(testEvent(), 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(testEvent(), 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first != second {
		t.Errorf("not deterministic:\n%q\n%q", first, second)
	}
}

func TestBuildFailsClosed(t *testing.T) {
	t.Parallel()

	b, _ := NewBuilder("https://www.onelastticket.com", "")

	tests := []struct {
		name   string
		mutate func(*models.TEEvent)
	}{
		{"missing id", func(ev *models.TEEvent) { ev.ID = 0 }},
		{"missing name", func(ev *models.TEEvent) { ev.Name = "  " }},
		{"missing occurs_at", func(ev *models.TEEvent) { ev.OccursAt = "" }},
		{"garbage occurs_at", func(ev *models.TEEvent) { ev.OccursAt = "tomorrow-ish" }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev := testEvent()
			tc.mutate(ev)
			if _, err := b.Build(ev, 2); err == nil {
				t.Error("expected error, got none")
			}
		})
	}

	if _, err := b.Build(nil, 2); err == nil {
		t.Error("nil event must error")
	}
}

func TestBuildVenueTimeZoneWins(t *testing.T) {
	t.Parallel()

	// RFC3339 input in UTC renders as venue wall time.
	b, _ := NewBuilder("https://www.onelastticket.com", "America/Chicago")
	ev := testEvent()
	ev.OccursAt = "2026-12-26T00:30:00Z" // 19:30 Dec 25 in New York

	got, err := b.Build(ev, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "friday-25-december-at-7:30-pm") {
		t.Errorf("expected venue-local time segment, got %q", got)
	}
}

func TestBuildDefaultsMissingParts(t *testing.T) {
	t.Parallel()

	b, _ := NewBuilder("https://www.onelastticket.com", "America/Chicago")
	ev := &models.TEEvent{
		ID:       7,
		Name:     "Mystery Show",
		OccursAt: "2026-06-01T20:00:00",
	}

	got, err := b.Build(ev, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "_event/7?") {
		t.Errorf("expected fallback category segment, got %q", got)
	}
	if !strings.Contains(got, "quantity=2") {
		t.Errorf("expected default quantity 2, got %q", got)
	}
}

func TestBuildMorningTime(t *testing.T) {
	t.Parallel()

	b, _ := NewBuilder("https://www.onelastticket.com", "America/Chicago")
	ev := testEvent()
	ev.OccursAt = "2026-12-25T09:05:00"

	got, err := b.Build(ev, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "at-9:05-am") {
		t.Errorf("expected 9:05 am segment, got %q", got)
	}
}
