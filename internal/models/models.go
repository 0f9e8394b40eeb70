package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Event represents the 'events' table: one tracked ticketed event.
type Event struct {
	TEEventID      int64      `json:"te_event_id"`
	Title          string     `json:"title"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	PollingEnabled bool       `json:"polling_enabled"`
	OltURL         *string    `json:"olt_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HourlyPrice represents one row of 'event_price_hourly'.
// Prices are null when the hour had no eligible listings.
type HourlyPrice struct {
	TEEventID      int64     `json:"te_event_id"`
	CapturedAtHour time.Time `json:"captured_at_hour"`
	MinPrice       *float64  `json:"min_price"`
	AvgPrice       *float64  `json:"avg_price"`
	MaxPrice       *float64  `json:"max_price"`
	ListingCount   *int      `json:"listing_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// DailyPrice represents one row of 'event_price_daily'.
type DailyPrice struct {
	TEEventID int64     `json:"te_event_id"`
	Date      time.Time `json:"date"`
	MinPrice  *float64  `json:"min_price"`
	AvgPrice  *float64  `json:"avg_price"`
	MaxPrice  *float64  `json:"max_price"`
	Samples   int       `json:"samples"`
}

// Poller run statuses.
const (
	RunStatusStarted   = "started"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Per-event outcomes within a run.
const (
	RunEventSucceeded = "succeeded"
	RunEventFailed    = "failed"
	RunEventSkipped   = "skipped"
)

// PollerRun represents the 'poller_runs' table. The unique hour_bucket key
// doubles as the mutual-exclusion lock for that hour.
type PollerRun struct {
	HourBucket      time.Time       `json:"hour_bucket"`
	Status          string          `json:"status"`
	BatchSize       int             `json:"batch_size"`
	EventsTotal     int             `json:"events_total"`
	EventsProcessed int             `json:"events_processed"`
	EventsSucceeded int             `json:"events_succeeded"`
	EventsFailed    int             `json:"events_failed"`
	EventsSkipped   int             `json:"events_skipped"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	ErrorSample     *string         `json:"error_sample,omitempty"`
	Debug           json.RawMessage `json:"debug,omitempty"`
}

// PollerRunEvent represents one row of 'poller_run_events'.
type PollerRunEvent struct {
	HourBucket   time.Time `json:"hour_bucket"`
	TEEventID    int64     `json:"te_event_id"`
	Status       string    `json:"status"`
	ListingCount *int      `json:"listing_count,omitempty"`
	MinPrice     *float64  `json:"min_price,omitempty"`
	AvgPrice     *float64  `json:"avg_price,omitempty"`
	MaxPrice     *float64  `json:"max_price,omitempty"`
	Error        *string   `json:"error,omitempty"`
}

// --- TE API payloads ---

// Price decodes a TE monetary field, which arrives either as a JSON number
// or as a quoted string ("135.50"). Valid is false for null, missing, or
// unparseable values.
type Price struct {
	Value float64
	Valid bool
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		p.Valid = false
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			p.Valid = false
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.Valid = false
		return nil
	}
	p.Value = v
	p.Valid = true
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// TEListing is one entry of a TE /listings response. Only the fields the
// eligibility filter consumes are decoded.
type TEListing struct {
	ID                json.Number `json:"id"`
	Type              string      `json:"type"`
	RetailPrice       Price       `json:"retail_price"`
	AvailableQuantity *int        `json:"available_quantity"`
	Splits            []int       `json:"splits"`
	PublicNotes       string      `json:"public_notes"`
	Notes             string      `json:"notes"`
}

// TEListingsPayload covers both response shapes TE serves for /listings.
type TEListingsPayload struct {
	TicketGroups []TEListing `json:"ticket_groups"`
	Listings     []TEListing `json:"listings"`
}

// Groups returns ticket_groups when present, falling back to listings.
func (p *TEListingsPayload) Groups() []TEListing {
	if p.TicketGroups != nil {
		return p.TicketGroups
	}
	return p.Listings
}

// TEVenue is the venue block of a TE event payload.
type TEVenue struct {
	Name      string `json:"name"`
	City      string `json:"city"`
	StateCode string `json:"state_code"`
	State     string `json:"state"`
	TimeZone  string `json:"time_zone"`
}

// TECategory is the category block of a TE event payload.
type TECategory struct {
	ShortName string `json:"short_name"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
}

// TEEvent is a TE /events/<id> payload.
type TEEvent struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	OccursAt string      `json:"occurs_at"`
	Venue    *TEVenue    `json:"venue"`
	Category *TECategory `json:"category"`
	TimeZone string      `json:"timezone"`
}

// TEEventsPage is one page of a TE /events?performer_id= response.
type TEEventsPage struct {
	Events       []TEEvent `json:"events"`
	TotalEntries int       `json:"total_entries"`
	PerPage      int       `json:"per_page"`
	CurrentPage  int       `json:"current_page"`
}
