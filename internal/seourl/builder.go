package seourl

import (
	"fmt"
	"strings"
	"time"

	"olt-pricewatch/internal/models"
)

// Builder derives the canonical SEO click-through URL for an event from its
// TE payload. The output is deterministic: identical inputs always yield the
// same URL, which is what lets the refresher detect real changes.
type Builder struct {
	base            string
	defaultLocation *time.Location
}

// occurs_at arrives without a zone offset; it is wall time at the venue.
const occursAtLayout = "2006-01-02T15:04:05"

func NewBuilder(base, defaultTimeZone string) (*Builder, error) {
	if defaultTimeZone == "" {
		defaultTimeZone = "America/Chicago"
	}
	loc, err := time.LoadLocation(defaultTimeZone)
	if err != nil {
		return nil, fmt.Errorf("seourl: load timezone %q: %w", defaultTimeZone, err)
	}
	return &Builder{
		base:            strings.TrimRight(base, "/"),
		defaultLocation: loc,
	}, nil
}

// Build fails closed: a payload missing id, name or occurs_at returns an
// error, and callers must not fall back to a guessed URL.
func (b *Builder) Build(ev *models.TEEvent, quantity int) (string, error) {
	if ev == nil {
		return "", fmt.Errorf("seourl: nil event")
	}
	if ev.ID == 0 {
		return "", fmt.Errorf("seourl: event missing id")
	}
	if strings.TrimSpace(ev.Name) == "" {
		return "", fmt.Errorf("seourl: event %d missing name", ev.ID)
	}
	if strings.TrimSpace(ev.OccursAt) == "" {
		return "", fmt.Errorf("seourl: event %d missing occurs_at", ev.ID)
	}
	if quantity <= 0 {
		quantity = 2
	}

	occurs, err := b.parseOccursAt(ev)
	if err != nil {
		return "", err
	}

	var city, state, venue string
	if ev.Venue != nil {
		city = ev.Venue.City
		state = ev.Venue.StateCode
		if state == "" {
			state = ev.Venue.State
		}
		venue = ev.Venue.Name
	}

	category := "event"
	if ev.Category != nil {
		switch {
		case ev.Category.ShortName != "":
			category = ev.Category.ShortName
		case ev.Category.Slug != "":
			category = ev.Category.Slug
		case ev.Category.Name != "":
			category = ev.Category.Name
		}
	}

	segment := strings.Join([]string{
		Slugify(ev.Name) + "-tickets",
		Slugify(city) + "-" + Slugify(state),
		Slugify(venue),
		formatOccurs(occurs),
		Slugify(category),
	}, "_")

	return fmt.Sprintf(
		"%s/events/%s/%d?listingsType=event&orderListBy=retail_price%%20asc&quantity=%d",
		b.base, segment, ev.ID, quantity,
	), nil
}

func (b *Builder) parseOccursAt(ev *models.TEEvent) (time.Time, error) {
	loc := b.defaultLocation
	tz := ev.TimeZone
	if tz == "" && ev.Venue != nil {
		tz = ev.Venue.TimeZone
	}
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	if t, err := time.Parse(time.RFC3339, ev.OccursAt); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(occursAtLayout, ev.OccursAt, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("seourl: event %d bad occurs_at %q: %w", ev.ID, ev.OccursAt, err)
	}
	return t, nil
}

// formatOccurs renders "friday-25-december-at-7:30-pm" in the event's zone.
// Day numbers have no leading zero; the clock is h:mm with lowercase am/pm.
func formatOccurs(t time.Time) string {
	return strings.ToLower(fmt.Sprintf(
		"%s-%s-%s-at-%s-%s",
		t.Format("Monday"), t.Format("2"), t.Format("January"), t.Format("3:04"), t.Format("PM"),
	))
}

// tripleMarker stands in for " - " while other punctuation is collapsed, so
// the deliberate triple hyphen survives the single-hyphen collapse below.
const tripleMarker = "\x00"

// Slugify lowercases, turns '&' into "and", keeps parentheses, renders
// " - " as a triple hyphen, and collapses every other non-alphanumeric run
// to a single hyphen.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " - ", tripleMarker)
	s = strings.ReplaceAll(s, "&", "and")

	var out strings.Builder
	lastHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '(', r == ')':
			out.WriteRune(r)
			lastHyphen = false
		case r == rune(tripleMarker[0]):
			out.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				out.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := out.String()
	slug = strings.Trim(slug, "-")
	slug = strings.Trim(slug, tripleMarker)
	slug = strings.ReplaceAll(slug, "-"+tripleMarker, tripleMarker)
	slug = strings.ReplaceAll(slug, tripleMarker+"-", tripleMarker)
	slug = strings.ReplaceAll(slug, tripleMarker, "---")
	return slug
}
