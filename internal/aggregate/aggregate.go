package aggregate

import (
	"math"
	"strings"

	"olt-pricewatch/internal/models"
)

// Bounds for a plausible retail price and quantity. Listings outside these
// are junk data (placeholder prices, parking passes priced per lot, etc).
const (
	maxRetailPrice = 100000
	minQuantity    = 2
	maxQuantity    = 10000
)

// Phrases in seller notes that mark a listing as not actually buyable.
// Matched case-insensitively against both public_notes and notes.
var nonBuyablePhrases = []string{
	"will be rejected",
	"accepted but not fulfilled",
	"will be accepted but not fulfilled",
	"will remain pending",
	"not fulfilled",
}

// Result is the hourly aggregate over the eligible listings of one event.
type Result struct {
	MinPrice     float64
	AvgPrice     float64
	MaxPrice     float64
	ListingCount int
}

// Eligible reports whether a single listing counts toward the aggregate:
// a real event listing, buyable per its notes, sanely priced, with at least
// a pair of seats sellable as a pair (splits must include 2).
func Eligible(l models.TEListing) bool {
	if l.Type != "event" {
		return false
	}
	notes := strings.ToLower(l.PublicNotes + " " + l.Notes)
	for _, phrase := range nonBuyablePhrases {
		if strings.Contains(notes, phrase) {
			return false
		}
	}
	if !l.RetailPrice.Valid || l.RetailPrice.Value <= 0 || l.RetailPrice.Value >= maxRetailPrice {
		return false
	}
	if l.AvailableQuantity == nil || *l.AvailableQuantity < minQuantity || *l.AvailableQuantity >= maxQuantity {
		return false
	}
	for _, s := range l.Splits {
		if s == 2 {
			return true
		}
	}
	return false
}

// Compute filters listings to the eligible set and returns min/avg/max and
// the eligible count. Returns nil when nothing passes; the caller records a
// zero-count hour in that case.
func Compute(listings []models.TEListing) *Result {
	var (
		count int
		sum   float64
		min   float64
		max   float64
	)
	for _, l := range listings {
		if !Eligible(l) {
			continue
		}
		p := l.RetailPrice.Value
		if count == 0 || p < min {
			min = p
		}
		if count == 0 || p > max {
			max = p
		}
		sum += p
		count++
	}
	if count == 0 {
		return nil
	}
	return &Result{
		MinPrice:     min,
		AvgPrice:     round2(sum / float64(count)),
		MaxPrice:     max,
		ListingCount: count,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
