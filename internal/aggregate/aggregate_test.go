package aggregate

import (
	"testing"

	"olt-pricewatch/internal/models"
)

func intPtr(n int) *int { return &n }

func listing(price float64, qty int, splits []int) models.TEListing {
	return models.TEListing{
		Type:              "event",
		RetailPrice:       models.Price{Value: price, Valid: true},
		AvailableQuantity: intPtr(qty),
		Splits:            splits,
	}
}

func TestEligible(t *testing.T) {
	t.Parallel()

	base := listing(50, 4, []int{1, 2, 4})

	tests := []struct {
		name   string
		mutate func(*models.TEListing)
		want   bool
	}{
		{"baseline passes", func(l *models.TEListing) {}, true},
		{"parking type rejected", func(l *models.TEListing) { l.Type = "parking" }, false},
		{"empty type rejected", func(l *models.TEListing) { l.Type = "" }, false},
		{"null price rejected", func(l *models.TEListing) { l.RetailPrice = models.Price{} }, false},
		{"zero price rejected", func(l *models.TEListing) { l.RetailPrice = models.Price{Value: 0, Valid: true} }, false},
		{"negative price rejected", func(l *models.TEListing) { l.RetailPrice = models.Price{Value: -5, Valid: true} }, false},
		{"price at cap rejected", func(l *models.TEListing) { l.RetailPrice = models.Price{Value: 100000, Valid: true} }, false},
		{"price just under cap passes", func(l *models.TEListing) { l.RetailPrice = models.Price{Value: 99999.99, Valid: true} }, true},
		{"missing quantity rejected", func(l *models.TEListing) { l.AvailableQuantity = nil }, false},
		{"single seat rejected", func(l *models.TEListing) { l.AvailableQuantity = intPtr(1) }, false},
		{"pair passes", func(l *models.TEListing) { l.AvailableQuantity = intPtr(2) }, true},
		{"quantity at cap rejected", func(l *models.TEListing) { l.AvailableQuantity = intPtr(10000) }, false},
		{"no splits rejected", func(l *models.TEListing) { l.Splits = nil }, false},
		{"splits without pair rejected", func(l *models.TEListing) { l.Splits = []int{1, 3, 5} }, false},
		{"rejection note in public_notes", func(l *models.TEListing) { l.PublicNotes = "Orders WILL BE REJECTED after 6pm" }, false},
		{"rejection note in notes", func(l *models.TEListing) { l.Notes = "accepted but not fulfilled" }, false},
		{"pending note rejected", func(l *models.TEListing) { l.PublicNotes = "order will remain pending until day of show" }, false},
		{"benign note passes", func(l *models.TEListing) { l.PublicNotes = "aisle seats, great view" }, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := base
			tc.mutate(&l)
			if got := Eligible(l); got != tc.want {
				t.Errorf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestComputeAggregates(t *testing.T) {
	t.Parallel()

	listings := []models.TEListing{
		listing(25, 4, []int{2}),
		listing(10, 2, []int{2, 4}),
		listing(20, 6, []int{1, 2}),
		// ineligible rows must not move the numbers
		listing(1, 8, []int{2}),                // will be filtered below
		{Type: "parking", RetailPrice: models.Price{Value: 5, Valid: true}, AvailableQuantity: intPtr(4), Splits: []int{2}},
	}
	listings[3].Splits = []int{4} // no pair split

	res := Compute(listings)
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.MinPrice != 10 {
		t.Errorf("MinPrice = %v, want 10", res.MinPrice)
	}
	if res.MaxPrice != 25 {
		t.Errorf("MaxPrice = %v, want 25", res.MaxPrice)
	}
	if res.AvgPrice != 18.33 {
		t.Errorf("AvgPrice = %v, want 18.33", res.AvgPrice)
	}
	if res.ListingCount != 3 {
		t.Errorf("ListingCount = %d, want 3", res.ListingCount)
	}
}

func TestComputeSingleListing(t *testing.T) {
	t.Parallel()

	res := Compute([]models.TEListing{listing(42.5, 2, []int{2})})
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.MinPrice != 42.5 || res.AvgPrice != 42.5 || res.MaxPrice != 42.5 {
		t.Errorf("min/avg/max = %v/%v/%v, want all 42.5", res.MinPrice, res.AvgPrice, res.MaxPrice)
	}
	if res.ListingCount != 1 {
		t.Errorf("ListingCount = %d, want 1", res.ListingCount)
	}
}

func TestComputeNoEligibleListings(t *testing.T) {
	t.Parallel()

	if res := Compute(nil); res != nil {
		t.Errorf("Compute(nil) = %+v, want nil", res)
	}
	ineligible := []models.TEListing{
		{Type: "parking"},
		listing(0, 4, []int{2}),
	}
	if res := Compute(ineligible); res != nil {
		t.Errorf("Compute(ineligible) = %+v, want nil", res)
	}
}
