package model

import (
	"sort"
	"time"
)

// Day truncates t to its calendar day at UTC midnight. All dates flowing
// through the alignment pipeline are normalized with it so that daily price
// bars, trade dates and book-value report dates compare on the same axis.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PricePoint is one daily close observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries holds the daily close-price history for one canonical ticker
// over a requested window, strictly ascending by date. An empty series is a
// valid terminal state (provider had no data), not an error.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Empty reports whether the provider returned no data.
func (s PriceSeries) Empty() bool { return len(s.Points) == 0 }

// AsOf returns the latest point whose date is <= d (backward match).
// ok is false when every point is after d, or the series is empty.
func (s PriceSeries) AsOf(d time.Time) (p PricePoint, ok bool) {
	// first index strictly after d
	i := sort.Search(len(s.Points), func(i int) bool {
		return s.Points[i].Date.After(d)
	})
	if i == 0 {
		return PricePoint{}, false
	}
	return s.Points[i-1], true
}
