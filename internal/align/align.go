package align

import (
	"FIILens/internal/model"
)

// Align resolves each buy event to the most recent available trading price
// at or before the trade date (backward as-of match) and aggregates the
// result into a plot-ready overlay.
//
// Events that cannot be resolved (the series is empty, or every bar is
// after the trade date) are dropped and counted in Unresolved; a future
// price is never substituted and prices are never interpolated. Events
// resolving to the same bar are emitted independently: the overlay shows
// one marker per purchase.
func Align(events []model.TradeEvent, series model.PriceSeries) model.PurchaseOverlay {
	overlay := model.PurchaseOverlay{Ticker: series.Ticker}

	for _, ev := range events {
		bar, ok := series.AsOf(ev.TradeDate)
		if !ok {
			overlay.Unresolved++
			continue
		}
		overlay.Points = append(overlay.Points, model.AlignedPoint{
			TradeDate:    ev.TradeDate,
			ResolvedDate: bar.Date,
			Quantity:     ev.Quantity,
			Price:        bar.Close,
		})
		if !overlay.HasResolved {
			overlay.MinQuantity = ev.Quantity
			overlay.MaxQuantity = ev.Quantity
			overlay.HasResolved = true
			continue
		}
		if ev.Quantity < overlay.MinQuantity {
			overlay.MinQuantity = ev.Quantity
		}
		if ev.Quantity > overlay.MaxQuantity {
			overlay.MaxQuantity = ev.Quantity
		}
	}
	return overlay
}
