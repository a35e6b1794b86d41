package model

import "time"

// AlignedPoint places one purchase on the price curve: the close price at
// the latest trading day at or before the trade date. Trades that cannot be
// resolved (series empty, or entirely after the trade) are dropped from the
// overlay, never fabricated.
type AlignedPoint struct {
	TradeDate    time.Time `json:"trade_date"`
	ResolvedDate time.Time `json:"resolved_date"`
	Quantity     int64     `json:"quantity"`
	Price        float64   `json:"price"`
}

// PurchaseOverlay is the plot-ready result of aligning a ledger against a
// price series. MinQuantity/MaxQuantity feed the marker-size legend and are
// meaningful only when HasResolved is true.
type PurchaseOverlay struct {
	Ticker      string         `json:"ticker"`
	Points      []AlignedPoint `json:"points"`
	MinQuantity int64          `json:"min_quantity"`
	MaxQuantity int64          `json:"max_quantity"`
	HasResolved bool           `json:"has_resolved"`
	Unresolved  int            `json:"unresolved"`
}

// RatioPoint is one trading day where both a close price and a
// most-recent-or-earlier book-value observation exist.
type RatioPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
	VPA   float64   `json:"vpa"`
	Ratio float64   `json:"ratio"` // Price / VPA
}

// PVPAnalysis is the historical price-to-book dataset for one fund. Points
// double as the price-vs-book-value comparison series.
type PVPAnalysis struct {
	Ticker    string       `json:"ticker"`
	CNPJ      string       `json:"cnpj"`
	Points    []RatioPoint `json:"points"`
	MeanRatio float64      `json:"mean_ratio"`
}
