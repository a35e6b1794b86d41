package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is a single buy-side trade from a B3 negotiation export.
// Only buy rows survive ingestion; sell and non-trade movement rows are
// filtered out upstream.
type TradeEvent struct {
	Ticker    string          // canonical ticker after normalization
	TradeDate time.Time       // calendar day, UTC midnight
	Quantity  int64           // always > 0
	Price     decimal.Decimal // unit price as reported by the broker
}
