package model

import "time"

// FundIdentity is one fund-registry entry mapping a canonical ticker to the
// CNPJ (tax registration number) used to join against regulator filings.
// At most one CNPJ per ticker.
type FundIdentity struct {
	Ticker string `json:"ticker"`
	CNPJ   string `json:"cnpj"`
}

// BookValueRecord is one value-per-share (VPA) observation from a monthly
// regulator filing. VPA is net asset value / shares outstanding and is
// strictly positive by construction: rows with a non-positive share count
// are excluded at ingestion.
type BookValueRecord struct {
	CNPJ string    `json:"cnpj"`
	Date time.Time `json:"date"` // report date, UTC midnight
	VPA  float64   `json:"vpa"`
}
