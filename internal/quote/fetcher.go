package quote

import (
	"context"
	"time"

	"FIILens/internal/model"
)

// Fetcher retrieves a daily close-price series for a canonical ticker over
// a date window. An empty series means the provider had no data for the
// ticker/window, a distinct terminal state rather than an error.
type Fetcher interface {
	FetchDaily(ctx context.Context, tickerCode string, start, end time.Time) (model.PriceSeries, error)
	Name() string
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Series map[string]model.PriceSeries
	Err    error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDaily(_ context.Context, tickerCode string, _, _ time.Time) (model.PriceSeries, error) {
	if m.Err != nil {
		return model.PriceSeries{}, m.Err
	}
	if s, ok := m.Series[tickerCode]; ok {
		return s, nil
	}
	return model.PriceSeries{Ticker: tickerCode}, nil
}
