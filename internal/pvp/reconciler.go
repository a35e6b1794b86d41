package pvp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FIILens/internal/fundstore"
	"FIILens/internal/model"
	"FIILens/internal/quote"
)

var (
	// ErrUnknownTicker means the ticker is absent from the fund registry.
	ErrUnknownTicker = errors.New("pvp: ticker not in fund registry")
	// ErrNoBookValueData means the fund is registered but has no filings.
	ErrNoBookValueData = errors.New("pvp: no book-value data for fund")
	// ErrNoPriceData means the price provider returned an empty series.
	ErrNoPriceData = errors.New("pvp: no price data for ticker")
)

// FundStore is the read side of the book-value store.
type FundStore interface {
	LookupFund(tickerCode string) (model.FundIdentity, error)
	BookValueSeries(cnpj string) ([]model.BookValueRecord, error)
}

// Reconciler joins a daily price series against the monthly book-value
// series of a fund, producing the historical price-to-book ratio.
type Reconciler struct {
	Store   FundStore
	Fetcher quote.Fetcher
}

func NewReconciler(store FundStore, fetcher quote.Fetcher) *Reconciler {
	return &Reconciler{Store: store, Fetcher: fetcher}
}

// Reconcile computes the P/VP history for a fund over the last `years`
// years. For every trading day the most recent filing at or before that day
// supplies the value-per-share (as-of backward merge); trading days before
// the first filing are dropped. The reported value holds until superseded,
// never interpolated.
func (r *Reconciler) Reconcile(ctx context.Context, tickerCode string, years int) (*model.PVPAnalysis, error) {
	fund, err := r.Store.LookupFund(tickerCode)
	if err != nil {
		if errors.Is(err, fundstore.ErrFundNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, tickerCode)
		}
		return nil, err
	}

	books, err := r.Store.BookValueSeries(fund.CNPJ)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoBookValueData, tickerCode, fund.CNPJ)
	}

	now := model.Day(time.Now())
	series, err := r.Fetcher.FetchDaily(ctx, tickerCode, now.AddDate(-years, 0, 0), now)
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", tickerCode, err)
	}
	if series.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoPriceData, tickerCode)
	}

	analysis := &model.PVPAnalysis{Ticker: tickerCode, CNPJ: fund.CNPJ}
	analysis.Points = merge(series.Points, books)
	if len(analysis.Points) > 0 {
		sum := 0.0
		for _, p := range analysis.Points {
			sum += p.Ratio
		}
		analysis.MeanRatio = sum / float64(len(analysis.Points))
	}
	return analysis, nil
}

// merge performs the as-of backward join of prices onto book values. Both
// inputs are ascending by date. Rows with a non-positive VPA are dropped
// defensively rather than producing a non-finite ratio.
func merge(prices []model.PricePoint, books []model.BookValueRecord) []model.RatioPoint {
	var out []model.RatioPoint
	j := -1 // index of the latest book record with Date <= price date
	for _, p := range prices {
		for j+1 < len(books) && !books[j+1].Date.After(p.Date) {
			j++
		}
		if j < 0 {
			continue // price predates the first filing
		}
		vpa := books[j].VPA
		if vpa <= 0 {
			continue
		}
		out = append(out, model.RatioPoint{
			Date:  p.Date,
			Price: p.Close,
			VPA:   vpa,
			Ratio: p.Close / vpa,
		})
	}
	return out
}
