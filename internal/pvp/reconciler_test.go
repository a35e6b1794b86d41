package pvp

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"FIILens/internal/fundstore"
	"FIILens/internal/model"
	"FIILens/internal/quote"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seededStore(t *testing.T) *fundstore.Store {
	t.Helper()
	s, err := fundstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.UpsertFunds([]model.FundIdentity{
		{Ticker: "HGLG11", CNPJ: "111"},
		{Ticker: "EMPT11", CNPJ: "999"}, // registered, no filings
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceBookValues([]model.BookValueRecord{
		{CNPJ: "111", Date: day(2023, 1, 1), VPA: 100},
		{CNPJ: "111", Date: day(2023, 2, 1), VPA: 102},
	}); err != nil {
		t.Fatal(err)
	}
	return s
}

func fetcherWith(points ...model.PricePoint) *quote.MockFetcher {
	return &quote.MockFetcher{Series: map[string]model.PriceSeries{
		"HGLG11": {Ticker: "HGLG11", Points: points},
	}}
}

func TestReconcile(t *testing.T) {
	rec := NewReconciler(seededStore(t), fetcherWith(
		model.PricePoint{Date: day(2022, 12, 20), Close: 90},  // predates first filing, dropped
		model.PricePoint{Date: day(2023, 1, 20), Close: 105},  // uses VPA 100
		model.PricePoint{Date: day(2023, 2, 15), Close: 204},  // uses VPA 102
	))

	analysis, err := rec.Reconcile(context.Background(), "HGLG11", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(analysis.Points) != 2 {
		t.Fatalf("expected 2 ratio points, got %d", len(analysis.Points))
	}

	p := analysis.Points[0]
	if p.VPA != 100 {
		t.Errorf("vpa = %v, want 100 (latest filing <= 2023-01-20)", p.VPA)
	}
	if math.Abs(p.Ratio-1.05) > 1e-9 {
		t.Errorf("ratio = %v, want 1.05", p.Ratio)
	}

	q := analysis.Points[1]
	if q.VPA != 102 || math.Abs(q.Ratio-2.0) > 1e-9 {
		t.Errorf("second point vpa/ratio = %v/%v, want 102/2.0", q.VPA, q.Ratio)
	}

	wantMean := (1.05 + 2.0) / 2
	if math.Abs(analysis.MeanRatio-wantMean) > 1e-9 {
		t.Errorf("mean ratio = %v, want %v", analysis.MeanRatio, wantMean)
	}
	if analysis.CNPJ != "111" {
		t.Errorf("cnpj = %q", analysis.CNPJ)
	}
}

func TestReconcileRatioIsExact(t *testing.T) {
	rec := NewReconciler(seededStore(t), fetcherWith(
		model.PricePoint{Date: day(2023, 1, 20), Close: 105},
	))
	analysis, err := rec.Reconcile(context.Background(), "HGLG11", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range analysis.Points {
		if p.Ratio != p.Price/p.VPA {
			t.Errorf("ratio %v != price/vpa %v", p.Ratio, p.Price/p.VPA)
		}
	}
}

func TestReconcileUnknownTicker(t *testing.T) {
	rec := NewReconciler(seededStore(t), fetcherWith())
	_, err := rec.Reconcile(context.Background(), "NOPE11", 5)
	if !errors.Is(err, ErrUnknownTicker) {
		t.Fatalf("expected ErrUnknownTicker, got %v", err)
	}
}

func TestReconcileNoBookValueData(t *testing.T) {
	rec := NewReconciler(seededStore(t), fetcherWith())
	_, err := rec.Reconcile(context.Background(), "EMPT11", 5)
	if !errors.Is(err, ErrNoBookValueData) {
		t.Fatalf("expected ErrNoBookValueData, got %v", err)
	}
}

func TestReconcileNoPriceData(t *testing.T) {
	rec := NewReconciler(seededStore(t), &quote.MockFetcher{})
	_, err := rec.Reconcile(context.Background(), "HGLG11", 5)
	if !errors.Is(err, ErrNoPriceData) {
		t.Fatalf("expected ErrNoPriceData, got %v", err)
	}
}

func TestMergeDropsNonPositiveVPA(t *testing.T) {
	prices := []model.PricePoint{{Date: day(2023, 1, 10), Close: 50}}
	books := []model.BookValueRecord{{CNPJ: "111", Date: day(2023, 1, 1), VPA: 0}}
	if out := merge(prices, books); len(out) != 0 {
		t.Fatalf("zero vpa must drop the row, got %+v", out)
	}
}
