package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"FIILens/internal/config"
	"FIILens/internal/fundstore"
	"FIILens/internal/ledger"
	"FIILens/internal/model"
	"FIILens/internal/quote"
	"FIILens/internal/ticker"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestRouter(t *testing.T, fetcher quote.Fetcher) http.Handler {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	store, err := fundstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.UpsertFunds([]model.FundIdentity{{Ticker: "HGLG11", CNPJ: "111"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceBookValues([]model.BookValueRecord{
		{CNPJ: "111", Date: day(2023, 1, 1), VPA: 100},
	}); err != nil {
		t.Fatal(err)
	}

	n := ticker.NewNormalizer(nil)
	handler := NewHandler(store, fetcher, ledger.NewLoader(n), n, cfg)
	return SetupRoutes(handler)
}

func fetcherFor(code string, points ...model.PricePoint) *quote.MockFetcher {
	return &quote.MockFetcher{Series: map[string]model.PriceSeries{
		code: {Ticker: code, Points: points},
	}}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPVPEndpoint(t *testing.T) {
	router := newTestRouter(t, fetcherFor("HGLG11",
		model.PricePoint{Date: day(2023, 1, 20), Close: 105},
	))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pvp/hglg11?years=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp pvpResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Analysis == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Analysis.Points) != 1 || resp.Analysis.Points[0].Ratio != 1.05 {
		t.Errorf("analysis = %+v", resp.Analysis)
	}
}

func TestPVPUnknownTicker(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pvp/NOPE11", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPVPNoPriceDataIsInformational(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pvp/HGLG11", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (non-fatal)", rec.Code)
	}
	var resp pvpResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "no_data" {
		t.Errorf("status = %q, want no_data", resp.Status)
	}
}

func multipartLedger(t *testing.T, filename, csvData string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(csvData))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

const ledgerCSV = "Data do Negócio;Tipo de Movimentação;Código de Negociação;Quantidade;Preço\n" +
	"15/01/2023;Compra;BBAS3;10;R$ 30,00\n" +
	"16/01/2023;Venda;BBAS3;5;31,00\n"

func TestOverlayUpload(t *testing.T) {
	router := newTestRouter(t, fetcherFor("BBAS3",
		model.PricePoint{Date: day(2023, 1, 13), Close: 29.5},
		model.PricePoint{Date: day(2023, 1, 16), Close: 30.2},
	))

	body, contentType := multipartLedger(t, "negociacao.csv", ledgerCSV, map[string]string{"ticker": "bbas3"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overlay", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp overlayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Overlay == nil || resp.Series == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Overlay.Points) != 1 || resp.Overlay.Points[0].Price != 29.5 {
		t.Errorf("overlay = %+v", resp.Overlay)
	}
	if resp.Diagnostics == nil || resp.Diagnostics.NonBuy != 1 {
		t.Errorf("diagnostics = %+v", resp.Diagnostics)
	}
}

func TestOverlayNoTickerListsOptions(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{})
	body, contentType := multipartLedger(t, "negociacao.csv", ledgerCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overlay", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp overlayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "select_ticker" || len(resp.Tickers) != 1 || resp.Tickers[0] != "BBAS3" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestOverlayWrongExport(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{})
	body, contentType := multipartLedger(t, "movimentacao-2023.csv", ledgerCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overlay", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestOverlayEmptyProviderData(t *testing.T) {
	router := newTestRouter(t, &quote.MockFetcher{}) // no data for any ticker
	body, contentType := multipartLedger(t, "negociacao.csv", ledgerCSV, map[string]string{"ticker": "BBAS3"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/overlay", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (informational)", rec.Code)
	}
	var resp overlayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "no_data" {
		t.Errorf("status = %q, want no_data", resp.Status)
	}
}
