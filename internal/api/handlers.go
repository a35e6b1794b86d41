package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"FIILens/internal/align"
	"FIILens/internal/config"
	"FIILens/internal/fundstore"
	"FIILens/internal/ledger"
	"FIILens/internal/model"
	"FIILens/internal/pvp"
	"FIILens/internal/quote"
	"FIILens/internal/ticker"
)

// Handler holds dependencies for HTTP handlers. Handlers keep no session
// state: every request carries its own inputs and receives explicit
// results or diagnostics.
type Handler struct {
	store      *fundstore.Store
	fetcher    quote.Fetcher
	loader     *ledger.Loader
	normalizer *ticker.Normalizer
	cfg        *config.Config
}

// NewHandler creates a new Handler.
func NewHandler(store *fundstore.Store, fetcher quote.Fetcher, loader *ledger.Loader, n *ticker.Normalizer, cfg *config.Config) *Handler {
	return &Handler{store: store, fetcher: fetcher, loader: loader, normalizer: n, cfg: cfg}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListFunds handles GET /api/v1/funds.
func (h *Handler) ListFunds(w http.ResponseWriter, _ *http.Request) {
	tickers, err := h.store.Tickers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tickers": tickers})
}

// overlayResponse is the plot-ready payload for the purchase-timeline chart.
type overlayResponse struct {
	Status      string                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Tickers     []string               `json:"tickers,omitempty"`
	Overlay     *model.PurchaseOverlay `json:"overlay,omitempty"`
	Series      *model.PriceSeries     `json:"series,omitempty"`
	Diagnostics *ledger.Diagnostics    `json:"diagnostics,omitempty"`
}

// PurchaseOverlay handles POST /api/v1/overlay. The ledger arrives either
// as a multipart upload (field "file") or as a JSON body {"url": ...};
// "ticker" and "window_days" come from the form or JSON. A request without
// a ticker answers with the tickers found in the ledger so the client can
// present the asset picker.
func (h *Handler) PurchaseOverlay(w http.ResponseWriter, r *http.Request) {
	src, tickerCode, windowDays, err := h.parseOverlayRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	led, err := h.loader.Load(r.Context(), src)
	if err != nil {
		var schemaErr *ledger.SchemaError
		switch {
		case errors.Is(err, ledger.ErrWrongExport), errors.As(err, &schemaErr):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if len(led.Events) == 0 {
		respondJSON(w, http.StatusOK, overlayResponse{
			Status:      "empty_ledger",
			Message:     "the export contains no buy operations",
			Diagnostics: &led.Diag,
		})
		return
	}

	if tickerCode == "" {
		respondJSON(w, http.StatusOK, overlayResponse{
			Status:      "select_ticker",
			Tickers:     led.Tickers(),
			Diagnostics: &led.Diag,
		})
		return
	}

	canonical := h.normalizer.Normalize(tickerCode)
	events := led.FilterTicker(canonical)
	if len(events) == 0 {
		respondJSON(w, http.StatusOK, overlayResponse{
			Status:      "no_data",
			Message:     "no buy events for " + canonical,
			Tickers:     led.Tickers(),
			Diagnostics: &led.Diag,
		})
		return
	}

	start, end := events[0].TradeDate, events[0].TradeDate
	for _, ev := range events[1:] {
		if ev.TradeDate.Before(start) {
			start = ev.TradeDate
		}
		if ev.TradeDate.After(end) {
			end = ev.TradeDate
		}
	}
	start = start.AddDate(0, 0, -windowDays)
	end = end.AddDate(0, 0, windowDays)

	series, err := h.fetcher.FetchDaily(r.Context(), canonical, start, end)
	if err != nil {
		log.Printf("[ERROR] overlay fetch %s: %v", canonical, err)
		respondError(w, http.StatusBadGateway, "price provider unavailable")
		return
	}
	if series.Empty() {
		respondJSON(w, http.StatusOK, overlayResponse{
			Status:      "no_data",
			Message:     "no quote data found for " + canonical + h.cfg.Quote.Suffix,
			Diagnostics: &led.Diag,
		})
		return
	}

	overlay := align.Align(events, series)
	respondJSON(w, http.StatusOK, overlayResponse{
		Status:      "ok",
		Overlay:     &overlay,
		Series:      &series,
		Diagnostics: &led.Diag,
	})
}

func (h *Handler) parseOverlayRequest(r *http.Request) (ledger.Source, string, int, error) {
	windowDays := h.cfg.Analysis.DefaultWindowDays

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, "", 0, errors.New("invalid multipart body")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", 0, errors.New("missing file field")
		}
		if v := r.FormValue("window_days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				windowDays = n
			}
		}
		return ledger.FileSource{FileName: header.Filename, Reader: file}, r.FormValue("ticker"), windowDays, nil
	}

	var req struct {
		URL        string `json:"url"`
		Ticker     string `json:"ticker"`
		WindowDays int    `json:"window_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", 0, errors.New("invalid request body")
	}
	if req.URL == "" {
		return nil, "", 0, errors.New("url is required")
	}
	if req.WindowDays > 0 {
		windowDays = req.WindowDays
	}
	return ledger.URLSource{URL: req.URL}, req.Ticker, windowDays, nil
}

// pvpResponse wraps the P/VP dataset for the chart.
type pvpResponse struct {
	Status   string             `json:"status"`
	Message  string             `json:"message,omitempty"`
	Analysis *model.PVPAnalysis `json:"analysis,omitempty"`
}

// PVP handles GET /api/v1/pvp/{ticker}?years=N.
func (h *Handler) PVP(w http.ResponseWriter, r *http.Request) {
	canonical := h.normalizer.Normalize(mux.Vars(r)["ticker"])

	years := h.cfg.Analysis.DefaultYears
	if v := r.URL.Query().Get("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "years must be a positive integer")
			return
		}
		years = n
	}

	rec := pvp.NewReconciler(h.store, h.fetcher)
	analysis, err := rec.Reconcile(r.Context(), canonical, years)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, pvpResponse{Status: "ok", Analysis: analysis})
	case errors.Is(err, pvp.ErrUnknownTicker):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pvp.ErrNoBookValueData), errors.Is(err, pvp.ErrNoPriceData):
		// Informational, not a failure: the analysis aborts for this
		// ticker only.
		respondJSON(w, http.StatusOK, pvpResponse{Status: "no_data", Message: err.Error()})
	default:
		log.Printf("[ERROR] pvp %s: %v", canonical, err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[ERROR] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"status": "error", "error": msg})
}
