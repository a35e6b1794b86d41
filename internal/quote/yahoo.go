package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"FIILens/internal/model"
)

// DefaultSuffix is the Yahoo Finance market suffix for B3-listed assets.
const DefaultSuffix = ".SA"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL string
	Suffix  string // market suffix appended before querying, e.g. ".SA"
	PadDays int    // window padding on both ends, see FetchDaily
	Client  *http.Client
}

// NewYahooFetcher creates a Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(suffix string, padDays int, timeout time.Duration, proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Suffix:  suffix,
		PadDays: padDays,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure of the Yahoo chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []interface{} `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// FetchDaily queries the chart API for daily bars between start and end.
// The window is padded by PadDays on both ends: the provider's calendar
// excludes weekends and holidays, and callers derive the bounds from trade
// dates that may sit right on a non-trading day.
func (f *YahooFetcher) FetchDaily(ctx context.Context, tickerCode string, start, end time.Time) (model.PriceSeries, error) {
	symbol := tickerCode + f.Suffix
	series := model.PriceSeries{Ticker: tickerCode}

	period1 := model.Day(start).AddDate(0, 0, -f.PadDays).Unix()
	period2 := model.Day(end).AddDate(0, 0, f.PadDays+1).Unix() // end inclusive

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		f.BaseURL, url.PathEscape(symbol), period1, period2)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return series, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return series, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return series, fmt.Errorf("yahoo read body: %w", err)
	}
	// 404 means the symbol is unknown to Yahoo (delisted or mistyped):
	// an empty series, not a transport failure.
	if resp.StatusCode == http.StatusNotFound {
		return series, nil
	}
	if resp.StatusCode != http.StatusOK {
		return series, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return series, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil || len(chart.Chart.Result) == 0 {
		// Provider answered but has nothing for this symbol/window.
		return series, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return series, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) {
			break
		}
		c := toFloat(closes[i])
		if c == 0 {
			continue // null bars on holidays
		}
		points = append(points, model.PricePoint{
			Date:  model.Day(time.Unix(ts, 0)),
			Close: c,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	series.Points = points
	return series, nil
}
