// Package twelvedata implements the Twelve Data time-series vendor
// integration used by the per-symbol feature backfill variant. It covers both
// the /time_series OHLCV endpoint and the per-indicator technical endpoints.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"histfill/internal/domain"
	"histfill/internal/provider"
)

// Compile-time interface checks.
var _ provider.SeriesFetcher = (*Client)(nil)
var _ provider.IndicatorFetcher = (*Client)(nil)

const requestTimeout = 30 * time.Second

// Client fetches daily series and technical indicators from the Twelve Data
// API. Safe for concurrent use across pipeline workers.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient creates a Twelve Data client against the given base URL.
func NewClient(baseURL, apiKey string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)

	return &Client{http: http, apiKey: apiKey}
}

// FetchDaily retrieves the symbol's daily OHLCV rows within the range from
// the /time_series endpoint. The vendor reports errors in a
// {code, message, status: "error"} envelope even with a 200 status.
func (c *Client) FetchDaily(ctx context.Context, symbol string, dr domain.DateRange) ([]domain.Row, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"interval":   "1day",
			"start_date": dr.StartDate(),
			"end_date":   dr.EndDate(),
			"order":      "asc",
			"outputsize": "5000",
			"apikey":     c.apiKey,
		}).
		Get("/time_series")
	if err != nil {
		return nil, fmt.Errorf("time_series request for %s: %w", symbol, err)
	}
	if !resp.IsSuccess() {
		return nil, &provider.HTTPError{Symbol: symbol, Status: resp.StatusCode()}
	}

	var payload any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &provider.FormatError{Symbol: symbol, Detail: "non-JSON body"}
	}
	if err := provider.CheckEnvelope(symbol, payload); err != nil {
		return nil, err
	}

	list, ok := provider.UnwrapList(payload, "values", "data")
	if !ok {
		return nil, &provider.FormatError{Symbol: symbol, Detail: "no values list in payload"}
	}

	rows := make([]domain.Row, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		date := dateOf(m)
		if date == "" {
			continue
		}
		rows = append(rows, domain.Row{
			Symbol: symbol,
			Date:   date,
			Open:   provider.CoerceFloat(m["open"]),
			High:   provider.CoerceFloat(m["high"]),
			Low:    provider.CoerceFloat(m["low"]),
			Close:  provider.CoerceFloat(m["close"]),
			Volume: provider.CoerceFloat(m["volume"]),
		})
	}

	provider.SortRows(rows)
	return rows, nil
}

// FetchIndicator calls the vendor's per-indicator endpoint (e.g. /rsi) and
// returns a date → field → value mapping, with every field name prefixed by
// the indicator name. An error envelope fails the call; a payload without a
// recognizable values list yields an empty mapping so callers can tell "no
// data" apart from "call failed".
func (c *Client) FetchIndicator(ctx context.Context, symbol, name string, params map[string]string, dr domain.DateRange) (map[string]map[string]float64, error) {
	query := map[string]string{
		"symbol":     symbol,
		"interval":   "1day",
		"start_date": dr.StartDate(),
		"end_date":   dr.EndDate(),
		"apikey":     c.apiKey,
	}
	for k, v := range params {
		query[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get("/" + name)
	if err != nil {
		return nil, fmt.Errorf("%s request for %s: %w", name, symbol, err)
	}
	if !resp.IsSuccess() {
		return nil, &provider.HTTPError{Symbol: symbol, Status: resp.StatusCode()}
	}

	var payload any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &provider.FormatError{Symbol: symbol, Detail: "non-JSON body"}
	}
	if err := provider.CheckEnvelope(symbol, payload); err != nil {
		return nil, err
	}

	list, ok := provider.UnwrapList(payload, "values", "data")
	if !ok {
		// No data for this indicator/range. Not a failure.
		return map[string]map[string]float64{}, nil
	}

	out := make(map[string]map[string]float64, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		date := dateOf(m)
		if date == "" {
			continue
		}
		fields := make(map[string]float64)
		for k, v := range m {
			if k == "datetime" || k == "date" {
				continue
			}
			if f := provider.CoerceFloat(v); f != nil {
				fields[name+"_"+k] = *f
			}
		}
		if len(fields) > 0 {
			out[date] = fields
		}
	}
	return out, nil
}

// dateOf extracts the date key from a vendor value entry, trimming any time
// component from datetime values.
func dateOf(m map[string]any) string {
	date, _ := m["datetime"].(string)
	if date == "" {
		date, _ = m["date"].(string)
	}
	if len(date) > len(domain.DateFormat) {
		date = date[:len(domain.DateFormat)]
	}
	return date
}
