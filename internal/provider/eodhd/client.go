// Package eodhd implements the EODHD end-of-day vendor integration used by
// the monthly-partition backfill variant.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"histfill/internal/domain"
	"histfill/internal/provider"
)

// Compile-time interface check.
var _ provider.SeriesFetcher = (*Client)(nil)

const requestTimeout = 30 * time.Second

// Client fetches daily OHLCV series from the EODHD /eod endpoint. The
// underlying resty client pools connections and is safe for concurrent use
// across pipeline workers.
type Client struct {
	http     *resty.Client
	token    string
	exchange string
}

// NewClient creates an EODHD client against the given base URL. Symbols are
// qualified with the US exchange suffix, matching the vendor's
// SYMBOL.EXCHANGE addressing.
func NewClient(baseURL, token string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)

	return &Client{
		http:     http,
		token:    token,
		exchange: "US",
	}
}

// FetchDaily retrieves the symbol's daily OHLCV rows within the range.
// Non-2xx statuses, vendor error envelopes, and unrecognized payload shapes
// all fail the call; rows missing a date are silently dropped and numeric
// fields that fail coercion become null.
func (c *Client) FetchDaily(ctx context.Context, symbol string, dr domain.DateRange) ([]domain.Row, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from":      dr.StartDate(),
			"to":        dr.EndDate(),
			"api_token": c.token,
			"period":    "d",
			"fmt":       "json",
			"order":     "a",
			"limit":     strconv.Itoa(5000),
		}).
		Get(fmt.Sprintf("/eod/%s.%s", symbol, c.exchange))
	if err != nil {
		return nil, fmt.Errorf("eod request for %s: %w", symbol, err)
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

	list, ok := provider.UnwrapList(payload, "data")
	if !ok {
		return nil, &provider.FormatError{Symbol: symbol, Detail: "payload is not a list"}
	}

	rows := make([]domain.Row, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		date, _ := m["date"].(string)
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
