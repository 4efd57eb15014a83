// Package provider defines the vendor-client contract for fetching daily
// OHLCV series and vendor-computed technical indicators, together with the
// typed errors and JSON envelope handling shared by all vendor integrations.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"histfill/internal/domain"
)

// ---------------------------------------------------------------------------
// Contracts
// ---------------------------------------------------------------------------

// SeriesFetcher retrieves the daily OHLCV history for one symbol.
type SeriesFetcher interface {
	// FetchDaily returns the symbol's rows within the range, sorted ascending
	// by date regardless of vendor response order.
	FetchDaily(ctx context.Context, symbol string, dr domain.DateRange) ([]domain.Row, error)
}

// IndicatorFetcher retrieves vendor-computed technical indicator values.
type IndicatorFetcher interface {
	// FetchIndicator returns a date → field → value mapping for one indicator
	// call. Field names are prefixed with the indicator name. A response with
	// no recognizable values list yields an empty mapping, not an error.
	FetchIndicator(ctx context.Context, symbol, name string, params map[string]string, dr domain.DateRange) (map[string]map[string]float64, error)
}

// ---------------------------------------------------------------------------
// Typed errors
// ---------------------------------------------------------------------------

// HTTPError reports a non-2xx vendor response.
type HTTPError struct {
	Symbol string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vendor http status %d for %s", e.Status, e.Symbol)
}

// APIError reports a well-formed error envelope returned by the vendor.
type APIError struct {
	Symbol  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vendor error for %s: %s", e.Symbol, e.Message)
}

// FormatError reports a response whose shape was not recognized.
type FormatError struct {
	Symbol string
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected response format for %s: %s", e.Symbol, e.Detail)
}

// ---------------------------------------------------------------------------
// Envelope handling
// ---------------------------------------------------------------------------

// CheckEnvelope inspects a decoded JSON payload for the vendor error shapes,
// tried in fixed priority order: an "error" field, paired "code"/"message"
// fields, then a "status": "error" field. It returns an APIError when one
// matches, nil otherwise.
func CheckEnvelope(symbol string, payload any) error {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if msg, ok := m["error"]; ok {
		return &APIError{Symbol: symbol, Message: fmt.Sprint(msg)}
	}
	if _, hasCode := m["code"]; hasCode {
		if msg, hasMsg := m["message"]; hasMsg {
			return &APIError{Symbol: symbol, Message: fmt.Sprint(msg)}
		}
	}
	if st, ok := m["status"].(string); ok && st == "error" {
		msg := "status error"
		if v, ok := m["message"]; ok {
			msg = fmt.Sprint(v)
		}
		return &APIError{Symbol: symbol, Message: msg}
	}
	return nil
}

// UnwrapList extracts the row list from a decoded payload. A top-level list
// is returned as-is; a map is unwrapped through the first matching wrapper
// key. The second return is false when no list was found.
func UnwrapList(payload any, wrapperKeys ...string) ([]any, bool) {
	if list, ok := payload.([]any); ok {
		return list, true
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range wrapperKeys {
		if list, ok := m[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// CoerceFloat converts a decoded JSON value to a float64, returning nil when
// the value is absent or not numerically coercible. Coercion failure degrades
// to null rather than aborting the row.
func CoerceFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}

// SortRows orders rows ascending by date. Vendor ordering is never trusted.
func SortRows(rows []domain.Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
}
